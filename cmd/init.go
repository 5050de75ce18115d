package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/halden/outlay/internal/config"
	"github.com/halden/outlay/internal/output"
	"github.com/halden/outlay/internal/store"
	"github.com/spf13/cobra"
)

var (
	initAccountID int64
	initEmail     string
	initAPIURL    string
)

var initCmd = &cobra.Command{
	Use:     "init",
	Short:   "Initialize an outlay project",
	Long:    `Creates the local .outlay directory and SQLite-backed store.`,
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := getBaseDir()

		if _, err := os.Stat(filepath.Join(dir, config.DirName)); err == nil {
			output.Warning(".outlay/ already exists")
			return nil
		}

		s, err := store.Initialize(dir)
		if err != nil {
			output.Error("failed to initialize store: %v", err)
			return err
		}
		defer s.Close()

		cfg := &config.Config{
			AccountID: initAccountID,
			Email:     initEmail,
			APIURL:    initAPIURL,
		}
		deviceID, err := config.EnsureDeviceID(dir, cfg)
		if err != nil {
			output.Error("failed to write config: %v", err)
			return err
		}

		fmt.Println("INITIALIZED .outlay/")
		fmt.Printf("Device: %s\n", deviceID)
		return nil
	},
}

func init() {
	initCmd.Flags().Int64Var(&initAccountID, "account-id", 0, "your accountID on the server")
	initCmd.Flags().StringVar(&initEmail, "email", "", "your login email")
	initCmd.Flags().StringVar(&initAPIURL, "api-url", "", "command endpoint URL")
	rootCmd.AddCommand(initCmd)
}
