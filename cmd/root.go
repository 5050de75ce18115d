package cmd

import (
	"fmt"
	"os"

	"github.com/halden/outlay/internal/config"
	"github.com/spf13/cobra"
)

var (
	version string
	baseDir string
)

// SetVersion sets the version string
func SetVersion(v string) {
	version = v
}

var rootCmd = &cobra.Command{
	Use:   "outlay",
	Short: "Offline-first expense tracking CLI",
	Long: `outlay - An offline-first expense tracker with optimistic mutations.

Every change applies locally first and queues for the server; the local
view stays usable offline and reconciles when connectivity returns.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initBaseDir)

	rootCmd.AddGroup(
		&cobra.Group{ID: "expense", Title: "Expense Commands:"},
		&cobra.Group{ID: "report", Title: "Report Commands:"},
		&cobra.Group{ID: "workspace", Title: "Workspace Commands:"},
		&cobra.Group{ID: "queue", Title: "Queue Commands:"},
		&cobra.Group{ID: "system", Title: "System Commands:"},
	)
	rootCmd.SetHelpCommandGroupID("system")
	rootCmd.SetCompletionCommandGroupID("system")
}

func initBaseDir() {
	var err error
	baseDir, err = os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot determine working directory: %v\n", err)
		os.Exit(1)
	}
	config.LoadEnv(baseDir)
}

// getBaseDir returns the base directory for the project
func getBaseDir() string {
	return baseDir
}
