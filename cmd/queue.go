package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/halden/outlay/internal/output"
	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:     "queue",
	Short:   "Inspect and control the mutation queue",
	GroupID: "queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show queued mutations in order",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()

		entries, err := e.queue.Entries()
		if err != nil {
			return err
		}
		paused, err := e.queue.Paused()
		if err != nil {
			return err
		}
		if paused {
			output.Warning("queue is paused")
		}
		if len(entries) == 0 {
			output.Info(output.Subtle("Queue is empty"))
			return nil
		}
		for _, entry := range entries {
			line := fmt.Sprintf("%d  %s  %s  attempts=%d", entry.Seq, entry.Command, entry.CommandID, entry.Attempts)
			if entry.LastError != "" {
				line += "  " + output.Subtle(entry.LastError)
			}
			fmt.Println(line)
		}
		return nil
	},
}

var queuePauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Stop dispatching queued mutations",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()

		if err := e.queue.Pause(); err != nil {
			return err
		}
		output.Success("Queue paused")
		return nil
	},
}

var queueResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume dispatching queued mutations",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()

		if err := e.queue.Resume(); err != nil {
			return err
		}
		output.Success("Queue resumed")
		return nil
	},
}

var queueCancelCmd = &cobra.Command{
	Use:   "cancel <commandID>",
	Short: "Cancel a pending mutation and roll back its local changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()

		if err := e.queue.Cancel(args[0]); err != nil {
			output.Error("%v", err)
			return err
		}
		output.Success("Cancelled %s", args[0])
		return nil
	},
}

var drainWatch bool

var drainCmd = &cobra.Command{
	Use:     "drain",
	Short:   "Send queued mutations to the server",
	GroupID: "queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if drainWatch {
			output.Info("Draining queue every %s; Ctrl-C to stop", e.cfg.DrainIntervalOrDefault())
			e.queue.Start(ctx, e.cfg.DrainIntervalOrDefault())
			<-ctx.Done()
			return nil
		}

		drainCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		defer cancel()
		result, err := e.queue.Drain(drainCtx)
		if err != nil {
			return err
		}
		if result.Failed > 0 {
			output.Warning("%d mutation(s) rejected and rolled back", result.Failed)
		}
		output.Success("Confirmed %d mutation(s)", result.Confirmed)
		return nil
	},
}

func init() {
	drainCmd.Flags().BoolVar(&drainWatch, "watch", false, "keep draining on an interval")

	queueCmd.AddCommand(queueListCmd, queuePauseCmd, queueResumeCmd, queueCancelCmd)
	rootCmd.AddCommand(queueCmd, drainCmd)
}
