package cmd

import (
	"fmt"
	"sort"

	"github.com/halden/outlay/internal/builder"
	"github.com/halden/outlay/internal/models"
	"github.com/halden/outlay/internal/output"
	"github.com/halden/outlay/internal/policy"
	"github.com/halden/outlay/internal/policycache"
	"github.com/spf13/cobra"
)

var workspaceCmd = &cobra.Command{
	Use:     "workspace",
	Short:   "Manage policy workflows and integrations",
	GroupID: "workspace",
}

var (
	wfPolicyID     string
	wfMode         string
	wfEmployee     string
	wfSubmitsTo    string
	wfForwardsTo   string
	wfLimit        int64
	wfOverLimitTo  string
	wfFrequency    string
	connConfigKeys map[string]string
)

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Update the approval workflow",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()

		u := builder.WorkflowUpdate{}
		if wfMode != "" {
			mode := models.ApprovalMode(wfMode)
			u.ApprovalMode = &mode
		}
		if wfEmployee != "" {
			u.Employees = map[string]models.Employee{
				wfEmployee: {
					SubmitsTo:           wfSubmitsTo,
					ForwardsTo:          wfForwardsTo,
					ApprovalLimit:       wfLimit,
					OverLimitForwardsTo: wfOverLimitTo,
				},
			}
		}

		us, err := e.build.UpdateApprovalWorkflow(wfPolicyID, u)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if us == nil {
			output.Info("Workflow already up to date")
			return nil
		}
		if err := e.submit(us); err != nil {
			return err
		}
		output.Success("Updated workflow on policy %s", wfPolicyID)
		return nil
	},
}

var frequencyCmd = &cobra.Command{
	Use:   "frequency",
	Short: "Set how often expenses harvest into reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()

		us, err := e.build.SetAutoReportingFrequency(wfPolicyID, models.AutoReportingFrequency(wfFrequency))
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if us == nil {
			output.Info("Frequency already set")
			return nil
		}
		if err := e.submit(us); err != nil {
			return err
		}
		output.Success("Set reporting frequency to %s", wfFrequency)
		return nil
	},
}

var connectCmd = &cobra.Command{
	Use:   "connect <integration>",
	Short: "Connect an accounting integration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()

		us, err := e.build.ConnectIntegration(wfPolicyID, models.ConnectionName(args[0]), connConfigKeys)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if err := e.submit(us); err != nil {
			return err
		}
		output.Success("Connected %s to policy %s", args[0], wfPolicyID)
		return nil
	},
}

var workspaceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known policies",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()

		cache := policycache.New(e.store)
		defer cache.Close()

		all := cache.All()
		if len(all) == 0 {
			output.Info("No policies yet")
			return nil
		}
		ids := make([]string, 0, len(all))
		for id := range all {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			p := all[id]
			name := p.Name
			if name == "" {
				name = "(unnamed)"
			}
			fmt.Printf("%s  %s\n", id, name)
			fmt.Printf("  %s\n", output.Subtle(fmt.Sprintf(
				"mode %s, reporting %s, %d employee(s), %d integration(s)",
				p.ApprovalMode, policy.EffectiveFrequency(&p), len(p.EmployeeList), len(p.Connections))))
		}
		return nil
	},
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect <integration>",
	Short: "Remove an accounting integration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()

		us, err := e.build.DisconnectIntegration(wfPolicyID, models.ConnectionName(args[0]))
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if err := e.submit(us); err != nil {
			return err
		}
		output.Success("Disconnected %s from policy %s", args[0], wfPolicyID)
		return nil
	},
}

func init() {
	workspaceCmd.PersistentFlags().StringVar(&wfPolicyID, "policy", "", "policy ID")

	workflowCmd.Flags().StringVar(&wfMode, "mode", "", "approval mode (OPTIONAL, BASIC, ADVANCED)")
	workflowCmd.Flags().StringVar(&wfEmployee, "employee", "", "employee login to update")
	workflowCmd.Flags().StringVar(&wfSubmitsTo, "submits-to", "", "who the employee submits to")
	workflowCmd.Flags().StringVar(&wfForwardsTo, "forwards-to", "", "who the employee forwards to")
	workflowCmd.Flags().Int64Var(&wfLimit, "approval-limit", 0, "approval limit in minor units")
	workflowCmd.Flags().StringVar(&wfOverLimitTo, "over-limit-forwards-to", "", "who over-limit reports forward to")

	frequencyCmd.Flags().StringVar(&wfFrequency, "value", "", "instant, immediate, weekly, monthly or manual")

	connectCmd.Flags().StringToStringVar(&connConfigKeys, "config", nil, "integration config as key=value pairs")

	workspaceCmd.AddCommand(workflowCmd, frequencyCmd, connectCmd, disconnectCmd, workspaceListCmd)
	rootCmd.AddCommand(workspaceCmd)
}
