package cmd

import (
	"fmt"
	"sort"

	"github.com/halden/outlay/internal/models"
	"github.com/halden/outlay/internal/output"
	"github.com/halden/outlay/internal/store"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:     "report",
	Short:   "Submit, approve and pay reports",
	GroupID: "report",
}

var reportSubmitCmd = &cobra.Command{
	Use:   "submit <reportID>",
	Short: "Submit a report for approval",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()

		us, err := e.build.SubmitReport(args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if err := e.submit(us); err != nil {
			return err
		}
		output.Success("Submitted report %s", args[0])
		return nil
	},
}

var reportApproveCmd = &cobra.Command{
	Use:   "approve <reportID>",
	Short: "Approve a submitted report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()

		us, err := e.build.ApproveReport(args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if err := e.submit(us); err != nil {
			return err
		}
		output.Success("Approved report %s", args[0])
		return nil
	},
}

var rejectComment string

var reportRejectCmd = &cobra.Command{
	Use:   "reject <reportID>",
	Short: "Send a submitted report back to its owner",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()

		us, err := e.build.RejectReport(args[0], rejectComment)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if err := e.submit(us); err != nil {
			return err
		}
		output.Success("Rejected report %s", args[0])
		return nil
	},
}

var payType string

var reportPayCmd = &cobra.Command{
	Use:   "pay <reportID>",
	Short: "Reimburse a report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()

		us, err := e.build.PayReport(args[0], payType)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if err := e.submit(us); err != nil {
			return err
		}
		output.Success("Paid report %s", args[0])
		return nil
	},
}

var reportCancelPaymentCmd = &cobra.Command{
	Use:   "cancel-payment <reportID>",
	Short: "Walk back a reimbursement before it clears",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()

		us, err := e.build.CancelPayment(args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if err := e.submit(us); err != nil {
			return err
		}
		output.Success("Cancelled payment on report %s", args[0])
		return nil
	},
}

var resolveName string

var reportResolveCmd = &cobra.Command{
	Use:   "resolve <transactionID>",
	Short: "Dismiss a violation on an expense",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()

		us, err := e.build.ResolveViolation(args[0], models.ViolationName(resolveName))
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if err := e.submit(us); err != nil {
			return err
		}
		output.Success("Resolved %s on %s", resolveName, args[0])
		return nil
	},
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List money request reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()

		var reports []models.Report
		for key := range e.store.Collection(store.ReportPrefix) {
			var r models.Report
			if err := e.store.GetInto(key, &r); err != nil {
				continue
			}
			if r.IsMoneyRequestReport() {
				reports = append(reports, r)
			}
		}
		sort.Slice(reports, func(i, j int) bool {
			return reports[i].LastVisibleActionCreated > reports[j].LastVisibleActionCreated
		})

		if len(reports) == 0 {
			output.Info(output.Subtle("No reports"))
			return nil
		}
		for i := range reports {
			fmt.Println(output.ReportLine(&reports[i]))
			fmt.Print(output.Errors(reports[i].Errors))
		}
		return nil
	},
}

var reportShowCmd = &cobra.Command{
	Use:   "show <reportID>",
	Short: "Show a report and its expenses",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()

		var r models.Report
		if err := e.store.GetInto(store.ReportKey(args[0]), &r); err != nil {
			output.Error("report %s not found", args[0])
			return err
		}
		fmt.Println(output.ReportLine(&r))
		if errs := output.Errors(r.Errors); errs != "" {
			fmt.Print(errs)
		}

		for key := range e.store.Collection(store.TransactionPrefix) {
			var tx models.Transaction
			if err := e.store.GetInto(key, &tx); err != nil {
				continue
			}
			if tx.ReportID != r.ReportID {
				continue
			}
			fmt.Println("  " + output.TransactionLine(&tx))
			if errs := output.Errors(tx.Errors); errs != "" {
				fmt.Print(errs)
			}
		}
		return nil
	},
}

func init() {
	reportRejectCmd.Flags().StringVar(&rejectComment, "comment", "", "why the report is rejected")
	reportPayCmd.Flags().StringVar(&payType, "payment-type", "elsewhere", "how the payment is made")
	reportResolveCmd.Flags().StringVar(&resolveName, "name", string(models.ViolationRejectedExpense), "violation name to dismiss")

	reportCmd.AddCommand(reportSubmitCmd, reportApproveCmd, reportRejectCmd,
		reportPayCmd, reportCancelPaymentCmd, reportResolveCmd,
		reportListCmd, reportShowCmd)
	rootCmd.AddCommand(reportCmd)
}
