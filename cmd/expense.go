package cmd

import (
	"github.com/halden/outlay/internal/output"
	"github.com/spf13/cobra"
)

var expenseCmd = &cobra.Command{
	Use:     "expense",
	Short:   "Create and manage expenses",
	GroupID: "expense",
}

var (
	createAmount   int64
	createCurrency string
	createMerchant string
	createCategory string
	createTag      string
	createComment  string
	createPayer    string
	createChatID   string
	createPolicyID string
)

var expenseCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Request money from someone",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()

		us, err := e.build.CreateExpense(builderCreateParams())
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if err := e.submit(us); err != nil {
			return err
		}
		output.Success("Requested %s", output.Amount(createAmount, createCurrency))
		return nil
	},
}

var expenseDeleteCmd = &cobra.Command{
	Use:   "delete <transactionID>",
	Short: "Delete an expense",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()

		us, err := e.build.DeleteExpense(args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if err := e.submit(us); err != nil {
			return err
		}
		output.Success("Deleted expense %s", args[0])
		return nil
	},
}

var holdComment string

var expenseHoldCmd = &cobra.Command{
	Use:   "hold <transactionID>",
	Short: "Put an expense on hold",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()

		us, err := e.build.HoldExpense(args[0], holdComment)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if err := e.submit(us); err != nil {
			return err
		}
		output.Success("Held expense %s", args[0])
		return nil
	},
}

var expenseUnholdCmd = &cobra.Command{
	Use:   "unhold <transactionID>",
	Short: "Release a held expense",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()

		us, err := e.build.UnholdExpense(args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if err := e.submit(us); err != nil {
			return err
		}
		output.Success("Released expense %s", args[0])
		return nil
	},
}

var splitParticipants []string

var expenseSplitCmd = &cobra.Command{
	Use:   "split",
	Short: "Split a bill among several people",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()

		us, err := e.build.SplitExpense(builderSplitParams())
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if err := e.submit(us); err != nil {
			return err
		}
		output.Success("Split %s among %d participant(s)",
			output.Amount(createAmount, createCurrency), len(splitParticipants))
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{expenseCreateCmd, expenseSplitCmd} {
		c.Flags().Int64Var(&createAmount, "amount", 0, "amount in minor units (cents)")
		c.Flags().StringVar(&createCurrency, "currency", "USD", "currency code")
		c.Flags().StringVar(&createMerchant, "merchant", "", "merchant name")
		c.Flags().StringVar(&createCategory, "category", "", "expense category")
		c.Flags().StringVar(&createTag, "tag", "", "expense tag")
		c.Flags().StringVar(&createComment, "comment", "", "description")
		c.Flags().StringVar(&createPolicyID, "policy", "", "policy ID")
	}
	expenseCreateCmd.Flags().StringVar(&createPayer, "from", "", "payer login email")
	expenseCreateCmd.Flags().StringVar(&createChatID, "chat", "", "existing chat report ID")
	expenseSplitCmd.Flags().StringSliceVar(&splitParticipants, "with", nil, "participant login emails")

	expenseHoldCmd.Flags().StringVar(&holdComment, "comment", "", "why the expense is held")

	expenseCmd.AddCommand(expenseCreateCmd, expenseDeleteCmd, expenseHoldCmd, expenseUnholdCmd, expenseSplitCmd)
	rootCmd.AddCommand(expenseCmd)
}
