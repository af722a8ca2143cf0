package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/costgov/costgov/internal/pkg/logger"
	"github.com/costgov/costgov/internal/policystore"
)

func newPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect and validate policy documents",
	}
	cmd.AddCommand(newPolicyValidateCmd())
	cmd.AddCommand(newPolicyListCmd())
	return cmd
}

func newPolicyValidateCmd() *cobra.Command {
	var policyDir string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate every policy document in a directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.New(logger.Config{Level: "error", Format: "console"})
			store, rejected, err := policystore.NewLoader(policyDir, log).Load()
			if err != nil {
				return err
			}
			for _, rerr := range rejected {
				fmt.Printf("invalid: %v\n", rerr)
			}
			fmt.Printf("%d valid, %d invalid, version %s\n", store.Len(), len(rejected), store.Version())
			if len(rejected) > 0 {
				return fmt.Errorf("%d policy documents failed validation", len(rejected))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&policyDir, "policies", "./policies", "policy directory")
	return cmd
}

func newPolicyListCmd() *cobra.Command {
	var policyDir string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List loaded policies",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.New(logger.Config{Level: "error", Format: "console"})
			store, _, err := policystore.NewLoader(policyDir, log).Load()
			if err != nil {
				return err
			}

			if getOutputFormat() != "table" {
				return printOutput(store.Policies())
			}
			t := NewTable("NAME", "KIND", "ENABLED", "PRECEDENCE", "DRY-RUN")
			for _, p := range store.Policies() {
				t.AddRow(p.Name, string(p.Kind), fmt.Sprintf("%t", p.Enabled), fmt.Sprintf("%d", p.Precedence), fmt.Sprintf("%t", p.DryRun))
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&policyDir, "policies", "./policies", "policy directory")
	return cmd
}
