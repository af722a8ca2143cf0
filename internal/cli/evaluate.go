package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/costgov/costgov/internal/dispatch"
	"github.com/costgov/costgov/internal/engine"
	"github.com/costgov/costgov/internal/evaluator"
	"github.com/costgov/costgov/internal/inventory"
	"github.com/costgov/costgov/internal/pkg/logger"
	"github.com/costgov/costgov/internal/policystore"
	"github.com/costgov/costgov/internal/repository/memstore"
	"github.com/costgov/costgov/internal/schedule"
)

func newEvaluateCmd() *cobra.Command {
	var (
		policyDir     string
		inventoryFile string
		atFlag        string
	)
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run one evaluation cycle against a captured inventory",
		Long: `Runs a single cycle offline: policies from a directory, resources and
spend from a YAML fixture, state in memory, actions printed instead of
dispatched. Nothing is persisted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.New(logger.Config{Level: "warn", Format: "console"})

			now := time.Now()
			if atFlag != "" {
				parsed, err := time.Parse(time.RFC3339, atFlag)
				if err != nil {
					return fmt.Errorf("invalid --at value: %w", err)
				}
				now = parsed
			}

			loader := policystore.NewLoader(policyDir, log)
			store, rejected, err := loader.Load()
			if err != nil {
				return err
			}
			for _, rerr := range rejected {
				fmt.Printf("rejected: %v\n", rerr)
			}
			holder := policystore.NewHolder(store)

			fc := inventory.NewFileCollector(inventoryFile)
			inv := inventory.NewService(nil, 0, log)
			inv.Register(fc)

			sink := &dispatch.CollectSink{}
			dispatcher := dispatch.New(sink, log)
			if forceDryRun {
				dispatcher.ForceDryRun()
			}
			eng := engine.New(holder, inv, []inventory.SpendFeed{fc},
				evaluator.New(schedule.NewResolver(0), log),
				dispatcher,
				memstore.New(), nil, engine.Options{Workers: 4, Bucket: time.Hour}, log)
			eng.SetClock(func() time.Time { return now })

			report, err := eng.RunCycle(cmd.Context())
			if err != nil {
				return err
			}

			if getOutputFormat() != "table" {
				return printOutput(map[string]interface{}{
					"report":  report,
					"actions": sink.Actions,
				})
			}

			t := NewTable("KIND", "RESOURCE", "POLICY", "DRY-RUN", "REASON")
			for _, a := range sink.Actions {
				t.AddRow(string(a.Kind), a.ResourceID, a.PolicyName, fmt.Sprintf("%t", a.DryRun), truncate(a.Reason, 60))
			}
			t.Render()
			fmt.Printf("\n%d resources, %d decisions (%d suppressed), %d actions, policy version %s\n",
				report.Resources, report.Decisions, report.Suppressed, report.Actions, report.PolicyVersion)
			return nil
		},
	}
	cmd.Flags().StringVar(&policyDir, "policies", "./policies", "policy directory")
	cmd.Flags().StringVar(&inventoryFile, "inventory", "", "inventory fixture (YAML)")
	cmd.Flags().StringVar(&atFlag, "at", "", "evaluate as of this RFC3339 instant")
	_ = cmd.MarkFlagRequired("inventory")
	return cmd
}
