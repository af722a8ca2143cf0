// Package cli wires the costgov commands.
package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	outputFormat string
	forceDryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "costgov",
	Short: "Cost governance policy engine",
	Long: `costgov evaluates governance policies (tagging, shutdown schedules,
budgets, rightsizing, cleanup) against cloud resource and cost telemetry and
emits idempotent actions.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json, yaml")
	rootCmd.PersistentFlags().BoolVar(&forceDryRun, "dry-run", false, "force all actions to dry-run, regardless of policy settings")
	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("dry_run", rootCmd.PersistentFlags().Lookup("dry-run"))

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newEvaluateCmd())
	rootCmd.AddCommand(newPolicyCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func initConfig() {
	viper.SetEnvPrefix("COSTGOV")
	viper.AutomaticEnv()
	viper.SetDefault("output", "table")
}

func getOutputFormat() string {
	if outputFormat != "" {
		return outputFormat
	}
	return viper.GetString("output")
}
