package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/costgov/costgov/internal/config"
	"github.com/costgov/costgov/internal/dispatch"
	"github.com/costgov/costgov/internal/engine"
	"github.com/costgov/costgov/internal/evaluator"
	"github.com/costgov/costgov/internal/inventory"
	"github.com/costgov/costgov/internal/pkg/logger"
	"github.com/costgov/costgov/internal/pkg/metrics"
	"github.com/costgov/costgov/internal/policystore"
	"github.com/costgov/costgov/internal/repository/sqlstore"
	"github.com/costgov/costgov/internal/schedule"
	"github.com/costgov/costgov/internal/worker"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the evaluation loop",
		Long:  "Runs continuous evaluation cycles until interrupted. Policies are reloaded before every cycle.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

			store, err := sqlstore.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open state store: %w", err)
			}
			defer store.Close()

			loader := policystore.NewLoader(cfg.Engine.PolicyDir, log)
			initial, rejected, err := loader.Load()
			if err != nil {
				return fmt.Errorf("initial policy load: %w", err)
			}
			holder := policystore.NewHolder(initial)
			metrics.RecordPolicyLoad(initial.Len(), len(rejected))

			var metricsSource inventory.MetricsSource
			if cfg.Engine.MetricsFile != "" {
				metricsSource = inventory.NewFileMetrics(cfg.Engine.MetricsFile)
			}
			inv := inventory.NewService(metricsSource, cfg.Engine.ProviderRPS, log)
			feeds := buildProviders(cfg, inv, log)

			eval := evaluator.New(schedule.NewResolver(cfg.Engine.EvalInterval), log)
			dispatcher := dispatch.New(dispatch.NewLogSink(log), log)
			if forceDryRun {
				log.Info("dry-run override active, no action will execute")
				dispatcher.ForceDryRun()
			}
			eng := engine.New(holder, inv, feeds, eval, dispatcher, store, store, engine.Options{
				Workers:          cfg.Engine.Workers,
				Bucket:           cfg.Engine.IdempotencyBucket,
				JournalRetention: cfg.Engine.JournalRetention,
			}, log)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if cfg.Metrics.Enabled {
				addr := fmt.Sprintf("%s:%d", cfg.Metrics.Host, cfg.Metrics.Port)
				go func() {
					log.Infof("metrics listening on %s", addr)
					if err := metrics.Serve(addr); err != nil {
						log.ErrorWithErr(err, "metrics server stopped")
					}
				}()
			}

			runner := worker.NewRunner(eng, loader, holder, cfg.Engine.EvalInterval, cfg.Engine.CycleTimeout, log)
			log.Infof("engine starting, interval %s, %d policies", cfg.Engine.EvalInterval, initial.Len())
			if err := runner.Run(ctx); err != nil && err != context.Canceled {
				return err
			}
			log.Info("engine stopped")
			return nil
		},
	}
}

// buildProviders registers collectors on the service and returns the spend
// feeds. An inventory fixture replaces live providers entirely.
func buildProviders(cfg *config.Config, svc *inventory.Service, log *logger.Logger) []inventory.SpendFeed {
	if cfg.Engine.InventoryFile != "" {
		fc := inventory.NewFileCollector(cfg.Engine.InventoryFile)
		svc.Register(fc)
		return []inventory.SpendFeed{fc}
	}

	limiter := svc.Limiter()
	var feeds []inventory.SpendFeed
	if cfg.Providers.AWS.Enabled {
		creds := inventory.AWSCredentials{
			AccessKeyID:     cfg.Providers.AWS.AccessKeyID,
			SecretAccessKey: cfg.Providers.AWS.SecretAccessKey,
			Region:          cfg.Providers.AWS.Region,
		}
		svc.Register(inventory.NewAWSCollector(creds, limiter, log))
		feeds = append(feeds, inventory.NewAWSSpendFeed(creds, limiter))
	}
	if cfg.Providers.Azure.Enabled {
		creds := inventory.AzureCredentials{
			TenantID:       cfg.Providers.Azure.TenantID,
			ClientID:       cfg.Providers.Azure.ClientID,
			ClientSecret:   cfg.Providers.Azure.ClientSecret,
			SubscriptionID: cfg.Providers.Azure.SubscriptionID,
			Location:       cfg.Providers.Azure.Location,
		}
		svc.Register(inventory.NewAzureCollector(creds, limiter, log))
		feeds = append(feeds, inventory.NewAzureSpendFeed(creds, limiter))
	}
	return feeds
}
