// adrules runs advertising automation rules against reporting data and
// applies the resulting bid, budget, and state changes.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/trafficops/adrules/internal/conf"
	"github.com/trafficops/adrules/internal/entities"
	"github.com/trafficops/adrules/internal/logger"
	"github.com/trafficops/adrules/internal/notification"
	"github.com/trafficops/adrules/internal/observability"
	"github.com/trafficops/adrules/internal/repository"
	"github.com/trafficops/adrules/internal/rules"
	"github.com/trafficops/adrules/internal/stats"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "adrules",
		Short:         "Advertising automation rules engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	root.AddCommand(runCommand(&configPath))
	root.AddCommand(listCommand(&configPath))
	root.AddCommand(seedCommand(&configPath))
	root.AddCommand(schemaCommand())
	root.AddCommand(cleanupCommand(&configPath))
	return root
}

func openDatabase(settings *conf.Settings) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch settings.Database.Driver {
	case conf.DriverMySQL:
		dialector = mysql.Open(settings.Database.DSN)
	default:
		dialector = sqlite.Open(settings.Database.DSN)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.AutoMigrate(
		&entities.Rule{},
		&entities.RuleCondition{},
		&entities.TriggerHistory{},
		&entities.RuleHistory{},
		&entities.AdGroupSettings{},
		&entities.BidModifier{},
		&entities.PublisherGroupEntry{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

func runCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [ad-group-id...]",
		Short: "Run all enabled rules against the configured stats source",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := conf.Load(*configPath)
			if err != nil {
				return err
			}
			log := logger.NewConsole(settings.Logging.Level)

			db, err := openDatabase(settings)
			if err != nil {
				return err
			}

			if settings.Stats.File == "" {
				return fmt.Errorf("no stats source configured (set stats.file)")
			}
			fetcher, err := stats.LoadStaticFetcher(settings.Stats.File)
			if err != nil {
				return err
			}
			adGroupIDs := args
			if len(adGroupIDs) == 0 {
				adGroupIDs = fetcher.AdGroupIDs()
			}

			var notifier rules.Notifier = notification.NewNoop()
			if len(settings.Notifications.URLs) > 0 {
				sender, err := notification.NewSender(settings.Notifications.URLs, logger.WithComponent(log, "notification"))
				if err != nil {
					return err
				}
				notifier = sender
			}

			registry := prometheus.NewRegistry()
			metrics, err := observability.NewMetrics(registry)
			if err != nil {
				return err
			}
			if addr := settings.Metrics.Addr; addr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
				srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						log.Error().Err(err).Str("addr", addr).Msg("metrics listener failed")
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
			}

			validator := rules.NewSchemaValidator()
			ruleRepo := repository.NewRuleRepository(db, validator)
			historyRepo := repository.NewHistoryRepository(db)
			appliers := rules.NewApplierSet(
				repository.NewBidModifierRepository(db),
				repository.NewAdGroupRepository(db),
				repository.NewPublisherGroupRepository(db),
			)
			engine := rules.NewEngine(
				rules.NewCooldownTracker(historyRepo),
				appliers,
				historyRepo,
				notifier,
				rules.NewNameService(nil),
				logger.WithComponent(log, "engine"),
			)
			loader := &stats.Loader{Stats: fetcher, Settings: fetcher, Budgets: fetcher, CPAGoals: fetcher}
			runner := rules.NewRunner(ruleRepo, loader, engine, metrics, logger.WithComponent(log, "runner"), settings.Runner.Concurrency)

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			if timeout := settings.Runner.Timeout.Std(); timeout > 0 {
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			summary, err := runner.Run(ctx, adGroupIDs)
			if err != nil {
				return err
			}
			printSummary(cmd, summary)

			if retention := settings.Runner.HistoryRetention.Std(); retention > 0 {
				removed, err := historyRepo.DeleteHistoryBefore(ctx, time.Now().Add(-retention))
				if err != nil {
					log.Error().Err(err).Msg("history retention cleanup failed")
				} else if removed > 0 {
					log.Info().Int64("removed", removed).Msg("history retention cleanup")
				}
			}
			return nil
		},
	}
	return cmd
}

func printSummary(cmd *cobra.Command, summary *rules.RunSummary) {
	cmd.Printf("Run %s: %d units, %d triggered, %d without changes, %d targets changed, %d failures\n",
		summary.RunID, summary.Units, summary.Triggered, summary.NoChanges,
		summary.TargetsChanged, len(summary.Failures))
	for _, f := range summary.Failures {
		cmd.Printf("  FAILED rule %q on ad group %s: %s (%v)\n", f.RuleName, f.AdGroupID, f.Reason, f.Err)
	}
}

func listCommand(configPath *string) *cobra.Command {
	var enabledOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the configured rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := conf.Load(*configPath)
			if err != nil {
				return err
			}
			db, err := openDatabase(settings)
			if err != nil {
				return err
			}
			filter := repository.RuleFilter{}
			if enabledOnly {
				filter.Enabled = &enabledOnly
			}
			list, err := repository.NewRuleRepository(db, rules.NewSchemaValidator()).ListRules(cmd.Context(), filter)
			if err != nil {
				return err
			}
			for _, r := range list {
				state := "disabled"
				if r.Enabled {
					state = "enabled"
				}
				cmd.Printf("%4d  %-8s  %-12s  %-22s  %s\n", r.ID, state, r.TargetType, r.ActionType, r.Name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&enabledOnly, "enabled", false, "show only enabled rules")
	return cmd
}

func seedCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the built-in default rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := conf.Load(*configPath)
			if err != nil {
				return err
			}
			db, err := openDatabase(settings)
			if err != nil {
				return err
			}
			repo := repository.NewRuleRepository(db, rules.NewSchemaValidator())
			seeded, err := repo.SeedDefaultRules(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("Seeded %d default rules\n", seeded)
			return nil
		},
	}
}

func schemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the rule schema: metrics, operators, actions, windows",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := yaml.Marshal(rules.GetSchema())
			if err != nil {
				return err
			}
			cmd.Print(string(out))
			return nil
		},
	}
}

func cleanupCommand(configPath *string) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete run history older than the retention window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := conf.Load(*configPath)
			if err != nil {
				return err
			}
			db, err := openDatabase(settings)
			if err != nil {
				return err
			}
			retention := olderThan
			if retention == 0 {
				retention = settings.Runner.HistoryRetention.Std()
			}
			if retention <= 0 {
				return fmt.Errorf("no retention window configured")
			}
			removed, err := repository.NewHistoryRepository(db).DeleteHistoryBefore(cmd.Context(), time.Now().Add(-retention))
			if err != nil {
				return err
			}
			cmd.Printf("Removed %d history rows\n", removed)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "override the configured retention window")
	return cmd
}
