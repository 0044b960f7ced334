// ledgerctl is the operator tool for the credit ledger: it issues
// debits, grants, and repairs, and runs the consistency audit.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"creditledger/internal/config"
	"creditledger/internal/models"
	"creditledger/internal/repositories"
	"creditledger/internal/repositories/cache"
	"creditledger/internal/services/audit"
	"creditledger/internal/services/ledger"
	"creditledger/internal/services/monitor"
	"creditledger/internal/services/repair"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

type app struct {
	ledger  ledger.Service
	auditor audit.Service
	monitor *monitor.Service
	repair  *repair.Service
	close   func()
}

func newApp(settingsPath string) (*app, error) {
	config.LoadEnv()

	settings, err := config.LoadSettings(settingsPath)
	if err != nil {
		return nil, err
	}

	db, err := repositories.Connect(repositories.LoadDBConfig())
	if err != nil {
		return nil, err
	}

	walletRepo := repositories.NewWalletRepository(db)
	intentRepo := repositories.NewIntentRepository(db)
	inconsistencyRepo := repositories.NewInconsistencyRepository(db)

	var walletCache ledger.CacheOperator
	closeCache := func() {}
	if config.GetEnv("REDIS_HOST", "") != "" {
		client := cache.NewRedisClient(&cache.RedisConfig{
			Host:     config.GetEnv("REDIS_HOST", "localhost"),
			Port:     config.GetEnv("REDIS_PORT", "6379"),
			Password: config.GetEnv("REDIS_PASSWORD", ""),
			DB:       config.GetIntEnv("REDIS_DB", 0),
		})
		wc := cache.NewWalletCache(client, 5*time.Minute)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := wc.HealthCheck(pingCtx)
		cancel()
		if err != nil {
			return nil, err
		}
		walletCache = wc
		closeCache = func() {
			if err := wc.Close(); err != nil {
				log.Printf("failed to close redis connection: %v", err)
			}
		}
	}

	var metrics ledger.MetricsCollector
	if settings.Metrics.Enabled {
		metrics = ledger.NewPrometheusCollector(prometheus.DefaultRegisterer)
		listen := settings.Metrics.Listen
		go func() {
			if err := http.ListenAndServe(listen, promhttp.Handler()); err != nil {
				log.Printf("metrics listener on %s failed: %v", listen, err)
			}
		}()
	}

	thresholds := models.SeverityThresholds{
		Critical: settings.Audit.CriticalThreshold,
		High:     settings.Audit.HighThreshold,
	}
	entitlementActions := make(map[string]bool, len(settings.Entitlement.Actions))
	for _, action := range settings.Entitlement.Actions {
		entitlementActions[action] = true
	}

	ledgerSvc := ledger.NewService(walletRepo, intentRepo, inconsistencyRepo, walletCache, ledger.Config{
		Thresholds:         thresholds,
		EntitlementActions: entitlementActions,
		EntitlementWindow:  time.Duration(settings.Entitlement.WindowDays) * 24 * time.Hour,
	}, metrics)

	auditSvc := audit.NewService(walletRepo, intentRepo, inconsistencyRepo, audit.Config{
		Thresholds: thresholds,
		Workers:    settings.Audit.Workers,
	})

	return &app{
		ledger:  ledgerSvc,
		auditor: auditSvc,
		monitor: monitor.NewService(walletRepo),
		repair:  repair.NewService(ledgerSvc, inconsistencyRepo),
		close:   closeCache,
	}, nil
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func main() {
	var settingsPath string
	var a *app

	root := &cobra.Command{
		Use:          "ledgerctl",
		Short:        "Credit ledger operations tool",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			a, err = newApp(settingsPath)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a != nil {
				a.close()
			}
		},
	}
	root.PersistentFlags().StringVar(&settingsPath, "settings", "ledger.toml", "path to the settings file")

	var userID uint
	var amount int64
	var actionType, referenceID string

	debitCmd := &cobra.Command{
		Use:   "debit",
		Short: "Debit credits for a billable action",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.ledger.DebitWithRetry(cmd.Context(), ledger.DebitRequest{
				UserID:      userID,
				ActionType:  actionType,
				ReferenceID: referenceID,
				Amount:      amount,
			})
			if result != nil {
				if printErr := printJSON(result); printErr != nil {
					return printErr
				}
			}
			return err
		},
	}
	debitCmd.Flags().UintVar(&userID, "user", 0, "user id")
	debitCmd.Flags().Int64Var(&amount, "amount", 0, "debit amount in credits")
	debitCmd.Flags().StringVar(&actionType, "action", "profile_analysis", "action type")
	debitCmd.Flags().StringVar(&referenceID, "ref", "", "billed resource reference")
	debitCmd.MarkFlagRequired("user")
	debitCmd.MarkFlagRequired("amount")

	var description string
	grantCmd := &cobra.Command{
		Use:   "grant",
		Short: "Grant credits to a wallet, creating it on first grant",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.ledger.Grant(cmd.Context(), ledger.GrantRequest{
				UserID:      userID,
				Amount:      amount,
				Description: description,
			})
			if result != nil {
				if printErr := printJSON(result); printErr != nil {
					return printErr
				}
			}
			return err
		},
	}
	grantCmd.Flags().UintVar(&userID, "user", 0, "user id")
	grantCmd.Flags().Int64Var(&amount, "amount", 0, "grant amount in credits")
	grantCmd.Flags().StringVar(&description, "description", "", "grant description")
	grantCmd.MarkFlagRequired("user")
	grantCmd.MarkFlagRequired("amount")

	balanceCmd := &cobra.Command{
		Use:   "balance",
		Short: "Show a wallet's balance and cycle counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := a.ledger.GetBalance(cmd.Context(), userID)
			if err != nil {
				return err
			}
			return printJSON(summary)
		},
	}
	balanceCmd.Flags().UintVar(&userID, "user", 0, "user id")
	balanceCmd.MarkFlagRequired("user")

	entitlementCmd := &cobra.Command{
		Use:   "entitlement",
		Short: "Check whether a user is entitled to a resource",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := a.ledger.CheckEntitlement(cmd.Context(), userID, referenceID)
			if err != nil {
				return err
			}
			return printJSON(status)
		},
	}
	entitlementCmd.Flags().UintVar(&userID, "user", 0, "user id")
	entitlementCmd.Flags().StringVar(&referenceID, "ref", "", "resource reference")
	entitlementCmd.MarkFlagRequired("user")
	entitlementCmd.MarkFlagRequired("ref")

	var limit, offset int
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show a user's transaction history, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := a.ledger.GetTransactionHistory(cmd.Context(), userID, limit, offset)
			if err != nil {
				return err
			}
			return printJSON(history)
		},
	}
	historyCmd.Flags().UintVar(&userID, "user", 0, "user id")
	historyCmd.Flags().IntVar(&limit, "limit", 50, "max rows")
	historyCmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	historyCmd.MarkFlagRequired("user")

	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Reconcile every wallet against its transaction history",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := a.auditor.RunDailyAudit(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Reconcile a single wallet",
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.auditor.CheckWallet(cmd.Context(), userID)
			if err != nil {
				return err
			}
			if rec == nil {
				fmt.Println("wallet is consistent")
				return nil
			}
			return printJSON(rec)
		},
	}
	checkCmd.Flags().UintVar(&userID, "user", 0, "user id")
	checkCmd.MarkFlagRequired("user")

	var window time.Duration
	activityCmd := &cobra.Command{
		Use:   "activity",
		Short: "Summarize recent transaction activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := a.monitor.RecentActivity(cmd.Context(), window)
			if err != nil {
				return err
			}
			return printJSON(summary)
		},
	}
	activityCmd.Flags().DurationVar(&window, "window", time.Hour, "trailing window")

	var inconsistencyID uint
	var adjustment int64
	var reason string
	repairCmd := &cobra.Command{
		Use:   "repair",
		Short: "Apply an audited corrective adjustment to a recorded inconsistency",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.repair.Repair(cmd.Context(), inconsistencyID, adjustment, reason)
			if result != nil {
				if printErr := printJSON(result); printErr != nil {
					return printErr
				}
			}
			return err
		},
	}
	repairCmd.Flags().UintVar(&inconsistencyID, "id", 0, "inconsistency record id")
	repairCmd.Flags().Int64Var(&adjustment, "adjustment", 0, "signed correction in credits")
	repairCmd.Flags().StringVar(&reason, "reason", "", "why this correction is right")
	repairCmd.MarkFlagRequired("id")
	repairCmd.MarkFlagRequired("adjustment")
	repairCmd.MarkFlagRequired("reason")

	openCmd := &cobra.Command{
		Use:   "open",
		Short: "List inconsistencies awaiting repair",
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := a.repair.ListOpen(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(recs)
		},
	}

	root.AddCommand(debitCmd, grantCmd, balanceCmd, entitlementCmd, historyCmd, auditCmd, checkCmd, activityCmd, repairCmd, openCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
