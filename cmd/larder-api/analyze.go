package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonnyWalker81/larder/backend/internal/scheduler"
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Recompute shopping predictions",
	Long: `Run the pattern analysis once, for a single user (--user) or for every
user with recorded purchases (--all), and print the run summary as JSON.`,
	RunE: runAnalyze,
}

var (
	analyzeUser  string
	analyzeAll   bool
	analyzeForce bool
)

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeUser, "user", "u", "", "User ID to analyze")
	analyzeCmd.Flags().BoolVar(&analyzeAll, "all", false, "Analyze every user and prune stale predictions")
	analyzeCmd.Flags().BoolVar(&analyzeForce, "force", false, "Recompute items analyzed within the staleness window")
	analyzeCmd.MarkFlagsMutuallyExclusive("user", "all")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if analyzeUser == "" && !analyzeAll {
		return errors.New("one of --user or --all is required")
	}

	cfg, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer syncLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	if analyzeAll {
		// Same path as the daily job, so --all behaves like a scheduled run
		sched, err := scheduler.New(a.service, scheduler.Config{
			Spec:       cfg.Analysis.Schedule,
			Timezone:   cfg.Analysis.Timezone,
			RunTimeout: cfg.Analysis.RunTimeout,
		})
		if err != nil {
			return err
		}
		result, err := sched.RunOnce(ctx)
		if err != nil {
			return err
		}
		return enc.Encode(result)
	}

	if cfg.Analysis.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Analysis.RunTimeout)
		defer cancel()
	}

	result, err := a.service.Analyze(ctx, analyzeUser, analyzeForce)
	if result != nil {
		if encErr := enc.Encode(result); encErr != nil && err == nil {
			err = encErr
		}
	}
	return err
}
