package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var purgeOlderThan time.Duration

func init() {
	purgeCmd.Flags().DurationVar(&purgeOlderThan, "older-than", 30*24*time.Hour, "delete conversations idle for longer than this")
	rootCmd.AddCommand(purgeCmd)
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete inactive conversations",
	Long: `Delete stored conversations whose last activity is older than --older-than.

Meant to run from cron against the sqlite conversation store.

Examples:
  EXPERT_CONVERSATION_STORE=sqlite expertd purge --older-than 720h`,
	Args: cobra.NoArgs,
	RunE: runPurge,
}

func runPurge(cmd *cobra.Command, _ []string) error {
	if purgeOlderThan <= 0 {
		return errors.New("--older-than must be positive")
	}
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	manager, err := a.conversations()
	if err != nil {
		return err
	}
	n, err := manager.PurgeInactive(ctx, purgeOlderThan)
	if err != nil {
		return fmt.Errorf("purge: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d conversations idle for more than %s\n", n, purgeOlderThan)
	return nil
}
