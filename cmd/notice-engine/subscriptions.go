// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var subscriptionsCmd = &cobra.Command{
	Use:   "subscriptions",
	Short: "Manage subscriptions for match events",
	Long: `Subscriptions manages the saved filters that announcements are matched
against. Production subscriptions are owned by the user-facing API; the CLI
surface covers local runs and operational checks.`,
}

var subscriptionsSeedCmd = &cobra.Command{
	Use:   "seed <file>",
	Short: "Upsert subscriptions from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubscriptionsSeed,
}

func runSubscriptionsSeed(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig()
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := st.SeedSubscriptions(context.Background(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("seeded %d subscriptions\n", n)
	return nil
}

var subscriptionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active subscriptions",
	RunE:  runSubscriptionsList,
}

func runSubscriptionsList(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig()
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	subs, err := st.ActiveSubscriptions(context.Background())
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		fmt.Println("No active subscriptions.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-16s  %-16s  %-30s  %-30s  %s\n",
		"ID", "User", "Categories", "Keywords", "MinPriority")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 105))

	for _, sub := range subs {
		fmt.Fprintf(os.Stdout, "%-16s  %-16s  %-30s  %-30s  %.2f\n",
			sub.ID, sub.UserID,
			strings.Join(sub.Filter.Categories, ","),
			strings.Join(sub.Filter.Keywords, ","),
			sub.Filter.MinPriority)
	}

	fmt.Fprintf(os.Stdout, "\n%d subscriptions\n", len(subs))
	return nil
}

func init() {
	subscriptionsCmd.AddCommand(subscriptionsSeedCmd)
	subscriptionsCmd.AddCommand(subscriptionsListCmd)
	rootCmd.AddCommand(subscriptionsCmd)
}
