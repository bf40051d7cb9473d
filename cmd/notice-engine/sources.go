// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noticewala/notice-engine/pkg/types"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage the crawl source registry",
	Long: `Sources manages the registry of crawl targets: official exam boards,
commissions, university portals, and scholarship feeds. Use subcommands to
list the registry, seed it from a YAML file, or change a source's state.`,
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered sources and their crawl state",
	RunE:  runSourcesList,
}

func runSourcesList(cmd *cobra.Command, args []string) error {
	category, _ := cmd.Flags().GetString("category")

	cfg := pipelineConfig()
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	sources, err := st.ListSources(context.Background(), category)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		fmt.Println("No sources registered.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-24s  %-8s  %-8s  %-5s  %-8s  %-20s  %s\n",
		"ID", "Format", "Status", "Tier", "Fails", "Last Crawled", "Categories")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 100))

	for _, src := range sources {
		last := "never"
		if !src.LastCrawledAt.IsZero() {
			last = src.LastCrawledAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(os.Stdout, "%-24s  %-8s  %-8s  %-5d  %-8d  %-20s  %s\n",
			src.ID, src.Format, src.Status, src.TrustTier,
			src.ConsecutiveFailures, last, strings.Join(src.Categories, ","))
	}

	fmt.Fprintf(os.Stdout, "\n%d sources\n", len(sources))
	return nil
}

var sourcesSeedCmd = &cobra.Command{
	Use:   "seed <file>",
	Short: "Upsert sources from a YAML file",
	Long: `Seed reads a YAML file with a top-level "sources" list and upserts each
entry. Configuration fields (name, url, format, categories, trust tier,
interval) are updated in place; crawl state of existing sources is preserved.`,
	Args: cobra.ExactArgs(1),
	RunE: runSourcesSeed,
}

func runSourcesSeed(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig()
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := st.SeedSources(context.Background(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("seeded %d sources\n", n)
	return nil
}

var sourcesEnableCmd = &cobra.Command{
	Use:   "enable <id>",
	Short: "Re-enable a disabled or errored source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setSourceStatus(args[0], types.SourceActive)
	},
}

var sourcesDisableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Disable a source so crawls skip it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setSourceStatus(args[0], types.SourceDisabled)
	},
}

func setSourceStatus(id string, status types.SourceStatus) error {
	cfg := pipelineConfig()
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.SetSourceStatus(context.Background(), id, status); err != nil {
		return err
	}
	fmt.Printf("source %s is now %s\n", id, status)
	return nil
}

func init() {
	sourcesListCmd.Flags().String("category", "", "filter by category")

	sourcesCmd.AddCommand(sourcesListCmd)
	sourcesCmd.AddCommand(sourcesSeedCmd)
	sourcesCmd.AddCommand(sourcesEnableCmd)
	sourcesCmd.AddCommand(sourcesDisableCmd)
	rootCmd.AddCommand(sourcesCmd)
}
