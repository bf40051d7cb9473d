// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/noticewala/notice-engine/pkg/types"
)

var announcementsCmd = &cobra.Command{
	Use:   "announcements [query]",
	Short: "Query canonical announcements",
	Long: `Announcements searches the canonical store. With a query argument it runs
full-text search over titles, summaries, and body text. With --upcoming it
lists announcements whose application deadline falls inside the window,
ordered by priority.

Duplicates merged into a canonical record never appear in results.`,
	RunE: runAnnouncements,
}

func runAnnouncements(cmd *cobra.Command, args []string) error {
	upcoming, _ := cmd.Flags().GetString("upcoming")
	category, _ := cmd.Flags().GetString("category")
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if len(args) == 0 && upcoming == "" {
		return fmt.Errorf("query or --upcoming required")
	}

	cfg := pipelineConfig()
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	var results []types.Announcement
	if upcoming != "" {
		window := parseDurationFlag(upcoming, 60*24*time.Hour)
		results, err = st.Upcoming(ctx, time.Now(), window, limit)
	} else {
		results, err = st.Search(ctx, strings.Join(args, " "), limit)
	}
	if err != nil {
		return err
	}

	if category != "" {
		filtered := results[:0]
		for _, a := range results {
			if a.HasCategory(category) {
				filtered = append(filtered, a)
			}
		}
		results = filtered
	}

	return formatAnnouncements(results, jsonOutput)
}

func formatAnnouncements(results []types.Announcement, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Println("No announcements found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-5s  %-50s  %-16s  %-12s  %s\n",
		"Score", "Title", "Source", "Deadline", "Categories")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 105))

	for _, a := range results {
		title := a.Title
		if len(title) > 50 {
			title = title[:47] + "..."
		}
		source := a.SourceName
		if source == "" {
			source = a.SourceID
		}
		if len(source) > 16 {
			source = source[:13] + "..."
		}
		deadline := "-"
		if !a.ApplicationDeadline.IsZero() {
			deadline = a.ApplicationDeadline.Format("2006-01-02")
		}
		fmt.Fprintf(os.Stdout, "%-5.2f  %-50s  %-16s  %-12s  %s\n",
			a.PriorityScore, title, source, deadline, strings.Join(a.Categories, ","))
	}

	fmt.Fprintf(os.Stdout, "\n%d announcements\n", len(results))
	return nil
}

func init() {
	announcementsCmd.Flags().String("upcoming", "", "list announcements with deadlines inside this window (e.g. 30d, 72h)")
	announcementsCmd.Flags().String("category", "", "keep only announcements carrying this category")
	announcementsCmd.Flags().Int("limit", 0, "maximum number of results (default from config)")
	announcementsCmd.Flags().Bool("json", false, "output results as JSON")

	rootCmd.AddCommand(announcementsCmd)
}
