package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"honestlens/corpus"
)

// feedsCmd lists the fact-check feeds and optionally searches them
var feedsCmd = &cobra.Command{
	Use:   "feeds [claim...]",
	Short: "List fact-check feeds, or search them for a claim",
	Long: `Without arguments, list the configured fact-check feeds (FACTCHECK_FEEDS, or
the built-in presets). With a claim, search those feeds and print the related
fact-checks the corroboration collector would see.`,
	RunE: runFeeds,
}

func runFeeds(cmd *cobra.Command, args []string) error {
	feeds := corpus.ResolveFeeds(cfg.FeedPresets)
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		if jsonOut {
			return json.NewEncoder(out).Encode(feeds)
		}
		fmt.Fprintln(out, renderFeeds(feeds))
		return nil
	}

	matcher, minSimilarity := corpus.NewFeedMatcher(cfg.CohereAPIKey)
	fc := corpus.NewFeedCorpus(feeds, matcher, minSimilarity)
	query := corpus.BuildQuery(strings.Join(args, " "), 12)
	matches, err := fc.Search(cmd.Context(), query)
	if err != nil {
		return err
	}
	if jsonOut {
		return json.NewEncoder(out).Encode(matches)
	}
	fmt.Fprintln(out, renderMatches(query, matches))
	return nil
}
