package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"honestlens/corpus"
	"honestlens/types"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			MarginBottom(1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	flagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87"))

	evidenceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD")).
			Padding(1, 2)
)

var levelColors = map[types.CredibilityLevel]lipgloss.Color{
	types.HighlyCredible:   "#04B575",
	types.MostlyCredible:   "#9ACD32",
	types.MixedCredibility: "#FFB000",
	types.LowCredibility:   "#FF8700",
	types.NotCredible:      "#FF0000",
}

func levelLabel(level types.CredibilityLevel) string {
	return strings.ToUpper(strings.ReplaceAll(string(level), "_", " "))
}

func renderResult(req *types.VerificationRequest, res *types.VerificationResult) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("HonestLens verdict"))
	b.WriteString("\n")

	badge := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(levelColors[res.CredibilityLevel]).
		Padding(0, 1).
		Render(levelLabel(res.CredibilityLevel))
	fmt.Fprintf(&b, "%s  truth %d/100  confidence %d%%\n", badge, res.TruthScore, res.ConfidenceScore)
	b.WriteString(infoStyle.Render(fmt.Sprintf("%s %s | method %s | request %s", req.Kind, truncate(req.Payload, 60), res.Method, req.ID)))
	b.WriteString("\n")

	if len(res.Evidence) > 0 {
		b.WriteString("\nEvidence:\n")
		for _, e := range res.Evidence {
			b.WriteString(evidenceStyle.Render("  + " + e))
			b.WriteString("\n")
		}
	}
	if len(res.Flags) > 0 {
		b.WriteString("\nFlags:\n")
		for _, f := range res.Flags {
			b.WriteString(flagStyle.Render("  ! " + f))
			b.WriteString("\n")
		}
	}
	if len(res.SourcesChecked) > 0 {
		b.WriteString("\nSources checked:\n")
		for _, s := range res.SourcesChecked {
			line := fmt.Sprintf("  - %s (%s)", s.Name, s.SignalType)
			if s.URL != "" {
				line += " " + s.URL
			}
			b.WriteString(infoStyle.Render(line))
			b.WriteString("\n")
		}
	}
	if res.Reasoning != "" {
		b.WriteString("\n")
		b.WriteString(res.Reasoning)
	}
	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func renderFeeds(feeds []corpus.FeedConfig) string {
	presetByURL := make(map[string]string, len(corpus.FeedPresets))
	keys := make([]string, 0, len(corpus.FeedPresets))
	for key, f := range corpus.FeedPresets {
		presetByURL[f.URL] = key
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Fact-check feeds"))
	b.WriteString("\n")
	for _, f := range feeds {
		name := f.Name
		if key, ok := presetByURL[f.URL]; ok {
			name += " [" + key + "]"
		}
		fmt.Fprintf(&b, "%s\n%s\n", name, infoStyle.Render("  "+f.URL))
	}
	b.WriteString("\n")
	b.WriteString(infoStyle.Render("presets: " + strings.Join(keys, ", ")))
	return b.String()
}

func renderMatches(query string, matches []corpus.Match) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Fact-checks related to %q", query)))
	b.WriteString("\n")
	if len(matches) == 0 {
		b.WriteString(infoStyle.Render("no related fact-checks found"))
		return b.String()
	}
	for _, m := range matches {
		style := infoStyle
		switch m.Verdict {
		case corpus.VerdictFalse:
			style = flagStyle
		case corpus.VerdictTrue:
			style = evidenceStyle
		}
		fmt.Fprintf(&b, "%s %s\n", style.Render("["+string(m.Verdict)+"]"), m.Claim)
		b.WriteString(infoStyle.Render(fmt.Sprintf("  %s  similarity %.2f  %s", m.Publisher, m.Similarity, m.URL)))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
