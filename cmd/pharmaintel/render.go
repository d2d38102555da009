package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/hupe1980/pharmaintel/core"
)

var categoryTitles = map[core.Category]string{
	core.CategoryClinicalRationale: "Clinical Rationale",
	core.CategoryPatentStatus:      "Patent Status",
	core.CategoryMarketOpportunity: "Market Opportunity",
	core.CategoryRegulatoryPath:    "Regulatory Path",
}

// printStatus prints a status line with color
func printStatus(w io.Writer, symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Fprintf(w, "%s %s\n", c.Sprint(symbol), message)
}

func agentSymbol(s core.AgentState) (string, color.Attribute) {
	switch s {
	case core.AgentActive:
		return "▶", color.FgCyan
	case core.AgentComplete:
		return "✓", color.FgGreen
	case core.AgentFailed:
		return "✗", color.FgRed
	default:
		return "·", color.FgHiBlack
	}
}

// renderAgentEvent prints one agent transition using the snapshot for names.
func renderAgentEvent(w io.Writer, ev core.Event, names map[string]string) {
	if ev.Type != core.EventAgentState || ev.AgentState == core.AgentIdle {
		return
	}
	symbol, attr := agentSymbol(ev.AgentState)
	name := names[ev.AgentID]
	if name == "" {
		name = ev.AgentID
	}
	msg := fmt.Sprintf("%-20s %s", name, ev.AgentState)
	if ev.Error != "" {
		msg += ": " + ev.Error
	}
	printStatus(w, symbol, msg, attr)
}

func renderResult(w io.Writer, res *core.SynthesizedResult) {
	bold := color.New(color.Bold)
	fmt.Fprintln(w)
	bold.Fprintln(w, "Recommended hypothesis")
	fmt.Fprintf(w, "  %s\n", res.Hypothesis)
	if res.Reasoning != "" {
		fmt.Fprintf(w, "  %s\n", color.New(color.Italic).Sprint(res.Reasoning))
	}
	fmt.Fprintln(w)
	for _, c := range core.Categories() {
		bold.Fprintln(w, categoryTitles[c])
		text := strings.TrimSpace(res.Rationale[c])
		if text == "" {
			text = "(no evidence)"
		}
		for _, line := range strings.Split(text, "\n") {
			if line == "" {
				continue
			}
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Confidence: %s\n", confidenceColor(res.Confidence).Sprintf("%d%%", res.Confidence))
}

func confidenceColor(v int) *color.Color {
	switch {
	case v >= 75:
		return color.New(color.FgGreen, color.Bold)
	case v >= 50:
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
