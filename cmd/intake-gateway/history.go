// ABOUTME: Terminal rendering of one session for the history command
// ABOUTME: Collected fields first, then the audit trail colored by entry kind

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/2389/intake-gateway/internal/session"
)

func printHistory(w io.Writer, id, state string, fields []string, history []session.HistoryEntry) {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)

	cyan.Fprintf(w, "  Session %s\n", id)
	fmt.Fprintf(w, "  State: %s\n\n", state)

	if len(fields) == 0 {
		gray.Fprintln(w, "  (no data collected)")
	}
	for _, line := range fields {
		fmt.Fprintf(w, "  %s\n", line)
	}
	fmt.Fprintln(w)

	for _, h := range history {
		gray.Fprintf(w, "  %s ", h.At.Local().Format(time.DateTime))
		kindColor(h.Kind).Fprintf(w, "%-6s ", h.Kind)
		fmt.Fprintln(w, h.Entry)
	}
}

func kindColor(k session.HistoryKind) *color.Color {
	switch k {
	case session.HistoryState:
		return color.New(color.FgGreen)
	case session.HistoryData:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgMagenta)
	}
}
