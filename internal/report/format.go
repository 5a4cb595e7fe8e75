// Package report prints scenario runs for the command line.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/casualjim/bricbus/broker"
	"github.com/casualjim/bricbus/internal/scenario"
	"github.com/casualjim/bricbus/pkg/jsonx"
	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/k0kubun/pp/v3"
)

// Steps prints the steps that ran, one per line.
func Steps(w io.Writer, steps []string) {
	for i, s := range steps {
		fmt.Fprintf(w, "%s %s\n", color.HiBlackString("%2d.", i+1), s)
	}
}

// Deliveries prints every delivery as "FRAME <- topic: data".
func Deliveries(w io.Writer, deliveries []scenario.Delivery) {
	if len(deliveries) == 0 {
		fmt.Fprintln(w, color.HiBlackString("no deliveries"))
		return
	}
	for _, d := range deliveries {
		data, err := jsonx.Encode(d.Data)
		if err != nil {
			data = []byte(fmt.Sprintf("%v", d.Data))
		}
		fmt.Fprintf(w, "%s <- %s: %s\n", color.CyanString(d.Frame), color.YellowString(d.Topic), data)
	}
}

// Markdown renders the report summary and broker statistics as markdown.
func Markdown(r *scenario.Report) string {
	var b strings.Builder
	name := r.Name
	if name == "" {
		name = "scenario"
	}
	fmt.Fprintf(&b, "# %s\n\n", name)
	fmt.Fprintf(&b, "%d steps, %d deliveries.\n\n", len(r.Steps), len(r.Deliveries))
	b.WriteString(StatsTable(r.Stats))
	return b.String()
}

// StatsTable renders broker statistics as a markdown table.
func StatsTable(s broker.Stats) string {
	var b strings.Builder
	b.WriteString("| metric | value |\n|---|---:|\n")
	rows := []struct {
		name  string
		value int64
	}{
		{"frames", int64(s.Frames)},
		{"topics", int64(s.Topics)},
		{"messages", s.Messages},
		{"relayed", s.Relayed},
		{"resizes", s.Resizes},
		{"dropped", s.Dropped},
		{"unknown", s.Unknown},
		{"rejected", s.Rejected},
	}
	for _, row := range rows {
		fmt.Fprintf(&b, "| %s | %d |\n", row.name, row.value)
	}
	return b.String()
}

// Render prints markdown through glamour. Plain output skips styling.
func Render(w io.Writer, markdown string, plain bool) error {
	style := glamour.WithAutoStyle()
	if plain {
		style = glamour.WithStandardStyle("notty")
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(100))
	if err != nil {
		return err
	}
	out, err := r.Render(markdown)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

// Dump pretty prints v, for --dump.
func Dump(w io.Writer, v any, colored bool) error {
	printer := pp.New()
	printer.SetColoringEnabled(colored)
	_, err := printer.Fprintln(w, v)
	return err
}
