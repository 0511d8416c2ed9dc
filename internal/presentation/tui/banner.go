package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{"   __                      _                 ", "#34d399"},
	{"  / _| ___  _ __ _ __ ___ | |_ _ __ ___  ___ ", "#2dd4bf"},
	{" | |_ / _ \\| '__| '_ ` _ \\| __| '__/ _ \\/ _ \\", "#22d3ee"},
	{" |  _| (_) | |  | | | | | | |_| | |  __/  __/", "#38bdf8"},
	{" |_|  \\___/|_|  |_| |_| |_|\\__|_|  \\___|\\___|", "#60a5fa"},
}

// PrintBanner writes the formtree banner and version to w.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w, out.String("  version "+version).Faint())
	fmt.Fprintln(w)
}

// Status formats a one-line verdict, colored when w is a terminal.
func Status(w io.Writer, ok bool, text string) string {
	out := termenv.NewOutput(w)
	mark, color := "✔", "#22c55e"
	if !ok {
		mark, color = "✘", "#ef4444"
	}
	return out.String(mark + " " + text).Foreground(out.Color(color)).Bold().String()
}
