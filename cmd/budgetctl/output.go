package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow, color.Bold)
	red    = color.New(color.FgRed)
	bold   = color.New(color.Bold)
)

func header(text string) {
	bold.Printf("\n%s\n%s\n", text, strings.Repeat("=", len(text)))
}

func success(format string, args ...any) {
	green.Printf("  ✓ "+format+"\n", args...)
}

func info(format string, args ...any) {
	fmt.Printf("  → "+format+"\n", args...)
}

func warning(format string, args ...any) {
	yellow.Printf("  ⚠ "+format+"\n", args...)
}

func printError(err error) {
	red.Fprintf(os.Stderr, "Error: %v\n", err)
}

// table writes aligned rows under an upper-case header. Cells stay
// uncoloured since escape codes count towards tabwriter column widths.
func table(w io.Writer, columns []string, rows [][]string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(columns, "\t")))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func optionalTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
