package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/term"

	"github.com/agave-cli/agavecli/internal/agave"
)

// statusf prints a status message to stderr unless --quiet is set.
func statusf(format string, args ...any) {
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// Size unit constants for human-readable formatting.
const (
	sizeKB = 1024
	sizeMB = 1024 * 1024
	sizeGB = 1024 * 1024 * 1024
	sizeTB = 1024 * 1024 * 1024 * 1024
)

// formatSize returns a human-readable size string (e.g. "1.2 MB").
func formatSize(bytes int64) string {
	switch {
	case bytes >= sizeTB:
		return fmt.Sprintf("%.1f TB", float64(bytes)/float64(sizeTB))
	case bytes >= sizeGB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(sizeGB))
	case bytes >= sizeMB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(sizeMB))
	case bytes >= sizeKB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(sizeKB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// listTimeLayout is how listing timestamps are shown.
const listTimeLayout = "Jan _2 15:04"

// formatModified renders a server timestamp in local time, or "-" when the
// server sent something unparseable.
func formatModified(s string) string {
	t, err := agave.ParseTimestamp(s)
	if err != nil {
		return "-"
	}

	return t.Local().Format(listTimeLayout)
}

// permBits maps Agave permission names to ls-style triplets.
var permBits = map[string]string{
	"READ":          "-r--",
	"WRITE":         "--w-",
	"EXECUTE":       "---x",
	"READ_WRITE":    "-rw-",
	"READ_EXECUTE":  "-r-x",
	"WRITE_EXECUTE": "--wx",
	"ALL":           "-rwx",
	"NONE":          "----",
}

// permString renders an entry's permissions, with a leading "d" for
// directories. Unknown names render as NONE.
func permString(f agave.FileInfo) string {
	bits, ok := permBits[strings.ToUpper(f.Permissions)]
	if !ok {
		bits = permBits["NONE"]
	}

	if f.IsDir() {
		return "d" + bits[1:]
	}

	return bits
}

func yesNo(b bool) string {
	if b {
		return "Y"
	}

	return "N"
}

// newTable returns a borderless table that renders to w.
func newTable(w io.Writer, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.Style().Options = table.OptionsNoBordersAndSeparators
	t.Style().Box.PaddingLeft = ""
	t.Style().Box.PaddingRight = "  "

	if header != nil {
		t.AppendHeader(header)
	}

	return t
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

const (
	defaultTermWidth = 80
	minColumnWidth   = 8
	columnGap        = 3
)

// terminalWidth returns the width of stdout, or 80 when it is not a terminal.
func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return defaultTermWidth
	}

	return width
}

// sortEntries orders a listing by name, descending.
func sortEntries(entries []agave.FileInfo) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Name > entries[j].Name
	})
}

// displayName is the entry name with "/" appended for directories.
func displayName(f agave.FileInfo) string {
	if f.IsDir() {
		return f.Name + "/"
	}

	return f.Name
}

// printShortListing lays names out in fixed-width columns that fit width.
func printShortListing(w io.Writer, entries []agave.FileInfo, width int) {
	if len(entries) == 0 {
		return
	}

	names := make([]string, len(entries))
	longest := minColumnWidth

	for i, e := range entries {
		names[i] = displayName(e)
		longest = max(longest, len(names[i]))
	}

	colWidth := longest + columnGap
	perRow := max(1, width/colWidth)

	var b strings.Builder

	for i, name := range names {
		last := (i+1)%perRow == 0 || i == len(names)-1
		if last {
			b.WriteString(name)
			b.WriteByte('\n')

			continue
		}

		fmt.Fprintf(&b, "%-*s", colWidth, name)
	}

	fmt.Fprint(w, b.String())
}

// printLongListing prints one entry per line: permissions, size, mtime, name.
func printLongListing(w io.Writer, entries []agave.FileInfo) {
	t := newTable(w, nil)

	for _, e := range entries {
		t.AppendRow(table.Row{permString(e), e.Length, formatModified(e.LastModified), displayName(e)})
	}

	t.Render()
}
