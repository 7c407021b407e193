// Package output renders CLI results as aligned tables.
package output

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// newTable creates a tablewriter with the borderless style used across
// the chatd CLI.
func newTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)

	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	return table
}

// PrintTable writes rows under the given headers.
func PrintTable(w io.Writer, headers []string, rows [][]string) {
	table := newTable(w)
	table.SetHeader(headers)
	for _, row := range rows {
		table.Append(row)
	}
	table.Render()
}

// KeyValueTable prints aligned key/value pairs without headers.
func KeyValueTable(w io.Writer, pairs [][2]string) {
	table := newTable(w)
	for _, pair := range pairs {
		table.Append([]string{pair[0], pair[1]})
	}
	table.Render()
}
