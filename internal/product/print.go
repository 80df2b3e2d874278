package product

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/spectral-calibration/internal/fits"
)

// Print dumps a saved product file: the HDU list, the velocity table and the
// primary header.
func Print(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	file, err := fits.Open(f)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Filename: %s\n", path)
	fmt.Fprintln(tw, "No.\tName\tCards\tRows")
	for i, hdu := range file.HDUs {
		name := hdu.Name()
		if i == 0 {
			name = "PRIMARY"
		}
		rows := ""
		if n, err := hdu.Header.Int("NAXIS2"); err == nil {
			rows = humanize.Comma(n)
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", i, name, len(hdu.Header), rows)
	}
	if err = tw.Flush(); err != nil {
		return err
	}

	table, err := file.TableByName(VelocityTable)
	if err != nil {
		return err
	}
	if err = printTable(w, table); err != nil {
		return err
	}

	fmt.Fprintln(w, "Primary Header Metadata:")
	for _, c := range file.Primary().Header {
		fmt.Fprintf(w, "%s: %v\n", c.Key, c.Value)
	}
	return nil
}

func printTable(w io.Writer, t *fits.Table) error {
	columns := make([][]float64, len(t.Columns))
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		values, err := t.Column(col.Name)
		if err != nil {
			return err
		}
		columns[i] = values
		names[i] = col.Name
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, strings.Join(names, "\t")+"\t")
	for row := range t.Rows {
		for _, col := range columns {
			fmt.Fprintf(tw, "%.6g\t", col[row])
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
