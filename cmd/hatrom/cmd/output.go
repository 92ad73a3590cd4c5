package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ssargent/hatrom/pkg/codec"
	"github.com/ssargent/hatrom/pkg/inventory"
)

// outputValue writes v as JSON or YAML. It reports false for the table format.
func outputValue(w io.Writer, format string, v interface{}) (bool, error) {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return true, encoder.Encode(v)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(v); err != nil {
			return true, err
		}
		return true, encoder.Close()
	}
	return false, nil
}

// outputInspection displays a decoded image
func outputInspection(w io.Writer, format string, e *codec.Eeprom, in *codec.Inspection) error {
	if done, err := outputValue(w, format, in); done {
		return err
	}

	fmt.Fprintln(w, e.String())

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Image size:\t%d bytes\n", in.Size)
	fmt.Fprintf(tw, "Checksum:\t%s\n", crcStatus(in.HasCRC, in.CRCValid))
	if in.TrailingBytes > 0 {
		fmt.Fprintf(tw, "Trailing:\t%d bytes\n", in.TrailingBytes)
	}
	for _, s := range in.SkippedAtoms {
		fmt.Fprintf(tw, "Skipped:\t%s\n", s.String())
	}
	return tw.Flush()
}

// outputEntry displays a single inventory entry
func outputEntry(w io.Writer, format string, entry *inventory.Entry) error {
	if done, err := outputValue(w, format, entry); done {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", entry.ID)
	if entry.Label != "" {
		fmt.Fprintf(tw, "Label:\t%s\n", entry.Label)
	}
	fmt.Fprintf(tw, "Vendor:\t%s (0x%04X)\n", entry.Vendor, entry.VendorID)
	fmt.Fprintf(tw, "Product:\t%s (0x%04X) ver %d\n", entry.Product, entry.ProductID, entry.ProductVer)
	fmt.Fprintf(tw, "UUID:\t%s\n", entry.UUID)
	fmt.Fprintf(tw, "Atoms:\t%d\n", entry.NumAtoms)
	fmt.Fprintf(tw, "Size:\t%d bytes\n", entry.Size)
	fmt.Fprintf(tw, "Checksum:\t%s\n", crcStatus(entry.HasCRC, entry.CRCValid))
	if entry.Skipped > 0 {
		fmt.Fprintf(tw, "Skipped atoms:\t%d\n", entry.Skipped)
	}
	fmt.Fprintf(tw, "Created:\t%s\n", entry.CreatedAt.Format(time.RFC3339))
	return tw.Flush()
}

// outputEntries displays multiple inventory entries
func outputEntries(w io.Writer, format string, entries []*inventory.Entry) error {
	if entries == nil {
		entries = []*inventory.Entry{}
	}
	if done, err := outputValue(w, format, entries); done {
		return err
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, "No images found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLABEL\tVENDOR\tPRODUCT\tUUID\tSIZE\tCRC\tCREATED")

	for _, entry := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			entry.ID,
			truncate(entry.Label, 24),
			truncate(entry.Vendor, 16),
			truncate(entry.Product, 16),
			entry.UUID,
			entry.Size,
			crcStatus(entry.HasCRC, entry.CRCValid),
			entry.CreatedAt.Format("2006-01-02 15:04"))
	}

	return tw.Flush()
}

func crcStatus(present, valid bool) string {
	switch {
	case !present:
		return "absent"
	case valid:
		return "ok"
	}
	return "mismatch"
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
