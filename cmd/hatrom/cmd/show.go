/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/hatrom/pkg/codec"
)

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show <file>",
	Short: "Decode and display an EEPROM image",
	Long: `Decode a HAT EEPROM image file and display its header, atoms and
checksum state. Atoms dropped while decoding are listed as skipped.

Examples:
  hatrom show eeprom.bin
  hatrom show eeprom.bin --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		return runShow(cmd.OutOrStdout(), args[0], a.config.Output.Format)
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(w io.Writer, path, format string) error {
	e, in, err := inspectFile(path)
	if err != nil {
		return err
	}
	return outputInspection(w, format, e, in)
}

// inspectFile reads and decodes an image file
func inspectFile(path string) (*codec.Eeprom, *codec.Inspection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read image: %w", err)
	}
	e, in, err := codec.Inspect(data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return e, in, nil
}
