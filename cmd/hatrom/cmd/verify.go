/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var (
	errNoChecksum       = errors.New("image has no checksum trailer")
	errChecksumMismatch = errors.New("checksum mismatch")
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify <file>",
	Short: "Check an image's CRC-32 trailer",
	Long: `Decode an image and check the CRC-32 stored directly after the atom
table. Exits non-zero when the trailer is missing or does not match.

Example:
  hatrom verify eeprom.bin`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		return runVerify(cmd.OutOrStdout(), args[0], a.config.Output.Format)
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(w io.Writer, path, format string) error {
	_, in, err := inspectFile(path)
	if err != nil {
		return err
	}

	result := struct {
		File     string `json:"file" yaml:"file"`
		HasCRC   bool   `json:"has_crc" yaml:"has_crc"`
		CRCValid bool   `json:"crc_valid" yaml:"crc_valid"`
	}{path, in.HasCRC, in.CRCValid}

	done, err := outputValue(w, format, result)
	if err != nil {
		return err
	}
	if !done {
		fmt.Fprintf(w, "%s: checksum %s\n", path, crcStatus(in.HasCRC, in.CRCValid))
	}

	switch {
	case !in.HasCRC:
		return errNoChecksum
	case !in.CRCValid:
		return errChecksumMismatch
	}
	return nil
}
