/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/hatrom/pkg/inventory"
)

// inventoryCmd represents the inventory command
var inventoryCmd = &cobra.Command{
	Use:     "inventory",
	Aliases: []string{"inv"},
	Short:   "Manage the local image inventory",
	Long: `Store, list, fetch and remove EEPROM images in the local inventory.
Images are validated when added and indexed by their HAT UUID.

The inventory lives in inventory.data_dir (default ./data).`,
}

var inventoryAddCmd = &cobra.Command{
	Use:   "add <file|->",
	Short: "Add an image to the inventory",
	Long: `Add an image to the inventory.

Examples:
  hatrom inventory add eeprom.bin --label "sensor hat rev b"
  hatrom read -o - | hatrom inventory add -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		label, _ := cmd.Flags().GetString("label")

		image, err := readImageFile(args[0], cmd.InOrStdin())
		if err != nil {
			return err
		}

		return withInventory(cmd, func(store *inventory.Store, format string) error {
			entry, err := store.Put(label, image)
			if err != nil {
				return err
			}
			return outputEntry(cmd.OutOrStdout(), format, entry)
		})
	},
}

var inventoryListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List stored images",
	Long: `List stored images, oldest first. With --uuid, show only the newest
image for that board.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		uuid, _ := cmd.Flags().GetString("uuid")

		return withInventory(cmd, func(store *inventory.Store, format string) error {
			if uuid != "" {
				entry, err := store.GetByUUID(uuid)
				if err != nil {
					return err
				}
				return outputEntries(cmd.OutOrStdout(), format, []*inventory.Entry{entry})
			}

			entries, err := store.List()
			if err != nil {
				return err
			}
			return outputEntries(cmd.OutOrStdout(), format, entries)
		})
	},
}

var inventoryGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a stored image",
	Long: `Show a stored image's metadata, or save its bytes with --out.

Examples:
  hatrom inventory get 2mXq3Yt8lNq9vZ0f1bTq4k0Cj5H
  hatrom inventory get 2mXq3Yt8lNq9vZ0f1bTq4k0Cj5H -o eeprom.bin`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outPath, _ := cmd.Flags().GetString("out")

		return withInventory(cmd, func(store *inventory.Store, format string) error {
			if outPath != "" {
				return saveInventoryImage(cmd.OutOrStdout(), store, args[0], outPath)
			}
			entry, err := store.Get(args[0])
			if err != nil {
				return err
			}
			return outputEntry(cmd.OutOrStdout(), format, entry)
		})
	},
}

var inventoryRmCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"delete"},
	Short:   "Remove a stored image",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withInventory(cmd, func(store *inventory.Store, format string) error {
			if err := store.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(inventoryCmd)
	inventoryCmd.AddCommand(inventoryAddCmd, inventoryListCmd, inventoryGetCmd, inventoryRmCmd)

	inventoryCmd.PersistentFlags().String("data-dir", "", "Inventory directory (default from config)")
	inventoryAddCmd.Flags().StringP("label", "l", "", "Free-form label for the image")
	inventoryListCmd.Flags().String("uuid", "", "Only show the newest image for this HAT UUID")
	inventoryGetCmd.Flags().StringP("out", "o", "", "Save the raw image to this file instead of showing metadata")
}

// withInventory opens the configured inventory for the duration of fn
func withInventory(cmd *cobra.Command, fn func(store *inventory.Store, format string) error) error {
	a, err := appFrom(cmd)
	if err != nil {
		return err
	}

	dataDir := a.config.Inventory.DataDir
	if cmd.Flags().Changed("data-dir") {
		dataDir, _ = cmd.Flags().GetString("data-dir")
	}

	store, err := openInventory(dataDir, a)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(store, a.config.Output.Format)
}

func openInventory(dataDir string, a *app) (*inventory.Store, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	store, err := inventory.Open(dataDir, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open inventory: %w", err)
	}
	return store, nil
}

func saveInventoryImage(w io.Writer, store *inventory.Store, id, outPath string) error {
	image, err := store.Image(id)
	if err != nil {
		return err
	}
	if outPath == "-" {
		_, err := w.Write(image)
		return err
	}
	if err := os.WriteFile(outPath, image, 0o644); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	fmt.Fprintf(w, "Wrote %d bytes to %s\n", len(image), outPath)
	return nil
}
