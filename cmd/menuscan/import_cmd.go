package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kimhsiao/menuscan/backend/internal/capture"
	"github.com/kimhsiao/menuscan/backend/internal/extract"
)

var (
	importName   string
	importOutput string
)

var importCmd = &cobra.Command{
	Use:   "import <image>",
	Short: "Extract a menu photo and queue it for upload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		ex, err := a.extractor()
		if err != nil {
			return err
		}

		name := importName
		if name == "" {
			name = capture.Stem(args[0])
		}
		menu, err := a.menus.ScanMenu(cmd.Context(), ex, name, extract.Image{Data: data})
		if err != nil {
			return err
		}
		if importOutput != outputTable {
			return printStructured(cmd.OutOrStdout(), importOutput, menu)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %q as %s with %d items\n", menu.Name, menu.MenuID, len(menu.Items))
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importName, "name", "", "menu name (default: file name)")
	importCmd.Flags().StringVarP(&importOutput, "output", "o", outputTable, "output format: table, json or yaml")
	rootCmd.AddCommand(importCmd)
}
