package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kimhsiao/menuscan/backend/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|version]",
	Short:     "Apply, roll back or report schema migrations",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "version"},
	RunE: func(cmd *cobra.Command, args []string) error {
		action := "up"
		if len(args) == 1 {
			action = args[0]
		}

		database, err := db.Open(cfg.DataDir)
		if err != nil {
			return err
		}
		defer database.Close()

		migrator := db.NewMigrator(database.DB, nil)
		if err := migrator.Initialize(); err != nil {
			return err
		}

		switch action {
		case "up":
			if err := migrator.Up(); err != nil {
				return err
			}
		case "down":
			if err := migrator.Down(); err != nil {
				return err
			}
		}

		version, err := migrator.CurrentVersion()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Schema version: %d\n", version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
