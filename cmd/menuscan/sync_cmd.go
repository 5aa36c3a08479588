package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncOutput string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Drain the pending-upload queue once",
	Long: `Probe the server and, if it is reachable, deliver every queued upload
in order. Failed uploads stay queued with their retry count increased.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		result := a.syncOnce(cmd.Context())
		if syncOutput != outputTable {
			return printStructured(cmd.OutOrStdout(), syncOutput, result)
		}

		out := cmd.OutOrStdout()
		if result.Offline {
			fmt.Fprintln(out, "Server unreachable; nothing sent.")
			return nil
		}
		fmt.Fprintf(out, "Delivered %d of %d uploads (%d failed) in %s\n",
			result.Delivered, result.Attempted, result.Failed, result.Duration)
		remaining, err := a.queue.Size(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d uploads pending\n", remaining)
		return nil
	},
}

func init() {
	syncCmd.Flags().StringVarP(&syncOutput, "output", "o", outputTable, "output format: table, json or yaml")
	rootCmd.AddCommand(syncCmd)
}
