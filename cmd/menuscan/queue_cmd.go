package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	queueOutput string
	queueYes    bool
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect or clear the pending-upload queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued uploads in delivery order",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		uploads, err := a.queue.ListOrdered(cmd.Context())
		if err != nil {
			return err
		}
		if queueOutput != outputTable {
			return printStructured(cmd.OutOrStdout(), queueOutput, uploads)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTYPE\tMETHOD\tENDPOINT\tCREATED\tRETRIES")
		for _, u := range uploads {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\n",
				u.ID, u.Type, u.Method, u.Endpoint, u.CreatedAtTime().Format(time.RFC3339), u.RetryCount)
		}
		return tw.Flush()
	},
}

var queueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Discard every queued upload",
	Long: `Discard every queued upload. Local records keep synced=false, so the
discarded writes will not be retried.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !queueYes {
			return fmt.Errorf("refusing to clear the queue without --yes")
		}
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		n, err := a.queue.Clear(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d uploads\n", n)
		return nil
	},
}

func init() {
	queueListCmd.Flags().StringVarP(&queueOutput, "output", "o", outputTable, "output format: table, json or yaml")
	queueClearCmd.Flags().BoolVar(&queueYes, "yes", false, "confirm clearing the queue")
	queueCmd.AddCommand(queueListCmd, queueClearCmd)
	rootCmd.AddCommand(queueCmd)
}
