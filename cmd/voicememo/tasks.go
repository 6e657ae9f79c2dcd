package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/voicememo/database"
	"github.com/kbukum/voicememo/logger"
	"github.com/kbukum/voicememo/task"
	"github.com/kbukum/voicememo/taskstore"
)

func newTasksCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List stored tasks, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cfg.ApplyDefaults()
			if err := cfg.Database.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			db, err := database.Open(ctx, cfg.Database, logger.Nop())
			if err != nil {
				return err
			}
			defer db.Close()

			store, err := taskstore.NewGormStore(db, logger.Nop())
			if err != nil {
				return err
			}
			tasks, err := store.List(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(tasks)
			}
			return printTasks(cmd.OutOrStdout(), tasks)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print full tasks as JSON")
	return cmd
}

func printTasks(w io.Writer, tasks []*task.Task) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tRECORDING\tTITLE\tSTATUS\tCREATED\tERROR")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.RecordingID, t.Title, t.Status.Label(),
			t.CreatedAt.Local().Format(time.DateTime), t.LastError)
	}
	return tw.Flush()
}
