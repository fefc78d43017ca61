package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/gantry-dev/gantry/pkg/engine"
	"github.com/gantry-dev/gantry/pkg/stores"
)

func newRunsCommand() *cobra.Command {
	var (
		planID string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded plan executions",
		Example: `  # List the latest runs
  gantry runs

  # List runs of one saved plan
  gantry runs --plan-id 6a1f...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := withStore(cmd, func(store stores.Store) ([]*engine.Run, error) {
				return store.ListRuns(cmd.Context(), planID, limit)
			})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tLIBRARY\tSTATUS\tSTARTED\tDURATION")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					run.ID, run.Library, run.Status,
					run.StartedAt.Format("2006-01-02 15:04:05"),
					run.FinishedAt.Sub(run.StartedAt).Round(time.Second))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&planID, "plan-id", "", "limit to runs of one saved plan")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")

	return cmd
}
