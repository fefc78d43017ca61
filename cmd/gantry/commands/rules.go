package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gantry-dev/gantry/pkg/rules"
)

func newRulesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the built-in compatibility rules",
		Long: `List the compatibility rules the resolver applies. Each rule names
the framework it watches, the version range that triggers it, and the
consequence it adds to the plan.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tFRAMEWORK\tWHEN\tCONSEQUENCE\tREASON")
			for _, r := range rules.Builtin().All() {
				when := "present"
				if r.When != nil {
					when = r.When.Name()
				}
				consequence := string(r.Consequence.Kind)
				if r.Consequence.Package != "" {
					consequence = fmt.Sprintf("%s %s%s", r.Consequence.Kind,
						r.Consequence.Package, r.Consequence.Constraint)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Framework, when, consequence, r.Reason)
			}
			return w.Flush()
		},
	}
	return cmd
}
