package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/oshokin/adbroot-builder/internal/profile"
)

// profilesCmd lists the supported version profiles.
var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List supported version profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

		_, _ = fmt.Fprintln(w, "PROFILE\tAPI\tPAYLOAD\tSTRATEGY")

		for _, id := range profile.Identifiers() {
			p := profile.Lookup(id)

			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.APIRange(), p.Payload, p.Strategy)
		}

		return w.Flush()
	},
}
