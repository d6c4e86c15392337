package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/obsidianstack/statusroll/pkg/rollup"
	"github.com/obsidianstack/statusroll/pkg/status"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config>",
		Short: "Load a tree definition and report its shape",
		Long: `Load a tree definition, resolve every dependency and build the evaluation
levels. Exits non-zero on any configuration error.

Known rules: ` + strings.Join(rollup.Names(), ", ") + `

EXAMPLES:
  rollupctl validate tree.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := loadTree(args[0], status.Unknown)
			if err != nil {
				return err
			}
			leaves := len(t.Leaves())
			out := cmd.OutOrStdout()
			printf(out, "%s: ok\n", args[0])
			printf(out, "  nodes:   %d (%d imported, %d derived)\n", t.Len(), leaves, t.Len()-leaves)
			printf(out, "  levels:  %d\n", t.Levels())
			printf(out, "  roots:   %s\n", strings.Join(t.Roots(), ", "))
			return nil
		},
	}
}
