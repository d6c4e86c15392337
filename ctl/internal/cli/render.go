package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/obsidianstack/statusroll/pkg/status"
)

func newRenderCmd() *cobra.Command {
	var (
		sets   []string
		defStr string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "render <config>",
		Short: "Set leaf statuses, compute, and print the tree",
		Long: `Load a tree definition, set every leaf to --default, apply each --set
override, compute, and print the tree view (or JSON node list with --json).

EXAMPLES:
  rollupctl render tree.yaml
  rollupctl render tree.yaml --set db_primary=red --set cache_node_1=yellow
  rollupctl render tree.yaml --default unknown --set db_primary=green --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := parseDefault(defStr)
			if err != nil {
				return err
			}
			t, err := loadTree(args[0], def)
			if err != nil {
				return err
			}

			for _, kv := range sets {
				name, val, ok := strings.Cut(kv, "=")
				if !ok || name == "" {
					return fmt.Errorf("--set %q: want node=status", kv)
				}
				s, err := status.ParseStrict(val)
				if err != nil {
					return fmt.Errorf("--set %q: %w", kv, err)
				}
				if err := t.SetStatus(name, s); err != nil {
					return fmt.Errorf("--set %q: %w", kv, err)
				}
			}
			t.Compute()

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(t.Nodes())
			}
			return t.Render(cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "node=status override (repeatable)")
	cmd.Flags().StringVar(&defStr, "default", "green", "initial status for every leaf (green|yellow|red|unknown)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print nodes as JSON instead of the tree view")
	return cmd
}
