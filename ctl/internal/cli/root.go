package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/obsidianstack/statusroll/pkg/status"
	"github.com/obsidianstack/statusroll/pkg/tree"
)

// NewRootCmd builds the rollupctl command tree.
func NewRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "rollupctl",
		Short: "Inspect and exercise status rollup trees",
		Long: `rollupctl loads a status tree definition (YAML or JSON) and lets you check it,
render it with chosen leaf statuses, or drive it interactively.

EXAMPLES:
  # Check a definition
  rollupctl validate tree.yaml

  # Render with every leaf green except one
  rollupctl render tree.yaml --set db_primary=red

  # Interactive session
  rollupctl repl tree.yaml --watch overall_system_health`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log graph construction details to stderr")

	root.AddCommand(newValidateCmd())
	root.AddCommand(newRenderCmd())
	root.AddCommand(newReplCmd())
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadTree builds a tree from path and sets every leaf to def. An Unknown
// default leaves the leaves unset.
func loadTree(path string, def status.Status) (*tree.Tree, error) {
	t := tree.New(tree.WithLogger(slog.Default()))
	if err := t.LoadFile(path); err != nil {
		return nil, err
	}
	if def != status.Unknown {
		for _, leaf := range t.Leaves() {
			if err := t.SetStatus(leaf, def); err != nil {
				return nil, err
			}
		}
	}
	t.Compute()
	return t, nil
}

func parseDefault(s string) (status.Status, error) {
	def, err := status.ParseStrict(s)
	if err != nil {
		return status.Unknown, fmt.Errorf("--default: %w", err)
	}
	return def, nil
}

func printf(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format, args...)
}
