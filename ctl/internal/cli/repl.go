package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/obsidianstack/statusroll/pkg/status"
	"github.com/obsidianstack/statusroll/pkg/tree"
)

const defaultWatch = "overall_system_health"

func newReplCmd() *cobra.Command {
	var (
		defStr string
		watch  string
	)

	cmd := &cobra.Command{
		Use:   "repl <config>",
		Short: "Update leaf statuses interactively",
		Long: `Load a tree definition, set every leaf to --default and read commands from
stdin until EOF or quit:

  <node> <status>   set a leaf to green, yellow or red and recompute
  get <node>        print one node's status
  print | status    print the whole tree
  quit | exit       leave

Errors in a single command are printed and the session continues.

EXAMPLES:
  rollupctl repl tree.yaml
  rollupctl repl tree.yaml --default unknown --watch edge_tier`,
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

			out := cmd.OutOrStdout()
			printf(out, "Loaded %s: %d nodes, leaves initialised to %s\n", args[0], t.Len(), def)
			printf(out, "Enter <node> <status>, get <node>, print or quit\n\n")

			r := &repl{tree: t, watch: watch, out: out, errOut: cmd.ErrOrStderr()}
			return r.run(cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVar(&defStr, "default", "green", "initial status for every leaf (green|yellow|red|unknown)")
	cmd.Flags().StringVar(&watch, "watch", defaultWatch, "node whose status is printed after every update")
	return cmd
}

type repl struct {
	tree   *tree.Tree
	watch  string
	out    io.Writer
	errOut io.Writer
}

func (r *repl) run(in io.Reader) error {
	sc := bufio.NewScanner(in)
	for {
		printf(r.out, "> ")
		if !sc.Scan() {
			printf(r.out, "\n")
			return sc.Err()
		}
		if !r.exec(strings.TrimSpace(sc.Text())) {
			printf(r.out, "Exiting...\n")
			return nil
		}
	}
}

// exec runs one command line and reports whether the session continues.
func (r *repl) exec(line string) bool {
	fields := strings.Fields(line)
	switch {
	case len(fields) == 0:
		return true
	case line == "quit" || line == "exit":
		return false
	case line == "print" || line == "status":
		r.print()
	case fields[0] == "get":
		r.get(fields[1:])
	case len(fields) == 2:
		r.set(fields[0], fields[1])
	default:
		r.errorf("invalid input, expected: <node> <status>")
	}
	return true
}

func (r *repl) print() {
	if err := r.tree.Render(r.out); err != nil {
		r.errorf("%v", err)
		return
	}
	if s, ok := r.tree.Status(r.watch); ok {
		printf(r.out, "\n=========================\n")
		printf(r.out, "%s: %s\n", r.watch, s)
		printf(r.out, "=========================\n\n")
	}
}

func (r *repl) get(args []string) {
	if len(args) != 1 {
		r.errorf("usage: get <node>")
		return
	}
	s, ok := r.tree.Status(args[0])
	if !ok {
		r.errorf("node %q does not exist", args[0])
		return
	}
	printf(r.out, "%s: %s\n", args[0], s)
}

func (r *repl) set(name, token string) {
	s := status.Parse(token)
	if s == status.Unknown {
		r.errorf("invalid status %q, use green, yellow or red", token)
		return
	}
	view, ok := r.tree.Node(name)
	if !ok {
		r.errorf("node %q does not exist", name)
		return
	}
	if view.Kind != tree.Imported {
		r.errorf("%q is a derived node; its status is computed", name)
		return
	}
	if err := r.tree.SetStatus(name, s); err != nil {
		r.errorf("%v", err)
		return
	}
	r.tree.Compute()

	printf(r.out, "Updated %s to %s\n", name, s)
	if w, ok := r.tree.Status(r.watch); ok {
		printf(r.out, "%s: %s\n", r.watch, w)
	}
}

func (r *repl) errorf(format string, args ...any) {
	fmt.Fprintf(r.errOut, "Error: "+format+"\n", args...)
}
