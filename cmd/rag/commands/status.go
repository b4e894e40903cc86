package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the saved index and language model status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := opts.setup(cmd, nil)
			if err != nil {
				return err
			}
			if _, err := rt.svc.Restore(ctxOf(cmd)); err != nil {
				rt.log.Warn("snapshot not restored", "error", err)
			}
			st := rt.svc.Status()
			w := cmd.OutOrStdout()

			if st.Built {
				fmt.Fprintf(w, "Index:     %d files, %d chunks (built %s)\n", len(st.Files), st.Chunks, st.BuiltAt.Format(time.RFC3339))
				for _, f := range st.Files {
					fmt.Fprintf(w, "           %s\n", f)
				}
			} else {
				fmt.Fprintln(w, "Index:     not built")
			}
			fmt.Fprintf(w, "Embedder:  %s\n", st.Embedder)
			if st.GeneratorAvailable {
				fmt.Fprintf(w, "LLM:       %s configured, answers are generated\n", st.Generator)
			} else {
				fmt.Fprintln(w, "LLM:       not configured, answers are the most relevant snippets")
			}
			if rt.cfg.Snapshot.Path != "" {
				fmt.Fprintf(w, "Snapshot:  %s\n", rt.cfg.Snapshot.Path)
			}
			if st.Summary != "" {
				fmt.Fprintf(w, "\nSummary: %s\n", st.Summary)
			}
			return nil
		},
	}
}
