package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"ragchat/internal/config"
)

const sampleText = "Sample RAG document. This chatbot can answer questions " +
	"based on the text you upload. Add your documentation, " +
	"reports, or manuals here and ask anything about them."

func newIndexCmd(opts *globalOptions) *cobra.Command {
	var sample bool
	cmd := &cobra.Command{
		Use:   "index [files|dirs|globs...]",
		Short: "Index documents",
		Long: `Index text, Markdown and PDF documents, replacing the current index.

Directories are walked for supported files and glob patterns are expanded.
Unreadable and unsupported files are skipped. The index is saved to the
snapshot file so later "rag ask" and "rag status" runs can use it.

Examples:
  rag index notes.txt manual.pdf
  rag index ./docs "reports/*.md"
  rag index --sample`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.setup(cmd, nil)
			if err != nil {
				return err
			}
			paths := args
			if sample {
				p, err := writeSample(rt.cfg)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Sample document at %s\n", p)
				paths = append(paths, p)
			}
			if len(paths) == 0 {
				return fmt.Errorf("%w: pass files to index or --sample", errNoInput)
			}

			stats, err := rt.svc.BuildIndex(ctxOf(cmd), paths)
			for _, s := range stats.Skipped {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped: %s\n", s)
			}
			if err != nil {
				return rt.userError(err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Indexed %d files into %d chunks.\n", stats.FilesIndexed, stats.ChunksCreated)
			if stats.Summary != "" {
				fmt.Fprintf(out, "\nSummary: %s\n", stats.Summary)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&sample, "sample", false, "create and index a small sample document")
	return cmd
}

// writeSample creates sample.txt next to the snapshot (or in the working
// directory when snapshots are off) unless it already exists.
func writeSample(cfg *config.AppConfig) (string, error) {
	path := "sample.txt"
	if cfg.Snapshot.Path != "" {
		path = filepath.Join(filepath.Dir(cfg.Snapshot.Path), "sample.txt")
	}
	if fileExists(path) {
		return path, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(sampleText), 0o644); err != nil {
		return "", fmt.Errorf("write sample: %w", err)
	}
	return path, nil
}
