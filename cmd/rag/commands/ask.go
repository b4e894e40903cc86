package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"ragchat/internal/config"
	"ragchat/internal/domain"
	"ragchat/internal/service"
)

type askOutput struct {
	service.Answer
	Warning string `json:"warning,omitempty"`
}

func newAskCmd(opts *globalOptions) *cobra.Command {
	var (
		k      int
		asJSON bool
		files  []string
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the indexed documents",
		Long: `Answer a question from the last index (see "rag index"), or from
the files given with --files, which are indexed first.

Examples:
  rag ask "What is the refund policy?"
  rag ask --files handbook.pdf --k 3 "How many vacation days do I get?"
  rag ask --json "Who wrote the report?"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.setup(cmd, func(cfg *config.AppConfig) {
				if cmd.Flags().Changed("k") {
					cfg.Retrieval.TopK = k
				}
			})
			if err != nil {
				return err
			}
			ctx := ctxOf(cmd)
			if _, err := rt.restoreOrBuild(ctx, files); err != nil {
				return err
			}

			ans := rt.svc.Answer(ctx, args[0])
			if ans.Err != nil {
				rt.log.Warn("answer degraded", "error", ans.Err)
			}
			if asJSON {
				out := askOutput{Answer: ans}
				if out.Sources == nil {
					out.Sources = []service.Source{}
				}
				if ans.Err != nil {
					out.Warning = domain.UserMessage(ans.Err)
				}
				data, err := json.MarshalIndent(out, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal answer: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, ans.Text)
			if ans.Mode == service.ModeGenerated && len(ans.Sources) > 0 {
				fmt.Fprintln(w, "\nSources:")
				for i, s := range ans.Sources {
					fmt.Fprintf(w, "  [%d] %s\n", i+1, s.SourceName)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&k, "k", 5, "number of passages to retrieve")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output the answer as JSON")
	cmd.Flags().StringSliceVar(&files, "files", nil, "index these files before answering")
	return cmd
}
