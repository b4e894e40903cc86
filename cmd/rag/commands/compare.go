package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCompareCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "compare <cv> <job-description>",
		Short: "Rate how well a CV fits a job description",
		Long: `Compare a CV against a job description with the configured language
model and print a 1-10 fit rating with strengths, gaps and suggestions.

Both files are read in full (up to prompts.compare_max_chars characters each);
they do not need to be indexed.

Example:
  rag compare cv.pdf job.txt`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.setup(cmd, nil)
			if err != nil {
				return err
			}
			report, err := rt.svc.Compare(ctxOf(cmd), args[0], args[1])
			if err != nil {
				return rt.userError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), report)
			return nil
		},
	}
}
