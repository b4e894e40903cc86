package commands

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"ragchat/internal/service"
	"ragchat/internal/tui"
	"ragchat/internal/watcher"
)

func newChatCmd(opts *globalOptions) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "chat [files|dirs|globs...]",
		Short: "Chat with your documents in the terminal",
		Long: `Index the given documents (or reuse the last index) and open an
interactive chat.

Controls:
  Enter      - Ask
  Up/Down    - Browse the sources of the last answer
  PgUp/PgDn  - Scroll the conversation
  Ctrl+C/Esc - Quit

With --watch the index is rebuilt whenever an indexed file changes or a
supported file is added to or removed from a directory given as an argument.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.setup(cmd, nil)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(ctxOf(cmd))
			defer cancel()

			summary, err := rt.restoreOrBuild(ctx, args)
			if err != nil {
				return err
			}

			p := tea.NewProgram(tui.New(ctx, rt.svc, summary), tea.WithAltScreen())

			if watch {
				files := rt.watchPaths(args)
				if len(files) == 0 {
					return fmt.Errorf("%w: nothing indexed to watch", errNoInput)
				}
				debounce := time.Duration(rt.cfg.Watch.DebounceMillis) * time.Millisecond
				w, err := watcher.New(rt.svc, files, debounce, rt.log)
				if err != nil {
					return err
				}
				defer w.Close()
				w.OnRebuild(func(stats service.BuildStats, err error) {
					p.Send(tui.IndexUpdatedMsg{Stats: stats, Err: err})
				})
				go func() {
					if err := w.Run(ctx); err != nil {
						rt.log.Warn("watcher stopped", "error", err)
					}
				}()
			}

			if _, err := p.Run(); err != nil {
				return fmt.Errorf("TUI error: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "rebuild the index when indexed files change")
	return cmd
}
