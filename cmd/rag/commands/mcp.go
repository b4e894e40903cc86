package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"ragchat/internal/mcp"
	"ragchat/internal/watcher"
)

func newMCPCmd(opts *globalOptions) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "mcp [files|dirs|globs...]",
		Short: "Start the MCP server on stdio",
		Long: `Runs rag as an MCP (Model Context Protocol) server on stdio so LLM
agents can index documents and ask questions about them.

Tools: build_index, answer, compare_documents, status.

Files given on the command line are indexed at startup; otherwise the last
saved index is loaded. With --watch the index is rebuilt when those files
change, including supported files added to a directory argument. Logs go
to stderr.`,
		Example: `  rag mcp ./docs

  # claude_desktop_config.json:
  # {
  #   "mcpServers": {
  #     "rag": {"command": "rag", "args": ["mcp", "/path/to/docs"]}
  #   }
  # }`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.setup(cmd, nil)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(ctxOf(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if _, err := rt.restoreOrBuild(ctx, args); err != nil {
				return err
			}
			if paths := rt.watchPaths(args); watch && len(paths) > 0 {
				debounce := time.Duration(rt.cfg.Watch.DebounceMillis) * time.Millisecond
				w, err := watcher.New(rt.svc, paths, debounce, rt.log)
				if err != nil {
					return err
				}
				defer w.Close()
				go func() { _ = w.Run(ctx) }()
			}

			server := mcp.NewServer(rt.svc, versionInfo.Version, rt.log)
			rt.log.Info("MCP server starting on stdio", "generator", rt.svc.Status().Generator)

			serverErr := make(chan error, 1)
			go func() {
				serverErr <- mcpserver.ServeStdio(server)
			}()

			select {
			case <-ctx.Done():
				rt.log.Info("shutdown signal received")
			case err := <-serverErr:
				if err != nil && !errors.Is(err, context.Canceled) {
					return fmt.Errorf("server error: %w", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "rebuild the index when indexed files change")
	return cmd
}
