package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"lanes.dev/lanes/internal/output"
	"lanes.dev/lanes/internal/worktree"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the canonical worktree changes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := openRepository()
			if err != nil {
				return err
			}
			changes, err := worktree.Changes(repo)
			if err != nil {
				return fmt.Errorf("failed to enumerate changes: %w", err)
			}
			renderer := output.NewGraphRenderer()
			cmd.Print(renderer.RenderChanges(changes))
			return nil
		},
	}
}
