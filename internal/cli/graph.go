package cli

import (
	"fmt"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/spf13/cobra"

	"lanes.dev/lanes/internal/graph"
	"lanes.dev/lanes/internal/meta"
	"lanes.dev/lanes/internal/output"
)

func newGraphCmd() *cobra.Command {
	var limitHint int
	var hardLimit int
	var tags bool

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Render the segmented workspace commit graph",
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := openRepository()
			if err != nil {
				return err
			}

			options := graph.LimitedOptions()
			if limitHint > 0 {
				options = options.WithLimitHint(limitHint)
			}
			if hardLimit > 0 {
				options = options.WithHardLimit(hardLimit)
			}
			options.CollectTags = tags

			g, err := graph.FromHead(repo, meta.NewRefStore(repo), options)
			if err != nil {
				return fmt.Errorf("failed to build graph: %w", err)
			}

			times := commitTimes(repo, g)
			renderer := output.NewGraphRenderer()
			cmd.Print(renderer.RenderGraph(g, times))
			return nil
		},
	}

	cmd.Flags().IntVar(&limitHint, "limit", 0, "per-lane commit budget (0 = default)")
	cmd.Flags().IntVar(&hardLimit, "hard-limit", 0, "absolute cap on traversed commits")
	cmd.Flags().BoolVar(&tags, "tags", false, "collect tag references")
	return cmd
}

// openRepository opens the repository of the current directory.
func openRepository() (*gogit.Repository, error) {
	repo, err := gogit.PlainOpenWithOptions(".", &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}
	return repo, nil
}

// commitTimes resolves author times for every commit in the graph, best
// effort.
func commitTimes(repo *gogit.Repository, g *graph.Graph) map[string]time.Time {
	times := make(map[string]time.Time)
	for _, segment := range g.Segments() {
		for _, info := range segment.Commits {
			commit, err := repo.CommitObject(plumbing.NewHash(info.ID.String()))
			if err != nil {
				continue
			}
			times[info.ID.String()] = commit.Author.When
		}
	}
	return times
}
