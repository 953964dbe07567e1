package output_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"lanes.dev/lanes/internal/graph"
	"lanes.dev/lanes/internal/meta"
	"lanes.dev/lanes/internal/output"
	"lanes.dev/lanes/internal/worktree"
	"lanes.dev/lanes/testhelpers"
)

func TestRenderGraph(t *testing.T) {
	scene := testhelpers.NewScene(t, func(s *testhelpers.Scene) error {
		if err := s.Repo.CreateFileAndCommit("one.txt", "1\n", "one"); err != nil {
			return err
		}
		if err := s.Repo.CreateAndCheckoutBranch("feature"); err != nil {
			return err
		}
		return s.Repo.CreateFileAndCommit("feat.txt", "f\n", "feat")
	})
	repo := scene.Open()

	g, err := graph.FromHead(repo, meta.NewRefStore(repo), graph.LimitedOptions())
	require.NoError(t, err)

	rendered := output.NewGraphRenderer().RenderGraph(g, nil)
	require.Contains(t, rendered, "feature")
	require.Contains(t, rendered, "main")
	// Tests never run on a terminal, so no escape codes appear.
	require.NotContains(t, rendered, "\x1b[")
}

func TestRenderChanges(t *testing.T) {
	scene := testhelpers.NewScene(t, func(s *testhelpers.Scene) error {
		if err := s.Repo.CreateFileAndCommit("file.txt", "x\n", "init"); err != nil {
			return err
		}
		return s.Repo.WriteFile("new.txt", "n\n")
	})

	changes, err := worktree.Changes(scene.Open())
	require.NoError(t, err)

	rendered := output.NewGraphRenderer().RenderChanges(changes)
	require.Contains(t, rendered, "? new.txt")
}
