package testhelpers

import (
	"testing"

	gogit "github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/require"
)

// Scene is a throwaway repository for one test.
type Scene struct {
	T    *testing.T
	Repo *GitRepo
}

// NewScene creates a fresh repository in a temp directory and runs the
// optional setup function against it.
func NewScene(t *testing.T, setup func(s *Scene) error) *Scene {
	t.Helper()

	dir := t.TempDir()
	repo, err := NewGitRepo(dir)
	require.NoError(t, err)

	scene := &Scene{T: t, Repo: repo}
	if setup != nil {
		require.NoError(t, setup(scene))
	}
	return scene
}

// Open opens the scene's repository with go-git.
func (s *Scene) Open() *gogit.Repository {
	s.T.Helper()
	repo, err := gogit.PlainOpen(s.Repo.Dir)
	require.NoError(s.T, err)
	return repo
}
