package worktree_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"lanes.dev/lanes/internal/worktree"
	"lanes.dev/lanes/testhelpers"
)

func findChange(changes []worktree.TreeChange, path string) *worktree.TreeChange {
	for i := range changes {
		if changes[i].Path == path {
			return &changes[i]
		}
	}
	return nil
}

func TestChangesCleanWorktree(t *testing.T) {
	scene := testhelpers.NewScene(t, func(s *testhelpers.Scene) error {
		return s.Repo.CreateFileAndCommit("file.txt", "content\n", "init")
	})

	changes, err := worktree.Changes(scene.Open())
	require.NoError(t, err)
	require.Empty(t, changes.Changes)
	require.Empty(t, changes.IgnoredChanges)
}

func TestChangesUntrackedFile(t *testing.T) {
	scene := testhelpers.NewScene(t, func(s *testhelpers.Scene) error {
		if err := s.Repo.CreateFileAndCommit("file.txt", "content\n", "init"); err != nil {
			return err
		}
		return s.Repo.WriteFile("new.txt", "hello\n")
	})

	changes, err := worktree.Changes(scene.Open())
	require.NoError(t, err)
	require.Len(t, changes.Changes, 1)

	change := changes.Changes[0]
	require.Equal(t, "new.txt", change.Path)
	require.Equal(t, worktree.StatusAddition, change.Status)
	require.True(t, change.Untracked)
	require.True(t, change.State.ID.IsZero())
	require.Equal(t, worktree.KindBlob, change.State.Kind)
}

func TestChangesStagedAddition(t *testing.T) {
	scene := testhelpers.NewScene(t, func(s *testhelpers.Scene) error {
		if err := s.Repo.CreateFileAndCommit("file.txt", "content\n", "init"); err != nil {
			return err
		}
		if err := s.Repo.WriteFile("staged.txt", "staged\n"); err != nil {
			return err
		}
		return s.Repo.RunGitCommand("add", "staged.txt")
	})

	changes, err := worktree.Changes(scene.Open())
	require.NoError(t, err)
	require.Len(t, changes.Changes, 1)

	change := changes.Changes[0]
	require.Equal(t, "staged.txt", change.Path)
	require.Equal(t, worktree.StatusAddition, change.Status)
	require.False(t, change.Untracked)
	require.False(t, change.State.ID.IsZero())
}

func TestChangesWorktreeModification(t *testing.T) {
	scene := testhelpers.NewScene(t, func(s *testhelpers.Scene) error {
		if err := s.Repo.CreateFileAndCommit("file.txt", "content\n", "init"); err != nil {
			return err
		}
		return s.Repo.WriteFile("file.txt", "changed content\n")
	})

	changes, err := worktree.Changes(scene.Open())
	require.NoError(t, err)
	require.Len(t, changes.Changes, 1)

	change := changes.Changes[0]
	require.Equal(t, "file.txt", change.Path)
	require.Equal(t, worktree.StatusModification, change.Status)
	// Worktree content is not hashed yet.
	require.True(t, change.State.ID.IsZero())
	require.False(t, change.PreviousState.ID.IsZero())
}

func TestChangesDeletion(t *testing.T) {
	scene := testhelpers.NewScene(t, func(s *testhelpers.Scene) error {
		if err := s.Repo.CreateFileAndCommit("file.txt", "content\n", "init"); err != nil {
			return err
		}
		return os.Remove(filepath.Join(s.Repo.Dir, "file.txt"))
	})

	changes, err := worktree.Changes(scene.Open())
	require.NoError(t, err)
	require.Len(t, changes.Changes, 1)

	change := changes.Changes[0]
	require.Equal(t, "file.txt", change.Path)
	require.Equal(t, worktree.StatusDeletion, change.Status)
	require.Equal(t, worktree.KindBlob, change.PreviousState.Kind)
}

func TestChangesStagedRename(t *testing.T) {
	scene := testhelpers.NewScene(t, func(s *testhelpers.Scene) error {
		if err := s.Repo.CreateFileAndCommit("old.txt", "same content\n", "init"); err != nil {
			return err
		}
		return s.Repo.RunGitCommand("mv", "old.txt", "new.txt")
	})

	changes, err := worktree.Changes(scene.Open())
	require.NoError(t, err)
	require.Len(t, changes.Changes, 1)

	change := changes.Changes[0]
	require.Equal(t, worktree.StatusRename, change.Status)
	require.Equal(t, "new.txt", change.Path)
	require.Equal(t, "old.txt", change.PreviousPath)
	require.Equal(t, change.PreviousState.ID, change.State.ID)
}

func TestChangesIntentToAdd(t *testing.T) {
	scene := testhelpers.NewScene(t, func(s *testhelpers.Scene) error {
		if err := s.Repo.CreateFileAndCommit("file.txt", "content\n", "init"); err != nil {
			return err
		}
		if err := s.Repo.WriteFile("planned.txt", "will be added\n"); err != nil {
			return err
		}
		return s.Repo.RunGitCommand("add", "--intent-to-add", "planned.txt")
	})

	changes, err := worktree.Changes(scene.Open())
	require.NoError(t, err)
	require.Len(t, changes.Changes, 1)

	// An intent-to-add stores an empty blob in the index, which is the same
	// diff as adding the whole file.
	change := changes.Changes[0]
	require.Equal(t, "planned.txt", change.Path)
	require.Equal(t, worktree.StatusAddition, change.Status)
	require.False(t, change.Untracked)
	require.True(t, change.State.ID.IsZero())
}

func TestChangesDedupPrefersWorktree(t *testing.T) {
	scene := testhelpers.NewScene(t, func(s *testhelpers.Scene) error {
		if err := s.Repo.CreateFileAndCommit("file.txt", "content\n", "init"); err != nil {
			return err
		}
		// Stage one modification, then change the file again on disk.
		if err := s.Repo.WriteFile("file.txt", "staged version\n"); err != nil {
			return err
		}
		if err := s.Repo.RunGitCommand("add", "file.txt"); err != nil {
			return err
		}
		return s.Repo.WriteFile("file.txt", "worktree version, longer\n")
	})

	changes, err := worktree.Changes(scene.Open())
	require.NoError(t, err)
	require.Len(t, changes.Changes, 1)

	change := changes.Changes[0]
	require.Equal(t, "file.txt", change.Path)
	require.Equal(t, worktree.StatusModification, change.Status)
	// The index↔worktree side wins, so the current state is unhashed.
	require.True(t, change.State.ID.IsZero())

	require.Len(t, changes.IgnoredChanges, 1)
	require.Equal(t, "file.txt", changes.IgnoredChanges[0].Path)
	require.Equal(t, worktree.IgnoredDuplicate, changes.IgnoredChanges[0].Reason)
}

func TestChangesIgnoredFilesStayHidden(t *testing.T) {
	scene := testhelpers.NewScene(t, func(s *testhelpers.Scene) error {
		if err := s.Repo.CreateFileAndCommit(".gitignore", "*.log\n", "ignore logs"); err != nil {
			return err
		}
		return s.Repo.WriteFile("noise.log", "noisy\n")
	})

	changes, err := worktree.Changes(scene.Open())
	require.NoError(t, err)
	require.Nil(t, findChange(changes.Changes, "noise.log"))
}

func TestChangesExecBitToggle(t *testing.T) {
	scene := testhelpers.NewScene(t, func(s *testhelpers.Scene) error {
		if err := s.Repo.CreateFileAndCommit("script.sh", "#!/bin/sh\n", "add script"); err != nil {
			return err
		}
		return os.Chmod(filepath.Join(s.Repo.Dir, "script.sh"), 0o755)
	})

	changes, err := worktree.Changes(scene.Open())
	require.NoError(t, err)
	require.Len(t, changes.Changes, 1)

	change := changes.Changes[0]
	require.Equal(t, worktree.StatusModification, change.Status)
	require.Equal(t, worktree.KindBlob, change.PreviousState.Kind)
	require.Equal(t, worktree.KindBlobExecutable, change.State.Kind)
	require.NotZero(t, change.Flags&worktree.ModeExecBitAdded)
}

func TestChangesEachPathOnce(t *testing.T) {
	scene := testhelpers.NewScene(t, func(s *testhelpers.Scene) error {
		if err := s.Repo.CreateFileAndCommit("a.txt", "a\n", "init"); err != nil {
			return err
		}
		if err := s.Repo.WriteFile("a.txt", "staged\n"); err != nil {
			return err
		}
		if err := s.Repo.RunGitCommand("add", "."); err != nil {
			return err
		}
		if err := s.Repo.WriteFile("a.txt", "tree\n"); err != nil {
			return err
		}
		if err := s.Repo.WriteFile("b.txt", "b\n"); err != nil {
			return err
		}
		return s.Repo.WriteFile("c.txt", "c\n")
	})

	changes, err := worktree.Changes(scene.Open())
	require.NoError(t, err)

	seen := make(map[string]int)
	for _, change := range changes.Changes {
		seen[change.Path]++
	}
	for path, count := range seen {
		require.Equal(t, 1, count, "path %s listed %d times", path, count)
	}
}

func TestCalculateModeFlags(t *testing.T) {
	blob := worktree.ChangeState{Kind: worktree.KindBlob}
	exe := worktree.ChangeState{Kind: worktree.KindBlobExecutable}
	link := worktree.ChangeState{Kind: worktree.KindLink}

	require.Equal(t, worktree.ModeExecBitAdded, worktree.CalculateModeFlags(blob, exe))
	require.Equal(t, worktree.ModeExecBitRemoved, worktree.CalculateModeFlags(exe, blob))
	require.Equal(t, worktree.ModeTypeChange, worktree.CalculateModeFlags(blob, link))
	require.Zero(t, worktree.CalculateModeFlags(blob, blob))
}

func TestUnifiedDiffModification(t *testing.T) {
	scene := testhelpers.NewScene(t, func(s *testhelpers.Scene) error {
		if err := s.Repo.CreateFileAndCommit("file.txt", "1\n2\n3\n4\n5\n6\n", "init"); err != nil {
			return err
		}
		return s.Repo.WriteFile("file.txt", "1\n2\n3\nchanged\n5\n6\n")
	})
	repo := scene.Open()

	changes, err := worktree.Changes(repo)
	require.NoError(t, err)
	require.Len(t, changes.Changes, 1)

	hunks, err := changes.Changes[0].UnifiedDiff(repo, 0)
	require.NoError(t, err)
	require.Len(t, hunks, 1)
	require.Equal(t, 4, hunks[0].OldStart)
	require.Equal(t, 1, hunks[0].OldLines)
	require.Equal(t, 4, hunks[0].NewStart)
	require.Equal(t, 1, hunks[0].NewLines)
}

func TestUnifiedDiffAddition(t *testing.T) {
	scene := testhelpers.NewScene(t, func(s *testhelpers.Scene) error {
		if err := s.Repo.CreateFileAndCommit("file.txt", "x\n", "init"); err != nil {
			return err
		}
		return s.Repo.WriteFile("new.txt", "a\nb\n")
	})
	repo := scene.Open()

	changes, err := worktree.Changes(repo)
	require.NoError(t, err)
	require.Len(t, changes.Changes, 1)

	hunks, err := changes.Changes[0].UnifiedDiff(repo, 0)
	require.NoError(t, err)
	require.Len(t, hunks, 1)
	require.Equal(t, 0, hunks[0].OldLines)
	require.Equal(t, 1, hunks[0].NewStart)
	require.Equal(t, 2, hunks[0].NewLines)
}
