// Package testhelpers creates scripted Git repositories for tests.
package testhelpers

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// GitRepo represents a Git repository for testing purposes.
type GitRepo struct {
	Dir string
}

// NewGitRepo creates a new Git repository in the specified directory.
func NewGitRepo(dir string) (*GitRepo, error) {
	repo := &GitRepo{Dir: dir}

	cmd := exec.Command("git", "init", dir, "-b", "main")
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("failed to init repo: %w", err)
	}

	// Configure Git user (required for commits)
	if err := repo.runGitCommand("config", "user.name", "Test User"); err != nil {
		return nil, err
	}
	if err := repo.runGitCommand("config", "user.email", "test@example.com"); err != nil {
		return nil, err
	}
	// Keep commit ids stable across runs.
	for _, env := range [][2]string{
		{"GIT_AUTHOR_DATE", "2000-01-01T00:00:00+0000"},
		{"GIT_COMMITTER_DATE", "2000-01-01T00:00:00+0000"},
	} {
		_ = os.Setenv(env[0], env[1])
	}

	return repo, nil
}

// runGitCommand executes a git command in the repository directory.
func (r *GitRepo) runGitCommand(args ...string) error {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.Dir
	if os.Getenv("DEBUG") == "" {
		cmd.Stdout = nil
		cmd.Stderr = nil
	}
	return cmd.Run()
}

// RunGitCommand executes a git command and returns an error if it fails.
func (r *GitRepo) RunGitCommand(args ...string) error {
	return r.runGitCommand(args...)
}

// RunGitCommandAndGetOutput executes a git command and returns its trimmed
// output.
func (r *GitRepo) RunGitCommandAndGetOutput(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.Dir
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git command failed: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// WriteFile writes a file relative to the repository root.
func (r *GitRepo) WriteFile(name, content string) error {
	path := filepath.Join(r.Dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// CreateFileAndCommit writes a file, stages it and commits.
func (r *GitRepo) CreateFileAndCommit(name, content, message string) error {
	if err := r.WriteFile(name, content); err != nil {
		return err
	}
	if err := r.runGitCommand("add", "."); err != nil {
		return err
	}
	return r.runGitCommand("commit", "-m", message)
}

// CreateChangeAndCommit creates a standard file change and commits it.
func (r *GitRepo) CreateChangeAndCommit(textValue string, prefix string) error {
	fileName := "test.txt"
	if prefix != "" {
		fileName = prefix + "_" + fileName
	}
	return r.CreateFileAndCommit(fileName, textValue, textValue)
}

// CreateAndCheckoutBranch creates and checks out a new branch.
func (r *GitRepo) CreateAndCheckoutBranch(name string) error {
	return r.runGitCommand("checkout", "-b", name)
}

// CheckoutBranch checks out a branch.
func (r *GitRepo) CheckoutBranch(name string) error {
	return r.runGitCommand("checkout", name)
}

// CheckoutDetached detaches HEAD at the given rev.
func (r *GitRepo) CheckoutDetached(rev string) error {
	return r.runGitCommand("checkout", "--detach", rev)
}

// DeleteBranch deletes a branch.
func (r *GitRepo) DeleteBranch(name string) error {
	return r.runGitCommand("branch", "-D", name)
}

// GetRef returns the SHA of a ref.
func (r *GitRepo) GetRef(refName string) (string, error) {
	return r.RunGitCommandAndGetOutput("rev-parse", refName)
}

// SetRef points a ref at a revision.
func (r *GitRepo) SetRef(refName, rev string) error {
	return r.runGitCommand("update-ref", refName, rev)
}

// ConfigureRemoteTracking wires branch up to track remote/branch without any
// network access.
func (r *GitRepo) ConfigureRemoteTracking(branch, remote string) error {
	if err := r.runGitCommand("config", "remote."+remote+".url", "https://invalid.example/repo.git"); err != nil {
		return err
	}
	if err := r.runGitCommand("config", "remote."+remote+".fetch", "+refs/heads/*:refs/remotes/"+remote+"/*"); err != nil {
		return err
	}
	if err := r.runGitCommand("config", "branch."+branch+".remote", remote); err != nil {
		return err
	}
	return r.runGitCommand("config", "branch."+branch+".merge", "refs/heads/"+branch)
}

// CurrentBranchName returns the name of the current branch.
func (r *GitRepo) CurrentBranchName() (string, error) {
	return r.RunGitCommandAndGetOutput("branch", "--show-current")
}
