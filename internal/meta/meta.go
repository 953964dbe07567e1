// Package meta stores workspace and branch annotations behind Git refs.
// Metadata is kept as JSON blobs referenced from refs/lanes/metadata/ so it
// travels with the repository without touching the working tree. The graph
// engine only ever reads it.
package meta

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

const (
	// MetadataRefPrefix is the prefix for Git refs where branch metadata is stored
	MetadataRefPrefix = "refs/lanes/metadata/"

	// WorkspaceMetadataRef is the ref holding the workspace document
	WorkspaceMetadataRef = MetadataRefPrefix + "workspace"

	// WorkspaceRef marks a repository as being in managed mode; its commit
	// merges all active stacks.
	WorkspaceRef = "refs/heads/lanes/workspace"
)

// WorkspaceBranch names one branch inside a stack.
type WorkspaceBranch struct {
	RefName string `json:"refName"`
}

// WorkspaceStack is an ordered list of branches forming one unit of work.
type WorkspaceStack struct {
	Branches []WorkspaceBranch `json:"branches"`
}

// Workspace describes the managed workspace: what it integrates with and the
// stacks it combines.
type Workspace struct {
	TargetRef  *string          `json:"targetRef,omitempty"`
	PushRemote *string          `json:"pushRemote,omitempty"`
	Stacks     []WorkspaceStack `json:"stacks,omitempty"`
}

// Branch holds per-ref annotations.
type Branch struct {
	Description *string `json:"description,omitempty"`
	Archived    bool    `json:"archived,omitempty"`
}

// WorkspaceEntry pairs a workspace ref name with its metadata.
type WorkspaceEntry struct {
	RefName   string
	Workspace *Workspace
}

// Store is the read-only metadata interface the graph engine consumes.
type Store interface {
	// Workspaces returns all known workspace entries.
	Workspaces() ([]WorkspaceEntry, error)
	// Branch returns the annotations of a ref, or nil if there are none.
	Branch(refName string) (*Branch, error)
}

// RefStore reads and writes metadata blobs behind refs/lanes/metadata/.
type RefStore struct {
	repo *gogit.Repository
}

// NewRefStore creates a metadata store over a repository.
func NewRefStore(repo *gogit.Repository) *RefStore {
	return &RefStore{repo: repo}
}

// Workspaces returns the workspace document, if the repository has one.
func (s *RefStore) Workspaces() ([]WorkspaceEntry, error) {
	var ws Workspace
	ok, err := s.readJSON(WorkspaceMetadataRef, &ws)
	if err != nil || !ok {
		return nil, err
	}
	return []WorkspaceEntry{{RefName: WorkspaceRef, Workspace: &ws}}, nil
}

// Branch returns the annotations stored for a branch ref.
func (s *RefStore) Branch(refName string) (*Branch, error) {
	var branch Branch
	ok, err := s.readJSON(MetadataRefPrefix+shortName(refName), &branch)
	if err != nil || !ok {
		return nil, err
	}
	return &branch, nil
}

// WriteWorkspace stores the workspace document.
func (s *RefStore) WriteWorkspace(ws *Workspace) error {
	return s.writeJSON(WorkspaceMetadataRef, ws)
}

// WriteBranch stores annotations for a branch ref.
func (s *RefStore) WriteBranch(refName string, branch *Branch) error {
	return s.writeJSON(MetadataRefPrefix+shortName(refName), branch)
}

// readJSON loads a metadata blob. Missing refs and unreadable blobs read as
// absent; metadata must never make the engine fail.
func (s *RefStore) readJSON(refName string, into any) (bool, error) {
	ref, err := s.repo.Reference(plumbing.ReferenceName(refName), true)
	if err != nil {
		return false, nil
	}
	blob, err := s.repo.BlobObject(ref.Hash())
	if err != nil {
		return false, nil
	}
	reader, err := blob.Reader()
	if err != nil {
		return false, nil
	}
	defer func() {
		_ = reader.Close()
	}()
	content, err := io.ReadAll(reader)
	if err != nil {
		return false, nil
	}
	if err := json.Unmarshal(content, into); err != nil {
		return false, nil
	}
	return true, nil
}

func (s *RefStore) writeJSON(refName string, from any) error {
	data, err := json.Marshal(from)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	obj := s.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	writer, err := obj.Writer()
	if err != nil {
		return fmt.Errorf("failed to create metadata blob: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write metadata blob: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close metadata blob: %w", err)
	}
	id, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return fmt.Errorf("failed to store metadata blob: %w", err)
	}

	ref := plumbing.NewHashReference(plumbing.ReferenceName(refName), id)
	if err := s.repo.Storer.SetReference(ref); err != nil {
		return fmt.Errorf("failed to write metadata ref: %w", err)
	}
	return nil
}

// shortName strips the refs/heads/ prefix so metadata refs stay readable.
func shortName(refName string) string {
	return strings.TrimPrefix(refName, "refs/heads/")
}

// OverlayStore serves workspace and branch metadata from memory first,
// falling back to an underlying store. It backs graph previews that pretend
// a rename or create already happened.
type OverlayStore struct {
	Base       Store
	Workspace  []WorkspaceEntry
	BranchMeta map[string]*Branch
}

// Workspaces returns the overlay entries when present, the base's otherwise.
func (o *OverlayStore) Workspaces() ([]WorkspaceEntry, error) {
	if len(o.Workspace) > 0 {
		return o.Workspace, nil
	}
	if o.Base == nil {
		return nil, nil
	}
	return o.Base.Workspaces()
}

// Branch prefers overlay annotations over the base store's.
func (o *OverlayStore) Branch(refName string) (*Branch, error) {
	if branch, ok := o.BranchMeta[refName]; ok {
		return branch, nil
	}
	if o.Base == nil {
		return nil, nil
	}
	return o.Base.Branch(refName)
}
