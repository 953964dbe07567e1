package graph

import (
	"fmt"
	"sort"

	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"lanes.dev/lanes/internal/meta"
)

// OverlayReference is a reference served from memory during an overlay
// traversal.
type OverlayReference struct {
	Name   string
	Target plumbing.Hash
}

// OverlayEntrypoint replaces the traversal start position.
type OverlayEntrypoint struct {
	Tip     plumbing.Hash
	RefName string
}

// Overlay defines information to be served from memory instead of from the
// repository when redoing a traversal. It lets callers preview the graph as
// it will be once a rename or create actually lands on disk.
type Overlay struct {
	// Entrypoint overrides where the redo starts.
	Entrypoint *OverlayEntrypoint
	// NonOverridingReferences are added only if the repository doesn't
	// already have a reference of that name.
	NonOverridingReferences []OverlayReference
	// OverridingReferences replace same-named repository references.
	OverridingReferences []OverlayReference
	// Branches adds or replaces branch metadata.
	Branches map[string]*meta.Branch
	// Workspace replaces the workspace entries when non-empty.
	Workspace []meta.WorkspaceEntry
}

// intoParts splits an overlay into the repository view, metadata store and
// entrypoint the traversal works against.
func (o Overlay) intoParts(repo *gogit.Repository, store meta.Store) (*repoView, meta.Store, *OverlayEntrypoint) {
	view := &repoView{
		repo:      repo,
		overrides: make(map[plumbing.ReferenceName]plumbing.Hash, len(o.OverridingReferences)),
		additions: make(map[plumbing.ReferenceName]plumbing.Hash, len(o.NonOverridingReferences)),
	}
	for _, ref := range o.OverridingReferences {
		view.overrides[plumbing.ReferenceName(ref.Name)] = ref.Target
	}
	for _, ref := range o.NonOverridingReferences {
		view.additions[plumbing.ReferenceName(ref.Name)] = ref.Target
	}

	overlayStore := &meta.OverlayStore{
		Base:       store,
		Workspace:  o.Workspace,
		BranchMeta: o.Branches,
	}
	return view, overlayStore, o.Entrypoint
}

// repoView reads references and commits, applying any in-memory overlay
// before the underlying repository is consulted.
type repoView struct {
	repo      *gogit.Repository
	overrides map[plumbing.ReferenceName]plumbing.Hash
	additions map[plumbing.ReferenceName]plumbing.Hash
}

// head returns the raw HEAD reference, symbolic or detached.
func (v *repoView) head() (*plumbing.Reference, error) {
	return v.repo.Reference(plumbing.HEAD, false)
}

// resolveRef resolves a reference name to the commit it points at.
func (v *repoView) resolveRef(name plumbing.ReferenceName) (plumbing.Hash, bool) {
	if hash, ok := v.overrides[name]; ok {
		return hash, true
	}
	ref, err := v.repo.Reference(name, true)
	if err == nil {
		return v.peel(ref.Hash()), true
	}
	if hash, ok := v.additions[name]; ok {
		return hash, true
	}
	return plumbing.ZeroHash, false
}

// peel follows annotated tags down to the commit they wrap.
func (v *repoView) peel(hash plumbing.Hash) plumbing.Hash {
	for {
		tag, err := v.repo.TagObject(hash)
		if err != nil {
			return hash
		}
		hash = tag.Target
	}
}

// forEachRef visits every non-symbolic reference with the overlay applied.
func (v *repoView) forEachRef(fn func(name plumbing.ReferenceName, target plumbing.Hash) error) error {
	seen := make(map[plumbing.ReferenceName]struct{})
	refs, err := v.repo.References()
	if err != nil {
		return fmt.Errorf("failed to iterate references: %w", err)
	}
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference || ref.Name() == plumbing.HEAD {
			return nil
		}
		seen[ref.Name()] = struct{}{}
		target := ref.Hash()
		if hash, ok := v.overrides[ref.Name()]; ok {
			target = hash
		}
		return fn(ref.Name(), v.peel(target))
	})
	if err != nil && err != storer.ErrStop {
		return err
	}
	// Visit leftovers in name order to keep traversals deterministic.
	for _, extra := range []map[plumbing.ReferenceName]plumbing.Hash{v.overrides, v.additions} {
		names := make([]plumbing.ReferenceName, 0, len(extra))
		for name := range extra {
			if _, ok := seen[name]; !ok {
				names = append(names, name)
			}
		}
		sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
		for _, name := range names {
			seen[name] = struct{}{}
			if err := fn(name, extra[name]); err != nil {
				return err
			}
		}
	}
	return nil
}

// commit reads a commit from the object store.
func (v *repoView) commit(id plumbing.Hash) (*object.Commit, error) {
	return v.repo.CommitObject(id)
}

// config returns the repository configuration.
func (v *repoView) config() (*gitconfig.Config, error) {
	return v.repo.Config()
}
