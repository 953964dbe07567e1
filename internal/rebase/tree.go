package rebase

import (
	"fmt"
	"io"
	"sort"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
)

// applyTreeDelta computes base + (from → to) as a new tree and stores it.
// Paths changed between from and to overwrite whatever base has; this is
// tree-level replay, not a content merge.
func applyTreeDelta(repo *gogit.Repository, base, from, to *object.Tree) (plumbing.Hash, error) {
	entries, err := flattenTree(base)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	changes, err := object.DiffTree(from, to)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to diff trees: %w", err)
	}
	for _, change := range changes {
		action, err := change.Action()
		if err != nil {
			return plumbing.ZeroHash, fmt.Errorf("failed to inspect change: %w", err)
		}
		switch action {
		case merkletrie.Delete:
			delete(entries, change.From.Name)
		case merkletrie.Insert, merkletrie.Modify:
			if change.From.Name != "" && change.From.Name != change.To.Name {
				delete(entries, change.From.Name)
			}
			entries[change.To.Name] = object.TreeEntry{
				Name: change.To.Name,
				Mode: change.To.TreeEntry.Mode,
				Hash: change.To.TreeEntry.Hash,
			}
		}
	}

	return writeTree(repo, entries)
}

// flattenTree maps every blob and submodule entry of a tree by its full path.
func flattenTree(tree *object.Tree) (map[string]object.TreeEntry, error) {
	entries := make(map[string]object.TreeEntry)
	if tree == nil {
		return entries, nil
	}
	walker := object.NewTreeWalker(tree, true, nil)
	defer walker.Close()
	for {
		name, entry, err := walker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to walk tree: %w", err)
		}
		if entry.Mode == filemode.Dir {
			continue
		}
		entries[name] = object.TreeEntry{Name: name, Mode: entry.Mode, Hash: entry.Hash}
	}
	return entries, nil
}

// writeTree rebuilds the nested tree objects from flat path entries and
// stores them, returning the root tree id.
func writeTree(repo *gogit.Repository, entries map[string]object.TreeEntry) (plumbing.Hash, error) {
	return writeSubtree(repo, entries, "")
}

func writeSubtree(repo *gogit.Repository, entries map[string]object.TreeEntry, prefix string) (plumbing.Hash, error) {
	direct := make(map[string]object.TreeEntry)
	dirs := make(map[string]struct{})

	for path, entry := range entries {
		if prefix != "" {
			if !strings.HasPrefix(path, prefix+"/") {
				continue
			}
			path = strings.TrimPrefix(path, prefix+"/")
		}
		if idx := strings.IndexByte(path, '/'); idx >= 0 {
			dirs[path[:idx]] = struct{}{}
			continue
		}
		direct[path] = object.TreeEntry{Name: path, Mode: entry.Mode, Hash: entry.Hash}
	}

	var treeEntries []object.TreeEntry
	for name := range dirs {
		childPrefix := name
		if prefix != "" {
			childPrefix = prefix + "/" + name
		}
		hash, err := writeSubtree(repo, entries, childPrefix)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		treeEntries = append(treeEntries, object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: hash})
	}
	for _, entry := range direct {
		treeEntries = append(treeEntries, entry)
	}

	// Git orders tree entries as if directories had a trailing slash.
	sort.Slice(treeEntries, func(i, j int) bool {
		return treeSortKey(treeEntries[i]) < treeSortKey(treeEntries[j])
	})

	tree := &object.Tree{Entries: treeEntries}
	obj := repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to encode tree: %w", err)
	}
	id, err := repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to store tree: %w", err)
	}
	return id, nil
}

func treeSortKey(entry object.TreeEntry) string {
	if entry.Mode == filemode.Dir {
		return entry.Name + "/"
	}
	return entry.Name
}
