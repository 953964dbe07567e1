package worktree

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// origin identifies which join a change was detected in.
type origin int

const (
	// originTreeIndex is the diff between HEAD^{tree} and the index
	originTreeIndex origin = iota
	// originIndexWorktree is the diff between the index and the working tree
	originIndexWorktree
)

type taggedChange struct {
	origin origin
	change TreeChange
}

// Changes returns the canonical set of changes between HEAD^{tree} and the
// current worktree. Each path appears at most once in Changes; suppressed
// duplicates and conflicted paths are reported in IgnoredChanges.
func Changes(repo *gogit.Repository) (*WorktreeChanges, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("need non-bare repository: %w", err)
	}

	headEntries, err := headTreeEntries(repo)
	if err != nil {
		return nil, err
	}

	idx, err := repo.Storer.Index()
	if err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}

	var tmp []taggedChange
	var ignored []IgnoredWorktreeChange

	indexEntries, conflicted := splitConflicts(idx)
	for _, path := range sortedKeys(conflicted) {
		ignored = append(ignored, IgnoredWorktreeChange{Path: path, Reason: IgnoredConflict})
	}

	tmp = append(tmp, treeIndexChanges(headEntries, indexEntries)...)

	iwChanges, err := indexWorktreeChanges(repo, wt, indexEntries, conflicted)
	if err != nil {
		return nil, err
	}
	tmp = append(tmp, iwChanges...)

	// A path can legitimately show up in both joins; the index↔worktree view
	// is closer to the worktree and wins.
	sort.SliceStable(tmp, func(i, j int) bool {
		if tmp[i].change.Path != tmp[j].change.Path {
			return tmp[i].change.Path < tmp[j].change.Path
		}
		return tmp[i].origin > tmp[j].origin
	})

	var changes []TreeChange
	var lastPath string
	for _, tagged := range tmp {
		if lastPath == tagged.change.Path {
			ignored = append(ignored, IgnoredWorktreeChange{
				Path:   tagged.change.Path,
				Reason: IgnoredDuplicate,
			})
			continue
		}
		lastPath = tagged.change.Path
		changes = append(changes, tagged.change)
	}

	return &WorktreeChanges{Changes: changes, IgnoredChanges: ignored}, nil
}

// headTreeEntries flattens HEAD^{tree} into path → state. An unborn HEAD
// yields an empty tree.
func headTreeEntries(repo *gogit.Repository) (map[string]ChangeState, error) {
	entries := make(map[string]ChangeState)

	head, err := repo.Head()
	if err != nil {
		if stderrors.Is(err, plumbing.ErrReferenceNotFound) {
			return entries, nil
		}
		return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
	}

	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to read HEAD commit: %w", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to read HEAD tree: %w", err)
	}

	walker := object.NewTreeWalker(tree, true, nil)
	defer walker.Close()
	for {
		name, entry, err := walker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to walk HEAD tree: %w", err)
		}
		if entry.Mode == filemode.Dir {
			continue
		}
		kind, err := kindFromFileMode(entry.Mode)
		if err != nil {
			return nil, err
		}
		entries[name] = ChangeState{ID: entry.Hash, Kind: kind}
	}
	return entries, nil
}

// splitConflicts separates stage-0 index entries from conflicted paths.
func splitConflicts(idx *index.Index) (map[string]*index.Entry, map[string]struct{}) {
	entries := make(map[string]*index.Entry, len(idx.Entries))
	conflicted := make(map[string]struct{})
	for _, entry := range idx.Entries {
		// A conflicted path carries "ours"/"theirs" stage entries instead of
		// a single merged one.
		if entry.Stage == index.OurMode || entry.Stage == index.TheirMode {
			conflicted[entry.Name] = struct{}{}
			continue
		}
		entries[entry.Name] = entry
	}
	for path := range conflicted {
		delete(entries, path)
	}
	return entries, conflicted
}

// treeIndexChanges diffs HEAD^{tree} against the index, pairing up exact
// rewrites as renames.
func treeIndexChanges(head map[string]ChangeState, idx map[string]*index.Entry) []taggedChange {
	var additions, deletions []taggedChange
	var out []taggedChange

	for _, path := range sortedKeys(idx) {
		entry := idx[path]
		kind, err := kindFromFileMode(entry.Mode)
		if err != nil {
			continue
		}
		state := ChangeState{ID: entry.Hash, Kind: kind}
		if entry.IntentToAdd {
			// The index holds an empty blob; this is the same diff as adding
			// the whole file.
			out = append(out, taggedChange{originIndexWorktree, TreeChange{
				Path:   path,
				Status: StatusAddition,
				State:  ChangeState{Kind: kind},
			}})
			continue
		}

		previous, existed := head[path]
		if !existed {
			additions = append(additions, taggedChange{originTreeIndex, TreeChange{
				Path:   path,
				Status: StatusAddition,
				State:  state,
			}})
			continue
		}
		if previous.ID != state.ID || previous.Kind != state.Kind {
			out = append(out, taggedChange{originTreeIndex, TreeChange{
				Path:          path,
				Status:        StatusModification,
				PreviousState: previous,
				State:         state,
				Flags:         CalculateModeFlags(previous, state),
			}})
		}
	}

	for _, path := range sortedKeys(head) {
		if _, ok := idx[path]; ok {
			continue
		}
		deletions = append(deletions, taggedChange{originTreeIndex, TreeChange{
			Path:          path,
			Status:        StatusDeletion,
			PreviousState: head[path],
		}})
	}

	out = append(out, pairRenames(deletions, additions)...)
	return out
}

// pairRenames turns deletion/addition pairs with identical blob ids into
// renames. Unpaired entries pass through unchanged.
func pairRenames(deletions, additions []taggedChange) []taggedChange {
	bySource := make(map[plumbing.Hash]int)
	for i, del := range deletions {
		id := del.change.PreviousState.ID
		if id.IsZero() {
			continue
		}
		if _, taken := bySource[id]; !taken {
			bySource[id] = i
		}
	}

	var out []taggedChange
	used := make(map[int]struct{})
	for _, add := range additions {
		id := add.change.State.ID
		if srcIdx, ok := bySource[id]; ok && !id.IsZero() {
			if _, taken := used[srcIdx]; !taken {
				used[srcIdx] = struct{}{}
				src := deletions[srcIdx].change
				out = append(out, taggedChange{add.origin, TreeChange{
					Path:          add.change.Path,
					Status:        StatusRename,
					PreviousPath:  src.Path,
					PreviousState: src.PreviousState,
					State:         add.change.State,
					Flags:         CalculateModeFlags(src.PreviousState, add.change.State),
				}})
				continue
			}
		}
		out = append(out, add)
	}
	for i, del := range deletions {
		if _, taken := used[i]; !taken {
			out = append(out, del)
		}
	}
	return out
}

// indexWorktreeChanges diffs the index against the working tree, walking
// untracked files one-by-one so renames can be paired per file.
func indexWorktreeChanges(
	repo *gogit.Repository,
	wt *gogit.Worktree,
	idx map[string]*index.Entry,
	conflicted map[string]struct{},
) ([]taggedChange, error) {
	fs := wt.Filesystem

	var deletions []taggedChange
	var out []taggedChange

	for _, path := range sortedKeys(idx) {
		entry := idx[path]
		if entry.SkipWorktree || entry.IntentToAdd {
			continue
		}
		kind, err := kindFromFileMode(entry.Mode)
		if err != nil {
			continue
		}
		previous := ChangeState{ID: entry.Hash, Kind: kind}

		if kind == KindCommit {
			change, err := submoduleChange(fs.Root(), path, previous)
			if err != nil || change == nil {
				continue
			}
			out = append(out, taggedChange{originIndexWorktree, *change})
			continue
		}

		fi, err := fs.Lstat(path)
		if os.IsNotExist(err) {
			deletions = append(deletions, taggedChange{originIndexWorktree, TreeChange{
				Path:          path,
				Status:        StatusDeletion,
				PreviousState: previous,
			}})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}

		diskKind, ok := diskKindOf(fi)
		if !ok {
			continue
		}
		if typeChanged(kind, diskKind) {
			state := ChangeState{Kind: diskKind}
			out = append(out, taggedChange{originIndexWorktree, TreeChange{
				Path:          path,
				Status:        StatusModification,
				PreviousState: previous,
				State:         state,
				Flags:         CalculateModeFlags(previous, state),
			}})
			continue
		}

		contentChanged, err := blobChanged(wt, entry, fi)
		if err != nil {
			return nil, err
		}
		execChanged := (kind == KindBlob || kind == KindBlobExecutable) && diskKind != kind
		if !contentChanged && !execChanged {
			continue
		}
		state := ChangeState{Kind: kind}
		if execChanged {
			state.Kind = diskKind
		}
		out = append(out, taggedChange{originIndexWorktree, TreeChange{
			Path:          path,
			Status:        StatusModification,
			PreviousState: previous,
			State:         state,
			Flags:         CalculateModeFlags(previous, state),
		}})
	}

	untracked, err := untrackedAdditions(repo, wt, idx, conflicted)
	if err != nil {
		return nil, err
	}

	// Hash untracked files only when a deletion may pair with one of them.
	if len(deletions) > 0 {
		for i := range untracked {
			change := &untracked[i].change
			if change.State.Kind != KindBlob && change.State.Kind != KindBlobExecutable {
				continue
			}
			if id, err := hashWorktreeFile(wt, change.Path); err == nil {
				change.State.ID = id
			}
		}
	}
	out = append(out, pairRenames(deletions, untracked)...)
	return out, nil
}

// untrackedAdditions walks the working tree for paths that are neither
// tracked nor ignored.
func untrackedAdditions(
	repo *gogit.Repository,
	wt *gogit.Worktree,
	idx map[string]*index.Entry,
	conflicted map[string]struct{},
) ([]taggedChange, error) {
	fs := wt.Filesystem

	patterns, err := gitignore.ReadPatterns(fs, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read ignore patterns: %w", err)
	}
	matcher := gitignore.NewMatcher(patterns)

	var out []taggedChange
	var walk func(dir string) error
	walk = func(dir string) error {
		entries, err := fs.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("failed to read directory %s: %w", dir, err)
		}
		for _, fi := range entries {
			path := fi.Name()
			if dir != "" {
				path = dir + "/" + fi.Name()
			}
			if fi.Name() == gogit.GitDirName {
				continue
			}
			if matcher.Match(strings.Split(path, "/"), fi.IsDir()) {
				continue
			}
			if fi.IsDir() {
				if nested, err := isNestedRepository(fs.Root(), path); err == nil && nested {
					if _, tracked := idx[path]; !tracked {
						out = append(out, taggedChange{originIndexWorktree, TreeChange{
							Path:      path,
							Status:    StatusAddition,
							State:     ChangeState{Kind: KindCommit},
							Untracked: true,
						}})
					}
					continue
				}
				if err := walk(path); err != nil {
					return err
				}
				continue
			}
			if _, tracked := idx[path]; tracked {
				continue
			}
			if _, conflict := conflicted[path]; conflict {
				continue
			}
			kind, ok := diskKindOf(fi)
			if !ok {
				// Character devices, sockets and pipes are untrackable.
				continue
			}
			out = append(out, taggedChange{originIndexWorktree, TreeChange{
				Path:      path,
				Status:    StatusAddition,
				State:     ChangeState{Kind: kind},
				Untracked: true,
			}})
		}
		return nil
	}
	if err := walk(""); err != nil {
		return nil, err
	}
	return out, nil
}

// submoduleChange reports a submodule whose checked-out head moved away from
// the committed tip. Submodules without a readable head are skipped.
func submoduleChange(root, path string, previous ChangeState) (*TreeChange, error) {
	sub, err := gogit.PlainOpen(root + "/" + path)
	if err != nil {
		return nil, nil
	}
	head, err := sub.Head()
	if err != nil {
		return nil, nil
	}
	if head.Hash() == previous.ID {
		return nil, nil
	}
	state := ChangeState{ID: head.Hash(), Kind: KindCommit}
	return &TreeChange{
		Path:          path,
		Status:        StatusModification,
		PreviousState: previous,
		State:         state,
		Flags:         CalculateModeFlags(previous, state),
	}, nil
}

// blobChanged compares an index entry against the file on disk, confirming a
// metadata mismatch by re-hashing the content.
func blobChanged(wt *gogit.Worktree, entry *index.Entry, fi os.FileInfo) (bool, error) {
	if fi.Mode()&os.ModeSymlink == 0 && uint32(fi.Size()) != entry.Size {
		return true, nil
	}
	id, err := hashWorktreeFile(wt, entry.Name)
	if err != nil {
		return false, err
	}
	return id != entry.Hash, nil
}

// hashWorktreeFile hashes a working-tree file (or symlink target) as a blob.
func hashWorktreeFile(wt *gogit.Worktree, path string) (plumbing.Hash, error) {
	fs := wt.Filesystem
	fi, err := fs.Lstat(path)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		target, err := fs.Readlink(path)
		if err != nil {
			return plumbing.ZeroHash, fmt.Errorf("failed to read link %s: %w", path, err)
		}
		return plumbing.ComputeHash(plumbing.BlobObject, []byte(target)), nil
	}
	f, err := fs.Open(path)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	data, err := io.ReadAll(f)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return plumbing.ComputeHash(plumbing.BlobObject, data), nil
}

// isNestedRepository reports whether a directory is its own git repository.
func isNestedRepository(root, path string) (bool, error) {
	_, err := os.Stat(root + "/" + path + "/" + gogit.GitDirName)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func kindFromFileMode(mode filemode.FileMode) (EntryKind, error) {
	switch mode {
	case filemode.Regular, filemode.Deprecated:
		return KindBlob, nil
	case filemode.Executable:
		return KindBlobExecutable, nil
	case filemode.Symlink:
		return KindLink, nil
	case filemode.Submodule:
		return KindCommit, nil
	default:
		return KindBlob, fmt.Errorf("entry contained invalid entry mode %s", mode)
	}
}

// diskKindOf classifies a directory entry; untrackable kinds report ok=false.
func diskKindOf(fi os.FileInfo) (EntryKind, bool) {
	mode := fi.Mode()
	switch {
	case mode&os.ModeSymlink != 0:
		return KindLink, true
	case mode.IsRegular():
		if mode&0o111 != 0 {
			return KindBlobExecutable, true
		}
		return KindBlob, true
	default:
		return 0, false
	}
}

func typeChanged(indexKind, diskKind EntryKind) bool {
	blobish := func(k EntryKind) bool { return k == KindBlob || k == KindBlobExecutable }
	if blobish(indexKind) && blobish(diskKind) {
		return false
	}
	return indexKind != diskKind
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
