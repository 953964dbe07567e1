package worktree

import (
	"fmt"
	"io"
	"os"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/utils/diff"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffHunk is one hunk of a unified diff in line coordinates, along with its
// rendered text.
type DiffHunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Diff     string
}

// UnifiedDiff diffs the previous and current state of the change, reading
// blobs from the object database and unhashed content from the working tree.
// Submodule changes have no line-level diff and yield no hunks.
func (c *TreeChange) UnifiedDiff(repo *gogit.Repository, contextLines int) ([]DiffHunk, error) {
	if c.State.Kind == KindCommit || c.PreviousState.Kind == KindCommit {
		return nil, nil
	}

	var oldContent, newContent string
	var err error
	switch c.Status {
	case StatusAddition:
		newContent, err = stateContent(repo, c.Path, c.State)
	case StatusDeletion:
		oldContent, err = stateContent(repo, c.Path, c.PreviousState)
	case StatusModification:
		if oldContent, err = stateContent(repo, c.Path, c.PreviousState); err == nil {
			newContent, err = stateContent(repo, c.Path, c.State)
		}
	case StatusRename:
		if oldContent, err = stateContent(repo, c.PreviousPath, c.PreviousState); err == nil {
			newContent, err = stateContent(repo, c.Path, c.State)
		}
	}
	if err != nil {
		return nil, err
	}

	return hunksOf(diff.Do(oldContent, newContent), contextLines), nil
}

// BlobDiffHunks diffs two blobs by id. Either id may be zero to stand for
// empty content, which models additions and deletions.
func BlobDiffHunks(repo *gogit.Repository, oldID, newID plumbing.Hash, contextLines int) ([]DiffHunk, error) {
	var oldContent, newContent string
	var err error
	if !oldID.IsZero() {
		if oldContent, err = stateContent(repo, oldID.String(), ChangeState{ID: oldID, Kind: KindBlob}); err != nil {
			return nil, err
		}
	}
	if !newID.IsZero() {
		if newContent, err = stateContent(repo, newID.String(), ChangeState{ID: newID, Kind: KindBlob}); err != nil {
			return nil, err
		}
	}
	return hunksOf(diff.Do(oldContent, newContent), contextLines), nil
}

// stateContent loads the content behind a change state. A zero id means the
// content has not been hashed and is read from the working tree instead.
func stateContent(repo *gogit.Repository, path string, state ChangeState) (string, error) {
	if !state.ID.IsZero() {
		blob, err := repo.BlobObject(state.ID)
		if err != nil {
			return "", fmt.Errorf("failed to read blob for %s: %w", path, err)
		}
		reader, err := blob.Reader()
		if err != nil {
			return "", fmt.Errorf("failed to open blob for %s: %w", path, err)
		}
		defer func() {
			_ = reader.Close()
		}()
		data, err := io.ReadAll(reader)
		if err != nil {
			return "", fmt.Errorf("failed to read blob for %s: %w", path, err)
		}
		return string(data), nil
	}

	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("need non-bare repository: %w", err)
	}
	fs := wt.Filesystem
	if fi, err := fs.Lstat(path); err == nil && fi.Mode()&os.ModeSymlink != 0 {
		return fs.Readlink(path)
	}
	f, err := fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// hunksOf groups line-level diff operations into unified hunks with the given
// amount of context.
func hunksOf(diffs []diffmatchpatch.Diff, contextLines int) []DiffHunk {
	type op struct {
		kind diffmatchpatch.Operation
		line string
	}
	var ops []op
	for _, d := range diffs {
		for _, line := range splitKeepLines(d.Text) {
			ops = append(ops, op{d.Type, line})
		}
	}

	var hunks []DiffHunk
	oldPos, newPos := 1, 1

	i := 0
	for i < len(ops) {
		if ops[i].kind == diffmatchpatch.DiffEqual {
			oldPos++
			newPos++
			i++
			continue
		}

		// Pull in leading context.
		start := i
		context := 0
		for start > 0 && context < contextLines && ops[start-1].kind == diffmatchpatch.DiffEqual {
			start--
			context++
		}
		hunkOld := oldPos - context
		hunkNew := newPos - context

		var body strings.Builder
		oldCount, newCount := 0, 0
		for j := start; j < i; j++ {
			body.WriteString(" " + ops[j].line)
			oldCount++
			newCount++
		}

		// Consume the change run, allowing up to 2*contextLines equal lines
		// to join adjacent runs into one hunk.
		equalRun := 0
		j := i
		for j < len(ops) {
			if ops[j].kind == diffmatchpatch.DiffEqual {
				if equalRun >= 2*contextLines {
					break
				}
				equalRun++
				j++
				continue
			}
			equalRun = 0
			j++
		}
		end := j - equalRun
		trailing := min(equalRun, contextLines)

		for j := i; j < end+trailing; j++ {
			switch ops[j].kind {
			case diffmatchpatch.DiffDelete:
				body.WriteString("-" + ops[j].line)
				oldCount++
				oldPos++
			case diffmatchpatch.DiffInsert:
				body.WriteString("+" + ops[j].line)
				newCount++
				newPos++
			case diffmatchpatch.DiffEqual:
				body.WriteString(" " + ops[j].line)
				oldCount++
				newCount++
				oldPos++
				newPos++
			}
		}
		// Skip the equal lines that separated this hunk from the next.
		for j := end + trailing; j < end+equalRun; j++ {
			oldPos++
			newPos++
		}
		i = end + equalRun

		oldStart, newStart := hunkOld, hunkNew
		if oldCount == 0 {
			oldStart--
		}
		if newCount == 0 {
			newStart--
		}
		header := fmt.Sprintf("@@ -%d,%d +%d,%d @@\n", oldStart, oldCount, newStart, newCount)
		hunks = append(hunks, DiffHunk{
			OldStart: oldStart,
			OldLines: oldCount,
			NewStart: newStart,
			NewLines: newCount,
			Diff:     header + body.String(),
		})
	}
	return hunks
}

// splitKeepLines splits text into lines, each retaining its newline. The last
// line may lack one.
func splitKeepLines(text string) []string {
	if text == "" {
		return nil
	}
	var lines []string
	for {
		idx := strings.IndexByte(text, '\n')
		if idx == -1 {
			lines = append(lines, text)
			return lines
		}
		lines = append(lines, text[:idx+1])
		if idx == len(text)-1 {
			return lines
		}
		text = text[idx+1:]
	}
}
