// Package output renders engine results for the terminal: the segmented
// workspace graph as a tree, and the canonical worktree status. Styling is
// disabled automatically when stdout is not a terminal.
package output

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"lanes.dev/lanes/internal/graph"
	"lanes.dev/lanes/internal/worktree"
)

// GraphRenderer renders a commit graph as an indented tree of segments.
type GraphRenderer struct {
	colorize bool
	// Now anchors relative commit times.
	Now time.Time
}

// NewGraphRenderer creates a renderer, enabling color only on terminals.
func NewGraphRenderer() *GraphRenderer {
	return &GraphRenderer{
		colorize: isatty.IsTerminal(os.Stdout.Fd()),
		Now:      time.Now(),
	}
}

// laneStyle returns the style of the n-th lane.
func (r *GraphRenderer) laneStyle(n int) lipgloss.Style {
	if !r.colorize {
		return lipgloss.NewStyle()
	}
	c := LANE_COLORS[n%len(LANE_COLORS)]
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])))
}

func (r *GraphRenderer) dim() lipgloss.Style {
	if !r.colorize {
		return lipgloss.NewStyle()
	}
	return lipgloss.NewStyle().Faint(true)
}

// RenderGraph returns the tree form of a graph, entrypoint first.
func (r *GraphRenderer) RenderGraph(g *graph.Graph, times map[string]time.Time) string {
	var b strings.Builder
	if g.Partial {
		b.WriteString(r.dim().Render("(partial: traversal hit the hard limit)"))
		b.WriteString("\n")
	}

	rendered := make(map[graph.SegmentID]bool)
	var renderSegment func(id graph.SegmentID, depth int)
	renderSegment = func(id graph.SegmentID, depth int) {
		if rendered[id] {
			return
		}
		rendered[id] = true
		segment := g.Segment(id)
		indent := strings.Repeat("  ", depth)
		style := r.laneStyle(depth)

		name := segment.RefName
		if name == "" {
			name = "(anonymous)"
		}
		marker := "◉"
		if g.Entrypoint != nil && g.Entrypoint.Segment == id {
			marker = "●"
		}
		b.WriteString(indent + style.Render(marker+" "+shortRef(name)) + "\n")

		for _, commit := range segment.Commits {
			line := indent + "│ " + commit.ID.String()[:7]
			var notes []string
			if commit.Flags.Has(graph.FlagIntegrated) {
				notes = append(notes, "integrated")
			}
			if commit.Flags.Has(graph.FlagInWorkspace) {
				notes = append(notes, "in-workspace")
			}
			if !commit.Flags.Has(graph.FlagNotInRemote) {
				notes = append(notes, "pushed")
			}
			for _, ref := range commit.Refs {
				notes = append(notes, shortRef(ref))
			}
			if t, ok := times[commit.ID.String()]; ok {
				notes = append(notes, humanize.RelTime(t, r.Now, "ago", "from now"))
			}
			if len(notes) > 0 {
				line += " " + r.dim().Render("("+strings.Join(notes, ", ")+")")
			}
			b.WriteString(line + "\n")
		}

		for _, edge := range g.OutgoingEdges(id) {
			renderSegment(edge.Dst, depth+1)
		}
	}

	if g.Entrypoint != nil {
		renderSegment(g.Entrypoint.Segment, 0)
	}
	for _, segment := range g.Segments() {
		renderSegment(segment.ID, 0)
	}
	return b.String()
}

// RenderChanges returns the status listing, ignored changes last.
func (r *GraphRenderer) RenderChanges(changes *worktree.WorktreeChanges) string {
	var b strings.Builder
	for _, change := range changes.Changes {
		symbol := "M"
		switch change.Status {
		case worktree.StatusAddition:
			symbol = "A"
			if change.Untracked {
				symbol = "?"
			}
		case worktree.StatusDeletion:
			symbol = "D"
		case worktree.StatusRename:
			symbol = "R"
		}
		line := fmt.Sprintf("%s %s", symbol, change.Path)
		if change.Status == worktree.StatusRename {
			line = fmt.Sprintf("%s %s -> %s", symbol, change.PreviousPath, change.Path)
		}
		if change.Flags != 0 {
			var notes []string
			if change.Flags&worktree.ModeExecBitAdded != 0 {
				notes = append(notes, "+x")
			}
			if change.Flags&worktree.ModeExecBitRemoved != 0 {
				notes = append(notes, "-x")
			}
			if change.Flags&worktree.ModeTypeChange != 0 {
				notes = append(notes, "typechange")
			}
			line += " " + r.dim().Render("("+strings.Join(notes, ", ")+")")
		}
		b.WriteString(line + "\n")
	}
	for _, ignored := range changes.IgnoredChanges {
		reason := "duplicate"
		if ignored.Reason == worktree.IgnoredConflict {
			reason = "conflict"
		}
		b.WriteString(r.dim().Render(fmt.Sprintf("! %s (%s)", ignored.Path, reason)) + "\n")
	}
	return b.String()
}

// shortRef strips the standard ref prefixes for display.
func shortRef(name string) string {
	for _, prefix := range []string{"refs/heads/", "refs/remotes/", "refs/tags/"} {
		if strings.HasPrefix(name, prefix) {
			return strings.TrimPrefix(name, prefix)
		}
	}
	return name
}
