package tools

import (
	"encoding/json"
	"fmt"

	gogit "github.com/go-git/go-git/v5"

	"lanes.dev/lanes/internal/graph"
	"lanes.dev/lanes/internal/meta"
	"lanes.dev/lanes/internal/worktree"
)

// RegisterWorkspaceTools adds the standard engine tools to a toolset.
func RegisterWorkspaceTools(t *Toolset) {
	t.Register(GraphSegmentsTool{})
	t.Register(WorktreeStatusTool{})
	t.Register(DescribeBranchTool{})
}

func openRepo(ctx *Context) (*gogit.Repository, error) {
	repo, err := gogit.PlainOpenWithOptions(ctx.RepoPath, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}
	return repo, nil
}

// GraphSegmentsTool lists the segments of the workspace graph.
type GraphSegmentsTool struct{}

type graphSegmentsParams struct {
	// LimitHint caps how many commits each traversal lane may visit.
	LimitHint int `json:"limitHint,omitempty" description:"Per-lane commit budget; 0 uses the default."`
}

type graphSegmentOut struct {
	RefName string   `json:"refName,omitempty"`
	Commits []string `json:"commits"`
}

// Name implements Tool.
func (GraphSegmentsTool) Name() string { return "graph_segments" }

// Description implements Tool.
func (GraphSegmentsTool) Description() string {
	return "List the segments of the workspace commit graph with their commits."
}

// Parameters implements Tool.
func (GraphSegmentsTool) Parameters() (json.RawMessage, error) {
	return reflectSchema(graphSegmentsParams{})
}

// Call implements Tool.
func (GraphSegmentsTool) Call(params json.RawMessage, ctx *Context) (any, error) {
	var p graphSegmentsParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("failed to parse parameters: %w", err)
		}
	}
	repo, err := openRepo(ctx)
	if err != nil {
		return nil, err
	}
	options := graph.LimitedOptions()
	if p.LimitHint > 0 {
		options = options.WithLimitHint(p.LimitHint)
	}
	g, err := graph.FromHead(repo, meta.NewRefStore(repo), options)
	if err != nil {
		return nil, err
	}
	var out []graphSegmentOut
	for _, segment := range g.Segments() {
		entry := graphSegmentOut{RefName: segment.RefName, Commits: []string{}}
		for _, commit := range segment.Commits {
			entry.Commits = append(entry.Commits, commit.ID.String())
		}
		out = append(out, entry)
	}
	return out, nil
}

// WorktreeStatusTool enumerates the canonical worktree changes.
type WorktreeStatusTool struct{}

type worktreeStatusParams struct{}

type worktreeChangeOut struct {
	Path     string `json:"path"`
	Status   string `json:"status"`
	Previous string `json:"previousPath,omitempty"`
}

// Name implements Tool.
func (WorktreeStatusTool) Name() string { return "worktree_status" }

// Description implements Tool.
func (WorktreeStatusTool) Description() string {
	return "Enumerate everything that would have to be committed for HEAD to equal the worktree."
}

// Parameters implements Tool.
func (WorktreeStatusTool) Parameters() (json.RawMessage, error) {
	return reflectSchema(worktreeStatusParams{})
}

// Call implements Tool.
func (WorktreeStatusTool) Call(_ json.RawMessage, ctx *Context) (any, error) {
	repo, err := openRepo(ctx)
	if err != nil {
		return nil, err
	}
	changes, err := worktree.Changes(repo)
	if err != nil {
		return nil, err
	}
	out := make([]worktreeChangeOut, 0, len(changes.Changes))
	for _, change := range changes.Changes {
		out = append(out, worktreeChangeOut{
			Path:     change.Path,
			Status:   change.Status.String(),
			Previous: change.PreviousPath,
		})
	}
	return out, nil
}

// DescribeBranchTool updates the metadata of a branch to carry a new
// description.
type DescribeBranchTool struct{}

type describeBranchParams struct {
	// RefName is the full ref to annotate, e.g. refs/heads/feature.
	RefName string `json:"refName" required:"true" description:"Full name of the branch ref."`
	// Description is the new branch description.
	Description string `json:"description" required:"true" description:"New description for the branch."`
}

// Name implements Tool.
func (DescribeBranchTool) Name() string { return "describe_branch" }

// Description implements Tool.
func (DescribeBranchTool) Description() string {
	return "Set the stored description of a branch."
}

// Parameters implements Tool.
func (DescribeBranchTool) Parameters() (json.RawMessage, error) {
	return reflectSchema(describeBranchParams{})
}

// Call implements Tool.
func (DescribeBranchTool) Call(params json.RawMessage, ctx *Context) (any, error) {
	var p describeBranchParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("failed to parse parameters: %w", err)
	}
	if p.RefName == "" {
		return nil, fmt.Errorf("refName must not be empty")
	}
	repo, err := openRepo(ctx)
	if err != nil {
		return nil, err
	}
	store := meta.NewRefStore(repo)
	branch, err := store.Branch(p.RefName)
	if err != nil {
		return nil, err
	}
	if branch == nil {
		branch = &meta.Branch{}
	}
	branch.Description = &p.Description
	if err := store.WriteBranch(p.RefName, branch); err != nil {
		return nil, err
	}
	return map[string]string{"refName": p.RefName}, nil
}
