package tools_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"lanes.dev/lanes/internal/meta"
	"lanes.dev/lanes/internal/tools"
	"lanes.dev/lanes/testhelpers"
)

func newToolset(t *testing.T, emitter tools.Emitter) (*tools.Toolset, *testhelpers.Scene) {
	t.Helper()
	scene := testhelpers.NewScene(t, func(s *testhelpers.Scene) error {
		return s.Repo.CreateFileAndCommit("file.txt", "x\n", "init")
	})
	toolset := tools.NewToolset(&tools.Context{RepoPath: scene.Repo.Dir}, emitter)
	tools.RegisterWorkspaceTools(toolset)
	return toolset, scene
}

func TestToolsetListsRegisteredTools(t *testing.T) {
	toolset, _ := newToolset(t, nil)

	var names []string
	for _, tool := range toolset.List() {
		names = append(names, tool.Name())
		schema, err := tool.Parameters()
		require.NoError(t, err)
		require.NotEmpty(t, schema)
		require.NotEmpty(t, tool.Description())
	}
	require.Equal(t, []string{"describe_branch", "graph_segments", "worktree_status"}, names)
}

func TestToolsetUnknownToolIsErrorJSON(t *testing.T) {
	toolset, _ := newToolset(t, nil)

	result := toolset.Call("no_such_tool", nil)
	var decoded map[string]string
	require.NoError(t, json.Unmarshal(result, &decoded))
	require.Equal(t, "Tool 'no_such_tool' not found", decoded["error"])
}

func TestToolsetHandlerFailureIsErrorJSON(t *testing.T) {
	toolset, _ := newToolset(t, nil)

	// Missing required parameters must not escape as a Go error.
	result := toolset.Call("describe_branch", json.RawMessage(`{"refName":""}`))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(result, &decoded))
	require.Contains(t, decoded, "error")
}

func TestDescribeBranchWritesMetadata(t *testing.T) {
	var emitted []string
	emitter := func(name string, _ json.RawMessage, _ json.RawMessage) {
		emitted = append(emitted, name)
	}
	toolset, scene := newToolset(t, emitter)

	result := toolset.Call("describe_branch", json.RawMessage(`{"refName":"refs/heads/main","description":"the trunk"}`))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(result, &decoded))
	require.Contains(t, decoded, "result")
	require.Equal(t, []string{"describe_branch"}, emitted)

	store := meta.NewRefStore(scene.Open())
	branch, err := store.Branch("refs/heads/main")
	require.NoError(t, err)
	require.NotNil(t, branch)
	require.Equal(t, "the trunk", *branch.Description)
}

func TestGraphSegmentsTool(t *testing.T) {
	toolset, _ := newToolset(t, nil)

	result := toolset.Call("graph_segments", json.RawMessage(`{}`))
	var decoded struct {
		Result []struct {
			RefName string   `json:"refName"`
			Commits []string `json:"commits"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(result, &decoded))
	require.Len(t, decoded.Result, 1)
	require.Equal(t, "refs/heads/main", decoded.Result[0].RefName)
	require.Len(t, decoded.Result[0].Commits, 1)
}
