// Package cli provides command-line interface definitions using Cobra for
// inspecting the engine: the workspace graph, the canonical worktree status,
// hunk dependencies and the tool registry.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root cobra command
func NewRootCmd(version, commit, date string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "lanes",
		Short:   "Lanes reconstructs the branching topology of a stacked-diff workspace",
		Version: version,
		Long: `Lanes is the engine behind a stacked-diff workflow: it segments the commit
graph of all in-flight branches, tracks which uncommitted edits depend on
committed ones, and plans topology-preserving rebases.

Version: ` + version + `
Commit:  ` + commit + `
Date:    ` + date,
	}

	// Add subcommands
	rootCmd.AddCommand(newGraphCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newDepsCmd())
	rootCmd.AddCommand(newToolsCmd())

	return rootCmd
}
