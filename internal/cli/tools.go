package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"lanes.dev/lanes/internal/tools"
)

func newToolsCmd() *cobra.Command {
	var call string
	var params string

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List registered tools, or call one by name",
		RunE: func(cmd *cobra.Command, _ []string) error {
			toolset := tools.NewToolset(&tools.Context{RepoPath: "."}, nil)
			tools.RegisterWorkspaceTools(toolset)

			if call != "" {
				result := toolset.Call(call, json.RawMessage(params))
				cmd.Println(string(result))
				return nil
			}

			for _, tool := range toolset.List() {
				cmd.Printf("%s — %s\n", tool.Name(), tool.Description())
				schema, err := tool.Parameters()
				if err != nil {
					cmd.PrintErrf("  (schema unavailable: %s)\n", err)
					continue
				}
				cmd.Printf("  %s\n", string(schema))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&call, "call", "", "invoke the named tool")
	cmd.Flags().StringVar(&params, "params", "{}", "JSON parameters for --call")
	return cmd
}
