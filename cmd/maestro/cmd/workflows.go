package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/altowierigge/maestro/internal/engine"
)

var workflowsCmd = &cobra.Command{
	Use:   "workflows",
	Short: "List available workflow definitions",
	RunE:  runWorkflows,
}

func init() {
	rootCmd.AddCommand(workflowsCmd)
}

func runWorkflows(_ *cobra.Command, _ []string) error {
	dir := filepath.Dir(cfg.Workflow.Path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading workflows directory %s: %w", dir, err)
	}

	active := engine.ResolveWorkflowPath(cfg.Workflow.Path)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		def, err := engine.LoadDefinition(path)
		if err != nil {
			fmt.Printf("  %-24s (invalid: %v)\n", entry.Name(), err)
			continue
		}
		marker := " "
		if path == active {
			marker = "*"
		}
		fmt.Printf("%s %-24s %s v%s — %d phases\n", marker, entry.Name(), def.Name, def.Version, len(def.Phases))
	}
	return nil
}
