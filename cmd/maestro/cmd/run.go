package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/altowierigge/maestro/internal/coordinator"
	"github.com/altowierigge/maestro/internal/engine"
	"github.com/altowierigge/maestro/internal/prompt"
)

var (
	runWorkflowFile string
	runSessionID    string
)

var runCmd = &cobra.Command{
	Use:   "run [request]",
	Short: "Run the micro-phase workflow, or a declarative workflow file",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runWorkflowFile, "workflow", "",
		"declarative workflow file to execute instead of the micro-phase coordinator")
	runCmd.Flags().StringVar(&runSessionID, "session", "",
		"session ID to resume (micro-phase mode)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	request := strings.Join(args, " ")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Workflow.SessionTimeoutDuration())
	defer cancel()

	comps, err := buildComponents()
	if err != nil {
		return err
	}
	defer comps.close()

	enhancer := prompt.NewEnhancer(comps.recorder, logger)
	comps.registry.SetEnhancer(enhancer.Func())

	if runWorkflowFile != "" {
		return runDeclarative(ctx, comps, request)
	}
	return runCoordinator(ctx, comps, request)
}

func runDeclarative(ctx context.Context, comps *components, request string) error {
	path := engine.ResolveWorkflowPath(runWorkflowFile)
	def, err := engine.LoadDefinition(path)
	if err != nil {
		return err
	}

	eng := engine.New(def, comps.registry,
		engine.WithLogger(logger),
		engine.WithBus(comps.bus),
		engine.WithMaxParallel(cfg.Workflow.MaxConcurrentAgents),
	)

	state, err := eng.Execute(ctx, map[string]any{
		"session_id":   uuid.NewString(),
		"user_request": request,
	})
	if err != nil {
		return err
	}

	if summary, ok := state["execution_summary"].(map[string]any); ok {
		fmt.Printf("Workflow %s finished: %v completed, %v failed\n",
			def.Name, summary["completed_phases"], summary["failed_phases"])
	}
	return nil
}

func runCoordinator(ctx context.Context, comps *components, request string) error {
	manager, err := comps.registry.Get("openai")
	if err != nil {
		return err
	}
	developer, err := comps.registry.Get("anthropic")
	if err != nil {
		return err
	}

	coord, err := coordinator.New(coordinator.Agents{
		Manager:    manager,
		Developer:  developer,
		Validator:  manager,
		Integrator: manager,
	}, comps.store, comps.recorder,
		coordinator.WithLogger(logger),
		coordinator.WithBus(comps.bus),
	)
	if err != nil {
		return err
	}

	if runSessionID != "" {
		result, err := coord.Resume(ctx, runSessionID, request)
		if err != nil {
			return err
		}
		fmt.Printf("Session %s resumed; %d micro-phases completed\n", result.SessionID, len(result.CompletedPhases))
		return nil
	}

	result, err := coord.Start(ctx, request)
	if err != nil {
		return err
	}
	fmt.Printf("Session %s completed; %d micro-phases implemented\n", result.SessionID, len(result.CompletedPhases))
	if result.RepositoryURL != "" {
		fmt.Printf("Repository: %s\n", result.RepositoryURL)
	}
	return nil
}
