package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/altowierigge/maestro/internal/cache"
	"github.com/altowierigge/maestro/internal/core"
)

// Artifact names used in WorkflowState.Artifacts.
const (
	artifactUnifiedFeatures      = "unified_features"
	artifactArchitecture         = "architecture"
	artifactApprovedArchitecture = "approved_architecture"
	artifactReviewFeedback       = "architecture_feedback"
	artifactIntegrationSummary   = "integration_summary"
)

// phaseRepositorySetup provisions the session repository through the
// repository collaborator. Without one, the state is skipped.
func (c *Coordinator) phaseRepositorySetup(ctx context.Context, state *core.WorkflowState) error {
	if c.repo == nil {
		state.PhaseStatus[core.PhaseRepositorySetup] = core.PhaseSkipped
		return nil
	}

	repoState, err := c.repo.SetupProject(ctx, core.ProjectSetupConfig{
		ProjectName: fmt.Sprintf("ai-project-%s", shortID(state.SessionID)),
		SessionID:   state.SessionID,
		Description: fmt.Sprintf("AI-generated project: %s", truncate(state.Requirements, 100)),
		PrivateRepo: true,
	})
	if err != nil {
		return err
	}

	state.IntegrationResults["repository_url"] = repoState.RepositoryURL
	state.IntegrationResults["repository_name"] = repoState.RepositoryName
	state.RepositoryURL = repoState.RepositoryURL
	c.logger.Info("repository setup completed", "url", repoState.RepositoryURL)
	return nil
}

// phaseJointBrainstorming runs manager and developer brainstorms and a
// manager synthesis, producing the unified feature list.
func (c *Coordinator) phaseJointBrainstorming(ctx context.Context, state *core.WorkflowState) error {
	if cached, ok := c.store.GetString(cache.KeyBrainstormingFeatures, true); ok {
		c.logger.Info("using cached brainstorming results")
		state.SetArtifact(artifactUnifiedFeatures, cached)
		return nil
	}
	start := time.Now()

	managerResp, err := c.executeAgent(ctx, c.agents.Manager,
		core.NewTask(core.TaskBrainstorming, state.Requirements, state.SessionID))
	if err != nil {
		return err
	}

	developerResp, err := c.executeAgent(ctx, c.agents.Developer,
		core.NewTask(core.TaskBrainstorming, state.Requirements, state.SessionID).
			WithContext(map[string]any{"manager_brainstorm": managerResp.Content}))
	if err != nil {
		return err
	}

	synthesisResp, err := c.executeAgent(ctx, c.agents.Manager,
		core.NewTask(core.TaskPlanComparison, state.Requirements, state.SessionID).
			WithContext(map[string]any{
				"manager_brainstorm":   managerResp.Content,
				"developer_brainstorm": developerResp.Content,
			}))
	if err != nil {
		return err
	}

	state.SetArtifact(artifactUnifiedFeatures, synthesisResp.Content)
	if err := c.store.Set(cache.KeyBrainstormingFeatures, synthesisResp.Content, cache.SetOptions{
		AgentType:   c.agents.Manager.Name(),
		SessionID:   state.SessionID,
		ExpiryHours: 168,
	}); err != nil {
		return err
	}

	c.recordDoc(ctx, state, core.PhaseDocumentation{
		PhaseName: core.PhaseJointBrainstorming.String(),
		PhaseType: "brainstorming",
		Summary:   "Joint brainstorming between manager and developer agents",
		Objectives: []string{
			"Define core project features and scope",
			"Align strategic and technical perspectives",
		},
		Deliverables:    []string{"Unified feature list"},
		Artifacts:       []string{cache.KeyBrainstormingFeatures},
		DurationSeconds: time.Since(start).Seconds(),
		Agent:           c.agents.Manager.Name(),
	})
	return nil
}

// phaseArchitectureDesign has the developer agent produce the system
// architecture from the unified features.
func (c *Coordinator) phaseArchitectureDesign(ctx context.Context, state *core.WorkflowState) error {
	if cached, ok := c.store.GetString(cache.KeySystemArchitecturePlan, true); ok {
		c.logger.Info("using cached architecture plan")
		state.SetArtifact(artifactArchitecture, cached)
		return nil
	}
	start := time.Now()

	resp, err := c.executeAgent(ctx, c.agents.Developer,
		core.NewTask(core.TaskTechnicalPlanning, state.Requirements, state.SessionID).
			WithContext(map[string]any{artifactUnifiedFeatures: state.Artifact(artifactUnifiedFeatures)}))
	if err != nil {
		return err
	}

	state.SetArtifact(artifactArchitecture, resp.Content)
	if err := c.store.Set(cache.KeySystemArchitecturePlan, resp.Content, cache.SetOptions{
		AgentType:    c.agents.Developer.Name(),
		SessionID:    state.SessionID,
		Dependencies: []string{cache.KeyBrainstormingFeatures},
	}); err != nil {
		return err
	}

	plan := parseArchitecturePlan(resp.Content, state.SessionID)
	plan.CreatedAt = time.Now()
	if err := c.docs.SaveArchitecturePlan(ctx, plan); err != nil {
		c.logger.Warn("failed to save architecture plan file", "error", err)
	}

	c.recordDoc(ctx, state, core.PhaseDocumentation{
		PhaseName:       core.PhaseArchitectureDesign.String(),
		PhaseType:       "architecture",
		Summary:         "System architecture designed from unified features",
		Deliverables:    []string{"Architecture plan", "Architecture plan file"},
		Dependencies:    []string{cache.KeyBrainstormingFeatures},
		Artifacts:       []string{cache.KeySystemArchitecturePlan},
		DurationSeconds: time.Since(start).Seconds(),
		Agent:           c.agents.Developer.Name(),
	})
	return nil
}

// phaseArchitectureReview has the manager agent review the architecture.
// An explicit rejection fails the phase; otherwise the design is the
// approved architecture.
func (c *Coordinator) phaseArchitectureReview(ctx context.Context, state *core.WorkflowState) error {
	architecture := state.Artifact(artifactArchitecture)

	if cached, ok := c.store.GetString(keyArchitectureReview, true); ok {
		c.logger.Info("using cached architecture review")
		state.SetArtifact(artifactReviewFeedback, cached)
		state.SetArtifact(artifactApprovedArchitecture, architecture)
		return nil
	}

	resp, err := c.executeAgent(ctx, c.agents.Manager,
		core.NewTask(core.TaskPlanComparison, state.Requirements, state.SessionID).
			WithContext(map[string]any{
				artifactUnifiedFeatures: state.Artifact(artifactUnifiedFeatures),
				"architecture":          architecture,
			}))
	if err != nil {
		return err
	}
	if reviewRejected(resp.Content) {
		return core.ErrValidation("ARCHITECTURE_REJECTED", "architecture review rejected the design")
	}

	state.SetArtifact(artifactReviewFeedback, resp.Content)
	state.SetArtifact(artifactApprovedArchitecture, architecture)
	return c.store.Set(keyArchitectureReview, resp.Content, cache.SetOptions{
		AgentType:    c.agents.Manager.Name(),
		SessionID:    state.SessionID,
		Dependencies: []string{cache.KeySystemArchitecturePlan},
	})
}

// phaseMicroPhasePlanning has the developer agent break the project
// into micro-phases and records the implementation guides in the plan
// file.
func (c *Coordinator) phaseMicroPhasePlanning(ctx context.Context, state *core.WorkflowState) error {
	var cached []core.MicroPhase
	if c.store.GetJSON(cache.KeyProjectMicroPhases, true, &cached) && len(cached) > 0 {
		c.logger.Info("using cached micro-phase breakdown", "phases", len(cached))
		state.ProposedMicroPhases = cached
		return nil
	}
	start := time.Now()

	resp, err := c.executeAgent(ctx, c.agents.Developer,
		core.NewTask(core.TaskMicroPhasePlanning, state.Requirements, state.SessionID).
			WithContext(map[string]any{
				"approved_architecture": state.Artifact(artifactApprovedArchitecture),
				artifactUnifiedFeatures: state.Artifact(artifactUnifiedFeatures),
			}))
	if err != nil {
		return err
	}

	phases, err := parseMicroPhases(resp.Content)
	if err != nil {
		return err
	}
	state.ProposedMicroPhases = phases

	if err := c.store.Set(cache.KeyProjectMicroPhases, phases, cache.SetOptions{
		AgentType:    c.agents.Developer.Name(),
		SessionID:    state.SessionID,
		Dependencies: []string{cache.KeySystemArchitecturePlan},
	}); err != nil {
		return err
	}

	c.updatePlanFile(ctx, state, phases)

	c.recordDoc(ctx, state, core.PhaseDocumentation{
		PhaseName:       core.PhaseMicroPhasePlanning.String(),
		PhaseType:       "planning",
		Summary:         fmt.Sprintf("Project decomposed into %d micro-phases", len(phases)),
		Dependencies:    []string{cache.KeySystemArchitecturePlan},
		Artifacts:       []string{cache.KeyProjectMicroPhases},
		DurationSeconds: time.Since(start).Seconds(),
		Agent:           c.agents.Developer.Name(),
	})
	return nil
}

// updatePlanFile appends per-micro-phase implementation guides to the
// architecture plan file.
func (c *Coordinator) updatePlanFile(ctx context.Context, state *core.WorkflowState, phases []core.MicroPhase) {
	plan, err := c.docs.ArchitecturePlan(ctx, state.SessionID)
	if err != nil || plan == nil {
		return
	}
	plan.MicroPhasePlans = plan.MicroPhasePlans[:0]
	for _, phase := range phases {
		plan.MicroPhasePlans = append(plan.MicroPhasePlans, map[string]any{
			"id":                      phase.ID,
			"name":                    phase.Name,
			"description":             phase.Description,
			"files_to_generate":       phase.FilesToGenerate,
			"dependencies":            phase.Dependencies,
			"acceptance_criteria":     phase.AcceptanceCriteria,
			"implementation_approach": phase.ImplementationApproach,
		})
	}
	if err := c.docs.SaveArchitecturePlan(ctx, plan); err != nil {
		c.logger.Warn("failed to update architecture plan file", "error", err)
	}
}

// phaseMicroPhaseValidation has the manager agent validate the
// breakdown before development begins.
func (c *Coordinator) phaseMicroPhaseValidation(ctx context.Context, state *core.WorkflowState) error {
	if _, ok := c.store.GetString(keyMicroPhaseValidation, true); ok {
		c.logger.Info("using cached micro-phase validation")
		state.ApprovedMicroPhases = state.ProposedMicroPhases
		return nil
	}

	resp, err := c.executeAgent(ctx, c.agents.Manager,
		core.NewTask(core.TaskMicroPhaseValidation, state.Requirements, state.SessionID).
			WithContext(map[string]any{
				"approved_architecture": state.Artifact(artifactApprovedArchitecture),
				"proposed_micro_phases": state.ProposedMicroPhases,
			}))
	if err != nil {
		return err
	}
	if reviewRejected(resp.Content) {
		return core.ErrValidation("BREAKDOWN_REJECTED", "micro-phase breakdown rejected")
	}

	state.ApprovedMicroPhases = state.ProposedMicroPhases
	return c.store.Set(keyMicroPhaseValidation, resp.Content, cache.SetOptions{
		AgentType:    c.agents.Manager.Name(),
		SessionID:    state.SessionID,
		Dependencies: []string{cache.KeyProjectMicroPhases},
	})
}

// phaseIterativeDevelopment runs each approved micro-phase in
// dependency order.
func (c *Coordinator) phaseIterativeDevelopment(ctx context.Context, state *core.WorkflowState) error {
	ordered, err := core.SortMicroPhases(state.ApprovedMicroPhases)
	if err != nil {
		return err
	}
	for _, phase := range ordered {
		if err := c.executeMicroPhase(ctx, state, phase); err != nil {
			return fmt.Errorf("micro-phase %s: %w", phase.ID, err)
		}
	}
	return nil
}

// executeMicroPhase implements and validates one micro-phase, reusing
// the cached implementation and validation when both are present.
func (c *Coordinator) executeMicroPhase(ctx context.Context, state *core.WorkflowState, phase core.MicroPhase) error {
	logger := c.logger.WithPhase(phase.ID)
	start := time.Now()

	guide, err := c.docs.ImplementationGuide(ctx, state.SessionID, phase.ID)
	if err != nil {
		logger.Warn("implementation guide unavailable", "error", err)
	}

	var files map[string]string
	var report core.ValidationResult
	filesCached := c.store.GetJSON(cache.PhaseCodeKey(phase.ID), true, &files)
	reportCached := c.store.GetJSON(cache.PhaseValidationKey(phase.ID), true, &report)

	cached := filesCached && reportCached && len(files) > 0
	if !cached {
		implResp, err := c.executeAgent(ctx, c.agents.Developer,
			core.NewTask(core.TaskMicroPhaseImplementation, state.Requirements, state.SessionID).
				WithPhase(phase.ID, phase.Dependencies).
				WithContext(map[string]any{
					"micro_phase":          phase,
					"previous_phases":      state.CompletedPhases,
					"project_architecture": state.Artifact(artifactApprovedArchitecture),
					"implementation_guide": guide,
				}))
		if err != nil {
			return err
		}
		files = parseGeneratedFiles(implResp.Content, phase.Name)

		validationResp, err := c.executeAgent(ctx, c.agents.Validator,
			core.NewTask(core.TaskCodeValidation, "Validate micro-phase implementation", state.SessionID).
				WithPhase(phase.ID, phase.Dependencies).
				WithContext(map[string]any{
					"generated_files":     files,
					"micro_phase":         phase,
					"acceptance_criteria": phase.AcceptanceCriteria,
				}))
		if err != nil {
			return err
		}
		fileNames := make([]string, 0, len(files))
		for name := range files {
			fileNames = append(fileNames, name)
		}
		report = parseValidationReport(validationResp.Content, fileNames)

		if err := c.store.Set(cache.PhaseCodeKey(phase.ID), files, cache.SetOptions{
			AgentType:    c.agents.Developer.Name(),
			SessionID:    state.SessionID,
			FileCount:    len(files),
			Tags:         []string{"generated_code", "micro_phase", phase.ID},
			Dependencies: []string{cache.KeyProjectMicroPhases},
		}); err != nil {
			return err
		}
		validationStatus := "failed"
		if report.IsValid {
			validationStatus = "passed"
		}
		if err := c.store.Set(cache.PhaseValidationKey(phase.ID), report, cache.SetOptions{
			AgentType:        c.agents.Validator.Name(),
			SessionID:        state.SessionID,
			ValidationStatus: validationStatus,
			Tags:             []string{"validation", "micro_phase", phase.ID},
			Dependencies:     []string{cache.PhaseCodeKey(phase.ID)},
		}); err != nil {
			return err
		}
	} else {
		logger.Info("using cached implementation")
	}

	var commit *core.MicroPhaseCommit
	if c.repo != nil {
		commit, err = c.repo.ExecuteMicroPhaseWorkflow(ctx, state.SessionID, phase, files)
		if err != nil {
			return err
		}
	}

	result := map[string]any{
		"validation": report,
		"file_count": len(files),
		"cached":     cached,
	}
	if commit != nil {
		result["branch"] = commit.Branch
		result["commit_id"] = commit.CommitID
		result["pull_request"] = commit.PullRequest
	}
	state.PhaseResults[phase.ID] = result
	state.CompletedPhases = append(state.CompletedPhases, phase.ID)

	if !cached {
		fileNames := make(map[string]string, len(files))
		for name := range files {
			fileNames[name] = fmt.Sprintf("%d bytes", len(files[name]))
		}
		c.recordDoc(ctx, state, core.PhaseDocumentation{
			PhaseName:       phase.Name,
			PhaseType:       phase.PhaseType,
			Summary:         phase.Description,
			Dependencies:    phase.Dependencies,
			GeneratedFiles:  fileNames,
			Artifacts:       []string{cache.PhaseCodeKey(phase.ID), cache.PhaseValidationKey(phase.ID)},
			DurationSeconds: time.Since(start).Seconds(),
			Agent:           c.agents.Developer.Name(),
		})
	}
	logger.Info("micro-phase completed", "cached", cached)
	return nil
}

// phaseFinalIntegration assembles the completed phases and finalizes
// the repository.
func (c *Coordinator) phaseFinalIntegration(ctx context.Context, state *core.WorkflowState) error {
	if cached, ok := c.store.GetString(cache.KeyFinalIntegrationSummary, true); ok {
		c.logger.Info("using cached integration summary")
		state.SetArtifact(artifactIntegrationSummary, cached)
		return nil
	}
	start := time.Now()

	resp, err := c.executeAgent(ctx, c.agents.Integrator,
		core.NewTask(core.TaskFinalAssembly, "Integrate all micro-phases and prepare for deployment", state.SessionID).
			WithContext(map[string]any{
				"completed_phases": state.CompletedPhases,
				"phase_results":    state.PhaseResults,
			}))
	if err != nil {
		return err
	}

	if c.repo != nil {
		final, err := c.repo.FinalizeIntegration(ctx, state.SessionID)
		if err != nil {
			return err
		}
		state.RepositoryURL = final.RepositoryURL
		state.IntegrationResults["repository_url"] = final.RepositoryURL
		state.IntegrationResults["merged_summary"] = final.MergedSummary
	}

	state.SetArtifact(artifactIntegrationSummary, resp.Content)
	state.IntegrationResults["details"] = resp.Content

	deps := make([]string, 0, len(state.CompletedPhases))
	for _, phaseID := range state.CompletedPhases {
		deps = append(deps, cache.PhaseValidationKey(phaseID))
	}
	if err := c.store.Set(cache.KeyFinalIntegrationSummary, resp.Content, cache.SetOptions{
		AgentType:    c.agents.Integrator.Name(),
		SessionID:    state.SessionID,
		Dependencies: deps,
	}); err != nil {
		return err
	}

	c.recordDoc(ctx, state, core.PhaseDocumentation{
		PhaseName:       core.PhaseFinalIntegration.String(),
		PhaseType:       "integration",
		Summary:         "Completed micro-phases integrated into the final project",
		Dependencies:    deps,
		Artifacts:       []string{cache.KeyFinalIntegrationSummary},
		DurationSeconds: time.Since(start).Seconds(),
		Agent:           c.agents.Integrator.Name(),
	})
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
