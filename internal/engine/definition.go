package engine

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/altowierigge/maestro/internal/core"
)

// InputSpec declares one input of a phase. Source is one of the
// reserved strings "user_input", "workflow_state",
// "workflow_state.<key>", or empty when a literal Value is given.
type InputSpec struct {
	Name   string `yaml:"name"`
	Source string `yaml:"source,omitempty"`
	Parser string `yaml:"parser,omitempty"`
	Value  *string `yaml:"value,omitempty"`
}

// OutputSpec declares one output of a phase. The destination defaults
// to the workflow state under the output name.
type OutputSpec struct {
	Name        string `yaml:"name"`
	Destination string `yaml:"destination,omitempty"`
	Parser      string `yaml:"parser,omitempty"`
}

// ValidationRules are the declarative per-phase output checks. Rules
// are optional and combinable; they are evaluated in the order declared
// here, and required_elements and required_sections are independent
// rules even for overlapping inputs.
type ValidationRules struct {
	MinContentLength   int      `yaml:"min_content_length,omitempty"`
	RequiredElements   []string `yaml:"required_elements,omitempty"`
	RequiredSections   []string `yaml:"required_sections,omitempty"`
	RequiredFiles      []string `yaml:"required_files,omitempty"`
	RequiredFeatures   []string `yaml:"required_features,omitempty"`
	RequiredComponents []string `yaml:"required_components,omitempty"`
	RequiredEndpoints  []string `yaml:"required_endpoints,omitempty"`
	RequiredOperations []string `yaml:"required_operations,omitempty"`
	CodeQualityCheck   bool     `yaml:"code_quality_check,omitempty"`
	IntegrationTest    bool     `yaml:"integration_test,omitempty"`
}

// Empty reports whether no rule is declared.
func (r ValidationRules) Empty() bool {
	return r.MinContentLength == 0 &&
		len(r.RequiredElements) == 0 &&
		len(r.RequiredSections) == 0 &&
		len(r.RequiredFiles) == 0 &&
		len(r.RequiredFeatures) == 0 &&
		len(r.RequiredComponents) == 0 &&
		len(r.RequiredEndpoints) == 0 &&
		len(r.RequiredOperations) == 0 &&
		!r.CodeQualityCheck &&
		!r.IntegrationTest
}

// RetryConfig overrides the agent retry policy for one phase.
type RetryConfig struct {
	MaxAttempts int     `yaml:"max_attempts,omitempty"`
	BaseDelay   float64 `yaml:"base_delay,omitempty"` // seconds
	Strategy    string  `yaml:"strategy,omitempty"`
}

// PhaseDefinition is one node of the declarative workflow DAG.
type PhaseDefinition struct {
	Name          string          `yaml:"name"`
	Description   string          `yaml:"description,omitempty"`
	Agent         string          `yaml:"agent"`
	TaskType      string          `yaml:"task_type"`
	Parallel      bool            `yaml:"parallel,omitempty"`
	ParallelGroup string          `yaml:"parallel_group,omitempty"`
	Required      *bool           `yaml:"required,omitempty"`
	Enabled       *bool           `yaml:"enabled,omitempty"`
	Condition     string          `yaml:"condition,omitempty"`
	TimeoutSec    int             `yaml:"timeout,omitempty"`
	DependsOn     []string        `yaml:"depends_on,omitempty"`
	Inputs        []InputSpec     `yaml:"inputs,omitempty"`
	Outputs       []OutputSpec    `yaml:"outputs,omitempty"`
	Validation    ValidationRules `yaml:"validation,omitempty"`
	RetryConfig   RetryConfig     `yaml:"retry_config,omitempty"`
}

// IsRequired returns the required flag, defaulting to true.
func (p *PhaseDefinition) IsRequired() bool {
	return p.Required == nil || *p.Required
}

// IsEnabled returns the enabled flag, defaulting to true.
func (p *PhaseDefinition) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// Timeout returns the phase timeout, defaulting to five minutes.
func (p *PhaseDefinition) Timeout() time.Duration {
	if p.TimeoutSec <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(p.TimeoutSec) * time.Second
}

// AgentDescriptor declares one agent used by the workflow.
type AgentDescriptor struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model,omitempty"`
	Role        string  `yaml:"role,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty"`
	MaxTokens   int     `yaml:"max_tokens,omitempty"`
}

// Settings holds workflow-level execution settings.
type Settings struct {
	EnableVoting     bool `yaml:"enable_voting"`
	RequireConsensus bool `yaml:"require_consensus"`
	AllowTieBreaking bool `yaml:"allow_tie_breaking"`
	MaxParallel      int  `yaml:"max_parallel,omitempty"`
}

// WorkflowDefinition is the complete declarative workflow loaded at
// engine startup. The phase graph is read-only during execution.
type WorkflowDefinition struct {
	Name          string                     `yaml:"name"`
	Version       string                     `yaml:"version"`
	Description   string                     `yaml:"description,omitempty"`
	Settings      Settings                   `yaml:"settings,omitempty"`
	Agents        map[string]AgentDescriptor `yaml:"agents,omitempty"`
	Phases        []PhaseDefinition          `yaml:"phases"`
	Conditions    map[string]map[string]any  `yaml:"conditions,omitempty"`
	ErrorHandling map[string]any             `yaml:"error_handling,omitempty"`
	Output        map[string]any             `yaml:"output,omitempty"`
	Monitoring    map[string]any             `yaml:"monitoring,omitempty"`
}

// LoadDefinition reads and validates a workflow definition file.
// Every defect is a configuration error detected before any phase runs.
func LoadDefinition(path string) (*WorkflowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.ErrConfiguration(core.CodeInvalidConfig,
			fmt.Sprintf("reading workflow file %s", path)).WithCause(err)
	}
	return ParseDefinition(data)
}

// ParseDefinition parses and validates a workflow definition document.
func ParseDefinition(data []byte) (*WorkflowDefinition, error) {
	var def WorkflowDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, core.ErrConfiguration(core.CodeInvalidConfig, "workflow file is not valid YAML").WithCause(err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks the structural invariants of the definition.
func (d *WorkflowDefinition) Validate() error {
	if d.Name == "" {
		return core.ErrConfiguration(core.CodeInvalidConfig, "workflow has no name")
	}
	if len(d.Phases) == 0 {
		return core.ErrConfiguration(core.CodeInvalidConfig, "workflow has no phases")
	}

	byName := make(map[string]*PhaseDefinition, len(d.Phases))
	for i := range d.Phases {
		phase := &d.Phases[i]
		if phase.Name == "" {
			return core.ErrConfiguration(core.CodeInvalidConfig, "phase has no name")
		}
		if _, dup := byName[phase.Name]; dup {
			return core.ErrConfiguration(core.CodeInvalidConfig,
				fmt.Sprintf("phase %q declared twice", phase.Name))
		}
		byName[phase.Name] = phase
	}

	for i := range d.Phases {
		phase := &d.Phases[i]

		if !core.ValidTaskType(phase.TaskType) {
			return core.ErrConfiguration(core.CodeUnknownTaskType,
				fmt.Sprintf("phase %q has unknown task type %q", phase.Name, phase.TaskType))
		}
		if phase.Agent == "" {
			return core.ErrConfiguration(core.CodeUnknownAgent,
				fmt.Sprintf("phase %q names no agent", phase.Name))
		}
		if len(d.Agents) > 0 {
			if _, ok := d.Agents[phase.Agent]; !ok {
				return core.ErrConfiguration(core.CodeUnknownAgent,
					fmt.Sprintf("phase %q uses undeclared agent %q", phase.Name, phase.Agent))
			}
		}

		for _, dep := range phase.DependsOn {
			if _, ok := byName[dep]; !ok {
				return core.ErrConfiguration(core.CodeUnresolvedDep,
					fmt.Sprintf("phase %q depends on unknown phase %q", phase.Name, dep))
			}
		}

		for _, input := range phase.Inputs {
			if input.Parser != "" && !KnownParser(input.Parser) {
				return core.ErrConfiguration(core.CodeUnknownParser,
					fmt.Sprintf("phase %q input %q names unknown parser %q", phase.Name, input.Name, input.Parser))
			}
		}
		for _, output := range phase.Outputs {
			if output.Parser != "" && !KnownParser(output.Parser) {
				return core.ErrConfiguration(core.CodeUnknownParser,
					fmt.Sprintf("phase %q output %q names unknown parser %q", phase.Name, output.Name, output.Parser))
			}
		}

		if phase.Condition != "" {
			if _, err := ParseCondition(phase.Condition); err != nil {
				return err
			}
		}
	}

	if err := d.checkCycles(byName); err != nil {
		return err
	}
	return d.checkParallelGroups(byName)
}

// checkCycles rejects dependency cycles using Kahn's algorithm.
func (d *WorkflowDefinition) checkCycles(byName map[string]*PhaseDefinition) error {
	inDegree := make(map[string]int, len(byName))
	dependents := make(map[string][]string)
	for name := range byName {
		inDegree[name] = 0
	}
	for name, phase := range byName {
		for _, dep := range phase.DependsOn {
			inDegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	queue := make([]string, 0, len(byName))
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	resolved := 0
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		resolved++
		for _, dep := range dependents[current] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	if resolved != len(byName) {
		return core.ErrConfiguration(core.CodePhaseCycle, "phase dependency graph contains a cycle")
	}
	return nil
}

// checkParallelGroups rejects groups whose members depend on each other,
// directly or transitively. Grouping phases that share a dependency
// chain would serialize the group and break the visibility contract.
func (d *WorkflowDefinition) checkParallelGroups(byName map[string]*PhaseDefinition) error {
	groups := make(map[string][]string)
	for i := range d.Phases {
		phase := &d.Phases[i]
		if phase.Parallel && phase.ParallelGroup != "" {
			groups[phase.ParallelGroup] = append(groups[phase.ParallelGroup], phase.Name)
		}
	}

	for tag, members := range groups {
		memberSet := make(map[string]bool, len(members))
		for _, name := range members {
			memberSet[name] = true
		}
		for _, name := range members {
			for dep := range transitiveDeps(name, byName) {
				if memberSet[dep] {
					return core.ErrConfiguration(core.CodeInvalidGroup,
						fmt.Sprintf("parallel group %q contains dependent phases %q and %q", tag, name, dep))
				}
			}
		}
	}
	return nil
}

// transitiveDeps returns the full dependency closure of a phase.
func transitiveDeps(name string, byName map[string]*PhaseDefinition) map[string]bool {
	seen := make(map[string]bool)
	queue := append([]string(nil), byName[name].DependsOn...)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if seen[current] {
			continue
		}
		seen[current] = true
		if phase, ok := byName[current]; ok {
			queue = append(queue, phase.DependsOn...)
		}
	}
	return seen
}

// Phase returns a phase definition by name.
func (d *WorkflowDefinition) Phase(name string) (*PhaseDefinition, bool) {
	for i := range d.Phases {
		if d.Phases[i].Name == name {
			return &d.Phases[i], true
		}
	}
	return nil, false
}
