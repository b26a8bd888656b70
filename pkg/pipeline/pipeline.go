// Package pipeline composes named steps into a runnable chain with
// per-step schema contracts, optional fan-out/fan-in phases, and
// passthrough of accumulated context fields.
package pipeline

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zen-systems/repoflow/pkg/notify"
	"github.com/zen-systems/repoflow/pkg/schema"
)

// Values is the JSON-serializable record flowing between steps.
type Values map[string]any

// Step is a named unit of work with declared input and output
// contracts. Steps hold no state of their own; everything lives in the
// run context and the values they receive and return.
type Step struct {
	ID      string
	Input   *schema.Schema
	Output  *schema.Schema
	Execute func(ctx context.Context, rc *RunContext, input Values) (Values, error)
}

// ContractDefectError reports a step whose output failed its own
// declared contract, or a composition whose contracts cannot line up.
// This is a defect in the pipeline definition, never a transient
// condition, and must not be retried.
type ContractDefectError struct {
	StepID string
	Err    error
}

func (e *ContractDefectError) Error() string {
	return fmt.Sprintf("contract defect in step %s: %v", e.StepID, e.Err)
}

func (e *ContractDefectError) Unwrap() error {
	return e.Err
}

// phase is one stage of the composition. The kind is fixed by the
// builder call that created it: Then phases merge their single step's
// output flat, Parallel phases always join keyed by step ID, even with
// one member.
type phase struct {
	steps    []*Step
	parallel bool
}

// Builder accumulates a pipeline composition. The step graph is fixed
// at Commit; there is no dynamic reconfiguration at runtime, so
// replaying the same definition always visits the same steps in the
// same order.
type Builder struct {
	name      string
	input     *schema.Schema
	output    *schema.Schema
	phases    []*phase
	committed bool
	err       error
}

// New starts a pipeline composition with the overall input and output
// contracts.
func New(name string, input, output *schema.Schema) *Builder {
	b := &Builder{name: name, input: input, output: output}
	if name == "" {
		b.err = fmt.Errorf("pipeline name is required")
	}
	if input == nil || output == nil {
		b.err = fmt.Errorf("pipeline %s: input and output schemas are required", name)
	}
	return b
}

// Then appends a sequential step.
func (b *Builder) Then(step *Step) *Builder {
	if b.err != nil {
		return b
	}
	if b.committed {
		b.err = fmt.Errorf("pipeline %s: composition is frozen after Commit", b.name)
		return b
	}
	b.phases = append(b.phases, &phase{steps: []*Step{step}})
	return b
}

// Parallel appends a fan-out phase. Every member receives the same
// preceding values; the phase completes only when all members complete,
// and their outputs are joined into one record keyed by step ID.
func (b *Builder) Parallel(steps ...*Step) *Builder {
	if b.err != nil {
		return b
	}
	if b.committed {
		b.err = fmt.Errorf("pipeline %s: composition is frozen after Commit", b.name)
		return b
	}
	if len(steps) == 0 {
		b.err = fmt.Errorf("pipeline %s: parallel phase needs at least one step", b.name)
		return b
	}
	b.phases = append(b.phases, &phase{steps: steps, parallel: true})
	return b
}

// Commit freezes the composition, verifies every step contract lines
// up with what the preceding steps provide, and returns the runnable
// pipeline. A contract mismatch is reported here as a defect rather
// than suppressed until runtime.
func (b *Builder) Commit() (*Pipeline, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.phases) == 0 {
		return nil, fmt.Errorf("pipeline %s: no steps composed", b.name)
	}
	b.committed = true

	if err := b.checkContracts(); err != nil {
		return nil, err
	}

	return &Pipeline{name: b.name, input: b.input, output: b.output, phases: b.phases}, nil
}

// checkContracts walks the composition and verifies, structurally, that
// each step's required input fields are provided by the pipeline input
// or some earlier step's output. Field passthrough is cumulative, so
// later steps may consume fields produced anywhere upstream.
func (b *Builder) checkContracts() error {
	available := map[string]bool{}
	for _, name := range b.input.Properties() {
		available[name] = true
	}

	seen := map[string]bool{}
	for _, ph := range b.phases {
		for _, step := range ph.steps {
			if step == nil {
				return fmt.Errorf("pipeline %s: nil step", b.name)
			}
			if step.ID == "" || step.Input == nil || step.Output == nil || step.Execute == nil {
				return &ContractDefectError{StepID: step.ID, Err: fmt.Errorf("step is missing id, contracts, or execute function")}
			}
			if seen[step.ID] {
				return &ContractDefectError{StepID: step.ID, Err: fmt.Errorf("duplicate step id")}
			}
			seen[step.ID] = true

			if missing := missingFields(step.Input.Required(), available); len(missing) > 0 {
				return &ContractDefectError{
					StepID: step.ID,
					Err:    fmt.Errorf("required input fields %v are not produced upstream", missing),
				}
			}
		}

		if ph.parallel {
			for _, step := range ph.steps {
				available[step.ID] = true
			}
		} else {
			for _, name := range ph.steps[0].Output.Properties() {
				available[name] = true
			}
		}
	}

	if missing := missingFields(b.output.Required(), available); len(missing) > 0 {
		return fmt.Errorf("pipeline %s: output fields %v are not produced by any step", b.name, missing)
	}

	return nil
}

func missingFields(required []string, available map[string]bool) []string {
	var missing []string
	for _, name := range required {
		if !available[name] {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// Pipeline is a frozen, runnable composition.
type Pipeline struct {
	name   string
	input  *schema.Schema
	output *schema.Schema
	phases []*phase
}

// Name returns the pipeline identifier.
func (p *Pipeline) Name() string {
	return p.name
}

// Steps returns the step IDs in execution order, parallel members in
// declaration order.
func (p *Pipeline) Steps() []string {
	var ids []string
	for _, ph := range p.phases {
		for _, step := range ph.steps {
			ids = append(ids, step.ID)
		}
	}
	return ids
}

// Run executes the composition against the given run context.
// Sequential steps observe strict happens-before ordering; members of
// a parallel phase run concurrently with no ordering among themselves.
// The accumulated values record is validated against the pipeline
// output contract before being returned.
func (p *Pipeline) Run(ctx context.Context, rc *RunContext, input Values) (Values, error) {
	if rc == nil {
		return nil, fmt.Errorf("pipeline %s: run context is required", p.name)
	}
	if err := p.input.Validate(map[string]any(input)); err != nil {
		return nil, fmt.Errorf("pipeline %s: input rejected: %w", p.name, err)
	}

	acc := make(Values, len(input))
	for k, v := range input {
		acc[k] = v
	}

	for _, ph := range p.phases {
		var err error
		if ph.parallel {
			acc, err = p.runParallel(ctx, rc, ph, acc)
		} else {
			acc, err = p.runSequential(ctx, rc, ph.steps[0], acc)
		}
		if err != nil {
			return acc, err
		}
	}

	if err := p.output.Validate(map[string]any(acc)); err != nil {
		return acc, &ContractDefectError{StepID: p.name, Err: err}
	}
	return acc, nil
}

func (p *Pipeline) runSequential(ctx context.Context, rc *RunContext, step *Step, acc Values) (Values, error) {
	out, err := p.runStep(ctx, rc, step, acc)
	if err != nil {
		return acc, err
	}
	return mergeValues(acc, out), nil
}

// runParallel fans the accumulated values out to every member step and
// joins their outputs into the accumulated record keyed by step ID.
// There is no partial fan-in: one member's failure fails the phase.
func (p *Pipeline) runParallel(ctx context.Context, rc *RunContext, ph *phase, acc Values) (Values, error) {
	outputs := make([]Values, len(ph.steps))
	g, gctx := errgroup.WithContext(ctx)

	for i, step := range ph.steps {
		g.Go(func() error {
			out, err := p.runStep(gctx, rc, step, acc)
			if err != nil {
				return err
			}
			outputs[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return acc, err
	}

	joined := make(Values, len(acc)+len(ph.steps))
	for k, v := range acc {
		joined[k] = v
	}
	for i, step := range ph.steps {
		joined[step.ID] = map[string]any(outputs[i])
	}
	return joined, nil
}

func (p *Pipeline) runStep(ctx context.Context, rc *RunContext, step *Step, acc Values) (Values, error) {
	rc.Logger.Info("step starting", zap.String("run", rc.RunID), zap.String("step", step.ID))
	rc.recordTransition(step.ID, notify.StatusStarting, nil)
	rc.notifyStep(step.ID, step.ID, notify.StatusStarting, notify.LevelInfo, "")

	out, err := step.Execute(ctx, rc, acc)
	if err != nil {
		rc.Logger.Warn("step failed", zap.String("run", rc.RunID), zap.String("step", step.ID), zap.Error(err))
		rc.recordTransition(step.ID, notify.StatusFailed, err)
		rc.notifyStep(step.ID, step.ID, notify.StatusFailed, notify.LevelError, err.Error())
		return nil, fmt.Errorf("step %s: %w", step.ID, err)
	}

	if verr := step.Output.Validate(map[string]any(out)); verr != nil {
		defect := &ContractDefectError{StepID: step.ID, Err: verr}
		rc.recordTransition(step.ID, notify.StatusFailed, defect)
		rc.notifyStep(step.ID, step.ID, notify.StatusFailed, notify.LevelError, defect.Error())
		return nil, defect
	}

	rc.Logger.Info("step completed", zap.String("run", rc.RunID), zap.String("step", step.ID))
	rc.recordTransition(step.ID, notify.StatusCompleted, nil)
	rc.notifyStep(step.ID, step.ID, notify.StatusCompleted, notify.LevelInfo, "")
	return out, nil
}

func mergeValues(acc, out Values) Values {
	merged := make(Values, len(acc)+len(out))
	for k, v := range acc {
		merged[k] = v
	}
	for k, v := range out {
		merged[k] = v
	}
	return merged
}
