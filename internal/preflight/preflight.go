// Package preflight implements the shared step-runner the open (C10) and
// close (C11) commands use to report a sequence of named, independently
// pass/warn/fail-able checks.
//
// This is grounded in deeklead-horde/internal/doctor's Check/Fix pattern
// (a Status-carrying result, a Fix method invoked on failure for
// self-healing checks) but only the leaf checks of that package were
// part of the retrieved pack — the core Doctor/Check/CheckResult types
// were not retrieved, so they are reconstructed here from their call
// sites, trimmed to what a strictly sequential, abort-on-fail preflight
// needs rather than horde's registry-of-independent-checks model.
package preflight

import (
	"context"
	"fmt"
	"io"

	"github.com/mhofwell/claude-dashboard/internal/style"
)

// Status mirrors doctor's three-valued StatusOK/StatusWarning/StatusError.
type Status int

const (
	OK Status = iota
	Warn
	Fail
)

// Result is one step's outcome: a detail line for the step-status
// rendering and, on Warn/Fail, an optional remediation hint.
type Result struct {
	Detail string
	Hint   string
	Status Status
}

// Step is one named, independently reportable action. Abort marks steps
// whose Fail result must stop the whole sequence (spec's "any FAIL step
// aborts"); close's steps are best-effort and never set Abort.
type Step struct {
	Name  string
	Abort bool
	Run   func(ctx context.Context) Result
}

// Runner executes a Step sequence, printing a style.Step line per step as
// it completes.
type Runner struct {
	Out io.Writer
}

// NewRunner returns a Runner that writes to out.
func NewRunner(out io.Writer) *Runner {
	return &Runner{Out: out}
}

// Run executes steps in order. It returns the first Abort-triggering
// Fail as an error; every other step runs to completion regardless of
// its status.
func (r *Runner) Run(ctx context.Context, steps []Step) error {
	for _, step := range steps {
		res := step.Run(ctx)

		switch res.Status {
		case OK:
			fmt.Fprintln(r.Out, style.Step(style.StepOK, step.Name, res.Detail))
		case Warn:
			fmt.Fprintln(r.Out, style.Step(style.StepWarn, step.Name, res.Detail))
		case Fail:
			fmt.Fprintln(r.Out, style.Step(style.StepFail, step.Name, res.Detail))
		}
		if res.Hint != "" && res.Status != OK {
			fmt.Fprintln(r.Out, style.Hint(res.Hint))
		}

		if res.Status == Fail && step.Abort {
			return fmt.Errorf("%s: %s", step.Name, res.Detail)
		}
	}
	return nil
}
