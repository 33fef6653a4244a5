// Package watcher implements the process watcher (C5): a sliding-window
// activity classifier that debounces noisy raw-active CPU samples from
// the process scanner into stable lifecycle transitions (§4.4, §8
// "windowed-active stability").
//
// The sliding window is original to this spec (§4.4's ADDED notes); it is
// implemented as a plain ring buffer keyed by PID, matching the rest of
// this system's "parallel maps, never a pointer graph" style (§9).
package watcher

import (
	"context"

	"github.com/mhofwell/claude-dashboard/internal/procscan"
	"github.com/mhofwell/claude-dashboard/internal/slugs"
)

// WindowSize is the number of raw-active samples retained per PID: 40
// samples at a 250ms tick period is a 10s wall-clock window.
const WindowSize = 40

// Threshold is the minimum density of true samples in the window
// required for a PID to be considered windowed-active.
const Threshold = 0.15

// TransitionKind is the lifecycle event kind emitted by a tick.
type TransitionKind string

const (
	InstanceCreated TransitionKind = "instance:created"
	InstanceActive  TransitionKind = "instance:active"
	InstanceIdle    TransitionKind = "instance:idle"
	InstanceClosed  TransitionKind = "instance:closed"
)

// Transition is one emitted lifecycle event for a PID.
type Transition struct {
	Kind    TransitionKind
	PID     int
	Project string // on-disk project directory derived via procscan.ProjectDir
	Slug    string // resolved via slugs.Resolver; empty if untracked
}

// ProjectSummary is the per-slug {active, count} pair computed over
// slugs mentioned in a tick's transitions.
type ProjectSummary struct {
	Active bool
	Count  int
}

// Tick is the full output of one watcher tick. A tick that produces no
// transitions has Transitions == nil and ProjectSummary and Facility at
// their zero values — the
// daemon should treat such a tick as "nothing happened" (§4.4).
type Tick struct {
	Transitions    []Transition
	ProjectSummary map[string]ProjectSummary
	Facility       FacilitySummary
}

// FacilitySummary is the facility-wide {agent-count, active-count,
// active-projects[]} computed over every currently-known PID.
type FacilitySummary struct {
	AgentCount     int
	ActiveCount    int
	ActiveProjects []string
}

type pidState struct {
	ring         [WindowSize]bool
	filled       int // samples written so far, caps at WindowSize
	next         int // ring write cursor
	lastReported bool
	project      string
	slug         string
}

func (p *pidState) push(raw bool) {
	p.ring[p.next] = raw
	p.next = (p.next + 1) % WindowSize
	if p.filled < WindowSize {
		p.filled++
	}
}

func (p *pidState) density() float64 {
	if p.filled == 0 {
		return 0
	}
	count := 0
	for i := 0; i < p.filled; i++ {
		if p.ring[i] {
			count++
		}
	}
	return float64(count) / float64(p.filled)
}

func (p *pidState) windowedActive() bool {
	return p.density() >= Threshold
}

// Scanner is the subset of procscan.Scanner's API the watcher depends
// on, so tests can substitute a fixed sequence of scans.
type Scanner interface {
	Scan(ctx context.Context) []procscan.Process
}

// Watcher maintains per-PID sliding windows across repeated ticks.
type Watcher struct {
	scanner  Scanner
	resolver *slugs.Resolver
	orgRoot  string

	states map[int]*pidState
}

// New returns a Watcher that scans via scanner and resolves project
// slugs against orgRoot using resolver.
func New(scanner Scanner, resolver *slugs.Resolver, orgRoot string) *Watcher {
	return &Watcher{
		scanner:  scanner,
		resolver: resolver,
		orgRoot:  orgRoot,
		states:   map[int]*pidState{},
	}
}

// Tick performs one sliding-window tick: it builds the fresh PID set,
// pushes one sample per live PID, deletes window state for vanished
// PIDs, and emits transitions comparing each PID's freshly computed
// windowed-active bit against its stored "last reported" bit (§4.4).
func (w *Watcher) Tick(ctx context.Context) Tick {
	procs := w.scanner.Scan(ctx)

	fresh := make(map[int]procscan.Process, len(procs))
	for _, p := range procs {
		fresh[p.PID] = p
	}

	var transitions []Transition

	for pid, proc := range fresh {
		st, existed := w.states[pid]
		if !existed {
			projectDir := procscan.ProjectDir(proc.CWD, w.orgRoot)
			slug := ""
			if projectDir != "" {
				slug = w.resolver.Resolve(projectDir)
			}
			st = &pidState{project: projectDir, slug: slug}
			w.states[pid] = st
			st.push(proc.RawActive)

			transitions = append(transitions, Transition{Kind: InstanceCreated, PID: pid, Project: st.project, Slug: st.slug})
			if st.windowedActive() {
				st.lastReported = true
				transitions = append(transitions, Transition{Kind: InstanceActive, PID: pid, Project: st.project, Slug: st.slug})
			}
			continue
		}

		st.push(proc.RawActive)
		active := st.windowedActive()
		if active != st.lastReported {
			st.lastReported = active
			kind := InstanceIdle
			if active {
				kind = InstanceActive
			}
			transitions = append(transitions, Transition{Kind: kind, PID: pid, Project: st.project, Slug: st.slug})
		}
	}

	for pid, st := range w.states {
		if _, stillLive := fresh[pid]; !stillLive {
			transitions = append(transitions, Transition{Kind: InstanceClosed, PID: pid, Project: st.project, Slug: st.slug})
			delete(w.states, pid)
		}
	}

	if len(transitions) == 0 {
		return Tick{}
	}

	return Tick{
		Transitions:    transitions,
		ProjectSummary: w.projectSummary(transitions),
		Facility:       w.facilitySummary(),
	}
}

func (w *Watcher) projectSummary(transitions []Transition) map[string]ProjectSummary {
	slugsSeen := map[string]bool{}
	for _, t := range transitions {
		if t.Slug != "" {
			slugsSeen[t.Slug] = true
		}
	}
	out := map[string]ProjectSummary{}
	for slug := range slugsSeen {
		active, count := 0, 0
		for _, st := range w.states {
			if st.slug != slug {
				continue
			}
			count++
			if st.windowedActive() {
				active++
			}
		}
		out[slug] = ProjectSummary{Active: active > 0, Count: count}
	}
	return out
}

func (w *Watcher) facilitySummary() FacilitySummary {
	activeSlugs := map[string]bool{}
	activeCount := 0
	for _, st := range w.states {
		if st.windowedActive() {
			activeCount++
			if st.slug != "" {
				activeSlugs[st.slug] = true
			}
		}
	}
	projects := make([]string, 0, len(activeSlugs))
	for s := range activeSlugs {
		projects = append(projects, s)
	}
	return FacilitySummary{
		AgentCount:     len(w.states),
		ActiveCount:    activeCount,
		ActiveProjects: projects,
	}
}

// AnyWindowedActive reports whether any currently-tracked PID is
// windowed-active, used by the daemon's auto-close idle check without a
// fresh process scan (§4.8: "uses the in-memory window state").
func (w *Watcher) AnyWindowedActive() bool {
	for _, st := range w.states {
		if st.windowedActive() {
			return true
		}
	}
	return false
}
