// Package procscan implements the process scanner (C4): it enumerates
// agent processes on the host via ps/lsof and classifies each as
// raw-active using the sustained-work heuristic (§4.4, §9).
//
// Grounded in original_source/dashboard.py's ProcessScanner: the same
// three `ps`/`lsof` subprocess invocations (process table, cwd lookup,
// parent->child map) batched rather than per-PID. No example repo
// vendors a process-enumeration library (no gopsutil, no go-ps), so this
// shells out exactly as the original does (see DESIGN.md).
package procscan

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// AgentBinary is the command name (as reported by `ps -o comm`) of the
// supervised coding-agent binary this scanner looks for.
const AgentBinary = "claude"

// wakeInhibitorBinary is the child process name whose presence signals
// sustained work even at near-zero CPU (§9's macOS-leaning heuristic).
const wakeInhibitorBinary = "caffeinate"

// cpuActiveThreshold is the minimum %CPU that alone marks a process as
// raw-active (§4.4: "CPU utilization exceeds a small positive threshold").
const cpuActiveThreshold = 1.0

// Process is one observed agent process.
type Process struct {
	PID       int
	CWD       string
	CPUPct    float64
	RawActive bool
}

// Scanner enumerates Process instances on demand.
type Scanner struct {
	runCommand func(ctx context.Context, name string, args ...string) (string, error)
}

// New returns a Scanner that shells out to the real ps/lsof binaries.
func New() *Scanner {
	return &Scanner{runCommand: runCommand}
}

// Scan enumerates every live AgentBinary process, resolves its working
// directory, and classifies it as raw-active.
func (s *Scanner) Scan(ctx context.Context) []Process {
	psOut, err := s.runCommand(ctx, "ps", "-eo", "pid,pcpu,comm")
	if err != nil {
		return nil
	}
	pids := parsePS(psOut)
	if len(pids) == 0 {
		return nil
	}

	cwdMap := s.lookupCWDs(ctx, pids)
	childMap := s.lookupChildren(ctx)

	procs := make([]Process, 0, len(pids))
	for pid, cpu := range pids {
		children := childMap[pid]
		hasInhibitor := false
		for _, c := range children {
			if c == wakeInhibitorBinary {
				hasInhibitor = true
				break
			}
		}
		procs = append(procs, Process{
			PID:       pid,
			CWD:       cwdMap[pid],
			CPUPct:    cpu,
			RawActive: cpu > cpuActiveThreshold || hasInhibitor,
		})
	}
	return procs
}

func (s *Scanner) lookupCWDs(ctx context.Context, pids map[int]float64) map[int]string {
	if len(pids) == 0 {
		return nil
	}
	ids := make([]string, 0, len(pids))
	for pid := range pids {
		ids = append(ids, strconv.Itoa(pid))
	}
	out, err := s.runCommand(ctx, "lsof", "-d", "cwd", "-a", "-p", strings.Join(ids, ","), "-Fn")
	if err != nil {
		return nil
	}
	return parseLsofCWD(out)
}

func (s *Scanner) lookupChildren(ctx context.Context) map[int][]string {
	out, err := s.runCommand(ctx, "ps", "-eo", "pid,ppid,comm")
	if err != nil {
		return nil
	}
	return parseChildren(out)
}

func parsePS(out string) map[int]float64 {
	pids := map[int]float64{}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	for _, line := range lines[1:] { // skip header
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		if fields[len(fields)-1] != AgentBinary {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		cpu, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			continue
		}
		pids[pid] = cpu
	}
	return pids
}

func parseLsofCWD(out string) map[int]string {
	cwds := map[int]string{}
	var current int
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "p") {
			pid, err := strconv.Atoi(line[1:])
			if err == nil {
				current = pid
			}
		} else if strings.HasPrefix(line, "n") && current != 0 {
			cwds[current] = line[1:]
		}
	}
	return cwds
}

func parseChildren(out string) map[int][]string {
	children := map[int][]string{}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		ppid, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		children[ppid] = append(children[ppid], fields[2])
	}
	return children
}

func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}
