// Package lock enforces the daemon's single-instance invariant (§4.8).
// It upgrades the teacher-adjacent grovetools-core pidfile check (plain
// PID-file read-then-write) to flock-backed guarding, the same fix
// deeklead-horde's daemon applies to close the TOCTOU race where two
// processes racing to read an absent/stale PID file can both believe
// they are the first instance.
package lock

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
)

// Instance holds the acquired flock and PID-file path for the lifetime
// of the daemon process.
type Instance struct {
	pidPath  string
	fileLock *flock.Flock
}

// Acquire acquires the exclusive lock backing pidPath and writes the
// current PID into it. If another live process already holds the lock
// (or owns the PID recorded in a stale file), it returns a fatal error
// per the identity error taxonomy (§7d).
func Acquire(pidPath string) (*Instance, error) {
	lockPath := pidPath + ".lock"
	fileLock := flock.New(lockPath)

	locked, err := fileLock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring daemon lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("daemon already running (lock held by another process)")
	}

	if pid, ok := readPID(pidPath); ok && pid != os.Getpid() && isAlive(pid) {
		_ = fileLock.Unlock()
		return nil, fmt.Errorf("daemon already running with PID %d", pid)
	}

	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		_ = fileLock.Unlock()
		return nil, fmt.Errorf("writing pid file: %w", err)
	}

	return &Instance{pidPath: pidPath, fileLock: fileLock}, nil
}

// Release removes the PID file and releases the lock. Safe to call on
// clean exit via signal or normal return (§5 cancellation).
func (i *Instance) Release() {
	_ = os.Remove(i.pidPath)
	_ = i.fileLock.Unlock()
}

// ReadPID returns the PID recorded in the file at path and whether the
// file existed and parsed.
func ReadPID(path string) (int, bool) {
	return readPID(path)
}

// IsAlive reports whether pid names a live process, checked via signal 0
// (grovetools-core/pkg/process.IsProcessAlive's approach).
func IsAlive(pid int) bool {
	return isAlive(pid)
}

func readPID(path string) (int, bool) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(content)))
	if err != nil {
		return 0, false
	}
	return pid, true
}

func isAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	return err == nil || os.IsPermission(err)
}
