// Command close runs the C11 reverse-of-open sequence: it flips the
// facility's flag to closed, gracefully stops the daemon, and unloads
// the service registration. Every step is best-effort and prints a
// pass/warn line; close never aborts partway through.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mhofwell/claude-dashboard/internal/config"
	"github.com/mhofwell/claude-dashboard/internal/daemon"
	"github.com/mhofwell/claude-dashboard/internal/datastore/turso"
	"github.com/mhofwell/claude-dashboard/internal/lock"
	"github.com/mhofwell/claude-dashboard/internal/preflight"
	"github.com/mhofwell/claude-dashboard/internal/style"
)

const serviceLabel = "dev.claude-dashboard.exporter"

var rootCmd = &cobra.Command{
	Use:   "close",
	Short: "Close the facility and stop the exporter daemon",
	RunE:  run,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	fmt.Println(style.Header("Facility Close"))

	paths := daemon.DefaultPaths()
	exporterDir := filepath.Dir(paths.PIDFile)
	dotenv := filepath.Join(exporterDir, ".env")

	ctx := context.Background()
	runner := preflight.NewRunner(os.Stdout)

	steps := []preflight.Step{
		{
			Name: "flip",
			Run: func(ctx context.Context) preflight.Result {
				cfg, err := config.Load(dotenv)
				if err != nil {
					return preflight.Result{Status: preflight.Warn, Detail: "could not load config: " + err.Error()}
				}
				db, err := turso.Open(cfg.URL, cfg.Key)
				if err != nil {
					return preflight.Result{Status: preflight.Warn, Detail: "could not connect: " + err.Error()}
				}
				defer db.Close()
				store := turso.New(db)
				if err := store.SetFacilityOpen(ctx, false); err != nil {
					return preflight.Result{Status: preflight.Warn, Detail: err.Error()}
				}
				return preflight.Result{Status: preflight.OK, Detail: "facility closed"}
			},
		},
		{
			Name: "stop daemon",
			Run: func(ctx context.Context) preflight.Result {
				return stopDaemon(paths.PIDFile)
			},
		},
		{
			Name: "service unregister",
			Run: func(ctx context.Context) preflight.Result {
				home, _ := os.UserHomeDir()
				servicePath := filepath.Join(home, "Library", "LaunchAgents", serviceLabel+".plist")
				mgr := preflight.NewLaunchdManager(serviceLabel, servicePath)
				if err := mgr.Unload(); err != nil {
					return preflight.Result{Status: preflight.Warn, Detail: err.Error()}
				}
				return preflight.Result{Status: preflight.OK, Detail: "unloaded"}
			},
		},
	}

	return runner.Run(ctx, steps)
}

func stopDaemon(pidFile string) preflight.Result {
	pid, ok := lock.ReadPID(pidFile)
	if !ok || !lock.IsAlive(pid) {
		os.Remove(pidFile)
		return preflight.Result{Status: preflight.OK, Detail: "daemon not running"}
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return preflight.Result{Status: preflight.Warn, Detail: err.Error()}
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return preflight.Result{Status: preflight.Warn, Detail: "SIGTERM failed: " + err.Error()}
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if !lock.IsAlive(pid) {
			os.Remove(pidFile)
			return preflight.Result{Status: preflight.OK, Detail: fmt.Sprintf("pid %d exited", pid)}
		}
		time.Sleep(250 * time.Millisecond)
	}

	if err := proc.Signal(syscall.SIGKILL); err != nil {
		return preflight.Result{Status: preflight.Warn, Detail: "SIGKILL failed: " + err.Error()}
	}
	os.Remove(pidFile)
	return preflight.Result{Status: preflight.Warn, Detail: fmt.Sprintf("pid %d force-killed after 5s", pid)}
}
