// Command open runs the C10 sequential preflight: it verifies
// configuration, datastore reachability, deployment health, the public
// site, the daemon's service registration and liveness, and that
// telemetry is actually flowing, then flips the facility's open flag and
// verifies the write stuck.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mhofwell/claude-dashboard/internal/config"
	"github.com/mhofwell/claude-dashboard/internal/daemon"
	"github.com/mhofwell/claude-dashboard/internal/datastore"
	"github.com/mhofwell/claude-dashboard/internal/datastore/turso"
	"github.com/mhofwell/claude-dashboard/internal/domain"
	"github.com/mhofwell/claude-dashboard/internal/lock"
	"github.com/mhofwell/claude-dashboard/internal/preflight"
	"github.com/mhofwell/claude-dashboard/internal/style"
	"github.com/mhofwell/claude-dashboard/internal/util"
)

const serviceLabel = "dev.claude-dashboard.exporter"

var rootCmd = &cobra.Command{
	Use:   "open",
	Short: "Preflight and open the facility for telemetry export",
	RunE:  run,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	fmt.Println(style.Header("Facility Open Preflight"))

	paths := daemon.DefaultPaths()
	exporterDir := filepath.Dir(paths.PIDFile)
	dotenv := filepath.Join(exporterDir, ".env")

	var cfg *config.Config
	var store datastore.Store

	runner := preflight.NewRunner(os.Stdout)
	ctx := context.Background()

	steps := []preflight.Step{
		{
			Name:  "environment",
			Abort: true,
			Run: func(ctx context.Context) preflight.Result {
				_, statErr := os.Stat(dotenv)
				loaded, err := config.Load(dotenv)
				if statErr != nil || err != nil || loaded.URL == "" || loaded.Key == "" {
					return preflight.Result{
						Status: preflight.Fail,
						Detail: fmt.Sprintf(".env missing or URL/KEY empty under %s", exporterDir),
						Hint:   "create a .env with URL=... and KEY=...",
					}
				}
				cfg = loaded
				return preflight.Result{Status: preflight.OK, Detail: "URL and KEY present"}
			},
		},
		{
			Name:  "datastore",
			Abort: true,
			Run: func(ctx context.Context) preflight.Result {
				db, err := turso.Open(cfg.URL, cfg.Key)
				if err != nil {
					return authAwareFail(err)
				}
				store = turso.New(db)

				start := time.Now()
				_, err = store.ReadFacility(ctx)
				latency := time.Since(start)
				if err != nil {
					return authAwareFail(err)
				}
				return preflight.Result{Status: preflight.OK, Detail: fmt.Sprintf("reachable (%s)", latency.Round(time.Millisecond))}
			},
		},
		{
			Name:  "deployment health",
			Abort: true,
			Run: func(ctx context.Context) preflight.Result {
				return httpCheck(ctx, "GET", strings.TrimRight(cfg.SiteURL, "/")+"/api/health")
			},
		},
		{
			Name:  "site reachable",
			Abort: true,
			Run: func(ctx context.Context) preflight.Result {
				return httpCheck(ctx, "HEAD", cfg.SiteURL)
			},
		},
		{
			Name:  "service registration",
			Abort: true,
			Run: func(ctx context.Context) preflight.Result {
				return registerService(exporterDir)
			},
		},
		{
			Name:  "daemon process",
			Abort: true,
			Run: func(ctx context.Context) preflight.Result {
				return waitForDaemon(paths.PIDFile, filepath.Join(exporterDir, "exporter.err.log"))
			},
		},
		{
			Name:  "telemetry flowing",
			Abort: true,
			Run: func(ctx context.Context) preflight.Result {
				return telemetryFlowing(ctx, store, filepath.Join(exporterDir, "exporter.err.log"))
			},
		},
		{
			Name:  "flip",
			Abort: true,
			Run: func(ctx context.Context) preflight.Result {
				if err := store.SetFacilityOpen(ctx, true); err != nil {
					return preflight.Result{Status: preflight.Fail, Detail: "write failed: " + err.Error()}
				}
				facility, err := store.ReadFacility(ctx)
				if err != nil || facility.Status != domain.FacilityActive {
					return preflight.Result{
						Status: preflight.Fail,
						Detail: "read-back disagrees with write",
						Hint:   "retry; if this persists the datastore may be serving a stale replica",
					}
				}
				return preflight.Result{Status: preflight.OK, Detail: "facility open"}
			},
		},
	}

	if err := runner.Run(ctx, steps); err != nil {
		return err
	}

	printSummary(ctx, paths.PIDFile, store)
	return nil
}

func authAwareFail(err error) preflight.Result {
	msg := err.Error()
	res := preflight.Result{Status: preflight.Fail, Detail: msg}
	if strings.Contains(msg, "401") || strings.Contains(msg, "403") {
		res.Hint = "check that KEY is a valid, unexpired auth token"
	}
	return res
}

func httpCheck(ctx context.Context, method, url string) preflight.Result {
	hctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(hctx, method, url, nil)
	if err != nil {
		return preflight.Result{Status: preflight.Fail, Detail: err.Error()}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return preflight.Result{Status: preflight.Fail, Detail: err.Error()}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return preflight.Result{Status: preflight.Fail, Detail: fmt.Sprintf("%s %s -> %d", method, url, resp.StatusCode)}
	}
	return preflight.Result{Status: preflight.OK, Detail: fmt.Sprintf("%d", resp.StatusCode)}
}

func registerService(exporterDir string) preflight.Result {
	home, _ := os.UserHomeDir()
	servicePath := filepath.Join(home, "Library", "LaunchAgents", serviceLabel+".plist")
	sourcePath := filepath.Join(exporterDir, serviceLabel+".plist")

	mgr := preflight.NewLaunchdManager(serviceLabel, servicePath)

	if !mgr.Registered() {
		if err := mgr.Register(sourcePath); err != nil {
			return preflight.Result{Status: preflight.Fail, Detail: err.Error()}
		}
	}
	if err := mgr.Load(); err != nil {
		return preflight.Result{Status: preflight.Warn, Detail: err.Error()}
	}
	return preflight.Result{Status: preflight.OK, Detail: "registered and loaded"}
}

func waitForDaemon(pidFile, errLogPath string) preflight.Result {
	if pid, ok := lock.ReadPID(pidFile); ok && lock.IsAlive(pid) {
		return preflight.Result{Status: preflight.OK, Detail: fmt.Sprintf("pid %d", pid)}
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		time.Sleep(500 * time.Millisecond)
		if pid, ok := lock.ReadPID(pidFile); ok && lock.IsAlive(pid) {
			return preflight.Result{Status: preflight.OK, Detail: fmt.Sprintf("pid %d (after wait)", pid)}
		}
	}

	return preflight.Result{
		Status: preflight.Fail,
		Detail: "no live daemon process after 5s wait\n" + tailLines(errLogPath, 10),
		Hint:   "check the service manager logs; the daemon may be crashing on startup",
	}
}

func telemetryFlowing(ctx context.Context, store datastore.Store, errLogPath string) preflight.Result {
	facility, err := store.ReadFacility(ctx)
	if err != nil {
		return preflight.Result{Status: preflight.Fail, Detail: err.Error()}
	}

	age := time.Since(time.UnixMilli(facility.UpdatedAtUnixMs).UTC())
	if age < 10*time.Second {
		return preflight.Result{Status: preflight.OK, Detail: fmt.Sprintf("last update %s ago", age.Round(time.Second))}
	}

	time.Sleep(6 * time.Second)
	after, err := store.ReadFacility(ctx)
	if err != nil {
		return preflight.Result{Status: preflight.Fail, Detail: err.Error()}
	}
	if after.UpdatedAtUnixMs > facility.UpdatedAtUnixMs {
		return preflight.Result{Status: preflight.OK, Detail: "facility row advanced"}
	}

	return preflight.Result{
		Status: preflight.Fail,
		Detail: "facility row did not advance after 6s\n" + tailLines(errLogPath, 10),
		Hint:   "the daemon may be stuck; check its error log",
	}
}

func tailLines(path string, n int) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return "(no error log)"
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

func printSummary(ctx context.Context, pidFile string, store datastore.Store) {
	pid, _ := lock.ReadPID(pidFile)
	facility, err := store.ReadFacility(ctx)
	if err != nil {
		fmt.Println(style.Step(style.StepWarn, "summary", "could not re-read facility row"))
		return
	}
	age := time.Since(time.UnixMilli(facility.UpdatedAtUnixMs).UTC()).Round(time.Second)
	fmt.Printf("\npid %d, %d active agent(s) / %d total, %s lifetime tokens, last sync %s ago\n",
		pid, facility.ActiveAgents, facility.AgentCount, util.FormatTokensInt(facility.LifetimeTokens), age)
}
