package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/pverhoeven/warden/pkg/api"
	"github.com/pverhoeven/warden/pkg/config"
	"github.com/pverhoeven/warden/pkg/health"
	"github.com/pverhoeven/warden/pkg/journal"
	"github.com/pverhoeven/warden/pkg/logging"
	"github.com/pverhoeven/warden/pkg/metrics"
	"github.com/pverhoeven/warden/pkg/provision"
	"github.com/pverhoeven/warden/pkg/ratelimit"
	"github.com/pverhoeven/warden/pkg/runner"
	"github.com/pverhoeven/warden/pkg/shutdown"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Provision the environment and supervise the workload",
	Long: `Run installs the dependency manifest (skipped while unchanged),
prepares the log sink, launches the workload process, and starts the
liveness prober and status API.

The supervisor exits with the workload's exit code. Restart policy is
deliberately left to the container orchestrator.`,
	RunE: runSupervisor,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runSupervisor(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger, err := logging.NewFileLogger(cfg.Log.Dir, "warden", logging.ParseLevel(cfg.Log.Level), cfg.Log.JSON)
	if err != nil {
		return err
	}

	jnl, err := openJournal(cfg)
	if err != nil {
		logger.Close()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Dependency installation strictly precedes process startup
	provisioner := &provision.Provisioner{
		ManifestPath: cfg.Provision.Manifest,
		StampDir:     cfg.Provision.StampDir,
		Installer: provision.PipInstaller{
			Python:  cfg.Provision.Python,
			NoCache: cfg.Runtime.DisablePipCache,
		},
	}
	receipt, err := provisioner.Ensure(ctx)
	if err != nil {
		logger.Error(fmt.Sprintf("Provisioning failed: %v", err))
		logger.Close()
		jnl.Close()
		return err
	}
	if receipt.Installed {
		logger.Info("Dependencies installed", map[string]interface{}{"manifest_hash": receipt.ManifestHash})
		jnl.AppendEvent(journal.Event{Timestamp: time.Now(), Kind: journal.KindProvision, Message: "dependencies installed"})
	} else {
		logger.Info("Dependency manifest unchanged, install skipped")
	}

	// Workload output goes to the sink and stdout, unbuffered
	workloadLog, err := os.OpenFile(filepath.Join(cfg.Log.Dir, "workload.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		logger.Close()
		jnl.Close()
		return fmt.Errorf("failed to open workload log: %w", err)
	}
	sink := io.MultiWriter(workloadLog, os.Stdout)

	run := runner.New(runner.Options{
		Command: cfg.Process.Command,
		WorkDir: cfg.Process.WorkDir,
		Env:     cfg.ChildEnv(),
		Sink:    sink,
		Receipt: receipt,
		OnEvent: func(ev runner.Event) {
			logger.Info(fmt.Sprintf("Workload %s: %s", ev.State, ev.Message))
			if err := jnl.AppendEvent(journal.Event{Timestamp: ev.Timestamp, Kind: journal.KindLifecycle, Message: ev.Message}); err != nil {
				logger.Debug(fmt.Sprintf("Failed to journal lifecycle event: %v", err))
			}
		},
	})

	if err := run.Start(ctx); err != nil {
		logger.Error(fmt.Sprintf("Failed to start workload: %v", err))
		logger.Close()
		jnl.Close()
		workloadLog.Close()
		return err
	}

	metricSet := metrics.NewSet()
	live := health.NewSignal(cfg.Probe.GracePeriod, cfg.Probe.FailureThreshold, nil)

	lastStatus := health.StatusStarting
	prober := health.NewProber(health.CommandProbe{
		Command: cfg.Probe.Command,
		Token:   cfg.Probe.Token,
		Timeout: cfg.Probe.Timeout,
	}, live, cfg.Probe.Interval, func(r health.Result) {
		errMsg := ""
		if r.Err != nil {
			errMsg = r.Err.Error()
		}
		if err := jnl.AppendProbe(journal.ProbeRecord{
			Timestamp: r.Timestamp,
			OK:        r.OK,
			Duration:  r.Duration,
			Status:    string(r.Status),
			Failures:  r.Failures,
			Error:     errMsg,
		}); err != nil {
			logger.Debug(fmt.Sprintf("Failed to journal probe: %v", err))
		}
		metricSet.ObserveProbe(r.OK, string(r.Status), r.Failures, r.Duration)

		if r.Status != lastStatus {
			msg := fmt.Sprintf("Liveness %s -> %s", lastStatus, r.Status)
			if r.Status == health.StatusUnhealthy {
				logger.Warn(msg, map[string]interface{}{"consecutive_failures": r.Failures})
			} else {
				logger.Info(msg)
			}
			if err := jnl.AppendEvent(journal.Event{Timestamp: r.Timestamp, Kind: journal.KindLiveness, Message: msg}); err != nil {
				logger.Debug(fmt.Sprintf("Failed to journal liveness transition: %v", err))
			}
			lastStatus = r.Status
		} else if !r.OK {
			logger.Warn(fmt.Sprintf("Probe failed: %s", errMsg), map[string]interface{}{"consecutive_failures": r.Failures})
		}
	})
	go prober.Run(ctx)
	go metrics.NewSampler(run.PID(), metricSet, 15*time.Second).Run(ctx)

	srv := api.NewServer(api.Options{
		Addr: cfg.API.Addr,
		Status: func() api.Status {
			return api.Status{
				Liveness:      live.Snapshot(),
				PID:           run.PID(),
				StartedAt:     run.StartedAt(),
				UptimeSeconds: run.Uptime().Seconds(),
			}
		},
		Journal: jnl,
		Metrics: metricSet.Handler(),
		Limiter: ratelimit.NewLimiter(cfg.API.RateLimitRPS, cfg.API.RateLimitBurst),
	})
	go func() {
		logger.Info(fmt.Sprintf("Status API listening on %s", cfg.API.Addr))
		if err := srv.Start(); err != nil {
			logger.Error(err.Error())
		}
	}()

	// Supervisor log rotation
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := logger.RotateIfNeeded(cfg.Log.MaxSizeBytes, cfg.Log.Backups); err != nil {
					logger.Warn(fmt.Sprintf("Log rotation failed: %v", err))
				}
			}
		}
	}()

	// LIFO: workload stops first, then the API, then the prober and
	// sampler, and the journal closes last so late probe results still
	// land
	mgr := shutdown.New(30 * time.Second)
	mgr.Register(shutdown.CloseResource(jnl, "journal"))
	mgr.Register(func(context.Context) error {
		cancel()
		return nil
	})
	mgr.Register(shutdown.StopHTTPServer(srv, "status API"))
	mgr.Register(func(ctx context.Context) error {
		return run.Stop(10 * time.Second)
	})
	mgr.Notify()

	exitCh := make(chan int, 1)
	go func() {
		code, _ := run.Wait()
		exitCh <- code
	}()

	var exitCode int
	select {
	case code := <-exitCh:
		exitCode = code
		logger.Info(fmt.Sprintf("Workload exited: code=%d reason=%s uptime=%.1fs",
			code, run.GetExitReason(), run.Uptime().Seconds()))
		mgr.Shutdown()
	case <-mgr.Done():
		logger.Info("Shutdown requested")
		mgr.Shutdown()
		exitCode = <-exitCh
	}

	cancel()
	workloadLog.Close()
	logger.Close()

	if exitCode != 0 {
		os.Exit(exitCode)
	}
	return nil
}

func openJournal(cfg *config.Config) (journal.Journal, error) {
	if cfg.Journal.Path == "" {
		return journal.NewMemoryJournal(), nil
	}
	return journal.NewSQLiteJournal(cfg.Journal.Path)
}
