// Package gate implements the container startup gate: wait for the service's
// backing dependency, run one-time setup tasks unless the invocation is on
// the profile's skip list, then replace the process with the real command.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"storegate/config"
	"storegate/probe"
	"storegate/utils"
)

// execve is a seam over syscall.Exec: it never returns on success, and tests
// swap it out because a real exec would replace the test process.
var execve = syscall.Exec

// ExitCodeError carries the delegated command's exit code through the spawn
// fallback so the binary can exit with it verbatim.
type ExitCodeError struct {
	Code int
}

func (e *ExitCodeError) Error() string {
	return fmt.Sprintf("command exited with code %d", e.Code)
}

// Gate ties a deployment profile to its resolved configuration and probe.
type Gate struct {
	Profile Profile
	Config  *config.GateConfig
	Checker probe.Checker
}

// New builds a gate for the given profile, loading configuration from the
// environment and selecting the probe checker it calls for.
func New(profile Profile) *Gate {
	cfg := config.LoadGateConfig(profile.HostEnv, profile.PortEnv, profile.DefaultHost, profile.DefaultPort)
	return &Gate{
		Profile: profile,
		Config:  cfg,
		Checker: checkerFor(cfg),
	}
}

// checkerFor picks the probe implementation for the configured mode. The
// postgres mode falls back to a plain TCP probe when the environment carries
// no database credentials, so a misconfigured gate still waits usefully.
func checkerFor(cfg *config.GateConfig) probe.Checker {
	switch cfg.Probe {
	case config.ProbePostgres:
		if url := config.DatabaseURLFromEnv(cfg.Host, cfg.Port); url != "" {
			return probe.NewPostgresChecker(url)
		}
		log.Printf("Warning: GATE_PROBE=postgres without database credentials, falling back to tcp")
	case config.ProbeRedis:
		addr, password := config.RedisAddrFromEnv(cfg.Addr())
		return probe.NewRedisChecker(addr, password)
	case config.ProbeHTTP:
		return probe.NewHTTPChecker(cfg.ProbeURL, cfg.DialTimeout)
	}
	return probe.NewTCPChecker(cfg.Addr(), cfg.DialTimeout)
}

// Run drives the gate end to end: wait for the dependency, decide whether
// setup applies, run it, then hand the process over to argv. On the exec
// path Run never returns; it returns an error only when argv is unusable or
// the spawn fallback ran (an *ExitCodeError carrying the child's code).
func (g *Gate) Run(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return errors.New("nothing to exec: pass the application command and arguments")
	}

	g.Wait(ctx)

	if g.ShouldSkipSetup(argv) {
		utils.LogInfo("Skipping setup tasks", "command", strings.Join(argv, " "))
	} else {
		g.RunSetup(ctx)
	}

	return g.Exec(argv)
}

// Wait polls the dependency until it answers or the attempt budget runs out.
// Exhaustion is a warning, not an error: the dependency may be unneeded by
// the eventual command, so the gate proceeds either way.
func (g *Gate) Wait(ctx context.Context) {
	waiter := &probe.Waiter{
		Interval:    g.Config.ProbeInterval,
		MaxAttempts: g.Config.MaxAttempts,
		Timeout:     g.Config.DialTimeout,
	}
	utils.LogInfo("Waiting for dependency",
		"service", g.Profile.Name,
		"target", g.Checker.Target(),
		"interval", g.Config.ProbeInterval,
		"max_attempts", g.Config.MaxAttempts,
	)
	attempts, err := waiter.Wait(ctx, g.Checker)
	if err != nil {
		utils.LogWarn("Dependency still unreachable, starting anyway",
			"target", g.Checker.Target(),
			"attempts", attempts,
		)
		return
	}
	utils.LogInfo("Dependency is reachable", "target", g.Checker.Target(), "attempts", attempts)
}

// ShouldSkipSetup reports whether argv invokes a manage.py subcommand on the
// profile's skip list. The decision is derived once from the argument vector
// and never revisited.
func (g *Gate) ShouldSkipSetup(argv []string) bool {
	if g.Config.SkipSetup {
		return true
	}
	return g.Profile.shouldSkip(ManageSubcommand(argv))
}

// RunSetup executes the profile's setup tasks in order through the wrapped
// application's management command. A failing task is logged and the next
// one still runs; the gate never aborts here.
func (g *Gate) RunSetup(ctx context.Context) {
	for _, task := range g.Profile.SetupTasks {
		args := append([]string{g.Config.ManagePath}, task.Args...)
		cmd := exec.CommandContext(ctx, g.Config.PythonBin, args...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		cmd.Env = os.Environ()

		utils.LogInfo("Running setup task", "task", task.Name,
			"command", g.Config.PythonBin+" "+strings.Join(args, " "))
		if err := cmd.Run(); err != nil {
			utils.LogWarn("Setup task failed, continuing", "task", task.Name, "error", err)
		}
	}
}

// Exec replaces the current process image with argv, preserving environment
// and standard streams. When the direct replacement is unavailable it falls
// back to spawning the child and surfacing its exit code via *ExitCodeError,
// so the code the operator sees is the command's own either way.
func (g *Gate) Exec(argv []string) error {
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return fmt.Errorf("command %q not found: %w", argv[0], err)
	}

	utils.LogInfo("Handing off", "command", strings.Join(argv, " "))
	if err := execve(path, argv, os.Environ()); err != nil {
		utils.LogWarn("Process replacement failed, spawning instead", "error", err)
		return g.spawn(argv)
	}
	// syscall.Exec only returns on error; reaching here means the seam was
	// swapped for tests.
	return nil
}

// spawn runs argv as a child with inherited stdio, forwarding termination
// signals and reporting the child's exit code.
func (g *Gate) spawn(argv []string) error {
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", argv[0], err)
	}

	signals := make(chan os.Signal, 16)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)
	go func() {
		for sig := range signals {
			_ = cmd.Process.Signal(sig)
		}
	}()

	err := cmd.Wait()
	signal.Stop(signals)
	close(signals)

	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			// Shell convention for signal deaths.
			return &ExitCodeError{Code: 128 + int(status.Signal())}
		}
		return &ExitCodeError{Code: exitErr.ExitCode()}
	}
	return fmt.Errorf("wait for %s: %w", argv[0], err)
}
