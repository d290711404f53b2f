// Package recovery implements the recovery controller: a polled
// watchdog that notices the monitor interface has gone blind (down,
// missing, or wedged in the driver) and drives the
// stop -> reload driver -> (SDIO rebind) -> start -> verify sequence
// to bring it back, with cooldowns, an attempt cap, and a terminal
// reboot hook.
package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/corvidlabs/corvid/internal/core/domain"
)

// Fixed kernel-log patterns that indicate the wireless chipset has
// wedged and the interface needs a driver reload, not just a restart.
var kernelLogPatterns = []string{
	"brcmf_cfg80211_nexmon_set_channel: Set Channel failed",
	"Firmware has halted or crashed",
	"brcmf_run_escan: error (-110)",
	"brcmf_sdio_hostmail: mailbox",
	"brcmf_cfg80211_escan: error (-52)",
}

// CommandExecutor abstracts system command execution for testability.
type CommandExecutor interface {
	Execute(name string, args ...string) ([]byte, error)
}

// SystemCommandExecutor runs commands via os/exec.
type SystemCommandExecutor struct{}

func (SystemCommandExecutor) Execute(name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	return cmd.CombinedOutput()
}

// CommandSender is the narrow bus-client handle used to issue
// wifi.recon/wifi.clear/wifi.interface commands.
type CommandSender interface {
	SendCommand(cmd string) error
}

// AuditSink receives one row per recovery attempt. audit.Store
// satisfies it; nil disables the trail.
type AuditSink interface {
	Append(ctx context.Context, e domain.AttackLogEntry) error
}

// Decision is the outcome of one Check call.
type Decision int

const (
	DecisionNone Decision = iota
	DecisionNeedsRecovery
	DecisionForceRecovery
)

// Controller polls the monitor interface's health and drives recovery.
type Controller struct {
	state     *domain.RecoveryState
	iface     string
	sysfsNet  string
	exec      CommandExecutor
	sender    CommandSender
	auditLog  AuditSink
	rebootFn  func()
	kernelLog func() (string, error)

	monitorStopCmd  []string
	monitorStartCmd []string
	captureRestart  func() error
	captureProbe    func() bool
	probeTimeout    time.Duration
	probeInterval   time.Duration
	reloadSleeps    [3]time.Duration
}

// Options configures the platform-specific hooks a Controller needs.
// Any nil func is a no-op with nil error, so a Controller can be built
// incrementally in tests.
type Options struct {
	Interface       string
	SysfsNetDir     string // default /sys/class/net; tests point this at a temp dir
	Executor        CommandExecutor
	Sender          CommandSender
	Audit           AuditSink
	RebootHook      func()
	ReadKernelLog   func() (string, error)
	MonitorStopCmd  []string
	MonitorStartCmd []string
	RestartCapture  func() error
	ProbeCapture    func() bool

	// ProbeTimeout/ProbeInterval override the default 30s/500ms wait
	// for the capture engine's API to come back up. Tests shrink these
	// to keep Perform fast.
	ProbeTimeout  time.Duration
	ProbeInterval time.Duration

	// ReloadSleeps overrides the three fixed driver-reload pauses
	// (post-rmmod, post-modprobe, post-SDIO-rebind), normally
	// 3s/5s/20s. Tests shrink these to keep Perform fast.
	ReloadSleeps [3]time.Duration
}

// New constructs a Controller with state seeded at startedAt.
func New(cfg domain.RecoveryConfig, startedAt time.Time, opts Options) *Controller {
	exec := opts.Executor
	if exec == nil {
		exec = SystemCommandExecutor{}
	}
	probeTimeout := opts.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = 30 * time.Second
	}
	probeInterval := opts.ProbeInterval
	if probeInterval <= 0 {
		probeInterval = 500 * time.Millisecond
	}
	reloadSleeps := opts.ReloadSleeps
	if reloadSleeps == ([3]time.Duration{}) {
		reloadSleeps = [3]time.Duration{3 * time.Second, 5 * time.Second, 20 * time.Second}
	}
	sysfsNet := opts.SysfsNetDir
	if sysfsNet == "" {
		sysfsNet = "/sys/class/net"
	}
	return &Controller{
		state:           domain.NewRecoveryState(cfg, startedAt),
		iface:           opts.Interface,
		sysfsNet:        sysfsNet,
		exec:            exec,
		sender:          opts.Sender,
		auditLog:        opts.Audit,
		rebootFn:        opts.RebootHook,
		kernelLog:       opts.ReadKernelLog,
		monitorStopCmd:  opts.MonitorStopCmd,
		monitorStartCmd: opts.MonitorStartCmd,
		captureRestart:  opts.RestartCapture,
		captureProbe:    opts.ProbeCapture,
		probeTimeout:    probeTimeout,
		probeInterval:   probeInterval,
		reloadSleeps:    reloadSleeps,
	}
}

// State exposes the controller's current counters for display/metrics.
func (c *Controller) State() domain.RecoveryState {
	return *c.state
}

// Check implements the recovery state machine against the current AP
// count, returning whether recovery should run.
func (c *Controller) Check(apCount int, now time.Time) Decision {
	s := c.state

	if now.Sub(s.StartedAt) < s.Config.StartupGrace {
		if apCount > 0 {
			s.LastAPSeen = now
		}
		return DecisionNone
	}

	if apCount > 0 {
		s.LastAPSeen = now
		return DecisionNone
	}

	blindDuration := now.Sub(s.LastAPSeen)
	if blindDuration < s.Config.BlindThreshold {
		return DecisionNone
	}

	if down, missing := c.interfaceState(); down || missing {
		return DecisionNeedsRecovery
	}

	if c.kernelLogMatches() {
		return DecisionNeedsRecovery
	}

	if blindDuration >= 2*s.Config.BlindThreshold {
		return DecisionForceRecovery
	}

	return DecisionNone
}

// interfaceState probes /sys/class/net/<iface>: a missing directory
// means the interface is gone entirely, otherwise operstate "down"
// means DOWN and "up"/"unknown" both count as UP (monitor interfaces
// commonly report "unknown").
func (c *Controller) interfaceState() (down, missing bool) {
	if c.iface == "" {
		return false, false
	}
	dir := filepath.Join(c.sysfsNet, c.iface)
	if _, err := os.Stat(dir); err != nil {
		return false, true
	}
	raw, err := os.ReadFile(filepath.Join(dir, "operstate"))
	if err != nil {
		return false, false
	}
	if strings.TrimSpace(string(raw)) == "down" {
		return true, false
	}
	return false, false
}

func (c *Controller) kernelLogMatches() bool {
	if c.kernelLog == nil {
		return false
	}
	text, err := c.kernelLog()
	if err != nil {
		return false
	}
	for _, pat := range kernelLogPatterns {
		if strings.Contains(text, pat) {
			return true
		}
	}
	return false
}

// Perform runs the stop -> reload-driver -> start sequence, guarded by
// cooldown and the attempt cap. It returns an error describing which
// step failed. Once the attempt cap is reached, Perform calls the
// reboot hook itself and returns an error without running the sequence.
func (c *Controller) Perform(ctx context.Context, now time.Time) error {
	s := c.state

	if s.IsRecovering {
		return fmt.Errorf("recovery: already in progress")
	}
	if !s.LastRecovery.IsZero() && now.Sub(s.LastRecovery) < s.Config.Cooldown {
		return fmt.Errorf("recovery: cooldown active")
	}
	if s.Attempts >= s.Config.MaxAttempts {
		c.logAudit("failed", fmt.Sprintf("attempt cap (%d) reached, reboot requested", s.Config.MaxAttempts))
		if c.rebootFn != nil {
			c.rebootFn()
		}
		return fmt.Errorf("recovery: attempt cap (%d) reached, reboot requested", s.Config.MaxAttempts)
	}

	s.IsRecovering = true
	s.Attempts++
	s.LastRecovery = now
	defer func() { s.IsRecovering = false }()

	if err := c.stop(); err != nil {
		s.TotalFailures++
		c.logAudit("failed", "stop: "+err.Error())
		return fmt.Errorf("recovery: stop: %w", err)
	}
	if err := c.reloadDriver(ctx); err != nil {
		s.TotalFailures++
		c.logAudit("failed", "reload driver: "+err.Error())
		return fmt.Errorf("recovery: reload driver: %w", err)
	}
	if err := c.start(ctx); err != nil {
		s.TotalFailures++
		c.logAudit("failed", "start: "+err.Error())
		return fmt.Errorf("recovery: start: %w", err)
	}

	s.Attempts = 0
	s.LastAPSeen = now
	s.TotalRecoveries++
	c.logAudit("success", "stop/reload/start sequence completed")
	return nil
}

// logAudit appends the entry on its own goroutine so a slow disk write
// never blocks the recovery sequence.
func (c *Controller) logAudit(outcome, detail string) {
	if c.auditLog == nil {
		return
	}
	entry := domain.AttackLogEntry{
		Timestamp: time.Now(),
		Kind:      "recovery",
		Target:    c.iface,
		Outcome:   outcome,
		Detail:    detail,
	}
	go func() {
		if err := c.auditLog.Append(context.Background(), entry); err != nil {
			slog.Warn("recovery: audit append failed", "error", err)
		}
	}()
}

func (c *Controller) stop() error {
	if c.sender != nil {
		if err := c.sender.SendCommand("wifi.recon off"); err != nil {
			slog.Warn("recovery: wifi.recon off failed", "error", err)
		}
	}
	if len(c.monitorStopCmd) > 0 && c.exec != nil {
		if _, err := c.exec.Execute(c.monitorStopCmd[0], c.monitorStopCmd[1:]...); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) reloadDriver(ctx context.Context) error {
	if c.exec == nil {
		return nil
	}
	if _, err := c.exec.Execute("rmmod", driverModule); err != nil {
		slog.Warn("recovery: rmmod failed", "error", err)
	}
	sleepCtx(ctx, c.reloadSleeps[0])

	if _, err := c.exec.Execute("modprobe", driverModule); err != nil {
		return fmt.Errorf("modprobe: %w", err)
	}
	sleepCtx(ctx, c.reloadSleeps[1])

	if _, missing := c.interfaceState(); !missing {
		return nil
	}

	if err := c.rebindSDIO(); err != nil {
		return fmt.Errorf("sdio rebind: %w", err)
	}
	if _, err := c.exec.Execute("modprobe", driverModule); err != nil {
		return fmt.Errorf("modprobe after rebind: %w", err)
	}
	sleepCtx(ctx, c.reloadSleeps[2])

	if _, missing := c.interfaceState(); missing {
		return fmt.Errorf("interface %s still missing after driver reload", c.iface)
	}
	return nil
}

func (c *Controller) rebindSDIO() error {
	if _, err := c.exec.Execute("sh", "-c", "echo mmc1 > /sys/bus/sdio/drivers/brcmfmac/unbind"); err != nil {
		return err
	}
	_, err := c.exec.Execute("sh", "-c", "echo mmc1 > /sys/bus/sdio/drivers/brcmfmac/bind")
	return err
}

func (c *Controller) start(ctx context.Context) error {
	if len(c.monitorStartCmd) > 0 && c.exec != nil {
		if _, err := c.exec.Execute(c.monitorStartCmd[0], c.monitorStartCmd[1:]...); err != nil {
			return err
		}
	}

	if c.captureRestart != nil {
		if err := c.captureRestart(); err != nil {
			return fmt.Errorf("restart capture engine: %w", err)
		}
	}

	if c.captureProbe != nil {
		if !waitFor(ctx, c.probeTimeout, c.probeInterval, c.captureProbe) {
			return fmt.Errorf("capture engine did not respond within %s", c.probeTimeout)
		}
	}

	if c.sender != nil {
		_ = c.sender.SendCommand(fmt.Sprintf("set wifi.interface %s", c.iface))
		_ = c.sender.SendCommand("wifi.clear")
		_ = c.sender.SendCommand("wifi.recon on")
	}
	return nil
}

const driverModule = "brcmfmac"

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func waitFor(ctx context.Context, timeout, interval time.Duration, probe func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if probe() {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(interval):
		}
	}
	return probe()
}
