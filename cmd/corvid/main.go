// Command corvid is the main event loop: it multiplexes the bus
// client's topology feed, the recovery controller's poll, the stats
// scanner's periodic sweep, and the display worker's dirty-flag wakeup,
// wiring the core subsystems of the WiFi reconnaissance coordinator
// around one owned application context: structured logging setup,
// signal-driven context cancellation, then sequential adapter
// construction before the pump goroutines start.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/corvidlabs/corvid/internal/attack"
	"github.com/corvidlabs/corvid/internal/audit"
	"github.com/corvidlabs/corvid/internal/busclient"
	"github.com/corvidlabs/corvid/internal/config"
	"github.com/corvidlabs/corvid/internal/core/domain"
	"github.com/corvidlabs/corvid/internal/display"
	"github.com/corvidlabs/corvid/internal/handshake"
	"github.com/corvidlabs/corvid/internal/recovery"
	"github.com/corvidlabs/corvid/internal/reporting"
	"github.com/corvidlabs/corvid/internal/stats"
	"github.com/corvidlabs/corvid/internal/telemetry"
	"github.com/corvidlabs/corvid/internal/topology"
)

// pcapAnalyzer adapts the free function handshake.Analyze to the
// narrow stats.Analyzer port, keeping the stats package decoupled from
// pcap parsing internals.
type pcapAnalyzer struct{}

func (pcapAnalyzer) Analyze(path string) (*domain.HandshakeInfo, domain.Verdict, error) {
	return handshake.Analyze(path)
}

// nullFonts and nullFaces stand in for the external font/theme modules
// this core does not own; they let the framebuffer owner run without a
// real renderer attached while still exercising the full
// layout/animation/dirty-flag machinery.
type nullFonts struct{}

func (nullFonts) Render(text string, sizePt int) []display.Glyph { return nil }

type nullFaces struct{}

func (nullFaces) Face(face domain.FaceEnum) *display.Framebuffer { return nil }

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.Info("corvid starting")

	cfg := config.Load()
	startedAt := time.Now()

	telemetry.InitMetrics()
	shutdownTracer, err := telemetry.InitTracer()
	if err != nil {
		slog.Warn("tracer init failed, continuing without tracing", "error", err)
	} else {
		defer func() {
			shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutCancel()
			if err := shutdownTracer(shutCtx); err != nil {
				slog.Warn("tracer shutdown failed", "error", err)
			}
		}()
	}

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(cfg.MetricsAddr, nil); err != nil {
			slog.Warn("metrics server stopped", "error", err)
		}
	}()

	store := topology.New()

	auditDB, err := audit.Open(cfg.AuditDBPath)
	if err != nil {
		slog.Warn("audit store unavailable, attack/recovery actions will not be logged", "error", err)
		auditDB = nil
	} else {
		defer auditDB.Close()
	}

	scanner := stats.New(cfg.CapturesDir, cfg.CrackedDir, cfg.PotfilePath, pcapAnalyzer{})

	owner, ok := display.NewOwner(cfg.DisplayLayout, nullFonts{}, nullFaces{})
	if !ok {
		slog.Warn("unknown display layout, falling back to default", "requested", cfg.DisplayLayout)
	}

	var refresher display.Refresher = display.NullRefresher{}
	if cfg.DisplayType != "null" {
		slog.Info("hardware e-ink driver is an external collaborator; using null refresher", "requested_type", cfg.DisplayType)
	}
	displayWorker := display.NewWorker(owner, refresher)
	displayWorker.Start()
	defer displayWorker.Stop()

	busCfg := domain.BusClientConfig{
		Host:                 cfg.BusHost,
		Port:                 cfg.BusPort,
		Path:                 cfg.BusPath,
		Username:             cfg.BusUsername,
		Password:             cfg.BusPassword,
		AutoReconnect:        cfg.AutoReconnect,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		ReconnectDelayMs:     cfg.ReconnectDelayMs,
		HeartbeatIntervalMs:  cfg.HeartbeatIntervalMs,
	}

	var coordinator *attack.Coordinator
	var bus *busclient.Client

	callbacks := busclient.Callbacks{
		OnAPNew: func(ap domain.AccessPoint) {
			telemetry.EventsReceived.WithLabelValues(busclient.TagAPNew).Inc()
			telemetry.TopologyAPCount.Set(float64(store.SnapshotAPCount()))
			if coordinator != nil {
				coordinator.OnAPNew(ap, store.SnapshotAPCount())
			}
		},
		OnAPLost: func(mac domain.MAC) {
			telemetry.EventsReceived.WithLabelValues(busclient.TagAPLost).Inc()
			telemetry.TopologyAPCount.Set(float64(store.SnapshotAPCount()))
		},
		OnClientNew: func(sta domain.Station) {
			telemetry.EventsReceived.WithLabelValues(busclient.TagClientNew).Inc()
			if coordinator != nil && sta.Associated {
				coordinator.OnClientNew(sta)
			}
		},
		OnClientProbe: func(sta domain.Station) {
			telemetry.EventsReceived.WithLabelValues(busclient.TagClientProbe).Inc()
		},
		OnClientLost: func(mac domain.MAC) {
			telemetry.EventsReceived.WithLabelValues(busclient.TagClientLost).Inc()
		},
		OnHandshake: func(d busclient.HandshakeEventData) {
			telemetry.EventsReceived.WithLabelValues(busclient.TagClientHandshake).Inc()
			if coordinator != nil {
				coordinator.OnHandshake(attack.HandshakeEvent{
					AP:      d.AP,
					Station: d.Station,
					SSID:    d.SSID,
					File:    d.File,
					PMKID:   d.PMKID,
					Full:    d.Full,
				})
			}
		},
		OnDeauth: func() {
			telemetry.EventsReceived.WithLabelValues(busclient.TagDeauthentication).Inc()
		},
		OnStateChange: func(from, to busclient.State) {
			if to == busclient.StateReconnecting {
				telemetry.ReconnectsTotal.WithLabelValues().Inc()
			}
		},
	}

	bus = busclient.New(busCfg, store, callbacks)

	uiHooks := attack.UIHooks{
		SetStatus:      owner.SetStatus,
		SetFace:        owner.SetFace,
		SetAPSCount:    owner.SetAPSCount,
		StartAnimation: owner.StartAnimation,
		ExtendHold:     owner.ExtendHold,
	}

	var policy attack.PolicyEngine
	if cfg.EnablePolicyEngine {
		slog.Warn("policy engine attachment requested but no external policy engine is wired into this build; automatic attack dispatch stays disabled")
	}

	coordinator = attack.New(bus, store, auditDB, policy, scanner, uiHooks, scanner.Rescan)

	recoveryOpts := recovery.Options{
		Interface:       "wlan0mon",
		Sender:          bus,
		MonitorStopCmd:  []string{"ip", "link", "set", "wlan0mon", "down"},
		MonitorStartCmd: []string{"ip", "link", "set", "wlan0mon", "up"},
		RebootHook: func() {
			slog.Error("recovery attempt cap reached, requesting reboot")
		},
	}
	if auditDB != nil {
		recoveryOpts.Audit = auditDB
	}
	recoveryCtl := recovery.New(domain.DefaultRecoveryConfig(), startedAt, recoveryOpts)

	exporter := reporting.NewPDFExporter()

	go func() {
		if err := bus.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("bus client exited", "error", err)
		}
	}()
	go bus.RunReconciliationLoop(ctx)
	var lastCounters stats.Counters
	go scanner.Run(ctx, func(c stats.Counters) {
		owner.SetCounters(c.Pwds, c.Fhs, c.Phs, c.Tcaps)
		if d := c.Fhs - lastCounters.Fhs; d > 0 {
			telemetry.CapturesAnalyzed.WithLabelValues("full").Add(float64(d))
		}
		if d := c.Phs - lastCounters.Phs; d > 0 {
			telemetry.CapturesAnalyzed.WithLabelValues("partial").Add(float64(d))
		}
		lastCounters = c
	})

	sigReport := make(chan os.Signal, 1)
	signal.Notify(sigReport, syscall.SIGUSR1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigReport:
				exportReport(store, scanner, exporter, cfg.CapturesDir)
			}
		}
	}()

	runMainLoop(ctx, store, recoveryCtl, owner, displayWorker)

	slog.Info("corvid shutting down")
}

// runMainLoop is component K: it polls the recovery controller against
// the topology store's live AP count, ticks the framebuffer owner's
// animation, and wakes the display worker whenever a frame is dirty
// and the 500ms render rate limit has elapsed, plus the upload
// watchdog that force-stops a stuck upload animation.
func runMainLoop(ctx context.Context, store *topology.Store, rc *recovery.Controller, owner *display.Owner, dw *display.Worker) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	recoveryTicker := time.NewTicker(5 * time.Second)
	defer recoveryTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			nowMs := now.UnixMilli()
			if owner.Tick(nowMs) {
				dw.Notify()
			}
			if attack.UploadWatchdog(owner.CurrentAnimation(), owner.HoldUntilMs(), nowMs) {
				slog.Warn("upload animation watchdog fired, reverting to look")
				owner.ClearHold()
				owner.StartAnimation(domain.AnimLook, 500)
			}
		case <-recoveryTicker.C:
			now := time.Now()
			apCount := store.SnapshotAPCount()
			switch rc.Check(apCount, now) {
			case recovery.DecisionNeedsRecovery, recovery.DecisionForceRecovery:
				if err := rc.Perform(ctx, now); err != nil {
					slog.Error("recovery attempt failed", "error", err)
					telemetry.RecoveryAttempts.WithLabelValues("failed").Inc()
				} else {
					telemetry.RecoveryAttempts.WithLabelValues("success").Inc()
				}
			}
		}
	}
}

// exportReport renders an on-demand capture report to a timestamped
// PDF file in the captures directory; failures are logged and never
// affect the live counters.
func exportReport(store *topology.Store, scanner *stats.Scanner, exporter *reporting.PDFExporter, capturesDir string) {
	counters := scanner.Counters()
	var crackable []domain.CrackableNetwork
	for i := 0; ; i++ {
		ap, ok := store.GetAPByIndex(i)
		if !ok {
			break
		}
		if scanner.HasCapture(ap.BSSID) {
			crackable = append(crackable, domain.CrackableNetwork{BSSID: ap.BSSID, SSID: ap.SSID})
		}
	}

	req := &domain.CaptureReportRequest{
		GeneratedAt: time.Now(),
		Fhs:         counters.Fhs,
		Phs:         counters.Phs,
		Pwds:        counters.Pwds,
		Tcaps:       counters.Tcaps,
		Crackable:   crackable,
	}

	pdf, err := exporter.ExportCaptureReport(req)
	if err != nil {
		slog.Warn("capture report export failed", "error", err)
		return
	}

	name := fmt.Sprintf("report-%d.pdf", req.GeneratedAt.Unix())
	path := filepath.Join(capturesDir, name)
	if err := os.WriteFile(path, pdf, 0644); err != nil {
		slog.Warn("capture report write failed", "path", path, "error", err)
		return
	}
	slog.Info("capture report written", "path", path)
}
