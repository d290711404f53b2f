package display

import (
	"strconv"
	"sync"
	"time"

	"github.com/corvidlabs/corvid/internal/core/domain"
)

// GlyphSource is the external font module: it turns a string into a
// run of rendered glyph bitmaps at a given point size. The framebuffer
// owner never rasterizes text itself.
type GlyphSource interface {
	Render(text string, sizePt int) []Glyph
}

// FaceSource is the external theme module: it maps a face enum (a
// static face or one animation frame) to the bitmap to blit.
type FaceSource interface {
	Face(face domain.FaceEnum) *Framebuffer
}

// Owner is the single owner of UI state and the framebuffer it
// rasterizes into, surrounded by one lock. Every mutator takes the
// lock, updates state, and marks the frame dirty; rendering takes a
// consistent snapshot under the same lock before drawing.
type Owner struct {
	mu     sync.Mutex
	state  domain.UiState
	layout Layout
	fb     *Framebuffer
	fonts  GlyphSource
	faces  FaceSource

	lastRenderMs int64
}

// NewOwner constructs an Owner for the named layout preset. An
// unrecognized name falls back to the default layout and is logged by
// the caller.
func NewOwner(layoutName string, fonts GlyphSource, faces FaceSource) (*Owner, bool) {
	layout, ok := LookupLayout(layoutName)
	return &Owner{
		layout: layout,
		fb:     NewFramebuffer(layout.Width, layout.Height),
		fonts:  fonts,
		faces:  faces,
	}, ok
}

// Mutate runs fn with the UI lock held and marks the frame dirty
// afterward. Every external write to UiState goes through this so the
// renderer always sees a consistent snapshot.
func (o *Owner) Mutate(fn func(*domain.UiState)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(&o.state)
	o.state.Dirty = true
}

// SetStatus is the attack coordinator's UIHooks.SetStatus adapter.
func (o *Owner) SetStatus(status string) {
	o.Mutate(func(s *domain.UiState) { s.Status = status })
}

// SetFace is the attack coordinator's UIHooks.SetFace adapter. The
// static face shows whenever no animation is armed.
func (o *Owner) SetFace(face domain.FaceEnum) {
	o.Mutate(func(s *domain.UiState) { s.Face = face })
}

// SetAPSCount is the attack coordinator's UIHooks.SetAPSCount adapter.
func (o *Owner) SetAPSCount(n int) {
	o.Mutate(func(s *domain.UiState) { s.APSText = strconv.Itoa(n) })
}

// StartAnimation is the attack coordinator's UIHooks.StartAnimation
// adapter.
func (o *Owner) StartAnimation(kind domain.AnimationKind, intervalMs int64) {
	o.Mutate(func(s *domain.UiState) { s.AnimationStart(kind, intervalMs) })
}

// ExtendHold is the attack coordinator's UIHooks.ExtendHold adapter.
func (o *Owner) ExtendHold(durationMs int64) {
	nowMs := time.Now().UnixMilli()
	o.Mutate(func(s *domain.UiState) { s.ExtendHold(nowMs, durationMs) })
}

// SetMood applies a mood-driven face/status update from the policy
// engine. Per the UI hold contract (§4.F/§9), mood updates are dropped
// while an attack-phase hold is active, except the "ready" mood, which
// always breaks through and clears the hold so the next attack-phase
// update starts from a clean slate.
func (o *Owner) SetMood(face domain.FaceEnum, status string, ready bool, nowMs int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.OnHold(nowMs) && !ready {
		return
	}
	if ready {
		o.state.ClearHold()
	}
	o.state.Face = face
	o.state.Status = status
	o.state.Dirty = true
}

// SetCounters updates the four canonical stats-scanner counters.
func (o *Owner) SetCounters(pwds, fhs, phs, tcaps int) {
	o.Mutate(func(s *domain.UiState) {
		s.Pwds, s.Fhs, s.Phs, s.Tcaps = pwds, fhs, phs, tcaps
	})
}

// Tick advances the armed animation and returns whether a refresh should
// be requested: dirty and at least 500ms since the last render.
func (o *Owner) Tick(nowMs int64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.AnimationTick(nowMs)
	if !o.state.Dirty {
		return false
	}
	if nowMs-o.lastRenderMs < 500 {
		return false
	}
	return true
}

// HoldUntilMs exposes the current hold deadline for the upload
// watchdog check (0 if not held).
func (o *Owner) HoldUntilMs() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.HoldUntilMs()
}

// CurrentAnimation exposes the armed animation kind for the upload
// watchdog check.
func (o *Owner) CurrentAnimation() domain.AnimationKind {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.AnimationKind()
}

// ClearHold releases the attack-phase hold, used by the upload
// watchdog after force-stopping a stuck animation.
func (o *Owner) ClearHold() {
	o.Mutate(func(s *domain.UiState) { s.ClearHold() })
}

// Render takes a consistent snapshot under the lock, rasterizes it into
// the framebuffer, clears the dirty flag, and returns the finished
// bytes for the display worker to hand off.
func (o *Owner) Render(nowMs int64) []byte {
	o.mu.Lock()
	snap := o.state
	o.state.Dirty = false
	o.lastRenderMs = nowMs
	o.mu.Unlock()

	o.fb.Clear()
	o.drawWidget(o.layout.Status, snap.Status)
	o.drawWidget(o.layout.Channel, snap.Channel)
	o.drawWidget(o.layout.APS, snap.APSText)
	o.drawWidget(o.layout.Uptime, snap.Uptime)
	o.drawWidget(o.layout.Shakes, snap.Shakes)
	o.drawWidget(o.layout.Mode, snap.Mode)
	o.drawWidget(o.layout.Friend, snap.Friend)
	o.drawWidget(o.layout.BT, snap.BTStatus)
	o.drawWidget(o.layout.GPS, snap.GPSStatus)
	o.drawWidget(o.layout.Battery, snap.BatteryStatus)
	o.drawWidget(o.layout.MemTemp, snap.MemTemp)

	if o.faces != nil {
		face := o.faces.Face(snap.CurrentFace())
		if face != nil {
			if o.layout.FaceScaled {
				o.fb.BlitScaled3x2(face, o.layout.Face.X, o.layout.Face.Y)
			} else {
				for y := 0; y < face.Height; y++ {
					for x := 0; x < face.Width; x++ {
						o.fb.SetPixel(o.layout.Face.X+x, o.layout.Face.Y+y, face.GetPixel(x, y))
					}
				}
			}
		}
	}

	if snap.Invert {
		o.invert()
	}

	return o.fb.Bytes()
}

func (o *Owner) drawWidget(r Rect, text string) {
	if text == "" || o.fonts == nil {
		return
	}
	glyphs := o.fonts.Render(text, 8)
	o.fb.BlitText(glyphs, r.X, r.Y)
}

func (o *Owner) invert() {
	buf := o.fb.Bytes()
	for i := range buf {
		buf[i] = ^buf[i]
	}
}

// Layout exposes the resolved layout, primarily for tests.
func (o *Owner) Layout() Layout { return o.layout }
