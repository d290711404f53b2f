package domain

// FaceEnum identifies which static face or animation frame the theme
// module should render.
type FaceEnum int

const (
	FaceDefault FaceEnum = iota
	FaceHappy
	FaceBroken
	FaceLook1
	FaceLook2
	FaceLookHappy1
	FaceLookHappy2
	FaceUpload1
	FaceUpload2
	FaceUpload3
	FaceUpload4
	FaceDownload1
	FaceDownload2
	FaceSleep1
	FaceSleep2
)

// AnimationKind names a face animation sequence.
type AnimationKind int

const (
	AnimNone AnimationKind = iota
	AnimLook
	AnimLookHappy
	AnimUpload
	AnimDownload
	AnimSleep
)

// UiState holds every value the renderer needs to draw one frame. All
// mutation goes through the UI lock owned by the framebuffer owner.
type UiState struct {
	Face     FaceEnum
	Status   string
	Channel  string
	APSText  string
	Uptime   string
	Shakes   string
	Mode     string
	Name     string
	Friend   string
	BTStatus string
	GPSStatus string
	BatteryStatus string
	MemTemp  string

	Pwds  int
	Fhs   int
	Phs   int
	Tcaps int
	XP    int
	Level int

	Invert bool

	animKind     AnimationKind
	animInterval int64 // ms
	animFrame    int
	animLastTick int64 // ms
	holdUntil    int64 // ms, 0 = no hold

	Dirty bool
}

// AnimationStart arms a new frame sequence.
func (u *UiState) AnimationStart(kind AnimationKind, intervalMs int64) {
	u.animKind = kind
	u.animInterval = intervalMs
	u.animFrame = 0
	u.animLastTick = 0
	u.Dirty = true
}

// AnimationTick advances the armed sequence no faster than its interval,
// returning the current frame index.
func (u *UiState) AnimationTick(nowMs int64) int {
	if u.animKind == AnimNone || u.animInterval <= 0 {
		return u.animFrame
	}
	if u.animLastTick == 0 || nowMs-u.animLastTick >= u.animInterval {
		u.animFrame++
		u.animLastTick = nowMs
		u.Dirty = true
	}
	return u.animFrame
}

// AnimationKind reports the currently armed animation.
func (u *UiState) AnimationKind() AnimationKind {
	return u.animKind
}

// CurrentFrame reports the ticked frame index of the armed animation.
func (u *UiState) CurrentFrame() int {
	return u.animFrame
}

// CurrentFace resolves the face enum to render: the armed animation's
// current frame (LOOK/LOOK_HAPPY/DOWNLOAD/SLEEP cycle two frames,
// UPLOAD cycles its 2x2 grid of four), or the static Face when no
// animation is armed.
func (u *UiState) CurrentFace() FaceEnum {
	switch u.animKind {
	case AnimLook:
		return FaceLook1 + FaceEnum(u.animFrame%2)
	case AnimLookHappy:
		return FaceLookHappy1 + FaceEnum(u.animFrame%2)
	case AnimUpload:
		return FaceUpload1 + FaceEnum(u.animFrame%4)
	case AnimDownload:
		return FaceDownload1 + FaceEnum(u.animFrame%2)
	case AnimSleep:
		return FaceSleep1 + FaceEnum(u.animFrame%2)
	default:
		return u.Face
	}
}

// ExtendHold pushes the hold deadline forward to now+d.
func (u *UiState) ExtendHold(nowMs, durationMs int64) {
	u.holdUntil = nowMs + durationMs
}

// ClearHold releases the hold immediately.
func (u *UiState) ClearHold() {
	u.holdUntil = 0
}

// HoldUntilMs exposes the current hold deadline (0 if not held), for
// the upload watchdog check.
func (u *UiState) HoldUntilMs() int64 {
	return u.holdUntil
}

// OnHold reports whether a mood-driven update should be skipped because
// an attack-phase hold is active.
func (u *UiState) OnHold(nowMs int64) bool {
	return nowMs < u.holdUntil
}
