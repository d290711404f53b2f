package display

import "fmt"

// Rect is an integer widget placement, (x,y) top-left plus size.
type Rect struct {
	X, Y, W, H int
}

// Layout fixes the position of every widget for one panel geometry,
// selected by a named preset. FaceScaled indicates whether the face
// widget should be drawn through BlitScaled3x2 rather than blitted 1:1.
type Layout struct {
	Name   string
	Width  int
	Height int

	Face     Rect
	Status   Rect
	Channel  Rect
	APS      Rect
	Uptime   Rect
	Shakes   Rect
	Mode     Rect
	Friend   Rect
	BT       Rect
	GPS      Rect
	Battery  Rect
	MemTemp  Rect
	FaceScaled bool
}

// presets covers the common e-ink panels this device ships with.
var presets = map[string]Layout{
	"waveshare_v1": {
		Name: "waveshare_v1", Width: 250, Height: 122,
		Face: Rect{0, 24, 64, 64}, Status: Rect{0, 0, 250, 16},
		Channel: Rect{0, 92, 40, 10}, APS: Rect{42, 92, 40, 10},
		Uptime: Rect{84, 92, 50, 10}, Shakes: Rect{136, 92, 50, 10},
		Mode: Rect{188, 92, 30, 10}, Friend: Rect{70, 24, 180, 16},
		BT: Rect{230, 0, 10, 10}, GPS: Rect{210, 0, 16, 10},
		Battery: Rect{0, 108, 60, 10}, MemTemp: Rect{64, 108, 120, 10},
	},
	"waveshare_v2": {
		Name: "waveshare_v2", Width: 250, Height: 122,
		Face: Rect{0, 26, 70, 70}, Status: Rect{0, 0, 250, 16},
		Channel: Rect{0, 100, 40, 10}, APS: Rect{42, 100, 40, 10},
		Uptime: Rect{84, 100, 50, 10}, Shakes: Rect{136, 100, 50, 10},
		Mode: Rect{188, 100, 30, 10}, Friend: Rect{76, 26, 174, 16},
		BT: Rect{230, 0, 10, 10}, GPS: Rect{210, 0, 16, 10},
		Battery: Rect{0, 112, 60, 10}, MemTemp: Rect{64, 112, 120, 10},
		FaceScaled: true,
	},
	"waveshare_144": {
		Name: "waveshare_144", Width: 128, Height: 128,
		Face: Rect{0, 20, 64, 64}, Status: Rect{0, 0, 128, 16},
		Channel: Rect{0, 96, 30, 10}, APS: Rect{32, 96, 30, 10},
		Uptime: Rect{64, 96, 32, 10}, Shakes: Rect{96, 96, 32, 10},
		Mode: Rect{0, 118, 32, 10}, Friend: Rect{0, 84, 128, 12},
		BT: Rect{118, 0, 10, 10}, GPS: Rect{104, 0, 12, 10},
		Battery: Rect{32, 118, 40, 10}, MemTemp: Rect{72, 118, 56, 10},
	},
	"inky_phat": {
		Name: "inky_phat", Width: 212, Height: 104,
		Face: Rect{0, 18, 60, 60}, Status: Rect{0, 0, 212, 14},
		Channel: Rect{0, 82, 36, 10}, APS: Rect{38, 82, 36, 10},
		Uptime: Rect{76, 82, 48, 10}, Shakes: Rect{126, 82, 48, 10},
		Mode: Rect{176, 82, 36, 10}, Friend: Rect{64, 18, 148, 14},
		BT: Rect{196, 0, 10, 10}, GPS: Rect{180, 0, 14, 10},
		Battery: Rect{0, 92, 50, 10}, MemTemp: Rect{52, 92, 100, 10},
	},
	"lcd_hat": {
		Name: "lcd_hat", Width: 320, Height: 240,
		Face: Rect{0, 40, 120, 120}, Status: Rect{0, 0, 320, 24},
		Channel: Rect{0, 200, 60, 16}, APS: Rect{62, 200, 60, 16},
		Uptime: Rect{124, 200, 80, 16}, Shakes: Rect{206, 200, 80, 16},
		Mode: Rect{0, 220, 60, 16}, Friend: Rect{124, 40, 196, 24},
		BT: Rect{300, 0, 16, 16}, GPS: Rect{280, 0, 18, 16},
		Battery: Rect{62, 220, 100, 16}, MemTemp: Rect{164, 220, 120, 16},
		FaceScaled: true,
	},
	"oled_128x64": {
		Name: "oled_128x64", Width: 128, Height: 64,
		Face: Rect{0, 10, 32, 32}, Status: Rect{0, 0, 128, 8},
		Channel: Rect{0, 54, 24, 8}, APS: Rect{26, 54, 24, 8},
		Uptime: Rect{52, 54, 30, 8}, Shakes: Rect{84, 54, 22, 8},
		Mode: Rect{106, 54, 22, 8}, Friend: Rect{34, 10, 94, 10},
		BT: Rect{118, 0, 8, 8}, GPS: Rect{108, 0, 8, 8},
		Battery: Rect{0, 44, 40, 8}, MemTemp: Rect{42, 44, 86, 8},
	},
}

// DefaultLayoutName is used when an unrecognized layout name is
// configured.
const DefaultLayoutName = "waveshare_v2"

// LookupLayout resolves a named preset, falling back to the default
// with ok=false when the name is unrecognized.
func LookupLayout(name string) (Layout, bool) {
	l, ok := presets[name]
	if !ok {
		return presets[DefaultLayoutName], false
	}
	return l, true
}

// LayoutNames lists every known preset, for CLI help text and config
// validation.
func LayoutNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	return names
}

func (l Layout) String() string {
	return fmt.Sprintf("Layout(%s %dx%d)", l.Name, l.Width, l.Height)
}
