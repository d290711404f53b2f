package domain

import "time"

// AccessPoint is a single observed WiFi access point. Identity is BSSID.
type AccessPoint struct {
	BSSID             MAC
	SSID              string // up to 32 chars
	RSSI              int8   // dBm, signed
	Channel           int    // 1-14 or 36-165
	Encryption        string
	Vendor            string
	FirstSeen         time.Time
	LastSeen          time.Time
	ClientsCount      int
	PMKIDAvailable    bool
	HandshakeCaptured bool
}

// Touch applies an update from a fresh sighting, preserving FirstSeen and
// enforcing the LastSeen >= FirstSeen invariant.
func (ap *AccessPoint) Touch(now time.Time) {
	if ap.FirstSeen.IsZero() {
		ap.FirstSeen = now
	}
	if now.Before(ap.FirstSeen) {
		now = ap.FirstSeen
	}
	ap.LastSeen = now
}
