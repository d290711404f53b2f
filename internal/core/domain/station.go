package domain

import "time"

const maxProbedSSIDs = 5

// Station is a single observed WiFi client. Identity is MAC.
type Station struct {
	MAC         MAC
	APBSSID     MAC // zero if not associated
	Vendor      string
	RSSI        int8
	FirstSeen   time.Time
	LastSeen    time.Time
	ProbedSSIDs []string // capped at maxProbedSSIDs, most recent last
	Associated  bool
}

// Touch applies an update from a fresh sighting.
func (s *Station) Touch(now time.Time) {
	if s.FirstSeen.IsZero() {
		s.FirstSeen = now
	}
	if now.Before(s.FirstSeen) {
		now = s.FirstSeen
	}
	s.LastSeen = now
}

// AddProbedSSID records a probed SSID, keeping at most maxProbedSSIDs,
// most-recently-seen last. Duplicates are moved to the end rather than
// appended again.
func (s *Station) AddProbedSSID(ssid string) {
	if ssid == "" {
		return
	}
	for i, existing := range s.ProbedSSIDs {
		if existing == ssid {
			s.ProbedSSIDs = append(s.ProbedSSIDs[:i], s.ProbedSSIDs[i+1:]...)
			break
		}
	}
	s.ProbedSSIDs = append(s.ProbedSSIDs, ssid)
	if len(s.ProbedSSIDs) > maxProbedSSIDs {
		s.ProbedSSIDs = s.ProbedSSIDs[len(s.ProbedSSIDs)-maxProbedSSIDs:]
	}
}
