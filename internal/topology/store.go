// Package topology holds the in-memory view of nearby access points
// and stations, guarded by a single mutex. Tables are bounded; readers
// get copies, never references into the store.
package topology

import (
	"sync"
	"time"

	"github.com/corvidlabs/corvid/internal/core/domain"
)

const (
	maxAPs      = 256
	maxStations = 512
)

// Store is the bounded, concurrency-safe table of access points and
// stations. All operations hold a single lock; snapshot readers copy
// out fixed-size value types so callers never hold a reference into
// the store's internals.
type Store struct {
	mu sync.Mutex

	aps      map[domain.MAC]*domain.AccessPoint
	apOrder  []domain.MAC // insertion order, for index-based access
	stations map[domain.MAC]*domain.Station

	handshakeCount int
	lastFullSync   time.Time
	initialSync    bool
}

// New returns an empty store.
func New() *Store {
	return &Store{
		aps:      make(map[domain.MAC]*domain.AccessPoint),
		stations: make(map[domain.MAC]*domain.Station),
	}
}

// InsertOrUpdateAP inserts a new AP or merges a fresh sighting into an
// existing one. Insertion fails silently (returns false) once the
// table is at capacity and bssid is not already present.
func (s *Store) InsertOrUpdateAP(ap domain.AccessPoint, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.aps[ap.BSSID]
	if !ok {
		if len(s.aps) >= maxAPs {
			return false
		}
		cp := ap
		cp.Touch(now)
		s.aps[ap.BSSID] = &cp
		s.apOrder = append(s.apOrder, ap.BSSID)
		return true
	}

	firstSeen := existing.FirstSeen
	*existing = ap
	existing.FirstSeen = firstSeen
	existing.Touch(now)
	return true
}

// RemoveAP deletes the AP and cascades removal to every station whose
// APBSSID equals bssid.
func (s *Store) RemoveAP(bssid domain.MAC) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.aps[bssid]; !ok {
		return
	}
	delete(s.aps, bssid)
	for i, b := range s.apOrder {
		if b == bssid {
			s.apOrder = append(s.apOrder[:i], s.apOrder[i+1:]...)
			break
		}
	}
	for mac, sta := range s.stations {
		if sta.APBSSID == bssid {
			delete(s.stations, mac)
		}
	}
}

// InsertOrUpdateSta inserts a new station or merges a fresh sighting.
// Fails silently once the table is at capacity and mac is not already
// present.
func (s *Store) InsertOrUpdateSta(sta domain.Station, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.stations[sta.MAC]
	if !ok {
		if len(s.stations) >= maxStations {
			return false
		}
		cp := sta
		cp.Touch(now)
		s.stations[sta.MAC] = &cp
		return true
	}

	firstSeen := existing.FirstSeen
	*existing = sta
	if !firstSeen.IsZero() {
		existing.FirstSeen = firstSeen
	}
	existing.Touch(now)
	return true
}

// RemoveSta deletes one station.
func (s *Store) RemoveSta(mac domain.MAC) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stations, mac)
}

// SnapshotAPCount returns the number of tracked APs.
func (s *Store) SnapshotAPCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.aps)
}

// SnapshotStaCount returns the number of tracked stations.
func (s *Store) SnapshotStaCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stations)
}

// GetAPByIndex returns a copy of the AP at insertion-order index i.
func (s *Store) GetAPByIndex(i int) (domain.AccessPoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.apOrder) {
		return domain.AccessPoint{}, false
	}
	ap := s.aps[s.apOrder[i]]
	return *ap, true
}

// FindAPByBSSID returns a copy of the AP, if tracked.
func (s *Store) FindAPByBSSID(bssid domain.MAC) (domain.AccessPoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ap, ok := s.aps[bssid]
	if !ok {
		return domain.AccessPoint{}, false
	}
	return *ap, true
}

// HandshakeCount returns the lifetime count of wifi.client.handshake
// events observed, incremented only by IncrementHandshakeCount. It is
// untouched by REST reconciliation: reconciliation resyncs the AP/
// station tables only, never the event-driven counters.
func (s *Store) HandshakeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handshakeCount
}

// IncrementHandshakeCount bumps the lifetime handshake counter by one.
// Called by the bus client when a wifi.client.handshake event arrives.
func (s *Store) IncrementHandshakeCount() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handshakeCount++
}

// ClearAndBulkReplace discards the current AP/station tables and
// replaces them wholesale, used by REST reconciliation to resync
// against the authoritative source of truth. The handshake counter is
// deliberately left untouched: it is driven by streamed events, not by
// the periodic snapshot.
func (s *Store) ClearAndBulkReplace(aps []domain.AccessPoint, stations []domain.Station, syncedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.aps = make(map[domain.MAC]*domain.AccessPoint, len(aps))
	s.apOrder = s.apOrder[:0]
	for i := range aps {
		if len(s.aps) >= maxAPs {
			break
		}
		cp := aps[i]
		s.aps[cp.BSSID] = &cp
		s.apOrder = append(s.apOrder, cp.BSSID)
	}

	s.stations = make(map[domain.MAC]*domain.Station, len(stations))
	for i := range stations {
		if len(s.stations) >= maxStations {
			break
		}
		cp := stations[i]
		s.stations[cp.MAC] = &cp
	}

	s.lastFullSync = syncedAt
	s.initialSync = true
}

// LastFullSync returns the timestamp of the last ClearAndBulkReplace.
func (s *Store) LastFullSync() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFullSync
}

// InitialSyncDone reports whether the first reconciliation has run.
func (s *Store) InitialSyncDone() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialSync
}
