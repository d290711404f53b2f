package topology

import (
	"testing"
	"time"

	"github.com/corvidlabs/corvid/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustMAC(t *testing.T, s string) domain.MAC {
	m, err := domain.ParseMAC(s)
	require.NoError(t, err)
	return m
}

func TestInsertOrUpdateAP_PreservesFirstSeen(t *testing.T) {
	s := New()
	bssid := mustMAC(t, "aa:bb:cc:dd:ee:01")
	t0 := time.Now()

	ok := s.InsertOrUpdateAP(domain.AccessPoint{BSSID: bssid, SSID: "net"}, t0)
	require.True(t, ok)

	t1 := t0.Add(5 * time.Second)
	ok = s.InsertOrUpdateAP(domain.AccessPoint{BSSID: bssid, SSID: "net", RSSI: -40}, t1)
	require.True(t, ok)

	ap, found := s.FindAPByBSSID(bssid)
	require.True(t, found)
	assert.Equal(t, t0, ap.FirstSeen)
	assert.Equal(t, t1, ap.LastSeen)
	assert.Equal(t, int8(-40), ap.RSSI)
}

func TestInsertOrUpdateAP_CapacityLimit(t *testing.T) {
	s := New()
	now := time.Now()
	for i := 0; i < maxAPs; i++ {
		bssid := domain.MAC{0, 0, 0, 0, byte(i >> 8), byte(i)}
		require.True(t, s.InsertOrUpdateAP(domain.AccessPoint{BSSID: bssid}, now))
	}
	assert.Equal(t, maxAPs, s.SnapshotAPCount())

	overflow := domain.MAC{1, 1, 1, 1, 1, 1}
	ok := s.InsertOrUpdateAP(domain.AccessPoint{BSSID: overflow}, now)
	assert.False(t, ok)
	assert.Equal(t, maxAPs, s.SnapshotAPCount())
}

func TestRemoveAP_CascadesStations(t *testing.T) {
	s := New()
	bssid := mustMAC(t, "aa:bb:cc:dd:ee:02")
	staMAC := mustMAC(t, "11:22:33:44:55:66")
	otherBSSID := mustMAC(t, "aa:bb:cc:dd:ee:03")
	otherSta := mustMAC(t, "66:55:44:33:22:11")
	now := time.Now()

	require.True(t, s.InsertOrUpdateAP(domain.AccessPoint{BSSID: bssid}, now))
	require.True(t, s.InsertOrUpdateAP(domain.AccessPoint{BSSID: otherBSSID}, now))
	require.True(t, s.InsertOrUpdateSta(domain.Station{MAC: staMAC, APBSSID: bssid, Associated: true}, now))
	require.True(t, s.InsertOrUpdateSta(domain.Station{MAC: otherSta, APBSSID: otherBSSID, Associated: true}, now))

	s.RemoveAP(bssid)

	assert.Equal(t, 1, s.SnapshotAPCount())
	assert.Equal(t, 1, s.SnapshotStaCount())
	_, found := s.FindAPByBSSID(bssid)
	assert.False(t, found)
}

func TestHandshakeCount_IsEventDrivenOnly(t *testing.T) {
	s := New()
	bssid := mustMAC(t, "aa:bb:cc:dd:ee:04")
	now := time.Now()

	// Inserting or updating an AP with HandshakeCaptured=true must not,
	// by itself, bump the lifetime handshake counter: only an explicit
	// wifi.client.handshake event does that.
	require.True(t, s.InsertOrUpdateAP(domain.AccessPoint{BSSID: bssid}, now))
	assert.Equal(t, 0, s.HandshakeCount())

	require.True(t, s.InsertOrUpdateAP(domain.AccessPoint{BSSID: bssid, HandshakeCaptured: true}, now))
	assert.Equal(t, 0, s.HandshakeCount())

	s.IncrementHandshakeCount()
	assert.Equal(t, 1, s.HandshakeCount())

	s.IncrementHandshakeCount()
	assert.Equal(t, 2, s.HandshakeCount())
}

func TestClearAndBulkReplace(t *testing.T) {
	s := New()
	now := time.Now()
	require.True(t, s.InsertOrUpdateAP(domain.AccessPoint{BSSID: mustMAC(t, "aa:aa:aa:aa:aa:aa")}, now))
	s.IncrementHandshakeCount()

	newAPs := []domain.AccessPoint{
		{BSSID: mustMAC(t, "bb:bb:bb:bb:bb:bb"), HandshakeCaptured: true},
	}
	newStas := []domain.Station{
		{MAC: mustMAC(t, "cc:cc:cc:cc:cc:cc")},
	}
	syncTime := now.Add(time.Minute)
	s.ClearAndBulkReplace(newAPs, newStas, syncTime)

	assert.Equal(t, 1, s.SnapshotAPCount())
	assert.Equal(t, 1, s.SnapshotStaCount())
	assert.Equal(t, 1, s.HandshakeCount(), "reconciliation must leave the event-driven handshake counter untouched")
	assert.True(t, s.InitialSyncDone())
	assert.Equal(t, syncTime, s.LastFullSync())

	_, found := s.FindAPByBSSID(mustMAC(t, "aa:aa:aa:aa:aa:aa"))
	assert.False(t, found)
}

func TestGetAPByIndex_OutOfRange(t *testing.T) {
	s := New()
	_, ok := s.GetAPByIndex(0)
	assert.False(t, ok)
}
