package stats

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/corvidlabs/corvid/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnalyzer struct {
	verdicts map[string]domain.Verdict
	calls    int
}

func (f *fakeAnalyzer) Analyze(path string) (*domain.HandshakeInfo, domain.Verdict, error) {
	f.calls++
	v, ok := f.verdicts[filepath.Base(path)]
	if !ok {
		v = domain.VerdictNothing
	}
	return &domain.HandshakeInfo{}, v, nil
}

func writeFile(t *testing.T, dir, name, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644))
}

func TestScan_CountsCrackableAndPartial(t *testing.T) {
	captures := t.TempDir()
	cracked := t.TempDir()
	writeFile(t, captures, "Home_aabbccddeeff.pcap", "x")
	writeFile(t, captures, "Office_112233445566.pcap", "x")

	analyzer := &fakeAnalyzer{verdicts: map[string]domain.Verdict{
		"Home_aabbccddeeff.pcap":   domain.VerdictCrackable,
		"Office_112233445566.pcap": domain.VerdictPartial,
	}}

	s := New(captures, cracked, "", analyzer)
	counters := s.Scan()

	assert.Equal(t, 1, counters.Fhs)
	assert.Equal(t, 1, counters.Phs)
	assert.Equal(t, 2, counters.Tcaps)
}

func TestScan_OrphanHashFileCountsAsPartial(t *testing.T) {
	captures := t.TempDir()
	cracked := t.TempDir()
	writeFile(t, captures, "Orphan_aabbccddeeff.22000", "hash")

	s := New(captures, cracked, "", &fakeAnalyzer{})
	counters := s.Scan()

	assert.Equal(t, 1, counters.Phs)
	assert.Equal(t, 0, counters.Tcaps)
}

func TestScan_ReusesCacheWhenMtimeUnchanged(t *testing.T) {
	captures := t.TempDir()
	cracked := t.TempDir()
	writeFile(t, captures, "Net_aabbccddeeff.pcap", "x")

	analyzer := &fakeAnalyzer{verdicts: map[string]domain.Verdict{"Net_aabbccddeeff.pcap": domain.VerdictCrackable}}
	s := New(captures, cracked, "", analyzer)

	s.Scan()
	s.Scan()

	assert.Equal(t, 1, analyzer.calls)
}

func TestScan_MtimeChangeReanalyzes(t *testing.T) {
	captures := t.TempDir()
	cracked := t.TempDir()
	path := filepath.Join(captures, "Net_aabbccddeeff.pcap")
	writeFile(t, captures, "Net_aabbccddeeff.pcap", "x")

	analyzer := &fakeAnalyzer{verdicts: map[string]domain.Verdict{"Net_aabbccddeeff.pcap": domain.VerdictPartial}}
	s := New(captures, cracked, "", analyzer)
	s.Scan()

	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))
	s.Scan()

	assert.Equal(t, 2, analyzer.calls)
}

func TestPromotePotfile_WritesNewKeyFileOnly(t *testing.T) {
	captures := t.TempDir()
	cracked := t.TempDir()
	potfile := filepath.Join(captures, "wpa-sec.potfile")
	writeFile(t, captures, "wpa-sec.potfile", "aa:bb:cc:dd:ee:ff:Home:hunter2\n11:22:33:44:55:66:Office:s3cr3t\n")
	writeFile(t, cracked, "Office.key", "already-cracked")

	s := New(captures, cracked, potfile, &fakeAnalyzer{})
	counters := s.Scan()

	homeKey, err := os.ReadFile(filepath.Join(cracked, "Home.key"))
	require.NoError(t, err)
	assert.Equal(t, "hunter2", string(homeKey))

	officeKey, err := os.ReadFile(filepath.Join(cracked, "Office.key"))
	require.NoError(t, err)
	assert.Equal(t, "already-cracked", string(officeKey), "existing key file must not be overwritten")

	assert.Equal(t, 2, counters.Pwds)
}

func TestHasCapture_TrueOnlyForCrackableVerdict(t *testing.T) {
	captures := t.TempDir()
	cracked := t.TempDir()
	writeFile(t, captures, "Home_aabbccddeeff.pcap", "x")

	analyzer := &fakeAnalyzer{verdicts: map[string]domain.Verdict{"Home_aabbccddeeff.pcap": domain.VerdictCrackable}}
	s := New(captures, cracked, "", analyzer)
	s.Scan()

	mac, err := domain.ParseMAC("aa:bb:cc:dd:ee:ff")
	require.NoError(t, err)
	assert.True(t, s.HasCapture(mac))

	other, err := domain.ParseMAC("ff:ee:dd:cc:bb:aa")
	require.NoError(t, err)
	assert.False(t, s.HasCapture(other))
}

func TestRun_RescanTriggersExtraSweep(t *testing.T) {
	captures := t.TempDir()
	cracked := t.TempDir()
	s := New(captures, cracked, "", &fakeAnalyzer{})

	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan Counters, 4)
	go s.Run(ctx, func(c Counters) { updates <- c })

	s.Rescan()
	select {
	case <-updates:
	case <-time.After(time.Second):
		t.Fatal("expected a sweep triggered by Rescan")
	}
	cancel()
}

func TestPcapCache_EvictsOldestPastCapacity(t *testing.T) {
	c := newPcapCache(2)
	c.set("a", cacheEntry{verdict: domain.VerdictCrackable})
	c.set("b", cacheEntry{verdict: domain.VerdictPartial})
	c.set("c", cacheEntry{verdict: domain.VerdictNothing})

	assert.Equal(t, 2, c.len())
	_, ok := c.get("a")
	assert.False(t, ok, "oldest entry should have been evicted")
	_, ok = c.get("b")
	assert.True(t, ok)
	_, ok = c.get("c")
	assert.True(t, ok)
}

func TestPcapCache_UpdateInPlaceDoesNotEvict(t *testing.T) {
	c := newPcapCache(2)
	c.set("a", cacheEntry{verdict: domain.VerdictPartial})
	c.set("b", cacheEntry{verdict: domain.VerdictPartial})
	c.set("a", cacheEntry{verdict: domain.VerdictCrackable})

	assert.Equal(t, 2, c.len())
	entry, ok := c.get("a")
	require.True(t, ok)
	assert.Equal(t, domain.VerdictCrackable, entry.verdict)
	_, ok = c.get("b")
	assert.True(t, ok)
}

func TestScan_UnchangedMtimeSkipsReanalysis(t *testing.T) {
	captures := t.TempDir()
	cracked := t.TempDir()
	writeFile(t, captures, "Home_aabbccddeeff.pcap", "x")

	analyzer := &fakeAnalyzer{verdicts: map[string]domain.Verdict{"Home_aabbccddeeff.pcap": domain.VerdictCrackable}}
	s := New(captures, cracked, "", analyzer)

	s.Scan()
	assert.Equal(t, 1, analyzer.calls)

	s.Scan()
	assert.Equal(t, 1, analyzer.calls, "unchanged mtime must not re-invoke the analyzer")
}
