// Package stats implements the stats scanner: a periodic sweep of the
// captures/cracked directories that derives the FHS/PHS/PWDS/TCAPS
// counters consumed by the framebuffer owner, and promotes wpa-sec
// potfile entries into cracked-password key files. Pcap verdicts are
// cached by mtime in a 64-entry FIFO cache, so an unchanged capture is
// not re-analyzed while its entry is cached; with more captures than
// that, evicted entries are analyzed again. A capture the analyzer
// rejects is not cached and is analyzed again on every sweep.
package stats

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/corvidlabs/corvid/internal/core/domain"
)

// Analyzer is the narrow handshake-analysis port, matching
// handshake.Analyze without importing the handshake package directly
// (keeps stats decoupled from pcap parsing internals).
type Analyzer interface {
	Analyze(path string) (*domain.HandshakeInfo, domain.Verdict, error)
}

type cacheEntry struct {
	mtime   time.Time
	verdict domain.Verdict
}

// pcapCacheCapacity bounds the verdict cache per §3/§9: a fixed-size
// FIFO map, oldest entry evicted on insert past capacity, no unbounded
// growth even against a capture directory that never shrinks.
const pcapCacheCapacity = 64

// pcapCache is a bounded FIFO map from pcap filename to its cached
// mtime/verdict pair. Re-inserting an existing key updates the value in
// place without disturbing its eviction order.
type pcapCache struct {
	capacity int
	entries  map[string]cacheEntry
	order    []string
}

func newPcapCache(capacity int) *pcapCache {
	return &pcapCache{
		capacity: capacity,
		entries:  make(map[string]cacheEntry, capacity),
	}
}

func (c *pcapCache) get(key string) (cacheEntry, bool) {
	e, ok := c.entries[key]
	return e, ok
}

func (c *pcapCache) set(key string, entry cacheEntry) {
	if _, exists := c.entries[key]; !exists {
		if len(c.order) >= c.capacity {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = entry
}

func (c *pcapCache) len() int {
	return len(c.entries)
}

// Counters are the four canonical values read by the display layer.
type Counters struct {
	Fhs   int // full handshakes: verdict-2 pcaps
	Phs   int // partial handshakes: verdict-1 pcaps, plus orphan .22000 files
	Pwds  int // cracked-password key files
	Tcaps int // total pcap files
}

// Scanner owns the verdict cache and the captures/cracked directory
// state. One Scanner per captures directory; Scan is safe to call from
// multiple goroutines (the 60s timer and an on-demand trigger from the
// attack coordinator) but serializes internally.
type Scanner struct {
	capturesDir string
	crackedDir  string
	potfilePath string
	analyzer    Analyzer

	mu    sync.Mutex
	cache *pcapCache

	potfileMtime time.Time

	counters atomicCounters
	rescan   chan struct{}
}

type atomicCounters struct {
	mu sync.RWMutex
	c  Counters
}

func (a *atomicCounters) set(c Counters) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.c = c
}

func (a *atomicCounters) get() Counters {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.c
}

// New constructs a Scanner over the given directories.
func New(capturesDir, crackedDir, potfilePath string, analyzer Analyzer) *Scanner {
	return &Scanner{
		capturesDir: capturesDir,
		crackedDir:  crackedDir,
		potfilePath: potfilePath,
		analyzer:    analyzer,
		cache:       newPcapCache(pcapCacheCapacity),
		rescan:      make(chan struct{}, 1),
	}
}

// Counters returns the most recently computed counters.
func (s *Scanner) Counters() Counters {
	return s.counters.get()
}

// HasCapture implements attack.CaptureChecker: true when a pcap file
// for this BSSID already carries a crackable verdict in the cache.
func (s *Scanner) HasCapture(bssid domain.MAC) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	suffix := strings.ReplaceAll(bssid.String(), ":", "") + ".pcap"
	for path, entry := range s.cache.entries {
		if strings.HasSuffix(strings.ToLower(path), strings.ToLower(suffix)) && entry.verdict == domain.VerdictCrackable {
			return true
		}
	}
	return false
}

// Scan performs one full sweep: pcap verdicts, orphan .22000 hash
// files, potfile promotion, and cracked-key counting. Errors reading an
// individual file are logged and skipped; Scan never returns an error
// itself since a single bad file must not abort the sweep.
func (s *Scanner) Scan() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()

	pcapVerdicts := s.scanPcaps()
	fhs, phs, tcaps := 0, 0, 0
	seenBase := make(map[string]bool)
	for base, v := range pcapVerdicts {
		seenBase[base] = true
		tcaps++
		switch v {
		case domain.VerdictCrackable:
			fhs++
		case domain.VerdictPartial:
			phs++
		}
	}
	phs += s.countOrphanHashes(seenBase)

	s.promotePotfile()
	pwds := s.countKeyFiles()

	counters := Counters{Fhs: fhs, Phs: phs, Pwds: pwds, Tcaps: tcaps}
	s.counters.set(counters)
	return counters
}

// scanPcaps enumerates the captures directory, reusing cached verdicts
// when a file's mtime has not changed, and returns verdict by base
// filename (without extension).
func (s *Scanner) scanPcaps() map[string]domain.Verdict {
	out := make(map[string]domain.Verdict)
	entries, err := os.ReadDir(s.capturesDir)
	if err != nil {
		slog.Warn("stats: read captures dir failed", "dir", s.capturesDir, "error", err)
		return out
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".pcap") {
			continue
		}
		path := filepath.Join(s.capturesDir, e.Name())
		info, err := e.Info()
		if err != nil {
			continue
		}
		mtime := info.ModTime()

		if cached, ok := s.cache.get(path); ok && cached.mtime.Equal(mtime) {
			out[baseName(e.Name())] = cached.verdict
			continue
		}

		if s.analyzer == nil {
			continue
		}
		_, verdict, err := s.analyzer.Analyze(path)
		if err != nil {
			slog.Warn("stats: analyze failed, skipping", "file", path, "error", err)
			continue
		}
		s.cache.set(path, cacheEntry{mtime: mtime, verdict: verdict})
		out[baseName(e.Name())] = verdict
	}
	return out
}

// countOrphanHashes counts .22000 files with no matching pcap base
// name; these count as partial handshakes.
func (s *Scanner) countOrphanHashes(seenBase map[string]bool) int {
	entries, err := os.ReadDir(s.capturesDir)
	if err != nil {
		return 0
	}
	count := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".22000") {
			continue
		}
		if !seenBase[baseName(e.Name())] {
			count++
		}
	}
	return count
}

// promotePotfile reads MAC:SSID:PASSWORD lines and writes a <SSID>.key
// file for any SSID that doesn't already have one. The potfile's mtime
// is tracked separately so an unchanged potfile is skipped entirely on
// a given sweep; any external rewrite of the file (wpa-sec's cracker)
// is picked up the next time its mtime advances.
func (s *Scanner) promotePotfile() {
	if s.potfilePath == "" {
		return
	}
	info, err := os.Stat(s.potfilePath)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("stats: stat potfile failed", "error", err)
		}
		return
	}
	if info.ModTime().Equal(s.potfileMtime) {
		return
	}

	f, err := os.Open(s.potfilePath)
	if err != nil {
		slog.Warn("stats: open potfile failed", "error", err)
		return
	}
	defer f.Close()

	if err := os.MkdirAll(s.crackedDir, 0o755); err != nil {
		slog.Warn("stats: mkdir cracked dir failed", "error", err)
		return
	}

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		ssid, password, ok := splitPotfileLine(line)
		if !ok {
			continue
		}
		keyPath := filepath.Join(s.crackedDir, ssid+".key")
		if _, err := os.Stat(keyPath); err == nil {
			continue
		}
		if err := os.WriteFile(keyPath, []byte(password), 0o600); err != nil {
			slog.Warn("stats: write key file failed", "ssid", ssid, "error", err)
		}
	}
	s.potfileMtime = info.ModTime()
}

// splitPotfileLine parses one MAC:SSID:PASSWORD potfile entry. The MAC
// may itself be colon-separated (aa:bb:cc:dd:ee:ff), so the MAC is
// peeled off the front first and only the remainder is split into
// SSID and password.
func splitPotfileLine(line string) (ssid, password string, ok bool) {
	rest := line
	if len(line) > 17 && line[17] == ':' {
		if _, err := domain.ParseMAC(line[:17]); err == nil {
			rest = line[18:]
		}
	}
	if rest == line {
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			return "", "", false
		}
		rest = parts[1]
	}
	ssid, password, found := strings.Cut(rest, ":")
	if !found || ssid == "" {
		return "", "", false
	}
	return ssid, password, true
}

func (s *Scanner) countKeyFiles() int {
	entries, err := os.ReadDir(s.crackedDir)
	if err != nil {
		return 0
	}
	count := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".key") {
			count++
		}
	}
	return count
}

func baseName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func (c Counters) String() string {
	return fmt.Sprintf("Counters(fhs=%d phs=%d pwds=%d tcaps=%d)", c.Fhs, c.Phs, c.Pwds, c.Tcaps)
}
