package handshake

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/corvidlabs/corvid/internal/core/domain"
)

const eapolTypeOffset = 1 // EAPOL header: version(1) type(1) length(2)

// candidate holds one stored message awaiting a match, plus enough
// context to validate against its partner once one arrives.
type candidate struct {
	key eapolKey
	ts  time.Time
	set bool
}

// analyzerState drives the rolling-match selection across interleaved
// exchanges: at most one locked (M1,M2) pair and one locked (M3,M4)
// pair are kept; PMKID is recorded independent of locking.
type analyzerState struct {
	m1, m2, m3, m4 candidate
	m1Locked       bool
	m3Locked       bool
	hasPMKID       bool
}

func (s *analyzerState) observe(kind msgKind, k *eapolKey, ts time.Time) {
	switch kind {
	case msgM1:
		if detectPMKID(k.keyData) {
			s.hasPMKID = true
		}
		if k.mic == ([16]byte{}) && k.nonce != ([32]byte{}) && !s.m1Locked {
			s.m1 = candidate{key: *k, ts: ts, set: true}
		}
	case msgM2:
		if k.mic == ([16]byte{}) || k.nonce == ([32]byte{}) {
			return
		}
		if s.m1.set && withinWindow(k.replayCounter, s.m1.key.replayCounter, 3) {
			s.m2 = candidate{key: *k, ts: ts, set: true}
			s.m1Locked = true
		} else if !s.m2.set {
			s.m2 = candidate{key: *k, ts: ts, set: true}
		}
	case msgM3:
		if k.mic == ([16]byte{}) || k.nonce == ([32]byte{}) {
			return
		}
		if s.m1Locked && bytesEqualPrefix(k.nonce[:], s.m1.key.nonce[:], 28) {
			s.m3 = candidate{key: *k, ts: ts, set: true}
			s.m3Locked = true
		} else if !s.m1Locked {
			s.m3 = candidate{key: *k, ts: ts, set: true}
		}
	case msgM4:
		if k.mic == ([16]byte{}) {
			return
		}
		if s.m3Locked && withinWindow(k.replayCounter, s.m3.key.replayCounter, 3) {
			s.m4 = candidate{key: *k, ts: ts, set: true}
		} else if !s.m3Locked {
			s.m4 = candidate{key: *k, ts: ts, set: true}
		}
	}
}

func withinWindow(rc, base uint64, window uint64) bool {
	if rc < base {
		return false
	}
	return rc-base <= window
}

func bytesEqualPrefix(a, b []byte, n int) bool {
	if len(a) < n || len(b) < n {
		return false
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// buildResult renders the accumulated state into the public
// domain.HandshakeInfo with validation and crackability applied.
func (s *analyzerState) buildResult() *domain.HandshakeInfo {
	h := &domain.HandshakeInfo{HasPMKID: s.hasPMKID}

	if s.m1.set {
		h.HasM1 = true
		h.M1 = toEapolMessage(s.m1)
	}
	if s.m2.set {
		h.HasM2 = true
		h.M2 = toEapolMessage(s.m2)
	}
	if s.m3.set {
		h.HasM3 = true
		h.M3 = toEapolMessage(s.m3)
	}
	if s.m4.set {
		h.HasM4 = true
		h.M4 = toEapolMessage(s.m4)
	}
	h.M1M2Locked = s.m1Locked
	h.M3Locked = s.m3Locked

	h.ReplayValid = replayValid(s)
	h.NonceValid, h.NonceCorrection = nonceValid(s)
	h.TemporalValid = temporalValid(s)
	h.Validated = h.NonceValid && h.ReplayValid

	isCrackable := s.hasPMKID || (h.HasM1 && h.HasM2) || (h.HasM2 && h.HasM3)
	if h.HasM1 && h.HasM2 && !h.ReplayValid && !s.hasPMKID {
		isCrackable = false
	}
	if s.hasPMKID {
		isCrackable = true
	}
	h.IsCrackable = isCrackable

	isFull := h.HasM1 && h.HasM2 && h.HasM3 && h.HasM4
	if isFull && !h.NonceValid {
		isFull = false
	}
	h.IsFull = isFull

	return h
}

func toEapolMessage(c candidate) domain.EapolMessage {
	return domain.EapolMessage{
		ANonce:        c.key.nonce,
		SNonce:        c.key.nonce,
		ReplayCounter: c.key.replayCounter,
		TimestampSec:  uint32(c.ts.Unix()),
		TimestampUsec: uint32(c.ts.Nanosecond() / 1000),
		Present:       true,
	}
}

func replayValid(s *analyzerState) bool {
	if s.m1.set && s.m2.set {
		if !withinWindow(s.m2.key.replayCounter, s.m1.key.replayCounter, 3) {
			return false
		}
	}
	if s.m2.set && s.m3.set {
		if !withinWindow(s.m3.key.replayCounter, s.m2.key.replayCounter, 3) {
			return false
		}
	}
	if s.m3.set && s.m4.set {
		if !withinWindow(s.m4.key.replayCounter, s.m3.key.replayCounter, 3) {
			return false
		}
	} else if s.m4.set && s.m2.set && !s.m3.set {
		if !withinWindow(s.m4.key.replayCounter, s.m2.key.replayCounter, 3) {
			return false
		}
	}
	return true
}

// nonceValid checks ANonce consistency between M1 and M3. With no M3
// to cross-check against, there is nothing to contradict, so nonce
// validity is vacuously true (crackability from M1+M2/PMKID does not
// depend on M3 ever arriving).
func nonceValid(s *analyzerState) (valid, corrected bool) {
	if !s.m1.set || !s.m3.set {
		return true, false
	}
	if !bytesEqualPrefix(s.m1.key.nonce[:], s.m3.key.nonce[:], 28) {
		return false, false
	}
	valid = true
	if s.m1.key.nonce[28] != s.m3.key.nonce[28] ||
		s.m1.key.nonce[29] != s.m3.key.nonce[29] ||
		s.m1.key.nonce[30] != s.m3.key.nonce[30] ||
		s.m1.key.nonce[31] != s.m3.key.nonce[31] {
		corrected = true
	}
	return valid, corrected
}

// temporalValid reports whether every pair of adjacent present
// messages (M1->M2->M3->M4) arrived within 250ms of one another. It is
// a quality signal only and never affects crackability.
func temporalValid(s *analyzerState) bool {
	seq := []candidate{}
	for _, c := range []candidate{s.m1, s.m2, s.m3, s.m4} {
		if c.set {
			seq = append(seq, c)
		}
	}
	for i := 1; i < len(seq); i++ {
		d := seq[i].ts.Sub(seq[i-1].ts)
		if d < 0 {
			d = -d
		}
		if d > 250*time.Millisecond {
			return false
		}
	}
	return true
}

// Analyze reads a pcap file at path end to end and returns the
// reconstructed handshake plus a verdict in {0, 1, 2}.
func Analyze(path string) (*domain.HandshakeInfo, domain.Verdict, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, domain.VerdictNothing, fmt.Errorf("handshake: open %s: %w", path, err)
	}
	defer f.Close()
	return AnalyzeReader(f)
}

// AnalyzeReader is the io.Reader-based entry point used directly by
// tests and by Analyze.
func AnalyzeReader(r io.Reader) (*domain.HandshakeInfo, domain.Verdict, error) {
	gh, err := readGlobalHeader(r)
	if err != nil {
		return nil, domain.VerdictNothing, err
	}
	if gh.linkType != linkTypeEthernet && gh.linkType != linkType80211 && gh.linkType != linkType80211Radio {
		return nil, domain.VerdictNothing, fmt.Errorf("%w: %d", ErrUnsupportedLinkType, gh.linkType)
	}

	records, err := readRecords(r, gh)
	if err != nil {
		return nil, domain.VerdictNothing, err
	}

	st := &analyzerState{}
	for _, rec := range records {
		eapol, ok := extractEapol(gh.linkType, gh.order, rec.data)
		if !ok || len(eapol) < 4 {
			continue
		}
		if !isEapolKey(eapol[eapolTypeOffset]) {
			continue
		}
		body := eapol[4:]
		k, ok := parseEapolKey(body)
		if !ok {
			continue
		}
		kind := classify(k)
		if kind == msgNone {
			continue
		}
		ts := time.Unix(int64(rec.tsSec), int64(rec.tsUsec)*1000)
		st.observe(kind, k, ts)
	}

	info := st.buildResult()
	return info, info.Verdict(), nil
}
