package domain

// Verdict classifies the outcome of an EAPOL capture analysis.
type Verdict int

const (
	// VerdictNothing means no useful EAPOL material was observed.
	VerdictNothing Verdict = 0
	// VerdictPartial means EAPOL key frames were seen but are not crackable.
	VerdictPartial Verdict = 1
	// VerdictCrackable means a validated, crackable handshake was assembled.
	VerdictCrackable Verdict = 2
)

// EapolMessage holds the fields recovered from one EAPOL-Key frame that
// matter for handshake reconstruction.
type EapolMessage struct {
	ANonce        [32]byte
	SNonce        [32]byte
	ReplayCounter uint64
	TimestampSec  uint32
	TimestampUsec uint32
	Present       bool
}

// HandshakeInfo is the result of analyzing a pcap capture for a WPA
// 4-way handshake belonging to one BSSID.
type HandshakeInfo struct {
	HasM1    bool
	HasM2    bool
	HasM3    bool
	HasM4    bool
	HasPMKID bool

	M1 EapolMessage
	M2 EapolMessage
	M3 EapolMessage
	M4 EapolMessage

	M1M2Locked bool
	M3Locked   bool

	NonceValid      bool
	NonceCorrection bool
	ReplayValid     bool
	TemporalValid   bool
	Validated       bool

	IsCrackable bool
	IsFull      bool
}

// Verdict derives the overall classification from the crackability and
// presence flags: crackable wins, otherwise any EAPOL material seen at
// all counts as partial, otherwise nothing useful was found. The one
// exception is an (M1,M2) pair whose replay counters do not bind them
// into one exchange: without a PMKID that capture is worthless to a
// cracker, so it drops all the way to nothing rather than partial.
func (h *HandshakeInfo) Verdict() Verdict {
	if h.IsCrackable {
		return VerdictCrackable
	}
	if h.HasM1 && h.HasM2 && !h.ReplayValid && !h.HasPMKID {
		return VerdictNothing
	}
	if h.HasM1 || h.HasM2 || h.HasM3 || h.HasM4 || h.HasPMKID {
		return VerdictPartial
	}
	return VerdictNothing
}
