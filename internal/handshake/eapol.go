package handshake

import (
	"encoding/binary"
)

const (
	keyInfoACK     = 0x0080
	keyInfoMIC     = 0x0100
	keyInfoInstall = 0x0040
	keyInfoSecure  = 0x0200
)

// msgKind classifies one EAPOL-Key frame as M1..M4, or none.
type msgKind int

const (
	msgNone msgKind = iota
	msgM1
	msgM2
	msgM3
	msgM4
)

// eapolKey is the decoded WPA key descriptor of one EAPOL-Key frame.
type eapolKey struct {
	keyInfo       uint16
	replayCounter uint64
	nonce         [32]byte
	mic           [16]byte
	keyData       []byte
}

// eapolKeyDescLen is the fixed length of the descriptor up to and
// including key_data_length, before the variable key_data.
const eapolKeyDescLen = 1 + 2 + 2 + 8 + 32 + 16 + 8 + 8 + 16 + 2

// parseEapolKey decodes the WPA key descriptor layout:
// type(1) key_info(2,BE) key_length(2,BE) replay_counter(8,BE) nonce(32)
// key_iv(16) key_rsc(8) key_id(8) mic(16) key_data_length(2,BE) key_data.
func parseEapolKey(b []byte) (*eapolKey, bool) {
	if len(b) < eapolKeyDescLen {
		return nil, false
	}
	k := &eapolKey{}
	k.keyInfo = binary.BigEndian.Uint16(b[1:3])
	k.replayCounter = binary.BigEndian.Uint64(b[5:13])
	copy(k.nonce[:], b[13:45])
	copy(k.mic[:], b[77:93])
	dataLen := binary.BigEndian.Uint16(b[93:95])
	end := 95 + int(dataLen)
	if end > len(b) {
		end = len(b)
	}
	k.keyData = b[95:end]
	return k, true
}

// classify determines which of M1..M4 this key descriptor represents.
// M4 must be tested before M2: both have ACK=0, MIC=1, and differ only
// by the Secure bit.
func classify(k *eapolKey) msgKind {
	ack := k.keyInfo&keyInfoACK != 0
	mic := k.keyInfo&keyInfoMIC != 0
	install := k.keyInfo&keyInfoInstall != 0
	secure := k.keyInfo&keyInfoSecure != 0

	switch {
	case ack && !mic:
		return msgM1
	case ack && mic && install:
		return msgM3
	case !ack && mic && secure:
		return msgM4
	case !ack && mic && !secure:
		return msgM2
	default:
		return msgNone
	}
}

// isEapolKey reports whether a parsed EAPOL header (version, type,
// length) identifies an EAPOL-Key frame (type 3).
func isEapolKey(eapolType byte) bool {
	return eapolType == 3
}

var pmkidOUI = [4]byte{0x00, 0x0F, 0xAC, 0x04}

// detectPMKID scans key_data TLVs (tag, length, value) for a vendor
// KDE whose OUI matches PMKID (00:0F:AC:04) and whose 16-byte PMKID
// value is not all zero.
func detectPMKID(keyData []byte) bool {
	i := 0
	for i+2 <= len(keyData) {
		tag := keyData[i]
		length := int(keyData[i+1])
		valStart := i + 2
		valEnd := valStart + length
		if valEnd > len(keyData) {
			break
		}
		if tag == 0xDD && length >= 20 {
			val := keyData[valStart:valEnd]
			if val[0] == pmkidOUI[0] && val[1] == pmkidOUI[1] && val[2] == pmkidOUI[2] && val[3] == pmkidOUI[3] {
				pmkid := val[4:20]
				if !allZero(pmkid) {
					return true
				}
			}
		}
		i = valEnd
	}
	return false
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
