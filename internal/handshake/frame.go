package handshake

import "encoding/binary"

const (
	dot11HeaderBase = 24
	radiotapLenOff  = 2 // little-endian u16 at offset 2 of the radiotap header
)

// llcEapolPrefix is the fixed LLC/SNAP prefix preceding an EAPOL payload on
// an 802.11 data frame: DSAP/SSAP 0xAA 0xAA, control 0x03, zero OUI,
// EtherType 0x888E.
var llcEapolPrefix = []byte{0xAA, 0xAA, 0x03, 0x00, 0x00, 0x00, 0x88, 0x8E}

const etherTypeEAPOL = 0x888E

// extractEapol locates and returns the EAPOL payload (header + body)
// within one captured frame, or false if this frame does not carry one.
func extractEapol(linkType uint32, order byteOrder, data []byte) ([]byte, bool) {
	switch linkType {
	case linkTypeEthernet:
		return extractFromEthernet(data)
	case linkType80211:
		return extractFrom80211(data)
	case linkType80211Radio:
		rtLen, ok := radiotapLength(order, data)
		if !ok || rtLen > len(data) {
			return nil, false
		}
		return extractFrom80211(data[rtLen:])
	default:
		return nil, false
	}
}

func radiotapLength(order byteOrder, data []byte) (int, bool) {
	if len(data) < 4 {
		return 0, false
	}
	// radiotap length field is always little-endian in the file,
	// regardless of the pcap global header's byte order.
	l := binary.LittleEndian.Uint16(data[radiotapLenOff : radiotapLenOff+2])
	return int(l), true
}

func extractFromEthernet(data []byte) ([]byte, bool) {
	if len(data) < 14 {
		return nil, false
	}
	etherType := binary.BigEndian.Uint16(data[12:14])
	if etherType != etherTypeEAPOL {
		return nil, false
	}
	return data[14:], true
}

func extractFrom80211(data []byte) ([]byte, bool) {
	if len(data) < 2 {
		return nil, false
	}
	frameControl := binary.LittleEndian.Uint16(data[0:2])
	_type := (frameControl >> 2) & 0x3
	subtype := (frameControl >> 4) & 0xF
	toDS := frameControl&0x0100 != 0
	fromDS := frameControl&0x0200 != 0

	// only data frames (type 2) carry an LLC/SNAP payload we care about.
	if _type != 2 {
		return nil, false
	}

	headerLen := dot11HeaderBase
	if subtype >= 8 {
		headerLen += 2 // QoS control field
	}
	if toDS && fromDS {
		headerLen += 6 // 4th address field (WDS)
	}

	if len(data) < headerLen+len(llcEapolPrefix) {
		return nil, false
	}
	body := data[headerLen:]
	if len(body) < len(llcEapolPrefix) {
		return nil, false
	}
	for i, b := range llcEapolPrefix {
		if body[i] != b {
			return nil, false
		}
	}
	return body[len(llcEapolPrefix):], true
}
