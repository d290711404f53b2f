// Package domain holds the plain data types shared across the bus client,
// topology store, handshake analyzer, attack coordinator, and display
// pipeline. Nothing here depends on I/O.
package domain

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// MAC is a 6-byte hardware address.
type MAC [6]byte

// ZeroMAC is the all-zero address used to mark "not associated".
var ZeroMAC = MAC{}

// ParseMAC parses the canonical "aa:bb:cc:dd:ee:ff" form.
func ParseMAC(s string) (MAC, error) {
	var m MAC
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return m, fmt.Errorf("mac %q: expected 6 colon-separated octets, got %d", s, len(parts))
	}
	for i, p := range parts {
		b, err := hex.DecodeString(p)
		if err != nil || len(b) != 1 {
			return m, fmt.Errorf("mac %q: bad octet %q", s, p)
		}
		m[i] = b[0]
	}
	return m, nil
}

// String formats the MAC in canonical lowercase colon-hex form.
func (m MAC) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

// IsZero reports whether m is the all-zero address.
func (m MAC) IsZero() bool {
	return m == ZeroMAC
}
