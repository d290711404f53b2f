package busclient

import "encoding/json"

// Envelope is the wire shape of every event pushed down the WebSocket
// stream: a dotted tag plus an opaque payload decoded per-tag.
type Envelope struct {
	Tag  string          `json:"tag"`
	Data json.RawMessage `json:"data"`
}

// APEventData is the payload of wifi.ap.new / wifi.ap.lost.
type APEventData struct {
	MAC        string   `json:"mac"`
	Hostname   string   `json:"hostname"`
	SSID       string   `json:"ssid"`
	RSSI       int      `json:"rssi"`
	Channel    int      `json:"channel"`
	Encryption string   `json:"encryption"`
	Vendor     string   `json:"vendor"`
	Clients    []string `json:"clients"`
	Handshake  bool     `json:"handshake"`
}

// StationEventData is the payload of wifi.client.new/.probe/.lost.
type StationEventData struct {
	MAC    string `json:"mac"`
	AP     string `json:"ap"`
	RSSI   int    `json:"rssi"`
	Vendor string `json:"vendor"`
}

// HandshakeEventData is the payload of wifi.client.handshake.
type HandshakeEventData struct {
	AP      string `json:"ap"`
	Station string `json:"station"`
	SSID    string `json:"ssid"`
	File    string `json:"file"`
	PMKID   bool   `json:"pmkid"`
	Full    bool   `json:"full"`
}

// Event tags dispatched from the receive loop.
const (
	TagAPNew            = "wifi.ap.new"
	TagAPLost           = "wifi.ap.lost"
	TagClientNew        = "wifi.client.new"
	TagClientProbe      = "wifi.client.probe"
	TagClientLost       = "wifi.client.lost"
	TagClientHandshake  = "wifi.client.handshake"
	TagDeauthentication = "wifi.deauthentication"
)

// RestSnapshot is the body of GET /api/session/wifi used for periodic
// reconciliation.
type RestSnapshot struct {
	APs []RestAP `json:"aps"`
}

// RestAP is one access point entry within a RestSnapshot, carrying its
// associated stations inline.
type RestAP struct {
	APEventData
	Clients []StationEventData `json:"clients"`
}
