// Package busclient implements the event bus client: a WebSocket
// connection to the upstream recon service plus a periodic REST
// reconciliation pass, both feeding the topology store. Framing is
// internal/wsframe; REST calls go through internal/httpclient.
package busclient

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/corvidlabs/corvid/internal/core/domain"
	"github.com/corvidlabs/corvid/internal/httpclient"
	"github.com/corvidlabs/corvid/internal/topology"
	"github.com/corvidlabs/corvid/internal/wsframe"
)

// State is the connection lifecycle state machine.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateHandshake
	StateConnected
	StateReconnecting
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateHandshake:
		return "handshake"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// Callbacks are invoked from the receive loop's goroutine as events
// arrive. Implementations must not block for long.
type Callbacks struct {
	OnAPNew       func(domain.AccessPoint)
	OnAPLost      func(domain.MAC)
	OnClientNew   func(domain.Station)
	OnClientProbe func(domain.Station)
	OnClientLost  func(domain.MAC)
	OnHandshake   func(HandshakeEventData)
	OnDeauth      func()
	OnStateChange func(from, to State)
}

// CommandSender is the small, cloneable handle the bus client exposes
// so the attack coordinator can issue commands back without holding
// the full client, breaking the coordinator<->bus-client cycle.
type CommandSender interface {
	SendCommand(cmd string) error
}

// Client owns the WebSocket connection, the REST keep-alive client,
// and the topology store they both feed.
type Client struct {
	cfg   domain.BusClientConfig
	store *topology.Store
	cb    Callbacks
	rest  *httpclient.Client

	mu           sync.Mutex
	state        State
	conn         net.Conn
	attempt      int
	lastPong     time.Time
	awaitingPong bool
}

// New constructs a client bound to store, sending REST/WS traffic per
// cfg, and dispatching topology changes through cb.
func New(cfg domain.BusClientConfig, store *topology.Store, cb Callbacks) *Client {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return &Client{
		cfg:   cfg,
		store: store,
		cb:    cb,
		rest:  httpclient.New(addr, cfg.Username, cfg.Password),
		state: StateDisconnected,
	}
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	from := c.state
	c.state = s
	c.mu.Unlock()
	if from != s {
		slog.Info("bus client state transition", "from", from.String(), "to", s.String())
		if c.cb.OnStateChange != nil {
			c.cb.OnStateChange(from, s)
		}
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run connects, subscribes, and services the connection until ctx is
// canceled, reconnecting per cfg.AutoReconnect on transient failure.
func (c *Client) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			c.setState(StateClosing)
			return ctx.Err()
		}

		if err := c.connectAndServe(ctx); err != nil {
			slog.Warn("bus client session ended", "error", err)
		}

		if !c.cfg.AutoReconnect {
			c.setState(StateDisconnected)
			return nil
		}
		if c.cfg.MaxReconnectAttempts > 0 && c.attempt >= c.cfg.MaxReconnectAttempts {
			c.setState(StateDisconnected)
			return fmt.Errorf("busclient: exhausted %d reconnect attempts", c.attempt)
		}

		c.setState(StateReconnecting)
		delay := backoffDelay(c.cfg.ReconnectDelayMs, c.attempt)
		c.attempt++
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// backoffDelay computes reconnect_delay_ms * 2^attempt, capped at 30s,
// plus up to 1s of uniform jitter.
func backoffDelay(baseMs, attempt int) time.Duration {
	mult := math.Pow(2, float64(attempt))
	ms := float64(baseMs) * mult
	capped := math.Min(ms, 30000)
	jitter, _ := rand.Int(rand.Reader, big.NewInt(1000))
	return time.Duration(capped)*time.Millisecond + time.Duration(jitter.Int64())*time.Millisecond
}

func (c *Client) connectAndServe(ctx context.Context) error {
	c.setState(StateConnecting)
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port), 5*time.Second)
	if err != nil {
		return fmt.Errorf("busclient: dial: %w", err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	c.conn = conn
	defer func() {
		_ = conn.Close()
		c.conn = nil
	}()

	c.setState(StateHandshake)
	if err := c.upgrade(conn); err != nil {
		return fmt.Errorf("busclient: upgrade: %w", err)
	}

	if err := wsframe.WriteText(conn, `{"cmd":"events.stream","args":{"filter":"wifi.*"}}`); err != nil {
		return fmt.Errorf("busclient: subscribe: %w", err)
	}

	c.setState(StateConnected)
	c.attempt = 0
	c.lastPong = time.Now()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- c.receiveLoop(conn) }()
	go func() { errCh <- c.heartbeatLoop(runCtx, conn) }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// upgrade performs the HTTP/1.1 WebSocket upgrade handshake. The
// Sec-WebSocket-Accept value returned by the server is intentionally
// not verified (open question, accepted as a documented simplification).
func (c *Client) upgrade(conn net.Conn) error {
	key := make([]byte, 16)
	if _, err := rand.Read(key); err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	encodedKey := base64.StdEncoding.EncodeToString(key)

	var req strings.Builder
	fmt.Fprintf(&req, "GET %s HTTP/1.1\r\n", c.cfg.Path)
	fmt.Fprintf(&req, "Host: %s:%d\r\n", c.cfg.Host, c.cfg.Port)
	req.WriteString("Upgrade: websocket\r\n")
	req.WriteString("Connection: Upgrade\r\n")
	fmt.Fprintf(&req, "Sec-WebSocket-Key: %s\r\n", encodedKey)
	req.WriteString("Sec-WebSocket-Version: 13\r\n")
	if c.cfg.Username != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(c.cfg.Username + ":" + c.cfg.Password))
		fmt.Fprintf(&req, "Authorization: Basic %s\r\n", auth)
	}
	req.WriteString("\r\n")

	if _, err := conn.Write([]byte(req.String())); err != nil {
		return fmt.Errorf("write upgrade request: %w", err)
	}

	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		return fmt.Errorf("read upgrade response: %w", err)
	}
	resp := string(buf[:n])
	statusLine := strings.SplitN(resp, "\r\n", 2)[0]
	if !strings.Contains(statusLine, "101") {
		return fmt.Errorf("unexpected upgrade status: %q", statusLine)
	}
	return nil
}

func (c *Client) receiveLoop(conn net.Conn) error {
	for {
		frame, err := wsframe.Read(conn)
		if err != nil {
			return fmt.Errorf("receive: %w", err)
		}
		switch frame.Opcode {
		case wsframe.OpText:
			c.dispatch(frame.Payload)
		case wsframe.OpPing:
			if err := wsframe.WritePong(conn, frame.Payload); err != nil {
				return fmt.Errorf("pong: %w", err)
			}
		case wsframe.OpPong:
			c.mu.Lock()
			c.awaitingPong = false
			c.lastPong = time.Now()
			c.mu.Unlock()
		case wsframe.OpClose:
			return fmt.Errorf("server closed the connection")
		}
	}
}

func (c *Client) heartbeatLoop(ctx context.Context, conn net.Conn) error {
	interval := time.Duration(c.cfg.HeartbeatIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.mu.Lock()
			c.awaitingPong = true
			c.mu.Unlock()
			if err := wsframe.Write(conn, wsframe.OpPing, nil); err != nil {
				return fmt.Errorf("heartbeat: %w", err)
			}
			select {
			case <-time.After(10 * time.Second):
				c.mu.Lock()
				timedOut := c.awaitingPong
				c.mu.Unlock()
				if timedOut {
					return fmt.Errorf("heartbeat: pong timeout")
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// dispatch parses one event envelope and routes it by tag as a
// plain-data tagged sum, not inheritance. Malformed frames are
// dropped, not fatal.
func (c *Client) dispatch(payload []byte) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		slog.Warn("bus client: dropping malformed frame", "error", err)
		return
	}

	now := time.Now()
	switch env.Tag {
	case TagAPNew:
		var d APEventData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return
		}
		mac, err := domain.ParseMAC(d.MAC)
		if err != nil {
			return
		}
		ap := domain.AccessPoint{
			BSSID:             mac,
			SSID:              d.SSID,
			RSSI:              int8(d.RSSI),
			Channel:           d.Channel,
			Encryption:        d.Encryption,
			Vendor:            d.Vendor,
			ClientsCount:      len(d.Clients),
			HandshakeCaptured: d.Handshake,
		}
		c.store.InsertOrUpdateAP(ap, now)
		if c.cb.OnAPNew != nil {
			c.cb.OnAPNew(ap)
		}
	case TagAPLost:
		var d APEventData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return
		}
		mac, err := domain.ParseMAC(d.MAC)
		if err != nil {
			return
		}
		c.store.RemoveAP(mac)
		if c.cb.OnAPLost != nil {
			c.cb.OnAPLost(mac)
		}
	case TagClientNew, TagClientProbe:
		var d StationEventData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return
		}
		sta, ok := stationFromEvent(d, now)
		if !ok {
			return
		}
		c.store.InsertOrUpdateSta(sta, now)
		if env.Tag == TagClientNew && c.cb.OnClientNew != nil {
			c.cb.OnClientNew(sta)
		} else if env.Tag == TagClientProbe && c.cb.OnClientProbe != nil {
			c.cb.OnClientProbe(sta)
		}
	case TagClientLost:
		var d StationEventData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return
		}
		mac, err := domain.ParseMAC(d.MAC)
		if err != nil {
			return
		}
		c.store.RemoveSta(mac)
		if c.cb.OnClientLost != nil {
			c.cb.OnClientLost(mac)
		}
	case TagClientHandshake:
		var d HandshakeEventData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return
		}
		if mac, err := domain.ParseMAC(d.AP); err == nil {
			if ap, found := c.store.FindAPByBSSID(mac); found {
				ap.HandshakeCaptured = true
				c.store.InsertOrUpdateAP(ap, now)
			}
		}
		c.store.IncrementHandshakeCount()
		if c.cb.OnHandshake != nil {
			c.cb.OnHandshake(d)
		}
	case TagDeauthentication:
		if c.cb.OnDeauth != nil {
			c.cb.OnDeauth()
		}
	default:
		slog.Debug("bus client: unrecognized tag", "tag", env.Tag)
	}
}

func stationFromEvent(d StationEventData, now time.Time) (domain.Station, bool) {
	mac, err := domain.ParseMAC(d.MAC)
	if err != nil {
		return domain.Station{}, false
	}
	sta := domain.Station{
		MAC:        mac,
		Vendor:     d.Vendor,
		RSSI:       int8(d.RSSI),
		Associated: d.AP != "",
	}
	if d.AP != "" {
		if apMac, err := domain.ParseMAC(d.AP); err == nil {
			sta.APBSSID = apMac
		}
	}
	return sta, true
}

// SendCommand POSTs /api/session with {"cmd": cmd}. A transport failure
// is retried once by the keep-alive client on a reopened socket. A
// response whose body lacks "success":true is returned as an error; it
// is not retried and the socket is left open.
func (c *Client) SendCommand(cmd string) error {
	body := fmt.Sprintf(`{"cmd":%q}`, cmd)
	resp, err := c.rest.Post("/api/session", body)
	if err != nil {
		return fmt.Errorf("busclient: send_command: %w", err)
	}
	if !strings.Contains(string(resp.Body), `"success":true`) {
		return fmt.Errorf("busclient: send_command: rejected: %s", resp.Body)
	}
	return nil
}

// Reconcile fetches /api/session/wifi and atomically replaces the
// topology store's contents with the snapshot.
func (c *Client) Reconcile() error {
	resp, err := c.rest.Get("/api/session/wifi")
	if err != nil {
		return fmt.Errorf("busclient: reconcile: %w", err)
	}
	var snap RestSnapshot
	if err := json.Unmarshal(resp.Body, &snap); err != nil {
		return fmt.Errorf("busclient: reconcile: parse: %w", err)
	}

	now := time.Now()
	var aps []domain.AccessPoint
	var stations []domain.Station
	for _, rap := range snap.APs {
		mac, err := domain.ParseMAC(rap.MAC)
		if err != nil {
			continue
		}
		aps = append(aps, domain.AccessPoint{
			BSSID:             mac,
			SSID:              rap.SSID,
			RSSI:              int8(rap.RSSI),
			Channel:           rap.Channel,
			Encryption:        rap.Encryption,
			Vendor:            rap.Vendor,
			ClientsCount:      len(rap.Clients),
			HandshakeCaptured: rap.Handshake,
			FirstSeen:         now,
			LastSeen:          now,
		})
		for _, rsta := range rap.Clients {
			if sta, ok := stationFromEvent(rsta, now); ok {
				stations = append(stations, sta)
			}
		}
	}

	c.store.ClearAndBulkReplace(aps, stations, now)
	return nil
}

// RunReconciliationLoop calls Reconcile every 60s until ctx is canceled.
func (c *Client) RunReconciliationLoop(ctx context.Context) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Reconcile(); err != nil {
				slog.Warn("bus client reconciliation failed", "error", err)
			}
		}
	}
}
