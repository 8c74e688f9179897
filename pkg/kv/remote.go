package kv

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/grovetools/crownest/logging"
	"github.com/grovetools/crownest/version"
)

const (
	// OriginHeader carries the writing participant's id to the relay.
	OriginHeader = "X-Crownest-Origin"
	// ProtocolHeader carries the relay's wire protocol revision.
	ProtocolHeader = "X-Crownest-Protocol"
)

// WireEntry is the relay's response to a key read.
type WireEntry struct {
	Value     string    `json:"value"`
	Origin    string    `json:"origin,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WireNotification is one websocket frame. Value is JSON text.
type WireNotification struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	Origin    string `json:"origin,omitempty"`
}

// ParseAddress splits a relay address into a dial network and address.
// Accepted forms: unix:///path, /path, tcp://host:port, http://host:port,
// and host:port.
func ParseAddress(addr string) (network, address string, err error) {
	switch {
	case addr == "":
		return "", "", fmt.Errorf("empty relay address")
	case strings.HasPrefix(addr, "unix://"):
		return "unix", strings.TrimPrefix(addr, "unix://"), nil
	case strings.HasPrefix(addr, "/"):
		return "unix", addr, nil
	case strings.HasPrefix(addr, "tcp://"):
		return "tcp", strings.TrimPrefix(addr, "tcp://"), nil
	case strings.HasPrefix(addr, "http://"):
		return "tcp", strings.TrimSuffix(strings.TrimPrefix(addr, "http://"), "/"), nil
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return "", "", fmt.Errorf("invalid relay address %q: %w", addr, err)
	}
	return "tcp", addr, nil
}

// Remote is a Store served by a relay process over HTTP and a websocket.
type Remote struct {
	origin     string
	address    string
	network    string
	dialAddr   string
	baseURL    string
	wsURL      string
	httpClient *http.Client
	dialer     *websocket.Dialer

	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
	closed bool
	logger *logrus.Entry
}

// NewRemote creates a client for the relay at address writing as origin.
func NewRemote(address, origin string) (*Remote, error) {
	network, dialAddr, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}

	dial := func(ctx context.Context, _, _ string) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, network, dialAddr)
	}

	// The host is ignored for unix sockets; the dialer picks the socket.
	host := "unix"
	if network == "tcp" {
		host = dialAddr
	}

	transport := &http.Transport{
		DialContext:     dial,
		MaxIdleConns:    10,
		IdleConnTimeout: 90 * time.Second,
	}

	return &Remote{
		origin:   origin,
		address:  address,
		network:  network,
		dialAddr: dialAddr,
		baseURL:  "http://" + host,
		wsURL:    "ws://" + host + "/api/ws",
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   10 * time.Second,
		},
		dialer: &websocket.Dialer{
			NetDialContext:   dial,
			HandshakeTimeout: 5 * time.Second,
		},
		conns:  make(map[*websocket.Conn]struct{}),
		logger: logging.NewLogger("kv-remote"),
	}, nil
}

// Address returns the relay address the client was created with.
func (c *Remote) Address() string {
	return c.address
}

// BaseURL is the HTTP base for requests through HTTPClient.
func (c *Remote) BaseURL() string {
	return c.baseURL
}

// HTTPClient returns the client that dials the relay.
func (c *Remote) HTTPClient() *http.Client {
	return c.httpClient
}

func keyURL(base, namespace, key string) string {
	return base + "/api/kv/" + url.PathEscape(namespace) + "/" + url.PathEscape(key)
}

// IsRunning returns true if the relay answers its health check.
func (c *Remote) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	if p := resp.Header.Get(ProtocolHeader); p != "" && p != strconv.Itoa(version.Protocol) {
		c.logger.WithFields(logrus.Fields{
			"relay":    c.address,
			"protocol": p,
			"expected": version.Protocol,
		}).Warn("Relay speaks a different protocol")
		return false
	}
	return true
}

func (c *Remote) Get(ctx context.Context, namespace, key string) (any, bool, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", keyURL(c.baseURL, namespace, key), nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s/%s from relay: %w", namespace, key, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("relay returned status %d", resp.StatusCode)
	}

	var entry WireEntry
	if err := json.NewDecoder(resp.Body).Decode(&entry); err != nil {
		return nil, false, fmt.Errorf("failed to decode entry: %w", err)
	}
	if !json.Valid([]byte(entry.Value)) {
		return nil, false, fmt.Errorf("relay returned invalid JSON for %s/%s", namespace, key)
	}
	return json.RawMessage(entry.Value), true, nil
}

func (c *Remote) Set(ctx context.Context, namespace, key string, value any) error {
	if err := validName(namespace, key); err != nil {
		return err
	}
	raw, err := encodeValue(value)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "PUT", keyURL(c.baseURL, namespace, key), bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set(OriginHeader, c.origin)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to write %s/%s to relay: %w", namespace, key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("relay returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// Watch opens a websocket to the relay. The channel closes when ctx is done,
// the client is closed, or the connection drops.
func (c *Remote) Watch(ctx context.Context) (<-chan Notification, error) {
	header := http.Header{}
	header.Set(OriginHeader, c.origin)
	header.Set("User-Agent", version.UserAgent())

	conn, resp, err := c.dialer.DialContext(ctx, c.wsURL, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("failed to connect to relay stream: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect to relay stream: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return nil, fmt.Errorf("store is closed")
	}
	c.conns[conn] = struct{}{}
	c.mu.Unlock()

	ch := make(chan Notification, 16)
	stop := context.AfterFunc(ctx, func() { conn.Close() })

	go func() {
		defer close(ch)
		defer stop()
		defer func() {
			c.mu.Lock()
			delete(c.conns, conn)
			c.mu.Unlock()
			conn.Close()
		}()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.logger.WithError(err).Debug("Relay stream ended")
				}
				return
			}

			var wn WireNotification
			if err := json.Unmarshal(data, &wn); err != nil {
				// Skip malformed frames.
				c.logger.WithError(err).Debug("Skipping malformed relay frame")
				continue
			}

			n := Notification{
				Namespace: wn.Namespace,
				Key:       wn.Key,
				Value:     wn.Value,
				Origin:    wn.Origin,
				Meta:      map[string]string{"source": "relay"},
			}
			select {
			case ch <- n:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

// Close closes open streams and idle connections.
func (c *Remote) Close() error {
	c.mu.Lock()
	c.closed = true
	conns := make([]*websocket.Conn, 0, len(c.conns))
	for conn := range c.conns {
		conns = append(conns, conn)
	}
	c.mu.Unlock()

	for _, conn := range conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	}
	c.httpClient.CloseIdleConnections()
	return nil
}

var _ Store = (*Remote)(nil)
