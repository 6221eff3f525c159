// Package ovsdb resolves bridge names to P4Runtime device ids through
// the switch's OVSDB management socket. It speaks the small JSON-RPC
// 1.0 subset a transact/select needs.
package ovsdb

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultAddr is the OVSDB management endpoint the switch exposes.
	DefaultAddr = "127.0.0.1:5000"

	database    = "Open_vSwitch"
	dialTimeout = 5 * time.Second
)

var (
	ErrBridgeNotFound = errors.New("ovsdb: bridge not found")
	ErrNoDeviceID     = errors.New("ovsdb: bridge has no device_id configured")
)

type Client struct {
	conn   net.Conn
	dec    *json.Decoder
	nextID int
}

// Dial connects to an OVSDB endpoint. Addresses with a "unix:" prefix
// use the named socket; everything else is TCP host:port.
func Dial(addr string) (*Client, error) {
	network := "tcp"
	if rest, ok := strings.CutPrefix(addr, "unix:"); ok {
		network, addr = "unix", rest
	}
	conn, err := net.DialTimeout(network, addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("ovsdb: dial %s: %w", addr, err)
	}
	return &Client{conn: conn, dec: json.NewDecoder(conn)}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

type rpcRequest struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
	ID     int    `json:"id"`
}

type rpcMessage struct {
	// Response fields. The id is kept raw: our requests number their
	// ids, but server-initiated requests use string ids ("echo").
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
	ID     json.RawMessage `json:"id"`
	// Request fields, for server-initiated messages such as echo.
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

func (m rpcMessage) hasID(id int) bool {
	var got int
	if err := json.Unmarshal(m.ID, &got); err != nil {
		return false
	}
	return got == id
}

// call issues one request and waits for its response, answering any
// interleaved echo requests the server sends to probe liveness.
func (c *Client) call(method string, params []any) (json.RawMessage, error) {
	c.nextID++
	id := c.nextID
	req := rpcRequest{Method: method, Params: params, ID: id}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("ovsdb: marshal %s request: %w", method, err)
	}
	if _, err := c.conn.Write(payload); err != nil {
		return nil, fmt.Errorf("ovsdb: send %s request: %w", method, err)
	}

	for {
		var msg rpcMessage
		if err := c.dec.Decode(&msg); err != nil {
			return nil, fmt.Errorf("ovsdb: read response: %w", err)
		}
		if msg.Method == "echo" {
			c.answerEcho(msg)
			continue
		}
		if !msg.hasID(id) {
			log.Debug().Str("method", msg.Method).Msg("ignoring unsolicited ovsdb message")
			continue
		}
		if len(msg.Error) > 0 && string(msg.Error) != "null" {
			return nil, fmt.Errorf("ovsdb: %s failed: %s", method, msg.Error)
		}
		return msg.Result, nil
	}
}

// answerEcho mirrors the request's params and id back, per the wire
// convention for liveness probes.
func (c *Client) answerEcho(msg rpcMessage) {
	reply := map[string]any{
		"result": msg.Params,
		"error":  nil,
		"id":     msg.ID,
	}
	payload, err := json.Marshal(reply)
	if err != nil {
		return
	}
	if _, err := c.conn.Write(payload); err != nil {
		log.Debug().Err(err).Msg("echo reply failed")
	}
}

// ovsMap unmarshals OVSDB's ["map", [[k, v], ...]] column encoding.
type ovsMap map[string]string

func (m *ovsMap) UnmarshalJSON(data []byte) error {
	var wire []json.RawMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if len(wire) != 2 {
		return fmt.Errorf("ovsdb: map column has %d elements", len(wire))
	}
	var kind string
	if err := json.Unmarshal(wire[0], &kind); err != nil || kind != "map" {
		return fmt.Errorf("ovsdb: unexpected map column tag %s", wire[0])
	}
	var pairs [][2]string
	if err := json.Unmarshal(wire[1], &pairs); err != nil {
		return err
	}
	out := make(ovsMap, len(pairs))
	for _, kv := range pairs {
		out[kv[0]] = kv[1]
	}
	*m = out
	return nil
}

type bridgeRow struct {
	Name        string `json:"name"`
	OtherConfig ovsMap `json:"other_config"`
}

// DeviceID looks up the bridge's numeric P4Runtime device id from its
// other_config column.
func (c *Client) DeviceID(bridge string) (uint64, error) {
	result, err := c.call("transact", []any{
		database,
		map[string]any{
			"op":      "select",
			"table":   "Bridge",
			"where":   []any{[]any{"name", "==", bridge}},
			"columns": []string{"name", "other_config"},
		},
	})
	if err != nil {
		return 0, err
	}

	var ops []struct {
		Rows []bridgeRow `json:"rows"`
	}
	if err := json.Unmarshal(result, &ops); err != nil {
		return 0, fmt.Errorf("ovsdb: decode transact result: %w", err)
	}
	if len(ops) == 0 || len(ops[0].Rows) == 0 {
		return 0, fmt.Errorf("%w: %q", ErrBridgeNotFound, bridge)
	}

	raw, ok := ops[0].Rows[0].OtherConfig["device_id"]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrNoDeviceID, bridge)
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("ovsdb: bridge %q device_id %q is not a number: %w", bridge, raw, err)
	}
	return id, nil
}

// ResolveDeviceID is the one-shot form: dial, look up, close.
func ResolveDeviceID(addr, bridge string) (uint64, error) {
	c, err := Dial(addr)
	if err != nil {
		return 0, err
	}
	defer c.Close()
	return c.DeviceID(bridge)
}
