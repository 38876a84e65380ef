package backend

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	eioparser "github.com/zishang520/engine.io-go-parser/parser"
	"github.com/zishang520/engine.io-go-parser/packet"
	eiotypes "github.com/zishang520/engine.io-go-parser/types"
	sioparser "github.com/zishang520/socket.io-go-parser/v2/parser"
)

// ProgressEventName is the Socket.IO event carrying progress notifications.
const ProgressEventName = "progress_update"

var engineParser = eioparser.Parserv4()

// OpenHandshake is the payload of an Engine.IO open packet.
type OpenHandshake struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload"`
}

// decodeFrame parses one websocket text frame into an Engine.IO packet.
func decodeFrame(frame []byte) (*packet.Packet, error) {
	p, err := engineParser.DecodePacket(eiotypes.NewStringBuffer(frame))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return p, nil
}

// encodeFrame renders an Engine.IO packet as a websocket text frame.
func encodeFrame(p *packet.Packet) ([]byte, error) {
	buf, err := engineParser.EncodePacket(p, false)
	if err != nil {
		return nil, fmt.Errorf("encode %s packet: %w", p.Type, err)
	}
	return buf.Bytes(), nil
}

// messageFrames wraps a Socket.IO packet in Engine.IO message frames.
func messageFrames(p *sioparser.Packet) ([][]byte, error) {
	var frames [][]byte
	for _, buf := range sioparser.NewEncoder().Encode(p) {
		f, err := encodeFrame(&packet.Packet{Type: packet.MESSAGE, Data: buf})
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, nil
}

// decodeOpen reads the handshake carried by an open packet.
func decodeOpen(p *packet.Packet) (OpenHandshake, error) {
	var h OpenHandshake
	if p.Type != packet.OPEN {
		return h, fmt.Errorf("expected open packet, got %s", p.Type)
	}
	if p.Data == nil {
		return h, fmt.Errorf("open packet without payload")
	}
	if err := json.NewDecoder(p.Data).Decode(&h); err != nil {
		return h, fmt.Errorf("decode open packet: %w", err)
	}
	return h, nil
}

// eventArgs returns the name and arguments of a decoded EVENT packet.
func eventArgs(p *sioparser.Packet) (string, []any, bool) {
	args, ok := p.Data.([]any)
	if !ok || len(args) == 0 {
		return "", nil, false
	}
	name, ok := args[0].(string)
	if !ok {
		return "", nil, false
	}
	return name, args[1:], true
}

// decodeProgress maps a decoded progress argument to a ProgressEvent.
func decodeProgress(arg any) (ProgressEvent, error) {
	raw, err := json.Marshal(arg)
	if err != nil {
		return ProgressEvent{}, fmt.Errorf("decode progress: %w", err)
	}
	var p progressPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return ProgressEvent{}, fmt.Errorf("decode progress: %w", err)
	}
	return p.event(), nil
}

// websocketURL derives the Engine.IO websocket endpoint from an http(s) base URL.
func websocketURL(base string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/socket.io/"
	q := url.Values{}
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
