// Package session implements the message protocol driving one canvas
// client connection: it decodes commands, dispatches to the navigator,
// layout store and snapshot builder, and encodes responses.
package session

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/deskcanvas/deskcanvas/internal/layout"
	"github.com/deskcanvas/deskcanvas/internal/logging"
	"github.com/deskcanvas/deskcanvas/internal/metrics"
	"github.com/deskcanvas/deskcanvas/internal/snapshot"
)

// Recognized request kinds.
const (
	TypeInitialize = "initialize"
	TypeLayout     = "layout"
	TypeCD         = "cd"
)

// Request is a client command. Unknown kinds and missing fields are
// ignored without a response to stay forward-compatible.
type Request struct {
	Type   string          `json:"type"`
	Path   string          `json:"path,omitempty"`
	Layout json.RawMessage `json:"layout,omitempty"`
}

// ErrorResponse is sent when a snapshot-producing command fails.
// Layout writes have no acknowledgment channel and fail silently
// toward the client (the failure is still logged).
type ErrorResponse struct {
	Error string `json:"error"`
}

// Session dispatches protocol messages for one connection. It holds no
// per-connection state of its own: the only mutable state is the
// navigator shared across the process.
type Session struct {
	nav     *Navigator
	builder *snapshot.Builder
	store   *layout.Store
	log     *zap.Logger
}

// New creates a session bound to the shared navigator.
func New(nav *Navigator, builder *snapshot.Builder, store *layout.Store, log *zap.Logger) *Session {
	if log == nil {
		log = logging.L()
	}
	return &Session{nav: nav, builder: builder, store: store, log: log}
}

// Handle processes one raw message and returns the JSON response to
// send, or nil when the message produces no response. Handle never
// returns an error to the transport: failures become ErrorResponse
// documents for snapshot-producing commands and are logged otherwise,
// so one bad request cannot take down the connection.
func (s *Session) Handle(raw []byte) []byte {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		s.log.Debug("ignoring undecodable message", zap.Error(err))
		metrics.RecordMessage("invalid")
		return nil
	}

	switch req.Type {
	case TypeInitialize:
		metrics.RecordMessage(TypeInitialize)
		return s.respondSnapshot(s.nav.Current())

	case TypeCD:
		metrics.RecordMessage(TypeCD)
		if req.Path == "" {
			s.log.Debug("ignoring cd without path")
			return nil
		}
		dir, err := s.nav.NavigateTo(req.Path)
		if err != nil {
			s.log.Warn("navigation failed", zap.String("path", req.Path), zap.Error(err))
			return marshalError(err)
		}
		return s.respondSnapshot(dir)

	case TypeLayout:
		metrics.RecordMessage(TypeLayout)
		if req.Layout == nil {
			s.log.Debug("ignoring layout message without payload")
			return nil
		}
		var l layout.Layout
		if err := json.Unmarshal(req.Layout, &l); err != nil {
			s.log.Debug("ignoring non-object layout payload", zap.Error(err))
			return nil
		}
		dir := s.nav.Current()
		if err := s.store.Write(dir, l); err != nil {
			// Fire-and-forget by protocol design: the update is dropped.
			s.log.Error("layout write failed", zap.String("dir", dir), zap.Error(err))
			metrics.RecordLayoutWrite(false)
			return nil
		}
		metrics.RecordLayoutWrite(true)
		return nil

	default:
		s.log.Debug("ignoring unknown message type", zap.String("type", req.Type))
		metrics.RecordMessage("unknown")
		return nil
	}
}

func (s *Session) respondSnapshot(dir string) []byte {
	st, err := s.builder.Build(dir)
	if err != nil {
		s.log.Warn("snapshot build failed", zap.String("dir", dir), zap.Error(err))
		return marshalError(err)
	}
	data, err := json.Marshal(st)
	if err != nil {
		s.log.Error("snapshot marshal failed", zap.Error(err))
		return marshalError(err)
	}
	return data
}

func marshalError(err error) []byte {
	data, mErr := json.Marshal(ErrorResponse{Error: err.Error()})
	if mErr != nil {
		return []byte(`{"error":"internal error"}`)
	}
	return data
}
