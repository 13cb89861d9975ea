// Package api provides the HTTP server: the WebSocket session
// endpoint, the embedded web app, and the file/thumbnail roots that
// follow the current directory.
package api

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/deskcanvas/deskcanvas/internal/classify"
	"github.com/deskcanvas/deskcanvas/internal/layout"
	"github.com/deskcanvas/deskcanvas/internal/logging"
	"github.com/deskcanvas/deskcanvas/internal/metrics"
	"github.com/deskcanvas/deskcanvas/internal/preview"
	"github.com/deskcanvas/deskcanvas/internal/session"
	"github.com/deskcanvas/deskcanvas/internal/snapshot"
	"github.com/deskcanvas/deskcanvas/webapp"
)

// Server is the HTTP server.
type Server struct {
	nav          *session.Navigator
	builder      *snapshot.Builder
	store        *layout.Store
	thumbMaxSize int

	upgrader websocket.Upgrader
	wsActive atomic.Int64
}

// NewServer creates a server around the shared navigator.
func NewServer(nav *session.Navigator, builder *snapshot.Builder, store *layout.Store, thumbMaxSize int) *Server {
	return &Server{
		nav:          nav,
		builder:      builder,
		store:        store,
		thumbMaxSize: thumbMaxSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Local single-user tool: the UI may be opened from any origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP handler with logging and metrics middleware.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWS)

	// Web app (embedded). WEBAPP_DIR overrides the embedded assets for
	// live-reload during development.
	var appHandler http.Handler
	if dir := os.Getenv("WEBAPP_DIR"); dir != "" {
		logging.Info("serving web app from disk", zap.String("dir", dir))
		appHandler = http.StripPrefix("/static/", http.FileServer(http.Dir(dir)))
	} else {
		appFS, _ := fs.Sub(webapp.Assets, ".")
		appHandler = http.StripPrefix("/static/", http.FileServer(http.FS(appFS)))
	}
	r.PathPrefix("/static/").Handler(appHandler)

	// Files of the currently active directory. The handler resolves
	// the directory per request, so navigation re-points this root
	// without touching the router.
	r.HandleFunc("/files/{name}", s.handleFile).Methods(http.MethodGet)
	r.HandleFunc("/thumb/{name}", s.handleThumb).Methods(http.MethodGet)

	r.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/static/", http.StatusMovedPermanently)
	}).Methods(http.MethodGet)

	return metrics.Middleware(logging.Middleware(r))
}

// ─── Health ─────────────────────────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "dir": s.nav.Current()})
}

// ─── WebSocket session ──────────────────────────────────────────────────────

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the failure response.
		logging.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	log := logging.L().With(
		zap.String("conn_id", connID),
		zap.String("remote_addr", r.RemoteAddr),
	)
	log.Info("client connected")

	metrics.SetWSConnectionsActive(s.wsActive.Add(1))
	defer func() {
		metrics.SetWSConnectionsActive(s.wsActive.Add(-1))
		log.Info("client disconnected")
	}()

	sess := session.New(s.nav, s.builder, s.store, log)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("read failed", zap.Error(err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			log.Debug("ignoring non-text frame", zap.Int("frame_type", msgType))
			continue
		}

		resp := sess.Handle(data)
		if resp == nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, resp); err != nil {
			log.Warn("write failed", zap.Error(err))
			return
		}
	}
}

// ─── Current-directory files ────────────────────────────────────────────────

// resolveEntry maps a single-segment name to a path inside the current
// directory. Multi-segment or traversal names are rejected: entries
// from a snapshot are always direct children.
func (s *Server) resolveEntry(name string) (string, bool) {
	if name == "" || name == "." || name == ".." {
		return "", false
	}
	if strings.ContainsAny(name, `/\`) {
		return "", false
	}
	return filepath.Join(s.nav.Current(), name), true
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	path, ok := s.resolveEntry(mux.Vars(r)["name"])
	if !ok {
		s.sendError(w, http.StatusBadRequest, "invalid file name")
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if info.IsDir() {
		s.sendError(w, http.StatusBadRequest, "is a directory")
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Server) handleThumb(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	path, ok := s.resolveEntry(name)
	if !ok {
		s.sendError(w, http.StatusBadRequest, "invalid file name")
		return
	}
	if cat, ok := classify.Classify(name); !ok || cat != classify.CategoryImage {
		s.sendError(w, http.StatusUnsupportedMediaType, "not an image")
		return
	}

	size := s.thumbMaxSize
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.sendError(w, http.StatusBadRequest, "invalid size")
			return
		}
		if n < size {
			size = n
		}
	}

	start := time.Now()
	data, err := preview.Render(path, size)
	if err != nil {
		metrics.RecordThumbnail(time.Since(start), false)
		if errors.Is(err, fs.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		logging.Warn("thumbnail render failed", zap.String("path", path), zap.Error(err))
		s.sendError(w, http.StatusUnprocessableEntity, "cannot render thumbnail")
		return
	}
	metrics.RecordThumbnail(time.Since(start), true)

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// ─── Helpers ────────────────────────────────────────────────────────────────

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func (s *Server) sendError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(errorResponse{Error: message, Code: code})
}
