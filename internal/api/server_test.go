package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/deskcanvas/deskcanvas/internal/layout"
	"github.com/deskcanvas/deskcanvas/internal/session"
	"github.com/deskcanvas/deskcanvas/internal/snapshot"
)

func newTestServer(t *testing.T, root string) (*httptest.Server, *Server) {
	t.Helper()
	nav, err := session.NewNavigator(root)
	if err != nil {
		t.Fatal(err)
	}
	store := layout.NewStore()
	srv := NewServer(nav, snapshot.NewBuilder(store), store, 400)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, srv
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readState(t *testing.T, conn *websocket.Conn) *snapshot.State {
	t.Helper()
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var st snapshot.State
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatalf("response is not a snapshot: %v (%s)", err, data)
	}
	return &st
}

func TestInitializeEndToEnd(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "photo.png"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(root, "imgs"), 0755); err != nil {
		t.Fatal(err)
	}

	ts, _ := newTestServer(t, root)
	conn := dialWS(t, ts)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"initialize"}`)); err != nil {
		t.Fatal(err)
	}
	st := readState(t, conn)

	if st.Path != root {
		t.Errorf("path = %q, want %q", st.Path, root)
	}
	if len(st.Files) != 3 {
		t.Fatalf("expected parent+imgs+photo.png, got %+v", st.Files)
	}
	if st.Files[0].Path != "parent" || st.Files[0].Absolute != filepath.Dir(root) {
		t.Errorf("parent entry wrong: %+v", st.Files[0])
	}
	if st.Files[1].Path != "imgs" || st.Files[1].Absolute != filepath.Join(root, "imgs") {
		t.Errorf("imgs entry wrong: %+v", st.Files[1])
	}
	if st.Files[2].Path != "/files/photo.png" {
		t.Errorf("file entry wrong: %+v", st.Files[2])
	}
	if st.Layout == nil || len(st.Layout) != 0 {
		t.Errorf("expected empty layout object, got %+v", st.Layout)
	}
}

func TestUnknownMessageYieldsNoResponse(t *testing.T) {
	root := t.TempDir()
	ts, srv := newTestServer(t, root)
	conn := dialWS(t, ts)

	// Send an unknown kind, then a valid one. The first reply must be
	// the snapshot: the unknown message produced nothing.
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"initialize"}`)); err != nil {
		t.Fatal(err)
	}

	st := readState(t, conn)
	if st.Path != root {
		t.Errorf("first response should be the snapshot for %q, got %q", root, st.Path)
	}
	if srv.nav.Current() != root {
		t.Errorf("unknown message changed state: %q", srv.nav.Current())
	}
}

func TestCDRebindsFilesRoot(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "imgs")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "inner.png"), []byte("inner-bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	ts, _ := newTestServer(t, root)
	conn := dialWS(t, ts)

	// Before navigation the file is not reachable.
	resp, err := http.Get(ts.URL + "/files/inner.png")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 before cd, got %d", resp.StatusCode)
	}

	cd, _ := json.Marshal(map[string]string{"type": "cd", "path": sub})
	if err := conn.WriteMessage(websocket.TextMessage, cd); err != nil {
		t.Fatal(err)
	}
	st := readState(t, conn)
	if st.Path != sub {
		t.Fatalf("cd response path = %q, want %q", st.Path, sub)
	}

	// After navigation the /files/ root follows the new directory.
	resp, err = http.Get(ts.URL + "/files/inner.png")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 after cd, got %d", resp.StatusCode)
	}
	if string(body) != "inner-bytes" {
		t.Errorf("unexpected body %q", body)
	}
}

func TestCDFailureReportsError(t *testing.T) {
	root := t.TempDir()
	ts, srv := newTestServer(t, root)
	conn := dialWS(t, ts)

	cd, _ := json.Marshal(map[string]string{"type": "cd", "path": filepath.Join(root, "missing")})
	if err := conn.WriteMessage(websocket.TextMessage, cd); err != nil {
		t.Fatal(err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	var e session.ErrorResponse
	if err := json.Unmarshal(data, &e); err != nil || e.Error == "" {
		t.Fatalf("expected error response, got %s", data)
	}
	if srv.nav.Current() != root {
		t.Errorf("failed cd moved the pointer to %q", srv.nav.Current())
	}
}

func TestLayoutPersistsAcrossMessages(t *testing.T) {
	root := t.TempDir()
	ts, _ := newTestServer(t, root)
	conn := dialWS(t, ts)

	msg := `{"type":"layout","layout":{"/files/a.png":{"x":9,"y":1}}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatal(err)
	}
	// Messages on one connection are processed in order, so once the
	// initialize reply arrives the layout write has completed.
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"initialize"}`)); err != nil {
		t.Fatal(err)
	}
	st := readState(t, conn)
	if _, ok := st.Layout["/files/a.png"]; !ok {
		t.Fatalf("layout not reflected in snapshot: %+v", st.Layout)
	}

	if _, err := os.Stat(filepath.Join(root, layout.SidecarName)); err != nil {
		t.Errorf("sidecar not written: %v", err)
	}
}

func TestResolveEntryRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	_, srv := newTestServer(t, root)

	for _, name := range []string{"", ".", "..", "a/b", `a\b`, "../etc"} {
		if _, ok := srv.resolveEntry(name); ok {
			t.Errorf("resolveEntry(%q) should be rejected", name)
		}
	}
	if path, ok := srv.resolveEntry("a.png"); !ok || path != filepath.Join(root, "a.png") {
		t.Errorf("resolveEntry(a.png) = %q, %v", path, ok)
	}
}

func TestHealth(t *testing.T) {
	root := t.TempDir()
	ts, _ := newTestServer(t, root)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health returned %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" || body["dir"] != root {
		t.Errorf("unexpected health body: %v", body)
	}
}

func TestThumbRejectsNonImage(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	ts, _ := newTestServer(t, root)

	resp, err := http.Get(ts.URL + "/thumb/notes.txt")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Errorf("expected 415 for non-image, got %d", resp.StatusCode)
	}
}
