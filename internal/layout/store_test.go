package layout

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestReadMissingSidecarReturnsEmpty(t *testing.T) {
	dir := t.TempDir()

	l, err := NewStore().Read(dir)
	if err != nil {
		t.Fatalf("Read on dir without sidecar: %v", err)
	}
	if len(l) != 0 {
		t.Fatalf("expected empty layout, got %d entries", len(l))
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewStore()

	in := Layout{
		"/files/photo.png": json.RawMessage(`{"x":12,"y":-40.5,"z":2}`),
		"imgs":             json.RawMessage(`{"x":0,"y":0,"nested":{"tags":["a","b"]}}`),
		"empty":            json.RawMessage(`{}`),
	}
	if err := store.Write(dir, in); err != nil {
		t.Fatalf("Write: %v", err)
	}

	out, err := store.Read(dir)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("expected %d entries, got %d", len(in), len(out))
	}
	for k, raw := range in {
		var want, got any
		if err := json.Unmarshal(raw, &want); err != nil {
			t.Fatalf("unmarshal input %s: %v", k, err)
		}
		if err := json.Unmarshal(out[k], &got); err != nil {
			t.Fatalf("unmarshal output %s: %v", k, err)
		}
		if !reflect.DeepEqual(want, got) {
			t.Errorf("value for %s changed across round-trip: %s vs %s", k, raw, out[k])
		}
	}
}

func TestWriteOverwritesWholesale(t *testing.T) {
	dir := t.TempDir()
	store := NewStore()

	first := Layout{"a": json.RawMessage(`{"x":1}`), "b": json.RawMessage(`{"x":2}`)}
	if err := store.Write(dir, first); err != nil {
		t.Fatalf("Write: %v", err)
	}
	second := Layout{"c": json.RawMessage(`{"x":3}`)}
	if err := store.Write(dir, second); err != nil {
		t.Fatalf("Write: %v", err)
	}

	out, err := store.Read(dir)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected prior entries to be replaced, got %d entries", len(out))
	}
	if _, ok := out["c"]; !ok {
		t.Error("expected entry c to survive")
	}
}

func TestReadCorruptSidecar(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, SidecarName), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := NewStore().Read(dir)
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestWriteToMissingDirFails(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "gone")

	err := NewStore().Write(dir, Layout{"a": json.RawMessage(`{}`)})
	if err == nil {
		t.Fatal("expected write to nonexistent directory to fail")
	}
}
