package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveJSONReplaces(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "balances.json")

	for _, want := range []map[string]int64{{"alice": 1000}, {"alice": 900, "bob": 25}} {
		if err := SaveJSON(path, want); err != nil {
			t.Fatalf("save %v: %v", want, err)
		}
		var got map[string]int64
		ok, err := LoadJSON(path, &got)
		if err != nil || !ok {
			t.Fatalf("load: ok=%v err=%v", ok, err)
		}
		if len(got) != len(want) || got["alice"] != want["alice"] || got["bob"] != want["bob"] {
			t.Errorf("got %v, want %v", got, want)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != StatePerm {
		t.Errorf("perm = %o, want %o", info.Mode().Perm(), StatePerm)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestSaveJSONMissingDir(t *testing.T) {
	t.Parallel()
	if err := SaveJSON("/nonexistent/dir/state.json", map[string]int64{}); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestSaveJSONUnencodable(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if err := SaveJSON(filepath.Join(dir, "state.json"), func() {}); err == nil {
		t.Error("expected encode error")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("nothing should be written: %v", entries)
	}
}

func TestLoadJSONMissingFile(t *testing.T) {
	t.Parallel()
	var v map[string]int64
	ok, err := LoadJSON(filepath.Join(t.TempDir(), "accounts.json"), &v)
	if err != nil || ok {
		t.Fatalf("missing file: ok=%v err=%v", ok, err)
	}
}

func TestLoadJSONCorrupt(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	var v map[string]int64
	if _, err := LoadJSON(path, &v); err == nil {
		t.Error("expected decode error")
	}
}
