package browser

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestFindChromeHonoursEnv(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits not meaningful on windows")
	}
	path := filepath.Join(t.TempDir(), "chrome")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv(ChromeEnv, path)

	if got := FindChrome(); got != path {
		t.Errorf("Expected %s, got %s", path, got)
	}
}

func TestIsExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits not meaningful on windows")
	}
	dir := t.TempDir()
	plain := filepath.Join(dir, "plain")
	os.WriteFile(plain, []byte("x"), 0644)

	if isExecutable(plain) {
		t.Error("Expected non-executable file to be rejected")
	}
	if isExecutable(dir) {
		t.Error("Expected directory to be rejected")
	}
	if isExecutable(filepath.Join(dir, "missing")) {
		t.Error("Expected missing file to be rejected")
	}
}

func TestCandidatesIncludeHome(t *testing.T) {
	list := candidates("linux", "/home/u")
	found := false
	for _, c := range list {
		if c == "/home/u/.local/share/flatpak/exports/bin/com.google.Chrome" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected flatpak candidate under home, got %v", list)
	}
}
