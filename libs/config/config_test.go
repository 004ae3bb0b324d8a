package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestTypedGetters(t *testing.T) {
	t.Setenv("CFG_INT", "42")
	t.Setenv("CFG_BAD_INT", "forty")
	t.Setenv("CFG_BOOL", "yes")
	t.Setenv("CFG_DURATION", "90s")
	t.Setenv("CFG_LIST", " a, ,b ,c")

	if got := Int("CFG_INT", 1); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
	if got := Int("CFG_BAD_INT", 7); got != 7 {
		t.Fatalf("expected fallback 7, got %d", got)
	}
	if !Bool("CFG_BOOL", false) {
		t.Fatal("expected true")
	}
	if got := Duration("CFG_DURATION", time.Second); got != 90*time.Second {
		t.Fatalf("expected 90s, got %s", got)
	}
	list := List("CFG_LIST", "")
	if len(list) != 3 || list[0] != "a" || list[1] != "b" || list[2] != "c" {
		t.Fatalf("unexpected list: %v", list)
	}
}

func TestPortValidation(t *testing.T) {
	t.Setenv("CFG_PORT", "70000")
	if _, err := Port("CFG_PORT", "8080"); err == nil {
		t.Fatal("expected error for out of range port")
	}
	t.Setenv("CFG_PORT", "")
	p, err := Port("CFG_PORT", "8080")
	if err != nil || p != "8080" {
		t.Fatalf("expected fallback port, got %q (%v)", p, err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("CFG_FROM_FILE=hello\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("CFG_FROM_FILE", "")
	os.Unsetenv("CFG_FROM_FILE")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}
	if got := os.Getenv("CFG_FROM_FILE"); got != "hello" {
		t.Fatalf("expected value from file, got %q", got)
	}
}
