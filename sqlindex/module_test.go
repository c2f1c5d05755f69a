package sqlindex

import (
	"path/filepath"
	"testing"

	"github.com/viant/balltree/engine"
	"go.uber.org/zap/zaptest"
)

func TestRegister_RebindsModule(t *testing.T) {
	dir := t.TempDir()
	first, err := engine.Open(filepath.Join(dir, "first.sqlite"))
	if err != nil {
		t.Fatalf("engine.Open failed: %v", err)
	}
	defer first.Close()
	second, err := engine.Open(filepath.Join(dir, "second.sqlite"))
	if err != nil {
		t.Fatalf("engine.Open failed: %v", err)
	}
	defer second.Close()

	if err := Register(first); err != nil {
		t.Fatalf("Register(first) failed: %v", err)
	}
	logger := zaptest.NewLogger(t)
	if err := Register(second, WithLogger(logger)); err != nil {
		t.Fatalf("Register(second) failed: %v", err)
	}
	db, got := registered.bound()
	if db != second {
		t.Fatalf("expected module bound to the latest database")
	}
	if got != logger {
		t.Fatalf("expected module to use the latest logger")
	}
}
