// Package testutil provides shared test infrastructure for tests that need the
// seeded knowledge base.
//
// Usage in TestMain:
//
//	func TestMain(m *testing.M) {
//	    kb := testutil.MustOpenKnowledge()
//	    code := m.Run()
//	    _ = kb.Close()
//	    os.Exit(code)
//	}
package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/ashita-ai/sekkei/internal/knowledge"
)

// MustOpenKnowledge opens an in-memory knowledge base seeded with the
// collision-avoidance domain. Calls os.Exit(1) on failure (suitable for
// TestMain).
func MustOpenKnowledge() *knowledge.SQLite {
	kb, err := knowledge.NewDefault(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "testutil: failed to open knowledge base: %v\n", err)
		os.Exit(1)
	}
	return kb
}

// Knowledge opens a seeded knowledge base that is closed when the test ends.
// Every call returns an independent database.
func Knowledge(tb testing.TB) *knowledge.SQLite {
	tb.Helper()
	kb, err := knowledge.NewDefault(context.Background())
	if err != nil {
		tb.Fatalf("testutil: open knowledge base: %v", err)
	}
	tb.Cleanup(func() { _ = kb.Close() })
	return kb
}

// TestLogger returns a logger configured for test output (warns only).
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}
