package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitConfiguresGlobalLogger(t *testing.T) {
	t.Cleanup(func() {
		globalLogger = zap.NewNop()
	})

	if err := Init("debug"); err != nil {
		t.Fatalf("Init returned error: %v", err)
	}

	logger := Logger()
	if logger == nil {
		t.Fatal("expected Logger to return non-nil logger")
	}
	if !logger.Core().Enabled(zap.DebugLevel) {
		t.Fatal("expected logger to enable debug level")
	}
}

func TestLoggingHelpersEmitEntries(t *testing.T) {
	core, recorded := observer.New(zap.DebugLevel)
	t.Cleanup(func() {
		globalLogger = zap.NewNop()
	})
	globalLogger = zap.New(core)

	Info("info message", zap.String("k", "v"))
	Error("error message")
	Warn("warn message")
	Debug("debug message")

	if recorded.Len() != 4 {
		t.Fatalf("expected 4 log entries, got %d", recorded.Len())
	}

	messages := recorded.All()
	want := []string{"info message", "error message", "warn message", "debug message"}
	for i, entry := range messages {
		if entry.Message != want[i] {
			t.Fatalf("entry %d message = %q, want %q", i, entry.Message, want[i])
		}
	}
	if field := messages[0].ContextMap()["k"]; field != "v" {
		t.Fatalf("expected field \"k\" to equal \"v\", got %v", field)
	}
}

func TestWithModuleAttachesModuleField(t *testing.T) {
	core, recorded := observer.New(zap.InfoLevel)
	t.Cleanup(func() {
		globalLogger = zap.NewNop()
	})
	globalLogger = zap.New(core)

	logger := WithModule("api")
	logger.Info("module test")

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if module := entries[0].ContextMap()["module"]; module != "api" {
		t.Fatalf("expected module field to be \"api\", got %v", module)
	}
}

func TestInitWithConsoleEncoding(t *testing.T) {
	t.Cleanup(func() {
		globalLogger = zap.NewNop()
	})

	if err := InitWithOptions(Options{Level: "warn", Encoding: "console"}); err != nil {
		t.Fatalf("InitWithOptions returned error: %v", err)
	}
	if Logger().Core().Enabled(zap.InfoLevel) {
		t.Fatal("expected info level to be disabled at warn")
	}
	if !Logger().Core().Enabled(zap.WarnLevel) {
		t.Fatal("expected warn level to be enabled")
	}
}

func TestWithOrganizationAttachesFields(t *testing.T) {
	core, recorded := observer.New(zap.InfoLevel)
	t.Cleanup(func() {
		globalLogger = zap.NewNop()
	})
	globalLogger = zap.New(core)

	WithOrganization("membership", "org-1").Info("scoped")

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["module"] != "membership" || fields["organization_id"] != "org-1" {
		t.Fatalf("unexpected fields: %v", fields)
	}
}

func TestReplaceRestoresPreviousLogger(t *testing.T) {
	core, recorded := observer.New(zap.InfoLevel)
	restore := Replace(zap.New(core))

	Info("captured")
	restore()
	Info("dropped")

	if recorded.Len() != 1 {
		t.Fatalf("expected 1 captured entry, got %d", recorded.Len())
	}

	restore = Replace(nil)
	defer restore()
	if Logger() == nil {
		t.Fatal("expected no-op logger for nil replacement")
	}
}
