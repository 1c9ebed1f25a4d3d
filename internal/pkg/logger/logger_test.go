package logger

import "testing"

func TestInitAndLog(t *testing.T) {
	if err := Init("debug", "json"); err != nil {
		t.Fatalf("Init: %v", err)
	}

	// Must not panic after Init.
	Debug("debug message")
	Info("info message")
	Warn("warn message")
	Error("error message")

	if L() == nil {
		t.Fatal("L() returned nil after Init")
	}
}

func TestSetLevel(t *testing.T) {
	if err := Init("info", "json"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := SetLevel("warn"); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}
	if err := SetLevel("not-a-level"); err == nil {
		t.Fatal("SetLevel accepted an invalid level")
	}
}

func TestSyncWithoutInitIsSafe(t *testing.T) {
	// Sync on an uninitialized logger must not panic.
	_ = Sync()
}
