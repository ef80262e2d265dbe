package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewFileWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "wpptui.log")

	logger, err := NewFile(path, "wpptui")
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("hello")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	line := strings.TrimSpace(string(data))
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not JSON: %q", line)
	}
	if entry["msg"] != "hello" || entry["component"] != "wpptui" {
		t.Errorf("entry = %v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Error("missing ts field")
	}
}

func TestNewCreatesLogDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "wppd.log")
	logger, err := New(path, "main")
	if err != nil {
		t.Fatal(err)
	}
	_ = logger.Sync()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("log file not created: %v", err)
	}
}
