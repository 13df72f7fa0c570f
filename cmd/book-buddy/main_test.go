package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogOutputFileIsClosed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book-buddy.log")

	out, closeLog, err := logOutput(path, true)
	if err != nil {
		t.Fatalf("logOutput: %v", err)
	}
	if _, err := io.WriteString(out, "scanner started\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := closeLog(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := io.WriteString(out, "after close\n"); err == nil {
		t.Fatal("log file still open after close")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "scanner started") {
		t.Fatalf("log file holds %q", data)
	}
}

func TestLogOutputDestinations(t *testing.T) {
	out, closeLog, err := logOutput("", true)
	if err != nil || out != io.Discard || closeLog() != nil {
		t.Fatalf("dashboard: out=%v err=%v", out, err)
	}

	out, closeLog, err = logOutput("", false)
	if err != nil || out != os.Stderr || closeLog() != nil {
		t.Fatalf("terminal: out=%v err=%v", out, err)
	}

	if _, _, err := logOutput(filepath.Join(t.TempDir(), "missing", "x.log"), false); err == nil {
		t.Fatal("unwritable path accepted")
	}
}
