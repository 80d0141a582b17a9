package executor

import (
	"context"
	"strings"
	"testing"
)

func TestExecuteReturnsStdout(t *testing.T) {
	out, err := New().Execute(context.Background(), "sh", "-c", "printf hello")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if string(out) != "hello" {
		t.Fatalf("expected hello, got %q", out)
	}
}

func TestExecuteIncludesStderr(t *testing.T) {
	_, err := New().Execute(context.Background(), "sh", "-c", "echo boom >&2; exit 3")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}

func TestLastLines(t *testing.T) {
	if got := lastLines("a\nb\nc\n", 2); got != "b\nc" {
		t.Fatalf("expected last two lines, got %q", got)
	}
}

func TestLookPathMissing(t *testing.T) {
	if err := LookPath("definitely-not-a-real-binary-xyz"); err == nil {
		t.Fatal("expected error for missing binary")
	}
}
