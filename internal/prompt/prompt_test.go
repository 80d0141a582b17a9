package prompt

import (
	"strings"
	"testing"
)

func TestParseCategory(t *testing.T) {
	tests := map[string]Category{
		"meeting":  Meeting,
		" Lecture": Lecture,
		"CALL":     Call,
		"":         Meeting,
		"podcast":  Meeting,
	}
	for in, want := range tests {
		if got := ParseCategory(in); got != want {
			t.Fatalf("ParseCategory(%q): expected %q, got %q", in, want, got)
		}
	}
	if Valid("podcast") || !Valid("call") {
		t.Fatal("Valid mismatched the supported set")
	}
}

func TestBuiltinTemplates(t *testing.T) {
	p, err := NewProvider(nil)
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}

	for _, c := range Categories {
		chunk := p.Chunk(c)
		for _, marker := range []string{"{{chunk_text}}", "{{context_summary}}", "CHUNK_PART", "---DELIMITER---", "UPDATED_CONTEXT"} {
			if !strings.Contains(chunk, marker) {
				t.Fatalf("%s chunk template missing %q", c, marker)
			}
		}
		final := p.Final(c)
		if !strings.Contains(final, "{{combined_history}}") {
			t.Fatalf("%s final template missing history placeholder", c)
		}
		if !strings.Contains(final, "Never output JSON") {
			t.Fatalf("%s final template must forbid JSON", c)
		}
	}
	if !strings.Contains(p.Reduce(), "{{target_tokens}}") || !strings.Contains(p.Reduce(), "{{text}}") {
		t.Fatalf("unexpected reduce template: %q", p.Reduce())
	}
	if !strings.Contains(p.Route(), "{{excerpt}}") {
		t.Fatalf("unexpected route template: %q", p.Route())
	}
	if p.System() == "" || strings.Contains(p.System(), "{{") {
		t.Fatalf("unexpected system instruction: %q", p.System())
	}
}

func TestSystemOverride(t *testing.T) {
	p, err := NewProvider(map[string]string{"system": "  Write in German.\n"})
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	if p.System() != "Write in German." {
		t.Fatalf("expected trimmed override, got %q", p.System())
	}
}

func TestUnknownCategoryUsesMeeting(t *testing.T) {
	p, err := NewProvider(nil)
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	if p.Chunk(Category("podcast")) != p.Chunk(Meeting) {
		t.Fatal("expected meeting chunk template for unknown category")
	}
	if p.Final(Category("podcast")) != p.Final(Meeting) {
		t.Fatal("expected meeting final template for unknown category")
	}
}

func TestOverrides(t *testing.T) {
	p, err := NewProvider(map[string]string{"final.call": "CALL {{combined_history}}"})
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	if p.Final(Call) != "CALL {{combined_history}}" {
		t.Fatalf("expected override, got %q", p.Final(Call))
	}
	if p.Final(Meeting) == p.Final(Call) {
		t.Fatal("override leaked into another category")
	}

	if _, err := NewProvider(map[string]string{"final.podcast": "x"}); err == nil {
		t.Fatal("expected error for unknown override key")
	}
	if _, err := NewProvider(map[string]string{"reduce": "  "}); err == nil {
		t.Fatal("expected error for empty override")
	}
}

func TestFillIsSinglePass(t *testing.T) {
	got := Fill("A={{a}} B={{b}}", map[string]string{"a": "{{b}}", "b": "x"})
	if got != "A={{b}} B=x" {
		t.Fatalf("unexpected fill result %q", got)
	}
}
