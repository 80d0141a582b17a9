// Package prompt owns every instruction template sent to the text
// generation model. Templates are plain Markdown with {{name}} placeholders.
package prompt

import (
	"embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed templates/*.md
var builtin embed.FS

type Category string

const (
	Meeting Category = "meeting"
	Lecture Category = "lecture"
	Call    Category = "call"
)

// Categories lists the supported categories in display order.
var Categories = []Category{Meeting, Lecture, Call}

// ParseCategory maps free-form input to a Category. Unknown and empty
// values fall back to Meeting.
func ParseCategory(raw string) Category {
	switch c := Category(strings.ToLower(strings.TrimSpace(raw))); c {
	case Meeting, Lecture, Call:
		return c
	default:
		return Meeting
	}
}

// Valid reports whether raw names a supported category exactly.
func Valid(raw string) bool {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	return c == Meeting || c == Lecture || c == Call
}

// Provider serves the templates for each category. It is read-only after
// construction and safe for concurrent use.
type Provider struct {
	templates map[string]string
}

// NewProvider loads the built-in templates and applies overrides keyed by
// "chunk.<category>", "final.<category>", "reduce", "route" or "system".
func NewProvider(overrides map[string]string) (*Provider, error) {
	p := &Provider{templates: make(map[string]string)}

	entries, err := builtin.ReadDir("templates")
	if err != nil {
		return nil, fmt.Errorf("read built-in templates: %w", err)
	}
	for _, e := range entries {
		data, err := builtin.ReadFile("templates/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", e.Name(), err)
		}
		key := strings.Replace(strings.TrimSuffix(e.Name(), ".md"), "_", ".", 1)
		p.templates[key] = string(data)
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := p.templates[k]; !ok {
			return nil, fmt.Errorf("unknown prompt override %q", k)
		}
		if strings.TrimSpace(overrides[k]) == "" {
			return nil, fmt.Errorf("prompt override %q is empty", k)
		}
		p.templates[k] = overrides[k]
	}

	return p, nil
}

// Chunk returns the per-window template. Unknown categories get Meeting's.
func (p *Provider) Chunk(c Category) string {
	return p.lookup("chunk", c)
}

// Final returns the final-report template. Unknown categories get Meeting's.
func (p *Provider) Final(c Category) string {
	return p.lookup("final", c)
}

func (p *Provider) Reduce() string {
	return p.templates["reduce"]
}

func (p *Provider) Route() string {
	return p.templates["route"]
}

// System is the instruction sent alongside every prompt.
func (p *Provider) System() string {
	return strings.TrimSpace(p.templates["system"])
}

func (p *Provider) lookup(kind string, c Category) string {
	if t, ok := p.templates[kind+"."+string(c)]; ok {
		return t
	}
	return p.templates[kind+"."+string(Meeting)]
}

// Fill substitutes {{name}} placeholders in a single pass, so values that
// happen to contain placeholder syntax are left untouched.
func Fill(template string, vars map[string]string) string {
	pairs := make([]string, 0, 2*len(vars))
	for name, value := range vars {
		pairs = append(pairs, "{{"+name+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
