// Package prompts is the prompt template service. Templates are addressed
// by (name, label) and compiled with {placeholder} variables.
package prompts

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// ErrTemplateNotFound is returned when no template exists for (name, label).
var ErrTemplateNotFound = errors.New("prompt template not found")

// Service fetches named templates. Implementations must be safe for
// concurrent use.
type Service interface {
	Fetch(ctx context.Context, name, label string) (*Template, error)
}

type Template struct {
	Name  string
	Label string
	Text  string
}

var placeholderPattern = regexp.MustCompile(`\{([a-z][a-z0-9_]*)\}`)

// Compile substitutes {placeholder} variables. A placeholder with no
// matching variable is an error; unused variables are ignored.
func (t *Template) Compile(vars map[string]string) (string, error) {
	var missing []string

	out := placeholderPattern.ReplaceAllStringFunc(t.Text, func(match string) string {
		key := match[1 : len(match)-1]
		value, ok := vars[key]
		if !ok {
			missing = append(missing, key)
			return match
		}
		return value
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("template %s/%s: missing variables: %s",
			t.Label, t.Name, strings.Join(missing, ", "))
	}
	return out, nil
}

// Variables lists the placeholders the template expects, in order of first
// appearance.
func (t *Template) Variables() []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(t.Text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

// StaticService serves templates from an in-memory map keyed by label/name.
// It backs tests and the built-in defaults.
type StaticService struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

func NewStaticService() *StaticService {
	return &StaticService{templates: make(map[string]*Template)}
}

func (s *StaticService) key(name, label string) string {
	return label + "/" + name
}

func (s *StaticService) Set(name, label, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[s.key(name, label)] = &Template{Name: name, Label: label, Text: text}
}

func (s *StaticService) Fetch(ctx context.Context, name, label string) (*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tmpl, ok := s.templates[s.key(name, label)]
	if !ok {
		return nil, fmt.Errorf("%w: %s (label %s)", ErrTemplateNotFound, name, label)
	}
	return tmpl, nil
}

var _ Service = (*StaticService)(nil)
