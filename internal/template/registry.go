// Package template maps event types to subject/body templates with named
// {{placeholder}} tokens. The registry is loaded once at startup and is
// read-only afterwards, so Compile is safe for concurrent use.
package template

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownTemplate is returned when an event type has no registered entry.
var ErrUnknownTemplate = errors.New("unknown template")

// MissingPlaceholderError reports every required placeholder absent from the
// params of one Compile call, so the caller gets a complete diagnosis in a
// single round trip.
type MissingPlaceholderError struct {
	EventType string
	Names     []string
}

func (e *MissingPlaceholderError) Error() string {
	return fmt.Sprintf("template %q: missing placeholders: %s", e.EventType, strings.Join(e.Names, ", "))
}

// Template is one registered subject/body pair. Required lists the
// placeholder names that must be present in params, in declared order.
type Template struct {
	Subject  string
	Body     string
	Required []string
}

// Rendered is the output of a successful compile.
type Rendered struct {
	Subject string
	Body    string
}

// Registry holds the immutable event type → template mapping.
type Registry struct {
	templates map[string]Template
}

// NewRegistry builds a registry from the built-in catalog.
func NewRegistry() *Registry {
	return NewRegistryWith(Catalog())
}

// NewRegistryWith builds a registry from an explicit template set.
// The map is copied; later mutation of the argument has no effect.
func NewRegistryWith(templates map[string]Template) *Registry {
	copied := make(map[string]Template, len(templates))
	for k, v := range templates {
		copied[k] = v
	}
	return &Registry{templates: copied}
}

// Compile renders the template registered for eventType with the given
// params. Substitution is literal replacement of {{name}} tokens; tokens
// that are not declared required and have no matching param are left
// untouched, so templates may reference optional data that is absent.
func (r *Registry) Compile(eventType string, params map[string]string) (Rendered, error) {
	tpl, ok := r.templates[eventType]
	if !ok {
		return Rendered{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, eventType)
	}

	var missing []string
	for _, name := range tpl.Required {
		if _, ok := params[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return Rendered{}, &MissingPlaceholderError{EventType: eventType, Names: missing}
	}

	return Rendered{
		Subject: substitute(tpl.Subject, params),
		Body:    substitute(tpl.Body, params),
	}, nil
}

// Has reports whether a template is registered for eventType.
func (r *Registry) Has(eventType string) bool {
	_, ok := r.templates[eventType]
	return ok
}

func substitute(s string, params map[string]string) string {
	for k, v := range params {
		s = strings.ReplaceAll(s, "{{"+k+"}}", v)
	}
	return s
}
