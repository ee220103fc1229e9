package parser

import (
	"context"
	"fmt"
)

// Registry maps a configured builtInType to its parser instance.
//
// Registration is a static compiled list assembled at process start; there
// is no dynamic plugin loading. All methods are safe for concurrent use
// after construction because the maps are never mutated afterwards.
type Registry struct {
	byType map[BuiltInType]Parser
	order  []Parser
}

func NewRegistry() *Registry {
	return &Registry{byType: map[BuiltInType]Parser{}}
}

// Register adds parsers to the registry. Duplicate builtInTypes are a
// programming error and rejected.
func (r *Registry) Register(parsers ...Parser) error {
	for _, p := range parsers {
		if p == nil {
			continue
		}
		id := p.Descriptor().BuiltInType
		if id == "" {
			return fmt.Errorf("parser with empty builtInType")
		}
		if _, dup := r.byType[id]; dup {
			return fmt.Errorf("duplicate parser builtInType %q", id)
		}
		r.byType[id] = p
		r.order = append(r.order, p)
	}
	return nil
}

// Resolve returns the parser for the given source identifier.
func (r *Registry) Resolve(id BuiltInType) (Parser, bool) {
	p, ok := r.byType[id]
	return p, ok
}

// All returns every registered parser in registration order.
func (r *Registry) All() []Parser {
	out := make([]Parser, len(r.order))
	copy(out, r.order)
	return out
}

// Descriptors returns the static descriptors in registration order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, p := range r.order {
		out = append(out, p.Descriptor())
	}
	return out
}

// Detect returns the first parser (registration order) whose Validate
// accepts the payload. Used when the caller did not declare a source.
func (r *Registry) Detect(ctx context.Context, payload Payload, pctx Context) (Parser, bool) {
	for _, p := range r.order {
		if p.Validate(ctx, payload, pctx) {
			return p, true
		}
	}
	return nil, false
}
