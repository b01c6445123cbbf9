package triage

import (
	"context"
	"fmt"
)

// Processor extracts content from one family of file types.
type Processor interface {
	Name() string
	CanHandle(ft FileType) bool
	Process(ctx context.Context, path string, ft FileType) ProcessingResult
}

// Registry routes file types to processors. Registration order is the
// lookup order; the first processor that claims a type wins.
type Registry struct {
	processors []Processor
}

// NewRegistry builds a registry over the given processors, in order.
func NewRegistry(processors ...Processor) *Registry {
	return &Registry{processors: processors}
}

// Register appends a processor. Not safe to call concurrently with For.
func (r *Registry) Register(p Processor) {
	r.processors = append(r.processors, p)
}

// For returns the processor responsible for ft, or an error naming the
// unroutable type.
func (r *Registry) For(ft FileType) (Processor, error) {
	for _, p := range r.processors {
		if p.CanHandle(ft) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("No processor for file type: %s", ft)
}

// Names lists the registered processors in lookup order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.processors))
	for _, p := range r.processors {
		names = append(names, p.Name())
	}
	return names
}
