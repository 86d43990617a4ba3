package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/newthinker/turtle/internal/core"
)

// Registry maps strategy codes to implementations.
type Registry struct {
	mu     sync.RWMutex
	opens  map[string]OpenStrategy
	closes map[string]CloseStrategy
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		opens:  make(map[string]OpenStrategy),
		closes: make(map[string]CloseStrategy),
	}
}

// RegisterOpen adds an open strategy, replacing any with the same code.
func (r *Registry) RegisterOpen(s OpenStrategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opens[s.Code()] = s
}

// RegisterClose adds a close strategy, replacing any with the same code.
func (r *Registry) RegisterClose(s CloseStrategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closes[s.Code()] = s
}

// Open looks up an open strategy by code.
func (r *Registry) Open(code string) (OpenStrategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.opens[code]
	if !ok {
		return nil, core.WrapError(core.ErrStrategyNotFound, fmt.Errorf("open strategy %q, registered %v", code, sortedCodes(r.opens)))
	}
	return s, nil
}

// Close looks up a close strategy by code.
func (r *Registry) Close(code string) (CloseStrategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.closes[code]
	if !ok {
		return nil, core.WrapError(core.ErrStrategyNotFound, fmt.Errorf("close strategy %q, registered %v", code, sortedCodes(r.closes)))
	}
	return s, nil
}

// OpenCodes returns the registered open codes, sorted.
func (r *Registry) OpenCodes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedCodes(r.opens)
}

// CloseCodes returns the registered close codes, sorted.
func (r *Registry) CloseCodes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedCodes(r.closes)
}

func sortedCodes[T any](m map[string]T) []string {
	codes := make([]string, 0, len(m))
	for c := range m {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}
