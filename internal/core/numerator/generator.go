package numerator

import (
	"context"
	"sync"
	"time"
)

// Generator generates sequential document numbers.
// This is the domain contract - implementations live in infrastructure layer.
type Generator interface {
	// GetNextNumber generates the next document number for period.
	// Pattern: PREFIX-YYYYMMDD-XXXXX (e.g., TR-20261019-00001)
	GetNextNumber(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error)
}

// Sequence is an in-process Generator. Numbers restart per Config.Key and
// are lost on restart, so it backs the in-memory storage mode and tests.
type Sequence struct {
	mu     sync.Mutex
	values map[string]int64
}

// NewSequence creates an empty in-process generator.
func NewSequence() *Sequence {
	return &Sequence{values: make(map[string]int64)}
}

// GetNextNumber implements Generator.
func (s *Sequence) GetNextNumber(_ context.Context, cfg Config, _ *Options, period time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := cfg.Key(period)
	s.values[key]++
	return cfg.Format(period, s.values[key]), nil
}

// Ensure compile-time interface compliance.
var _ Generator = (*Sequence)(nil)
