// Package idgen generates the sequence numbers that order observed execution
// steps.
package idgen

import "sync/atomic"

// ID is a sequence number. IDs from one generator are unique and strictly
// increasing.
type ID uint64

// Generator produces unique identifiers.
type Generator interface {
	// Generate returns the next ID.
	Generate() ID

	// Last returns the most recently generated ID, 0 if none.
	Last() ID
}

// New returns a sequential generator whose first emitted ID is "1".
func New() Generator {
	return &sequentialGenerator{}
}

var process = New()

// Process returns the generator shared by the whole process.
func Process() Generator {
	return process
}

type sequentialGenerator struct {
	next uint64
}

func (g *sequentialGenerator) Generate() ID {
	return ID(atomic.AddUint64(&g.next, 1))
}

func (g *sequentialGenerator) Last() ID {
	return ID(atomic.LoadUint64(&g.next))
}
