// Package id generates unique identifiers for simulation objects.
package id

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"
)

// IDGenerator can generate IDs.
type IDGenerator interface {
	Generate() string
}

var (
	generatorLock sync.Mutex
	generator     IDGenerator
	sequential    sequentialIDGenerator
)

// UseSequentialIDGenerator makes Generate return decimal, increasing IDs.
// Switching back from the parallel generator continues the earlier sequence.
func UseSequentialIDGenerator() {
	generatorLock.Lock()
	defer generatorLock.Unlock()

	if _, ok := generator.(*sequentialIDGenerator); ok {
		return
	}

	generator = &sequential
}

// UseParallelIDGenerator makes Generate return xid strings, which do not
// depend on generation order. Simulations that run at the same time use it.
// xid strings are 20 characters of base32 and never collide with the
// sequential IDs.
func UseParallelIDGenerator() {
	generatorLock.Lock()
	defer generatorLock.Unlock()

	generator = parallelIDGenerator{}
}

// Generate returns a new ID from the current generator. The sequential
// generator is used if none was chosen.
func Generate() string {
	generatorLock.Lock()
	if generator == nil {
		generator = &sequential
	}
	g := generator
	generatorLock.Unlock()

	return g.Generate()
}

// NewIDGenerator returns a private sequential generator, independent of the
// package-level one.
func NewIDGenerator() IDGenerator {
	return &sequentialIDGenerator{}
}

type sequentialIDGenerator struct {
	nextID uint64
}

func (g *sequentialIDGenerator) Generate() string {
	idNumber := atomic.AddUint64(&g.nextID, 1)

	return strconv.FormatUint(idNumber, 10)
}

type parallelIDGenerator struct{}

func (g parallelIDGenerator) Generate() string {
	return xid.New().String()
}
