package scheduler

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator produces job ids for registrations that omit one.
// Implemented by UUIDv7Generator (production) and SequentialGenerator (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 job ids.
//
// Sorting auto-generated ids by string matches registration time, which keeps
// traces readable.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SequentialGenerator returns "<prefix>1", "<prefix>2", ...
//
// Thread-safety: SequentialGenerator is safe for concurrent use.
type SequentialGenerator struct {
	prefix string
	n      atomic.Int64
}

// NewSequentialGenerator creates a generator; an empty prefix means "job-".
func NewSequentialGenerator(prefix string) *SequentialGenerator {
	if prefix == "" {
		prefix = "job-"
	}
	return &SequentialGenerator{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialGenerator) Generate() string {
	return g.prefix + strconv.FormatInt(g.n.Add(1), 10)
}

// sequence is a monotonic counter. Calls are linearizable: each Next returns
// a unique, increasing value.
type sequence struct {
	n atomic.Int64
}

func (s *sequence) Next() int64 {
	return s.n.Add(1)
}

// registrations stamps every job with a process-wide insertion index. It is
// only ever used as the last ordering tie-break.
var registrations sequence
