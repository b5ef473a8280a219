// Package id generates prefixed, time-sortable identifiers for requests and
// stream subscribers.
//
// Identifiers are ULIDs rendered as "<prefix>_<ulid>". Ids from one
// generator sort in creation order, including ids created within the same
// millisecond. Segment ids are chosen by clients and are not generated here.
package id

import (
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// RequestID identifies one HTTP request.
type RequestID string

// SubscriberID identifies one stream subscriber on a segment.
type SubscriberID string

const (
	RequestPrefix    = "req"
	SubscriberPrefix = "sub"
)

func (id RequestID) String() string    { return string(id) }
func (id SubscriberID) String() string { return string(id) }

// Generator produces monotonic ULIDs. It is safe for concurrent use.
type Generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator seeded from crypto/rand.
func NewGenerator() *Generator {
	return &Generator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// WithPrefix creates a "<prefix>_<ulid>" string.
func (g *Generator) WithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewRequestID generates a request id.
func NewRequestID() RequestID {
	return RequestID(Default().WithPrefix(RequestPrefix))
}

// NewSubscriberID generates a subscriber id.
func NewSubscriberID() SubscriberID {
	return SubscriberID(Default().WithPrefix(SubscriberPrefix))
}

// Split separates a prefixed id into its prefix and ULID. Ids without a
// prefix return an empty prefix.
func Split(s string) (prefix string, u ulid.ULID, err error) {
	raw := s
	if i := strings.LastIndexByte(s, '_'); i >= 0 {
		prefix, raw = s[:i], s[i+1:]
	}
	u, err = ulid.ParseStrict(raw)
	if err != nil {
		return "", ulid.ULID{}, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return prefix, u, nil
}

// IsValid reports whether s is a ULID, with or without a prefix.
func IsValid(s string) bool {
	_, _, err := Split(s)
	return err == nil
}

// Timestamp returns the creation time encoded in an id.
func Timestamp(s string) (time.Time, error) {
	_, u, err := Split(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()), nil
}
