// Package id issues time-sortable identifiers for journal rows.
package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator hands out ULIDs that increase monotonically even when several
// are issued within the same millisecond.
type Generator struct {
	mu      sync.Mutex
	now     func() time.Time
	entropy io.Reader
	prefix  string
}

// NewGenerator returns a generator whose IDs start with prefix, if set,
// followed by an underscore.
func NewGenerator(prefix string) *Generator {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		now:     time.Now,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0),
		prefix:  strings.TrimSuffix(prefix, "_"),
	}
}

// New returns the next identifier stamped with the current time.
func (g *Generator) New() string {
	return g.At(g.now())
}

// At returns an identifier stamped with t. If the generator's entropy
// fails or overflows, the random part is drawn from crypto/rand instead.
func (g *Generator) At(t time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := ulid.Timestamp(t.UTC())
	id, err := ulid.New(ms, g.entropy)
	if err != nil {
		// crypto/rand does not fail on supported platforms
		id = ulid.MustNew(ms, cryptoRand.Reader)
	}
	s := id.String()

	if g.prefix == "" {
		return s
	}
	return g.prefix + "_" + s
}

// Time extracts the timestamp embedded in an identifier from any Generator.
func Time(s string) (time.Time, error) {
	if i := strings.LastIndexByte(s, '_'); i >= 0 {
		s = s[i+1:]
	}
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()), nil
}

var defaultGen = NewGenerator("")

// New returns an unprefixed ULID from the package generator.
func New() string {
	return defaultGen.New()
}
