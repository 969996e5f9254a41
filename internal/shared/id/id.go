// Package id provides typed ULID generation for terminal sessions and
// commands. ULIDs are lexicographically sortable, so session transcripts and
// command logs order naturally by creation time, and the type-specific
// prefixes (sess_*, cmd_*) keep logs readable.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// SessionID identifies a terminal session and its PTY slot.
type SessionID string

// CommandID identifies one command execution.
type CommandID string

const (
	sessionPrefix = "sess"
	commandPrefix = "cmd"
)

// Generator generates ULIDs with optional prefixes.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand entropy.
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Useful for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string.
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewSessionID generates a new session ID.
func NewSessionID() SessionID {
	return SessionID(Default().GenerateWithPrefix(sessionPrefix))
}

// NewCommandID generates a new command ID.
func NewCommandID() CommandID {
	return CommandID(Default().GenerateWithPrefix(commandPrefix))
}

func (id SessionID) String() string { return string(id) }
func (id CommandID) String() string { return string(id) }

// IsValid checks if an ID string carries a valid ULID payload.
func IsValid(id string) bool {
	if i := len(id) - 26; i > 0 {
		id = id[i:]
	}
	_, err := ulid.Parse(id)
	return err == nil
}
