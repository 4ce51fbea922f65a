package session

import (
	"fmt"
	"strings"
)

// Mode is the access discipline for a named section within one request.
type Mode int

const (
	// ModeExclusive takes an exclusive row lock at fetch and always writes back.
	ModeExclusive Mode = iota + 1
	// ModeShared takes a shared row lock at fetch and always writes back.
	ModeShared
	// ModeReadOnly reads without a lock and never writes back.
	ModeReadOnly
)

func (m Mode) String() string {
	switch m {
	case ModeExclusive:
		return "exclusive"
	case ModeShared:
		return "shared"
	case ModeReadOnly:
		return "read_only"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Valid reports whether m is one of the declared modes
func (m Mode) Valid() bool {
	return m == ModeExclusive || m == ModeShared || m == ModeReadOnly
}

// Writable reports whether sections fetched in this mode are written back on save.
// It panics on an undeclared mode.
func (m Mode) Writable() bool {
	switch m {
	case ModeExclusive, ModeShared:
		return true
	case ModeReadOnly:
		return false
	default:
		panic(fmt.Sprintf("session: unreachable section mode %d", int(m)))
	}
}

// ParseMode parses the String form of a mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exclusive":
		return ModeExclusive, nil
	case "shared":
		return ModeShared, nil
	case "read_only", "readonly", "read-only":
		return ModeReadOnly, nil
	default:
		return 0, fmt.Errorf("session: unknown section mode %q", s)
	}
}
