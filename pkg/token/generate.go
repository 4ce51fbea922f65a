package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// DefaultEntropyLength is the number of random bytes hashed into each token.
const DefaultEntropyLength = 32

// Length is the length of every generated token in characters.
const Length = sha256.Size * 2

// Generator produces fixed-length hex tokens from a cryptographic entropy source.
type Generator struct {
	entropyLength int
	source        io.Reader
}

// NewGenerator returns a Generator reading entropyLength bytes per token.
// Non-positive lengths fall back to DefaultEntropyLength.
func NewGenerator(entropyLength int) *Generator {
	if entropyLength <= 0 {
		entropyLength = DefaultEntropyLength
	}
	return &Generator{entropyLength: entropyLength, source: rand.Reader}
}

// NewGeneratorWithSource is NewGenerator with a custom entropy source.
// Intended for tests; production code should use crypto/rand.
func NewGeneratorWithSource(entropyLength int, source io.Reader) (*Generator, error) {
	if entropyLength <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidEntropyLength, entropyLength)
	}
	if source == nil {
		source = rand.Reader
	}
	return &Generator{entropyLength: entropyLength, source: source}, nil
}

// EntropyLength reports how many random bytes feed each token.
func (g *Generator) EntropyLength() int {
	return g.entropyLength
}

// Generate returns a new 64 character hex token.
func (g *Generator) Generate() (string, error) {
	buf := make([]byte, g.entropyLength)
	if _, err := io.ReadFull(g.source, buf); err != nil {
		return "", errors.Join(ErrEntropyUnavailable, err)
	}

	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:]), nil
}
