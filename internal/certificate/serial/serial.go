// Package serial generates certificate serials of the form RICH-YYYYMMDD-XXXXXXXX.
//
// The suffix is drawn uniformly from 62 symbols, giving 62^8 (about 2.2e14)
// values per day. That is statistical uniqueness only; the certificate store's
// unique constraint is the authority.
package serial

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"regexp"
	"time"

	"imrich/internal/certificate/models"
)

const (
	Prefix       = "RICH"
	SuffixLength = 8
	alphabet     = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	dateLayout   = "20060102"
)

// Length of every well-formed serial.
const Length = len(Prefix) + 1 + len(dateLayout) + 1 + SuffixLength

var pattern = regexp.MustCompile(`^RICH-\d{8}-[A-Za-z0-9]{8}$`)

// Generator produces serials from a randomness source.
type Generator struct {
	rand io.Reader
}

type Option func(*Generator)

// WithRand replaces crypto/rand. Tests use it to force collisions.
func WithRand(r io.Reader) Option {
	return func(g *Generator) { g.rand = r }
}

func New(opts ...Option) *Generator {
	g := &Generator{rand: rand.Reader}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns a fresh serial dated by the UTC day of at. Callers pass
// the same instant they persist as created_at.
func (g *Generator) Generate(at time.Time) (models.Serial, error) {
	suffix := make([]byte, SuffixLength)
	n62 := big.NewInt(int64(len(alphabet)))
	for i := range suffix {
		n, err := rand.Int(g.rand, n62)
		if err != nil {
			return "", fmt.Errorf("read serial randomness: %w", err)
		}
		suffix[i] = alphabet[n.Int64()]
	}
	date := at.UTC().Format(dateLayout)
	return models.Serial(Prefix + "-" + date + "-" + string(suffix)), nil
}

// Valid reports whether s is shaped like a serial. It says nothing about existence.
func Valid(s string) bool {
	return len(s) == Length && pattern.MatchString(s)
}
