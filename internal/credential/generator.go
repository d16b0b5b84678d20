// Package credential generates, hashes and seals administrator credentials.
package credential

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/neomorfeo/tenantforge/internal/domain"
)

const (
	// Length of every generated credential.
	Length = 16
	// MinPerClass is the guaranteed count of each character class.
	MinPerClass = 2

	upper   = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	lower   = "abcdefghijkmnopqrstuvwxyz"
	digits  = "23456789"
	special = "!@#$%&*+-=?"
)

// Classes lists the character classes a credential must cover.
var Classes = []string{upper, lower, digits, special}

// Generator produces one-time passwords from a cryptographic source.
type Generator struct {
	rand io.Reader
}

// NewGenerator returns a generator reading from crypto/rand.
func NewGenerator() *Generator {
	return &Generator{rand: rand.Reader}
}

// Generate returns a Length-character secret with at least MinPerClass
// characters of each class, shuffled with Fisher–Yates.
func (g *Generator) Generate() (domain.Secret, error) {
	buf := make([]byte, 0, Length)
	for _, class := range Classes {
		for range MinPerClass {
			c, err := g.pick(class)
			if err != nil {
				return "", err
			}
			buf = append(buf, c)
		}
	}

	all := upper + lower + digits + special
	for len(buf) < Length {
		c, err := g.pick(all)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}

	for i := len(buf) - 1; i > 0; i-- {
		j, err := g.intn(i + 1)
		if err != nil {
			return "", err
		}
		buf[i], buf[j] = buf[j], buf[i]
	}

	return domain.Secret(buf), nil
}

func (g *Generator) pick(charset string) (byte, error) {
	i, err := g.intn(len(charset))
	if err != nil {
		return 0, err
	}
	return charset[i], nil
}

// intn draws uniformly from [0, n) without modulo bias.
func (g *Generator) intn(n int) (int, error) {
	v, err := rand.Int(g.rand, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("reading random source: %w", err)
	}
	return int(v.Int64()), nil
}
