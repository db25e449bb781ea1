// Package gameid produces short, URL-safe game identifiers.
package gameid

import (
	"math/rand/v2"
	"strconv"
	"time"
)

const (
	alphabet   = "0123456789abcdefghijklmnopqrstuvwxyz"
	randLength = 8
)

// Generator combines a random prefix with a base-36 millisecond timestamp so
// that callers never coordinate and collisions need the same millisecond and
// the same 8 random characters.
type Generator struct {
	Now  func() time.Time
	Intn func(n int) int
}

var defaultGenerator = Generator{Now: time.Now, Intn: rand.IntN}

// New returns a fresh id using the process-wide generator.
func New() string {
	return defaultGenerator.New()
}

func (g Generator) New() string {
	b := make([]byte, 0, randLength+9)
	for range randLength {
		b = append(b, alphabet[g.Intn(len(alphabet))])
	}
	return string(strconv.AppendInt(b, g.Now().UnixMilli(), 36))
}
