package shortcode

import (
	"crypto/rand"
	"fmt"
)

const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// Generator produces random base62 short codes. Codes are drawn from
// crypto/rand so issued codes cannot be enumerated from earlier ones.
type Generator struct {
	length int
}

const DefaultLength = 7

func NewGenerator(length int) *Generator {
	if length <= 0 {
		length = DefaultLength
	}
	return &Generator{length: length}
}

// Generate returns a fresh random code. Uniqueness is not guaranteed here;
// the caller detects collisions at insert time and retries.
func (g *Generator) Generate() (string, error) {
	code := make([]byte, g.length)
	buf := make([]byte, g.length)

	filled := 0
	for filled < g.length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			// Rejection sampling: 248 is the largest multiple of 62
			// below 256, so accepted bytes are uniform over the alphabet.
			if b >= 248 {
				continue
			}
			code[filled] = alphabet[b%62]
			filled++
			if filled == g.length {
				break
			}
		}
	}
	return string(code), nil
}

func (g *Generator) Length() int {
	return g.length
}
