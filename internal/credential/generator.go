package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"strings"
)

// Alphabet excludes the visually ambiguous I, O, 0 and 1.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	groupCount = 4
	groupSize  = 4
	hintLen    = 3
	hintSep    = "…"
)

// Generate returns a readable credential of the form XXXX-XXXX-XXXX-XXXX
// with every symbol drawn uniformly from Alphabet.
func Generate(random io.Reader) (string, error) {
	if random == nil {
		random = rand.Reader
	}
	max := big.NewInt(int64(len(Alphabet)))

	var b strings.Builder
	b.Grow(groupCount*groupSize + groupCount - 1)
	for g := 0; g < groupCount; g++ {
		if g > 0 {
			b.WriteByte('-')
		}
		for i := 0; i < groupSize; i++ {
			n, err := rand.Int(random, max)
			if err != nil {
				return "", fmt.Errorf("read random: %w", err)
			}
			b.WriteByte(Alphabet[n.Int64()])
		}
	}
	return b.String(), nil
}

// Hash returns the hex SHA-256 digest stored in place of the plaintext.
func Hash(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// Hint keeps the first and last three characters for admin recognition.
func Hint(plaintext string) string {
	if len(plaintext) <= 2*hintLen {
		return hintSep
	}
	return plaintext[:hintLen] + hintSep + plaintext[len(plaintext)-hintLen:]
}
