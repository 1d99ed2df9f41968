// Package matchid generates sortable match identifiers: a UUIDv7 encoded as
// a 26-character Crockford base32 string (the TypeID suffix format). The
// timestamp prefix means lexicographic order is creation order, which keeps
// match history directories listable.
package matchid

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"
)

// Crockford's base32, as used by TypeID. No i, l, o or u.
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// RandSource supplies the random tail of an id. Tests inject one to make
// generation deterministic; production uses crypto/rand.
type RandSource interface {
	Intn(n int) int
}

// Generator creates match ids with configurable randomness.
type Generator struct {
	randSource RandSource
}

// NewGenerator creates a generator. A nil randSource means crypto/rand.
func NewGenerator(randSource RandSource) *Generator {
	return &Generator{randSource: randSource}
}

// Generate creates a new match id using crypto/rand.
func Generate() string {
	return NewGenerator(nil).Generate()
}

// Generate creates a new match id.
func (g *Generator) Generate() string {
	return encodeBase32(g.uuidV7())
}

// uuidV7 builds a 128-bit UUIDv7: 48-bit millisecond timestamp, then version
// and variant bits over random data.
func (g *Generator) uuidV7() [16]byte {
	var uuid [16]byte

	now := time.Now().UnixMilli()
	uuid[0] = byte(now >> 40)
	uuid[1] = byte(now >> 32)
	uuid[2] = byte(now >> 24)
	uuid[3] = byte(now >> 16)
	uuid[4] = byte(now >> 8)
	uuid[5] = byte(now)

	if g.randSource != nil {
		for i := 6; i < 16; i++ {
			uuid[i] = byte(g.randSource.Intn(256))
		}
	} else {
		if _, err := rand.Read(uuid[6:]); err != nil {
			panic("matchid: " + err.Error())
		}
	}

	uuid[6] = (uuid[6] & 0x0f) | 0x70
	uuid[8] = (uuid[8] & 0x3f) | 0x80
	return uuid
}

// encodeBase32 packs 128 bits into 26 base32 characters. 26*5 = 130, so the
// first character carries only the top 3 bits and never exceeds '7'.
func encodeBase32(data [16]byte) string {
	var out [26]byte
	var acc uint64
	bits := 0
	j := 25
	for i := 15; i >= 0; i-- {
		acc |= uint64(data[i]) << bits
		bits += 8
		for bits >= 5 && j > 0 {
			out[j] = alphabet[acc&0x1f]
			acc >>= 5
			bits -= 5
			j--
		}
	}
	out[0] = alphabet[acc&0x1f]
	return string(out[:])
}

// Validate checks that id is a well-formed match id.
func Validate(id string) error {
	if len(id) != 26 {
		return fmt.Errorf("match id must be exactly 26 characters, got %d", len(id))
	}
	if id[0] > '7' {
		return fmt.Errorf("match id first character must be 0-7, got %c", id[0])
	}
	for i := 0; i < len(id); i++ {
		if strings.IndexByte(alphabet, id[i]) < 0 {
			return fmt.Errorf("invalid character %c at position %d", id[i], i)
		}
	}
	return nil
}
