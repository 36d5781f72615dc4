// Package gameid generates the identifiers used for tables and seats.
//
// Table ids are UUIDv7 values encoded as 26-character lowercase Crockford
// base32 strings, so they sort by creation time and are safe in URLs and
// document keys. Player ids are short random tokens scoped to one table.
package gameid

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

// Base32 alphabet used by TypeID (Crockford's base32)
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// Length of an encoded table id
const Length = 26

// Generator creates ids from an optional randomness source
type Generator struct {
	rand io.Reader
}

// NewGenerator creates a generator. A nil reader uses crypto/rand.
func NewGenerator(rand io.Reader) *Generator {
	return &Generator{rand: rand}
}

// TableID returns a new time-ordered table id
func (g *Generator) TableID() string {
	return Encode(g.uuid())
}

// PlayerID returns an 8 character player id. Player ids only need to be
// unique within a table.
func (g *Generator) PlayerID() string {
	id := g.uuid()
	return "p" + Encode(id)[Length-7:]
}

func (g *Generator) uuid() uuid.UUID {
	var (
		id  uuid.UUID
		err error
	)
	if g.rand != nil {
		id, err = uuid.NewV7FromReader(g.rand)
	} else {
		id, err = uuid.NewV7()
	}
	if err != nil {
		panic("failed to generate random bytes: " + err.Error())
	}
	return id
}

// Encode encodes a UUID as 26 base32 characters. The 128 bits are treated
// as a 130-bit number with two leading zero bits, so the first character is
// always in 0-7.
func Encode(id uuid.UUID) string {
	var hi, lo uint64
	for i := 0; i < 8; i++ {
		hi = hi<<8 | uint64(id[i])
		lo = lo<<8 | uint64(id[i+8])
	}

	out := make([]byte, Length)
	for i := Length - 1; i >= 0; i-- {
		out[i] = alphabet[lo&0x1f]
		lo = lo>>5 | hi<<59
		hi >>= 5
	}
	return string(out)
}

// Validate checks if a table ID is valid (26 characters, valid base32)
func Validate(id string) error {
	if len(id) != Length {
		return fmt.Errorf("table ID must be exactly %d characters, got %d", Length, len(id))
	}
	if id[0] > '7' {
		return fmt.Errorf("table ID first character must be 0-7, got %c", id[0])
	}
	for i := 0; i < len(id); i++ {
		if strings.IndexByte(alphabet, id[i]) < 0 {
			return fmt.Errorf("invalid character %c at position %d", id[i], i)
		}
	}
	return nil
}
