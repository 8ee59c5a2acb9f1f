// Package gameid generates round identifiers: a UUIDv7 encoded as a
// 26-character lowercase Crockford base32 string, so ids sort by creation
// time and are safe in URLs.
package gameid

import (
	"fmt"
	"io"
	"math/big"

	"github.com/google/uuid"
)

// Base32 alphabet used by TypeID (Crockford's base32)
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// Length of an encoded id
const Length = 26

var decodeMap = func() [256]int8 {
	var m [256]int8
	for i := range m {
		m[i] = -1
	}
	for i := 0; i < len(alphabet); i++ {
		m[alphabet[i]] = int8(i)
	}
	return m
}()

// Generator produces ids from an optional entropy source
type Generator struct {
	rand io.Reader
}

// NewGenerator creates a generator. A nil reader uses crypto/rand.
func NewGenerator(r io.Reader) *Generator {
	return &Generator{rand: r}
}

// Generate creates a new id using crypto/rand
func Generate() string {
	return NewGenerator(nil).Generate()
}

// Generate creates a new id. It panics if the entropy source fails.
func (g *Generator) Generate() string {
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
		panic("failed to generate uuid: " + err.Error())
	}
	return Encode(id)
}

// Encode encodes a UUID as 26 base32 characters. The first character carries
// only the top three bits and is therefore always 0-7.
func Encode(id uuid.UUID) string {
	n := new(big.Int).SetBytes(id[:])
	mask := big.NewInt(31)
	digit := new(big.Int)

	out := make([]byte, Length)
	for i := Length - 1; i >= 0; i-- {
		digit.And(n, mask)
		out[i] = alphabet[digit.Int64()]
		n.Rsh(n, 5)
	}
	return string(out)
}

// Decode parses an encoded id back to its UUID.
func Decode(s string) (uuid.UUID, error) {
	if len(s) != Length {
		return uuid.Nil, fmt.Errorf("gameid: expected %d characters, got %d", Length, len(s))
	}
	if s[0] > '7' {
		return uuid.Nil, fmt.Errorf("gameid: first character %q exceeds '7'", s[0])
	}

	n := new(big.Int)
	for i := 0; i < len(s); i++ {
		v := decodeMap[s[i]]
		if v < 0 {
			return uuid.Nil, fmt.Errorf("gameid: invalid character %q at position %d", s[i], i)
		}
		n.Lsh(n, 5)
		n.Or(n, big.NewInt(int64(v)))
	}

	var id uuid.UUID
	n.FillBytes(id[:])
	return id, nil
}

// Validate reports whether s is a well-formed UUIDv7 id
func Validate(s string) error {
	id, err := Decode(s)
	if err != nil {
		return err
	}
	if id.Version() != 7 {
		return fmt.Errorf("gameid: version %d, want 7", id.Version())
	}
	if id.Variant() != uuid.RFC4122 {
		return fmt.Errorf("gameid: unexpected variant %s", id.Variant())
	}
	return nil
}
