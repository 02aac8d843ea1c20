package util

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"

	"github.com/google/uuid"
)

const joinCodeAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// JoinCodeLength is the number of characters in a workspace join code.
const JoinCodeLength = 6

// NewID returns a prefixed, time-ordered identifier. Ids generated by one
// process compare lexically in creation order.
func NewID(prefix string) string {
	id := uuid.Must(uuid.NewV7())
	raw := hex.EncodeToString(id[:])
	if prefix == "" {
		return raw
	}
	return prefix + "_" + raw
}

// NewJoinCode returns a random lowercase alphanumeric join code.
func NewJoinCode() string {
	max := big.NewInt(int64(len(joinCodeAlphabet)))
	code := make([]byte, JoinCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		code[i] = joinCodeAlphabet[n.Int64()]
	}
	return string(code)
}

// NewToken returns a hex encoded random secret of n bytes.
func NewToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
