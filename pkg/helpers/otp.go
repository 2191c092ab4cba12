package helpers

import (
	"crypto/rand"
	"math/big"
)

const resetCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// KeyUsedTempToken is the Redis key marking a temporary token as exchanged.
func KeyUsedTempToken(jti string) string {
	return "auth:temp:used:" + jti
}

// GenResetCode returns n characters drawn uniformly from A-Z and 0-9.
func GenResetCode(n int) (string, error) {
	max := big.NewInt(int64(len(resetCodeAlphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = resetCodeAlphabet[idx.Int64()]
	}
	return string(b), nil
}
