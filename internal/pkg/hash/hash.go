package hash

import (
	"encoding/hex"
	"io"

	"golang.org/x/crypto/sha3"
)

// CalculateSHA3 returns hex encoded SHA3-256 digest and size of data.
func CalculateSHA3(r io.Reader) (string, int64, error) {
	hash := sha3.New256()
	size, err := io.Copy(hash, r)
	if err != nil {
		return "", size, err
	}
	return hex.EncodeToString(hash.Sum(nil)), size, nil
}
