package object

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strconv"
)

// HashSize is the raw length of an object id in bytes.
const HashSize = sha1.Size

// ZeroHash is the all-zero id.
const ZeroHash Hash = "0000000000000000000000000000000000000000"

// HashObject computes the SHA-1 of the envelope "type len\0content", which is
// how Git names every object.
func HashObject(objType ObjectType, data []byte) Hash {
	h := sha1.New()
	h.Write([]byte(string(objType) + " " + strconv.Itoa(len(data)) + "\x00"))
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// ParseHash validates a hex object id and returns it normalized.
func ParseHash(s string) (Hash, error) {
	h := Hash(s)
	if _, err := hashHexToBytes(h); err != nil {
		return "", err
	}
	return h, nil
}

func hashHexToBytes(h Hash) ([]byte, error) {
	if len(h) != 2*HashSize {
		return nil, fmt.Errorf("hash length must be %d hex chars, got %d", 2*HashSize, len(h))
	}
	raw, err := hex.DecodeString(string(h))
	if err != nil {
		return nil, fmt.Errorf("invalid hash %q: %w", h, err)
	}
	return raw, nil
}

func hashFromBytes(raw []byte) Hash {
	return Hash(hex.EncodeToString(raw))
}
