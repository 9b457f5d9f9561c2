package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// Hashes use the werkzeug layout "pbkdf2:sha256:<iterations>$<salt>$<hex>"
// so accounts created by the previous storefront keep working.
const (
	DefaultIterations = 260000
	saltLength        = 8
	saltChars         = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var ErrMalformedHash = errors.New("auth: malformed password hash")

// HashPassword returns a salted PBKDF2-SHA256 hash of plain.
func HashPassword(plain string) (string, error) {
	salt, err := randomSalt(saltLength)
	if err != nil {
		return "", err
	}
	return hashWith(plain, salt, DefaultIterations), nil
}

// CheckPassword reports whether plain matches hash. Unknown hash formats
// never match.
func CheckPassword(hash, plain string) bool {
	iterations, salt, want, err := parseHash(hash)
	if err != nil {
		return false
	}
	got := pbkdf2.Key([]byte(plain), []byte(salt), iterations, sha256.Size, sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}

func hashWith(plain, salt string, iterations int) string {
	dk := pbkdf2.Key([]byte(plain), []byte(salt), iterations, sha256.Size, sha256.New)
	return fmt.Sprintf("pbkdf2:sha256:%d$%s$%s", iterations, salt, hex.EncodeToString(dk))
}

func parseHash(hash string) (int, string, []byte, error) {
	parts := strings.SplitN(hash, "$", 3)
	if len(parts) != 3 {
		return 0, "", nil, ErrMalformedHash
	}

	method := strings.Split(parts[0], ":")
	if len(method) < 2 || method[0] != "pbkdf2" || method[1] != "sha256" {
		return 0, "", nil, ErrMalformedHash
	}
	iterations := DefaultIterations
	if len(method) == 3 {
		n, err := strconv.Atoi(method[2])
		if err != nil || n <= 0 {
			return 0, "", nil, ErrMalformedHash
		}
		iterations = n
	}

	want, err := hex.DecodeString(parts[2])
	if err != nil || len(want) != sha256.Size {
		return 0, "", nil, ErrMalformedHash
	}
	return iterations, parts[1], want, nil
}

func randomSalt(n int) (string, error) {
	var sb strings.Builder
	max := big.NewInt(int64(len(saltChars)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("auth: salt: %w", err)
		}
		sb.WriteByte(saltChars[idx.Int64()])
	}
	return sb.String(), nil
}
