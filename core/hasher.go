package core

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

const (
	DefaultPBKDF2Iterations = 600000
	DefaultBcryptCost       = bcrypt.DefaultCost

	pbkdf2SaltLength = 16
	pbkdf2Method     = "pbkdf2:sha256"
	saltAlphabet     = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// PBKDF2Hasher produces "pbkdf2:sha256:<iterations>$<salt>$<hex>" digests,
// the format written by werkzeug's generate_password_hash.
type PBKDF2Hasher struct {
	Iterations int
}

func NewPBKDF2Hasher(iterations int) PBKDF2Hasher {
	if iterations <= 0 {
		iterations = DefaultPBKDF2Iterations
	}
	return PBKDF2Hasher{Iterations: iterations}
}

func (h PBKDF2Hasher) Hash(plaintext string) (string, error) {
	iterations := h.Iterations
	if iterations <= 0 {
		iterations = DefaultPBKDF2Iterations
	}
	salt, err := generateSalt(pbkdf2SaltLength)
	if err != nil {
		return "", err
	}
	sum := pbkdf2.Key([]byte(plaintext), []byte(salt), iterations, sha256.Size, sha256.New)
	return fmt.Sprintf("%s:%d$%s$%s", pbkdf2Method, iterations, salt, hex.EncodeToString(sum)), nil
}

func (h PBKDF2Hasher) Verify(plaintext string, digest string) bool {
	parts := strings.SplitN(digest, "$", 3)
	if len(parts) != 3 {
		return false
	}
	method, salt, expected := parts[0], parts[1], parts[2]
	if !strings.HasPrefix(method, pbkdf2Method) {
		return false
	}
	iterations := DefaultPBKDF2Iterations
	if rest := strings.TrimPrefix(method, pbkdf2Method); rest != "" {
		parsed, err := strconv.Atoi(strings.TrimPrefix(rest, ":"))
		if err != nil || parsed <= 0 {
			return false
		}
		iterations = parsed
	}
	want, err := hex.DecodeString(expected)
	if err != nil {
		return false
	}
	got := pbkdf2.Key([]byte(plaintext), []byte(salt), iterations, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}

type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(plaintext string) (string, error) {
	cost := h.Cost
	if cost <= 0 {
		cost = DefaultBcryptCost
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", fmt.Errorf("core: bcrypt hash: %w", err)
	}
	return string(digest), nil
}

func (h BcryptHasher) Verify(plaintext string, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

// NewCredentialHasher builds the hasher named by cfg.Algorithm.
func NewCredentialHasher(cfg HasherConfig) (CredentialHasher, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Algorithm)) {
	case "", HasherAlgorithmPBKDF2:
		return NewPBKDF2Hasher(cfg.PBKDF2Iterations), nil
	case HasherAlgorithmBcrypt:
		return BcryptHasher{Cost: cfg.BcryptCost}, nil
	default:
		return nil, fmt.Errorf("core: invalid hasher algorithm %q", cfg.Algorithm)
	}
}

func generateSalt(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	max := big.NewInt(int64(len(saltAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("core: generate salt: %w", err)
		}
		b.WriteByte(saltAlphabet[n.Int64()])
	}
	return b.String(), nil
}
