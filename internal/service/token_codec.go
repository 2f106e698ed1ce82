package service

import (
	"savepantry/internal/utils"

	"golang.org/x/crypto/bcrypt"
)

// TokenCodec produces opaque bearer tokens and the two digests stored for them:
// a fast sha256 fingerprint used only as the lookup key, and a slow bcrypt seal
// that is authoritative for the authentication decision. Fingerprint collisions
// are acceptable; Verify decides.
type TokenCodec interface {
	Issue() (string, error)
	Fingerprint(raw string) string
	Seal(raw string) (string, error)
	Verify(raw string, seal string) bool
}

type BcryptTokenCodec struct {
	// TokenBytes of entropy per token. Defaults to 48 (384 bits).
	TokenBytes int
	// Cost tunes the seal: high enough to deter brute force, low enough to keep
	// sign-in latency in the tens of milliseconds.
	Cost int
}

func (c BcryptTokenCodec) Issue() (string, error) {
	size := c.TokenBytes
	if size == 0 {
		size = 48
	}
	return utils.GenerateRandomToken(size)
}

func (c BcryptTokenCodec) Fingerprint(raw string) string {
	return utils.HashToken(raw)
}

func (c BcryptTokenCodec) Seal(raw string) (string, error) {
	cost := c.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(raw), cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func (c BcryptTokenCodec) Verify(raw string, seal string) bool {
	return bcrypt.CompareHashAndPassword([]byte(seal), []byte(raw)) == nil
}
