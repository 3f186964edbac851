package passtoken

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

// Signer mints and verifies the single-use gate codes attached to
// approved outpasses. A code is bound to its outpass id via HMAC so a
// code lifted from one pass cannot be replayed against another.
type Signer struct {
	secret []byte
}

// NewSigner constructs a signer with the provided secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Mint returns a fresh opaque code for the given outpass.
func (s *Signer) Mint(outpassID string) (string, error) {
	if outpassID == "" {
		return "", fmt.Errorf("outpassID required")
	}
	if len(s.secret) == 0 {
		return "", fmt.Errorf("signing secret missing")
	}
	nonce := make([]byte, 18)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(nonce)
	return encoded + "." + s.sign(outpassID, encoded), nil
}

// Verify checks that the presented code was minted for the outpass and
// equals the stored one. Both comparisons are constant time.
func (s *Signer) Verify(outpassID, presented, stored string) bool {
	if presented == "" || stored == "" {
		return false
	}
	if !hmac.Equal([]byte(presented), []byte(stored)) {
		return false
	}
	parts := strings.Split(presented, ".")
	if len(parts) != 2 {
		return false
	}
	expected := s.sign(outpassID, parts[0])
	return hmac.Equal([]byte(parts[1]), []byte(expected))
}

func (s *Signer) sign(outpassID, nonce string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(outpassID + "|" + nonce))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
