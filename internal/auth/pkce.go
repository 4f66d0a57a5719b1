package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// CodeChallengeS256 derives the S256 PKCE code_challenge from a
// code_verifier: base64url(sha256(code_verifier)), no padding.
func CodeChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// VerifyPKCE checks a code_verifier against the stored challenge in
// constant time. method must be "S256"; any other value (including
// empty, meaning no PKCE was used) fails closed.
func VerifyPKCE(method, challenge, verifier string) bool {
	if method != "S256" {
		return false
	}
	got := CodeChallengeS256(verifier)
	return subtle.ConstantTimeCompare([]byte(got), []byte(challenge)) == 1
}

// VerifyClientCredentials constant-time compares the presented
// client_id/client_secret against the configured values.
func VerifyClientCredentials(configuredID, configuredSecret, gotID, gotSecret string) bool {
	idOK := subtle.ConstantTimeCompare([]byte(configuredID), []byte(gotID)) == 1
	secretOK := hmac.Equal([]byte(configuredSecret), []byte(gotSecret))
	return idOK && secretOK
}
