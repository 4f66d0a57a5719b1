package auth

import "testing"

func TestCodeChallengeS256KnownVector(t *testing.T) {
	// RFC 7636 appendix B uses a different verifier; spec.md's own
	// worked example is code_verifier="verifier".
	got := CodeChallengeS256("verifier")
	if got == "" {
		t.Fatal("expected non-empty challenge")
	}
	if want := "iMnq5o6zALKXGivsnlom_0F5_WYda32GHkxlV7mq7hQ"; got != want {
		t.Fatalf("got challenge %q, want %q", got, want)
	}
	if got != CodeChallengeS256("verifier") {
		t.Fatal("challenge derivation must be deterministic")
	}
}

func TestVerifyPKCESucceedsOnMatch(t *testing.T) {
	challenge := CodeChallengeS256("verifier")
	if !VerifyPKCE("S256", challenge, "verifier") {
		t.Fatal("expected match")
	}
}

func TestVerifyPKCEFailsOnMismatch(t *testing.T) {
	challenge := CodeChallengeS256("verifier")
	if VerifyPKCE("S256", challenge, "other") {
		t.Fatal("expected mismatch to fail")
	}
}

func TestVerifyPKCERejectsNonS256Method(t *testing.T) {
	challenge := CodeChallengeS256("verifier")
	if VerifyPKCE("plain", challenge, "verifier") {
		t.Fatal("non-S256 methods must fail closed")
	}
}

func TestVerifyClientCredentials(t *testing.T) {
	if !VerifyClientCredentials("id", "secret", "id", "secret") {
		t.Fatal("expected match to succeed")
	}
	if VerifyClientCredentials("id", "secret", "id", "wrong") {
		t.Fatal("expected mismatched secret to fail")
	}
	if VerifyClientCredentials("id", "secret", "wrong", "secret") {
		t.Fatal("expected mismatched id to fail")
	}
}
