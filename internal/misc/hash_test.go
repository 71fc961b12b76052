package misc

import (
	"encoding/hex"
	"testing"
)

func TestSignSHA256(t *testing.T) {
	tests := []struct {
		name string
		body []byte
		key  string
		want string
	}{
		{"empty both", nil, "", "b613679a0814d9ec772f95d778c35fc5ff1697c493715653c6c712144292c5ad"},
		{"hello/world", []byte("hello"), "world", "3cfa76ef14937c1c0ea519f8fc057a80fcd04a7420f8e8bcd0a7567c272e007b"},
		{"batch body", []byte(`{"gauges":[]}`), "secret", "1cc2f782a824b981c8751dc4647006808a9a2ea611a93a724a243dcd468ee5ca"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := SignSHA256(tc.body, tc.key)
			if got != tc.want {
				t.Fatalf("SignSHA256(%q, %q) = %s; want %s", tc.body, tc.key, got, tc.want)
			}
			if !VerifySHA256(tc.body, tc.key, got) {
				t.Fatal("VerifySHA256 rejected its own signature")
			}
		})
	}
}

func TestVerifySHA256_Rejects(t *testing.T) {
	body := []byte("payload")
	sig := SignSHA256(body, "k1")

	if VerifySHA256(body, "k2", sig) {
		t.Fatal("signature accepted under a different key")
	}
	if VerifySHA256([]byte("payload!"), "k1", sig) {
		t.Fatal("signature accepted for a different body")
	}
	if VerifySHA256(body, "k1", "not-hex") {
		t.Fatal("malformed signature accepted")
	}

	decoded, err := hex.DecodeString(sig)
	if err != nil || len(decoded) != 32 {
		t.Fatalf("signature is not 32 hex-encoded bytes: %q", sig)
	}
}
