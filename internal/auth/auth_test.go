package auth

import (
	"strings"
	"testing"
)

func TestGenerateKeyFormat(t *testing.T) {
	displayKey, prefix, hash, err := GenerateKey(ServiceAgent)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	if !strings.HasPrefix(displayKey, ServiceAgent+"_") {
		t.Errorf("display key %q missing service prefix", displayKey)
	}
	parts := strings.SplitN(displayKey, "_", 3)
	if len(parts) != 3 {
		t.Fatalf("display key %q does not have three parts", displayKey)
	}
	if parts[1] != prefix {
		t.Errorf("embedded prefix %q != returned prefix %q", parts[1], prefix)
	}
	if len(prefix) != prefixLength {
		t.Errorf("prefix length = %d, want %d", len(prefix), prefixLength)
	}
	if len(hash) != 32 {
		t.Errorf("hash length = %d, want 32", len(hash))
	}
}

func TestVerifyKeyRoundtrip(t *testing.T) {
	displayKey, _, hash, err := GenerateKey(ServiceAgent)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	if !VerifyKey(ServiceAgent, displayKey, hash) {
		t.Error("freshly generated key did not verify")
	}
	if VerifyKey(ServiceAdmin, displayKey, hash) {
		t.Error("key verified under the wrong service")
	}
	if VerifyKey(ServiceAgent, displayKey+"x", hash) {
		t.Error("tampered secret verified")
	}
}

func TestVerifyKeyWrongHash(t *testing.T) {
	displayKey, _, _, err := GenerateKey(ServiceAgent)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	_, _, otherHash, err := GenerateKey(ServiceAgent)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	if VerifyKey(ServiceAgent, displayKey, otherHash) {
		t.Error("key verified against a different key's hash")
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid", "aint_abcdefgh1234_secretsecret", false},
		{"wrong service", "ainthub_abcdefgh1234_secretsecret", true},
		{"no service prefix", "abcdefgh1234_secretsecret", true},
		{"missing secret", "aint_abcdefgh1234", true},
		{"short prefix", "aint_abc_secretsecret", true},
		{"uppercase prefix", "aint_ABCDEFGH1234_secretsecret", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseKey(ServiceAgent, tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

func TestEncodeBase62(t *testing.T) {
	if got := encodeBase62([]byte{0}); got != "0" {
		t.Errorf("encodeBase62(0x00) = %q, want %q", got, "0")
	}
	if got := encodeBase62([]byte{61}); got != "z" {
		t.Errorf("encodeBase62(61) = %q, want %q", got, "z")
	}
	for _, c := range encodeBase62([]byte{0xde, 0xad, 0xbe, 0xef}) {
		if !strings.ContainsRune(base62Alphabet, c) {
			t.Errorf("encoded output contains %q outside the alphabet", c)
		}
	}
}
