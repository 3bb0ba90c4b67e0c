package util

import (
	"strings"
	"testing"
)

func TestPkToHash(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "simple string", input: "test"},
		{name: "empty string", input: ""},
		{name: "pem-shaped input", input: "-----BEGIN PUBLIC KEY-----\nabc\n-----END PUBLIC KEY-----\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := PkToHash(tt.input)
			if len(result) != 64 {
				t.Errorf("expected hash length 64, got %d", len(result))
			}
			if result2 := PkToHash(tt.input); result != result2 {
				t.Errorf("hash should be consistent: %s != %s", result, result2)
			}
		})
	}
}

func TestPkToHashDifferentInputs(t *testing.T) {
	hash1 := PkToHash("input1")
	hash2 := PkToHash("input2")

	if hash1 == hash2 {
		t.Error("different inputs should produce different hashes")
	}
}

func TestGetVersion(t *testing.T) {
	version := GetVersion()
	if version == "" {
		t.Error("version should not be empty")
	}

	hasDigit, hasDot := false, false
	for _, char := range version {
		if char >= '0' && char <= '9' {
			hasDigit = true
		}
		if char == '.' {
			hasDot = true
		}
	}
	if !hasDigit {
		t.Error("version should contain at least one digit")
	}
	if !hasDot {
		t.Error("version should contain at least one dot (semantic versioning)")
	}
}

func TestPrettyPrint(t *testing.T) {
	tests := []struct {
		name  string
		input any
	}{
		{name: "simple map", input: map[string]string{"key": "value"}},
		{name: "nested structure", input: map[string]any{"outer": map[string]int{"inner": 42}}},
		{name: "array", input: []int{1, 2, 3, 4, 5}},
		{name: "string", input: "simple string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := PrettyPrint(tt.input)
			if len(result) == 0 {
				t.Error("PrettyPrint returned empty string")
			}
		})
	}
}

func TestGeneratePemKeypair(t *testing.T) {
	keypair := GeneratePemKeypair()
	if keypair == nil {
		t.Fatal("GeneratePemKeypair returned nil")
	}

	if len(keypair.Private) == 0 {
		t.Error("private key is empty")
	}
	if !strings.Contains(keypair.Private, "BEGIN PRIVATE KEY") || !strings.Contains(keypair.Private, "END PRIVATE KEY") {
		t.Error("private key doesn't have a PKCS#8 PEM header/footer")
	}

	if len(keypair.Public) == 0 {
		t.Error("public key is empty")
	}
	if !strings.Contains(keypair.Public, "BEGIN PUBLIC KEY") || !strings.Contains(keypair.Public, "END PUBLIC KEY") {
		t.Error("public key doesn't have a PKIX PEM header/footer")
	}
}

func TestGeneratePemKeypairUniqueness(t *testing.T) {
	keypair1 := GeneratePemKeypair()
	keypair2 := GeneratePemKeypair()

	if keypair1.Private == keypair2.Private {
		t.Error("generated keypairs should be unique (private keys are identical)")
	}
	if keypair1.Public == keypair2.Public {
		t.Error("generated keypairs should be unique (public keys are identical)")
	}
}
