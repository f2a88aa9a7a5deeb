package auth

import (
	"strings"
	"testing"
)

func TestKeyVerifier(t *testing.T) {
	v, err := NewKeyVerifierForTest("internal-key")
	if err != nil {
		t.Fatalf("NewKeyVerifierForTest() error = %v", err)
	}
	if !v.Enabled() {
		t.Fatal("verifier with a key should be enabled")
	}

	tests := []struct {
		presented string
		want      bool
	}{
		{"internal-key", true},
		{"internal-key ", false},
		{"INTERNAL-KEY", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := v.Verify(tt.presented); got != tt.want {
			t.Errorf("Verify(%q) = %v, want %v", tt.presented, got, tt.want)
		}
	}
}

func TestKeyVerifier_NoKeyRejectsEverything(t *testing.T) {
	v, err := NewKeyVerifierForTest("")
	if err != nil {
		t.Fatalf("NewKeyVerifierForTest() error = %v", err)
	}
	if v.Enabled() {
		t.Error("verifier without a key should be disabled")
	}
	if v.Verify("") || v.Verify("anything") {
		t.Error("disabled verifier accepted a key")
	}
}

func TestKeyVerifier_RejectsLongKey(t *testing.T) {
	if _, err := NewKeyVerifierForTest(strings.Repeat("k", 73)); err == nil {
		t.Fatal("keys over 72 bytes should be rejected")
	}
}

func TestGenerateKey(t *testing.T) {
	a, b := GenerateKey(), GenerateKey()
	if len(a) < 20 || a == b {
		t.Errorf("GenerateKey() = %q, %q", a, b)
	}
}
