// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"strings"
	"testing"
)

func TestParseRoundTrip(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	text := kp.Public.String()
	if len(text) != 64 {
		t.Fatalf("hex form has %d chars, want 64", len(text))
	}
	if text != strings.ToLower(text) {
		t.Errorf("hex form is not lowercase: %q", text)
	}

	parsed, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed != kp.Public {
		t.Errorf("Parse(%q) = %v, want %v", text, parsed, kp.Public)
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"not hex", strings.Repeat("zz", 32)},
		{"too short", "abcd"},
		{"too long", strings.Repeat("ab", 33)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse(tc.input); err == nil {
				t.Errorf("Parse(%q) succeeded, want error", tc.input)
			}
		})
	}
}

func TestSignAndVerify(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	payload := []byte("cast_vote group=3 delta=2")
	signature := kp.Sign(payload)

	if !kp.Public.Verify(payload, signature) {
		t.Errorf("Verify rejected a valid signature")
	}

	tampered := append([]byte(nil), payload...)
	tampered[0] ^= 0xFF
	if kp.Public.Verify(tampered, signature) {
		t.Errorf("Verify accepted a signature over tampered payload")
	}

	other, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if other.Public.Verify(payload, signature) {
		t.Errorf("Verify accepted a signature from a different key")
	}
}

func TestZeroIdentityNeverVerifies(t *testing.T) {
	var zero PublicKey
	if !zero.IsZero() {
		t.Fatalf("zero value IsZero() = false")
	}
	if zero.Verify([]byte("anything"), make([]byte, 64)) {
		t.Errorf("zero identity verified a signature")
	}
}

func TestLoadOrGenerate(t *testing.T) {
	dir := t.TempDir()

	first, created, err := LoadOrGenerate(dir)
	if err != nil {
		t.Fatalf("LoadOrGenerate (first): %v", err)
	}
	if !created {
		t.Errorf("first call did not generate")
	}

	second, created, err := LoadOrGenerate(dir)
	if err != nil {
		t.Fatalf("LoadOrGenerate (second): %v", err)
	}
	if created {
		t.Errorf("second call regenerated instead of loading")
	}
	if second.Public != first.Public {
		t.Errorf("loaded key %v differs from generated %v", second.Public, first.Public)
	}
}
