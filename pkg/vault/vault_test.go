package vault

import (
	"encoding/base64"
	"strings"
	"testing"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	v, err := New("test-process-secret")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return v
}

// --- Encrypt / Decrypt ---

func TestVault_RoundTrip(t *testing.T) {
	v := newTestVault(t)

	tests := []struct {
		name      string
		plaintext string
	}{
		{"oauth token", "ya29.a0AfH6SMBx-refresh-token-material"},
		{"empty string", ""},
		{"unicode", "токен доступа 🔑"},
		{"long", strings.Repeat("secret-", 200)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob, err := v.Encrypt(tt.plaintext)
			if err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			got, err := v.Decrypt(blob)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if got != tt.plaintext {
				t.Errorf("Decrypt() = %q, want %q", got, tt.plaintext)
			}
		})
	}
}

// Два шифрования одного plaintext дают разные блобы (свежие salt и iv)
func TestVault_NonDeterministic(t *testing.T) {
	v := newTestVault(t)

	first, err := v.Encrypt("same plaintext")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	second, err := v.Encrypt("same plaintext")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if first == second {
		t.Error("two encryptions of the same plaintext produced identical blobs")
	}
}

func TestVault_Decrypt_FlippedBit(t *testing.T) {
	v := newTestVault(t)

	blob, err := v.Encrypt("credential material")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		t.Fatalf("decode blob: %v", err)
	}
	// Портим один бит в ciphertext (за пределами заголовка)
	raw[len(raw)-1] ^= 0x01
	tampered := base64.StdEncoding.EncodeToString(raw)

	if _, err := v.Decrypt(tampered); err == nil {
		t.Error("Decrypt() of tampered blob should fail")
	}
}

func TestVault_Decrypt_WrongSecret(t *testing.T) {
	v1, _ := New("secret-one")
	v2, _ := New("secret-two")

	blob, err := v1.Encrypt("credential")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if _, err := v2.Decrypt(blob); err == nil {
		t.Error("Decrypt() with wrong secret should fail")
	}
}

func TestVault_Decrypt_Garbage(t *testing.T) {
	v := newTestVault(t)

	tests := []struct {
		name string
		blob string
	}{
		{"not base64", "%%%not-base64%%%"},
		{"too short", base64.StdEncoding.EncodeToString([]byte("short"))},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := v.Decrypt(tt.blob); err == nil {
				t.Errorf("Decrypt(%q) should fail", tt.blob)
			}
		})
	}
}

func TestNew_EmptySecret(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("New(\"\") should fail")
	}
}

// --- GenerateToken ---

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken(32)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if len(token) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(token))
	}
	for _, r := range token {
		if !strings.ContainsRune("0123456789abcdef", r) {
			t.Fatalf("token contains non-hex rune %q", r)
		}
	}

	other, err := GenerateToken(32)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if token == other {
		t.Error("two generated tokens are identical")
	}
}

func TestGenerateToken_InvalidSize(t *testing.T) {
	if _, err := GenerateToken(0); err == nil {
		t.Error("GenerateToken(0) should fail")
	}
	if _, err := GenerateToken(-5); err == nil {
		t.Error("GenerateToken(-5) should fail")
	}
}
