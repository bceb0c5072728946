// Package vault — шифрование учётных данных бэкендов at rest.
//
// Формат блоба (base64):
//
//	[64B salt][16B iv][16B authTag][...ciphertext]
//
// salt:       соль scrypt, новая на каждый вызов Encrypt
// iv:         nonce AES-256-GCM (16 байт), новый на каждый вызов
// authTag:    16-байтный GCM-тег
// ciphertext: AES-256-GCM ciphertext
//
// Соль и nonce генерируются заново при каждом шифровании, поэтому два
// шифрования одного plaintext дают разные блобы. Ключ выводится через
// scrypt из единого секрета процесса и соли конкретного блоба.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"
)

const (
	saltSize = 64
	ivSize   = 16
	tagSize  = 16
	keySize  = 32

	headerSize = saltSize + ivSize + tagSize

	// Параметры scrypt (интерактивный профиль)
	scryptN = 1 << 14
	scryptR = 8
	scryptP = 1
)

// Vault шифрует и расшифровывает токены на базовом секрете процесса.
// Создаётся один раз в composition root и передаётся явно.
type Vault struct {
	secret []byte
}

// New создает Vault. Секрет фиксирован на время жизни процесса.
func New(secret string) (*Vault, error) {
	if secret == "" {
		return nil, fmt.Errorf("vault: secret must not be empty")
	}
	return &Vault{secret: []byte(secret)}, nil
}

// deriveKey выводит 32-байтный ключ из секрета процесса и соли блоба
func (v *Vault) deriveKey(salt []byte) ([]byte, error) {
	key, err := scrypt.Key(v.secret, salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("vault: derive key: %w", err)
	}
	return key, nil
}

// Encrypt шифрует plaintext и возвращает base64-блоб.
// Недетерминирован: соль и IV свежие на каждый вызов.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("encrypt: generate salt: %w", err)
	}
	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("encrypt: generate iv: %w", err)
	}

	key, err := v.deriveKey(salt)
	if err != nil {
		return "", err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}

	// Seal возвращает ciphertext||tag; формат блоба требует tag перед ciphertext
	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	out := make([]byte, 0, headerSize+len(ciphertext))
	out = append(out, salt...)
	out = append(out, iv...)
	out = append(out, tag...)
	out = append(out, ciphertext...)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt расшифровывает блоб, созданный Encrypt.
// При несовпадении GCM-тега (подмена, чужой ключ) возвращает ошибку —
// подавлять её и возвращать пустую строку нельзя, это молча портит
// учётные данные ниже по потоку.
func (v *Vault) Decrypt(blob string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("decrypt: invalid base64: %w", err)
	}
	if len(raw) < headerSize {
		return "", fmt.Errorf("decrypt: blob too short: %d bytes", len(raw))
	}

	salt := raw[:saltSize]
	iv := raw[saltSize : saltSize+ivSize]
	tag := raw[saltSize+ivSize : headerSize]
	ciphertext := raw[headerSize:]

	key, err := v.deriveKey(salt)
	if err != nil {
		return "", err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}

	sealed := make([]byte, 0, len(ciphertext)+tagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: authentication failed (wrong key or corrupted data): %w", err)
	}
	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return gcm, nil
}

// GenerateToken возвращает криптослучайный hex-токен из n случайных байт
// (длина строки 2n). Используется для OAuth state и сессионных токенов.
func GenerateToken(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("generate token: size must be positive, got %d", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
