package backup

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	encryptionSaltSize  = 16
	encryptionKeySize   = 32
	pbkdf2Iterations    = 100000
	encryptionExtension = ".enc"
	minPassphraseLength = 8
	encryptionAlgorithm = "AES-256-GCM"
)

// DeriveKey stretches a passphrase into an AES-256 key
func DeriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, encryptionKeySize, sha256.New)
}

// Encrypt seals data with a key derived from passphrase. The output is
// salt | nonce | ciphertext.
func Encrypt(data []byte, passphrase string) ([]byte, error) {
	if len(passphrase) < minPassphraseLength {
		return nil, NewEncryptionError("passphrase must be at least 8 characters", nil)
	}

	salt := make([]byte, encryptionSaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, NewEncryptionError("failed to generate salt", err)
	}

	gcm, err := newGCM(DeriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, NewEncryptionError("failed to generate nonce", err)
	}

	out := make([]byte, 0, len(salt)+len(nonce)+len(data)+gcm.Overhead())
	out = append(out, salt...)
	return gcm.Seal(append(out, nonce...), nonce, data, nil), nil
}

// Decrypt reverses Encrypt
func Decrypt(encrypted []byte, passphrase string) ([]byte, error) {
	if len(encrypted) < encryptionSaltSize {
		return nil, NewEncryptionError("encrypted data too short", nil)
	}

	salt := encrypted[:encryptionSaltSize]
	gcm, err := newGCM(DeriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}

	rest := encrypted[encryptionSaltSize:]
	nonceSize := gcm.NonceSize()
	if len(rest) < nonceSize {
		return nil, NewEncryptionError("encrypted data too short", nil)
	}

	plaintext, err := gcm.Open(nil, rest[:nonceSize], rest[nonceSize:], nil)
	if err != nil {
		return nil, NewEncryptionError("failed to decrypt data", err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, NewEncryptionError("failed to create cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, NewEncryptionError("failed to create GCM", err)
	}
	return gcm, nil
}
