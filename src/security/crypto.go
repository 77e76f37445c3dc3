package security

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrDecryptionFailed indicates a stored blob could not be reversed:
// corruption, a malformed blob, or the wrong key.
var ErrDecryptionFailed = errors.New("pan cipher: decryption failed")

// blobDelimiter separates the base64 ciphertext from the raw IV inside the
// decoded blob. The ciphertext component is itself base64-encoded, so it can
// never contain ':' and the first occurrence of the delimiter is always the
// boundary. The IV may legally contain the delimiter bytes.
const blobDelimiter = "::"

// PANCipher encrypts and decrypts account numbers with AES-256-CBC and a
// fresh random IV per call. The key is injected once at startup and is
// read-only afterwards.
//
// The stored blob format is base64( base64(ciphertext) "::" iv ). The mode
// carries no authentication tag: tampered ciphertext fails padding checks or
// decrypts to garbage rather than being detected.
type PANCipher struct {
	block cipher.Block
}

// NewPANCipher creates a cipher from a 32-byte AES-256 key.
func NewPANCipher(key []byte) (*PANCipher, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("pan cipher: key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("pan cipher: %w", err)
	}
	return &PANCipher{block: block}, nil
}

// Encrypt encrypts a plaintext account number into an opaque text blob.
// Encrypting the same plaintext twice yields different blobs because of the
// per-call random IV.
func (c *PANCipher) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("pan cipher: failed to generate IV: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(ciphertext, padded)

	inner := base64.StdEncoding.EncodeToString(ciphertext)
	blob := append([]byte(inner+blobDelimiter), iv...)
	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt reverses Encrypt. It fails with ErrDecryptionFailed when the blob
// cannot be decoded, the delimiter is absent, or the ciphertext/IV pair is
// rejected by the cipher.
func (c *PANCipher) Decrypt(blob string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("%w: invalid encoding: %v", ErrDecryptionFailed, err)
	}

	idx := bytes.Index(raw, []byte(blobDelimiter))
	if idx < 0 {
		return "", fmt.Errorf("%w: delimiter not found", ErrDecryptionFailed)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(string(raw[:idx]))
	if err != nil {
		return "", fmt.Errorf("%w: invalid ciphertext encoding: %v", ErrDecryptionFailed, err)
	}
	iv := raw[idx+len(blobDelimiter):]

	if len(iv) != aes.BlockSize {
		return "", fmt.Errorf("%w: invalid IV length %d", ErrDecryptionFailed, len(iv))
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: invalid ciphertext length %d", ErrDecryptionFailed, len(ciphertext))
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return string(unpadded), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padLen)}, padLen)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-padLen], nil
}
