package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

// Cipher шифрует и расшифровывает содержимое сниппетов ключом развертывания.
// Используется AES-256-GCM: аутентифицированное шифрование, поэтому
// поврежденный или подмененный шифротекст обнаруживается при расшифровке,
// а не молча декодируется в мусор.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher создает шифратор из симметричного ключа.
// Допустимые длины ключа - 16, 24 или 32 байта (AES-128/192/256).
func NewCipher(key []byte) (*Cipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации AES: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации GCM: %w", err)
	}

	return &Cipher{aead: aead}, nil
}

// Seal шифрует открытый текст. Для каждого вызова генерируется новый
// случайный nonce; результат - nonce, за которым следует шифротекст.
func (c *Cipher) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("ошибка генерации nonce: %w", err)
	}

	// Шифротекст дописывается сразу после nonce
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open расшифровывает блоб, созданный Seal.
// Любая ошибка аутентификации или расшифровки возвращается как ErrCorruptContent:
// неверный открытый текст не возвращается никогда.
func (c *Cipher) Open(blob []byte) ([]byte, error) {
	if len(blob) < c.aead.NonceSize() {
		return nil, ErrCorruptContent
	}

	nonce, ciphertext := blob[:c.aead.NonceSize()], blob[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrCorruptContent
	}

	return plaintext, nil
}

// ErrCorruptContent возвращается, когда сохраненное содержимое не проходит
// аутентификацию при расшифровке.
var ErrCorruptContent = errors.New("содержимое повреждено или подменено")
