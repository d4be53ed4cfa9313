package storage_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maynagashev/snipvault/internal/storage"
)

func testKey() []byte {
	return []byte(strings.Repeat("k", 32))
}

func TestNewCipher(t *testing.T) {
	t.Run("Валидные длины ключа", func(t *testing.T) {
		for _, size := range []int{16, 24, 32} {
			c, err := storage.NewCipher([]byte(strings.Repeat("k", size)))
			require.NoError(t, err, "ключ длиной %d должен приниматься", size)
			assert.NotNil(t, c)
		}
	})

	t.Run("Невалидная длина ключа", func(t *testing.T) {
		c, err := storage.NewCipher([]byte("короткий"))
		require.Error(t, err)
		assert.Nil(t, c)
		assert.Contains(t, err.Error(), "ошибка инициализации AES")
	})
}

func TestCipherSealOpen(t *testing.T) {
	c, err := storage.NewCipher(testKey())
	require.NoError(t, err)

	t.Run("Расшифровка возвращает исходный текст", func(t *testing.T) {
		plaintext := []byte("package main\n\nfunc main() {}\n")

		blob, err := c.Seal(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, blob)

		decrypted, err := c.Open(blob)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	})

	t.Run("Каждый Seal дает разный шифротекст", func(t *testing.T) {
		plaintext := []byte("одинаковое содержимое")

		first, err := c.Seal(plaintext)
		require.NoError(t, err)
		second, err := c.Seal(plaintext)
		require.NoError(t, err)

		// Случайный nonce: повторное шифрование не выдает одинаковых блобов
		assert.NotEqual(t, first, second)
	})

	t.Run("Поврежденный шифротекст обнаруживается", func(t *testing.T) {
		blob, err := c.Seal([]byte("секретное содержимое"))
		require.NoError(t, err)

		blob[len(blob)-1] ^= 0xFF

		decrypted, err := c.Open(blob)
		require.ErrorIs(t, err, storage.ErrCorruptContent)
		assert.Nil(t, decrypted)
	})

	t.Run("Слишком короткий блоб", func(t *testing.T) {
		decrypted, err := c.Open([]byte{0x01, 0x02})
		require.ErrorIs(t, err, storage.ErrCorruptContent)
		assert.Nil(t, decrypted)
	})

	t.Run("Чужой ключ не расшифровывает", func(t *testing.T) {
		other, err := storage.NewCipher([]byte(strings.Repeat("x", 32)))
		require.NoError(t, err)

		blob, err := c.Seal([]byte("секретное содержимое"))
		require.NoError(t, err)

		decrypted, err := other.Open(blob)
		require.ErrorIs(t, err, storage.ErrCorruptContent)
		assert.Nil(t, decrypted)
	})
}
