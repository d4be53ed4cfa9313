package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/google/uuid"
)

const (
	// Папка для зашифрованных сниппетов внутри бакета.
	snippetsFolder = "snippets"

	contentType = "application/octet-stream"
)

// ContentStore определяет интерфейс зашифрованного хранилища содержимого.
// Содержимое шифруется до записи в объектное хранилище и расшифровывается
// после чтения; открытый текст за пределы процесса не выходит.
type ContentStore interface {
	// Put шифрует содержимое и записывает его под новым ключом объекта.
	// Возвращает ключ - указатель на содержимое для строки сниппета.
	Put(ctx context.Context, fileName string, plaintext []byte) (string, error)
	// Get читает объект по ключу и расшифровывает его.
	// Возвращает ErrCorruptContent, если содержимое не проходит аутентификацию.
	Get(ctx context.Context, objectKey string) ([]byte, error)
	// Delete удаляет объект по ключу. Возвращает ErrObjectNotFound,
	// если объекта уже нет (вызывающие при удалении сниппета считают это нефатальным).
	Delete(ctx context.Context, objectKey string) error
}

// encryptedContentStore реализует ContentStore поверх FileStorage и Cipher.
var _ ContentStore = (*encryptedContentStore)(nil)

type encryptedContentStore struct {
	files  FileStorage
	cipher *Cipher
}

// NewEncryptedContentStore создает зашифрованное хранилище содержимого.
func NewEncryptedContentStore(files FileStorage, cipher *Cipher) ContentStore {
	return &encryptedContentStore{files: files, cipher: cipher}
}

// Put шифрует и записывает содержимое под свежим ключом объекта.
//
// Ключ каждый раз новый (uuid + имя файла), поэтому замена содержимого -
// это запись нового объекта и перенаправление строки сниппета, а не
// перезапись: строка никогда не указывает на удаленный объект, даже если
// запись нового объекта провалится на середине.
func (s *encryptedContentStore) Put(ctx context.Context, fileName string, plaintext []byte) (string, error) {
	blob, err := s.cipher.Seal(plaintext)
	if err != nil {
		return "", fmt.Errorf("ошибка шифрования содержимого: %w", err)
	}

	objectKey := makeObjectKey(fileName)
	err = s.files.UploadFile(ctx, objectKey, bytes.NewReader(blob), int64(len(blob)), contentType)
	if err != nil {
		return "", err
	}

	return objectKey, nil
}

// Get читает и расшифровывает содержимое по ключу объекта.
func (s *encryptedContentStore) Get(ctx context.Context, objectKey string) ([]byte, error) {
	reader, err := s.files.DownloadFile(ctx, objectKey)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := reader.Close(); closeErr != nil {
			log.Printf("[ContentStore] Ошибка закрытия объекта '%s': %v", objectKey, closeErr)
		}
	}()

	blob, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения объекта '%s': %w", objectKey, err)
	}

	return s.cipher.Open(blob)
}

// Delete удаляет объект по ключу.
func (s *encryptedContentStore) Delete(ctx context.Context, objectKey string) error {
	return s.files.DeleteFile(ctx, objectKey)
}

// makeObjectKey формирует ключ объекта для новой версии содержимого.
// Случайный префикс исключает столкновения одноименных файлов разных
// владельцев и делает каждую версию отдельным объектом.
func makeObjectKey(fileName string) string {
	safeName := strings.ReplaceAll(fileName, "/", "_")
	return fmt.Sprintf("%s/%s_%s", snippetsFolder, uuid.New().String(), safeName)
}
