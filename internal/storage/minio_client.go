package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// FileStorage определяет интерфейс для взаимодействия с объектным хранилищем.
type FileStorage interface {
	UploadFile(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error
	DownloadFile(ctx context.Context, objectKey string) (io.ReadCloser, error)
	DeleteFile(ctx context.Context, objectKey string) error
}

// MinioClient реализует FileStorage для MinIO.
type MinioClient struct {
	client     *minio.Client
	bucketName string
	region     string

	// Бакет создается лениво при первой загрузке, чтобы конструктор
	// не требовал доступного хранилища на старте процесса.
	bucketMu    sync.Mutex
	bucketReady bool
}

// MinioConfig содержит параметры для подключения к MinIO.
type MinioConfig struct {
	Endpoint        string // Адрес MinIO (например, "localhost:9000")
	AccessKeyID     string // Логин
	SecretAccessKey string // Пароль
	UseSSL          bool   // Использовать SSL (обычно false для локальной разработки)
	BucketName      string // Имя бакета для хранения файлов
	Region          string // Регион (не обязательно для MinIO, но может требоваться)
}

// NewMinioClient создает новый клиент MinIO.
func NewMinioClient(cfg MinioConfig) (*MinioClient, error) {
	log.Printf("Инициализация клиента MinIO для эндпоинта %s...", cfg.Endpoint)

	// Инициализация клиента MinIO
	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации клиента MinIO: %w", err)
	}

	log.Printf("Клиент MinIO успешно инициализирован для бакета '%s'.", cfg.BucketName)
	return &MinioClient{
		client:     minioClient,
		bucketName: cfg.BucketName,
		region:     cfg.Region,
	}, nil
}

// ensureBucket проверяет существование бакета и создает его при необходимости.
// Успешная проверка запоминается; после сбоя следующая загрузка проверит заново.
func (c *MinioClient) ensureBucket(ctx context.Context) error {
	c.bucketMu.Lock()
	defer c.bucketMu.Unlock()

	if c.bucketReady {
		return nil
	}

	exists, err := c.client.BucketExists(ctx, c.bucketName)
	if err != nil {
		return fmt.Errorf("ошибка проверки существования бакета '%s': %w", c.bucketName, err)
	}
	if !exists {
		log.Printf("[Minio] Бакет '%s' не найден, попытка создания...", c.bucketName)
		err = c.client.MakeBucket(ctx, c.bucketName, minio.MakeBucketOptions{Region: c.region})
		if err != nil {
			return fmt.Errorf("ошибка создания бакета '%s': %w", c.bucketName, err)
		}
		log.Printf("[Minio] Бакет '%s' успешно создан.", c.bucketName)
	}

	c.bucketReady = true
	return nil
}

// UploadFile загружает файл в MinIO.
func (c *MinioClient) UploadFile(
	ctx context.Context,
	objectKey string,
	reader io.Reader,
	size int64,
	contentType string,
) error {
	log.Printf("[Minio] Загрузка объекта '%s' в бакет '%s'...", objectKey, c.bucketName)

	if err := c.ensureBucket(ctx); err != nil {
		return err
	}

	opts := minio.PutObjectOptions{
		ContentType: contentType,
	}

	uploadInfo, err := c.client.PutObject(ctx, c.bucketName, objectKey, reader, size, opts)
	if err != nil {
		log.Printf("[Minio] Ошибка загрузки объекта '%s': %v", objectKey, err)
		return fmt.Errorf("ошибка загрузки файла в MinIO: %w", err)
	}

	log.Printf("[Minio] Объект '%s' успешно загружен, размер: %d, ETag: %s",
		objectKey, uploadInfo.Size, uploadInfo.ETag)
	return nil
}

// DownloadFile скачивает файл из MinIO.
// Возвращает io.ReadCloser, который нужно закрыть после использования.
func (c *MinioClient) DownloadFile(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	log.Printf("[Minio] Скачивание объекта '%s' из бакета '%s'...", objectKey, c.bucketName)

	object, err := c.client.GetObject(ctx, c.bucketName, objectKey, minio.GetObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			log.Printf("[Minio] Объект '%s' не найден в бакете '%s'", objectKey, c.bucketName)
			return nil, ErrObjectNotFound
		}
		log.Printf("[Minio] Ошибка получения объекта '%s': %v", objectKey, err)
		return nil, fmt.Errorf("ошибка получения файла из MinIO: %w", err)
	}

	// GetObject ленивый: проверяем существование до возврата читателя,
	// иначе NoSuchKey всплывет только при первом чтении
	if _, err = object.Stat(); err != nil {
		_ = object.Close()
		if isNoSuchKey(err) {
			log.Printf("[Minio] Объект '%s' не найден в бакете '%s'", objectKey, c.bucketName)
			return nil, ErrObjectNotFound
		}
		log.Printf("[Minio] Ошибка получения метаданных объекта '%s': %v", objectKey, err)
		return nil, fmt.Errorf("ошибка получения метаданных из MinIO: %w", err)
	}

	return object, nil
}

// DeleteFile удаляет объект из MinIO.
// Удаление уже отсутствующего объекта MinIO считает успехом, поэтому
// отсутствие проверяется отдельно, чтобы вернуть ErrObjectNotFound.
func (c *MinioClient) DeleteFile(ctx context.Context, objectKey string) error {
	log.Printf("[Minio] Удаление объекта '%s' из бакета '%s'...", objectKey, c.bucketName)

	_, err := c.client.StatObject(ctx, c.bucketName, objectKey, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			log.Printf("[Minio] Объект '%s' уже отсутствует в бакете '%s'", objectKey, c.bucketName)
			return ErrObjectNotFound
		}
		log.Printf("[Minio] Ошибка проверки объекта '%s' перед удалением: %v", objectKey, err)
		return fmt.Errorf("ошибка проверки объекта в MinIO: %w", err)
	}

	err = c.client.RemoveObject(ctx, c.bucketName, objectKey, minio.RemoveObjectOptions{})
	if err != nil {
		log.Printf("[Minio] Ошибка удаления объекта '%s': %v", objectKey, err)
		return fmt.Errorf("ошибка удаления файла из MinIO: %w", err)
	}

	log.Printf("[Minio] Объект '%s' успешно удален", objectKey)
	return nil
}

// isNoSuchKey проверяет, является ли ошибка ответом MinIO "NoSuchKey".
func isNoSuchKey(err error) bool {
	var minioErr minio.ErrorResponse
	return errors.As(err, &minioErr) && minioErr.Code == "NoSuchKey"
}

// Кастомная ошибка хранилища.
var (
	ErrObjectNotFound = errors.New("объект не найден в хранилище")
)
