package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
)

const (
	// Порт по умолчанию (непривилегированный).
	defaultServerPort = "8443"

	// Переменные окружения.
	envServerPort     = "SERVER_PORT"
	envTLSCertFile    = "TLS_CERT_FILE"
	envTLSKeyFile     = "TLS_KEY_FILE"
	envDatabaseDSN    = "DATABASE_DSN"
	envEncryptionKey  = "ENCRYPTION_KEY" //nolint:gosec // Ложное срабатывание, это имя переменной окружения
	envMetadataAPIURL = "METADATA_API_URL"
)

// config хранит конфигурацию сервера.
type config struct {
	Port     string
	CertFile string
	KeyFile  string
	// Строка подключения к PostgreSQL.
	DatabaseDSN string
	// Ключ шифрования содержимого в base64 (16, 24 или 32 байта после декодирования).
	EncryptionKey string
	// Адрес пайплайна извлечения метаданных. Пустое значение отключает уведомления.
	MetadataAPIURL string
}

// parseFlags разбирает флаги и переменные окружения, возвращает config или ошибку.
// Флаги имеют приоритет над переменными окружения.
func parseFlags() (*config, error) {
	cfg := &config{}

	// Определяем флаги
	flag.StringVar(&cfg.Port, "port", "",
		fmt.Sprintf("Порт для запуска сервера (env: %s, default: %s)", envServerPort, defaultServerPort))
	flag.StringVar(&cfg.CertFile, "cert-file", "",
		fmt.Sprintf("Путь к файлу TLS-сертификата (env: %s)", envTLSCertFile))
	flag.StringVar(&cfg.KeyFile, "key-file", "",
		fmt.Sprintf("Путь к файлу TLS-ключа (env: %s)", envTLSKeyFile))
	flag.StringVar(&cfg.DatabaseDSN, "database-dsn", "",
		fmt.Sprintf("Строка подключения к базе данных (env: %s)", envDatabaseDSN))
	flag.StringVar(&cfg.EncryptionKey, "encryption-key", "",
		fmt.Sprintf("Ключ шифрования содержимого в base64 (env: %s)", envEncryptionKey))
	flag.StringVar(&cfg.MetadataAPIURL, "metadata-api-url", "",
		fmt.Sprintf("Адрес пайплайна извлечения метаданных (env: %s)", envMetadataAPIURL))

	// Парсим флаги
	flag.Parse()

	// Применяем переменные окружения, если флаги не заданы
	if cfg.Port == "" {
		if value, ok := os.LookupEnv(envServerPort); ok {
			cfg.Port = value
		} else {
			cfg.Port = defaultServerPort
		}
	}
	if cfg.CertFile == "" {
		if value, ok := os.LookupEnv(envTLSCertFile); ok {
			cfg.CertFile = value
		}
	}
	if cfg.KeyFile == "" {
		if value, ok := os.LookupEnv(envTLSKeyFile); ok {
			cfg.KeyFile = value
		}
	}
	if cfg.DatabaseDSN == "" {
		if value, ok := os.LookupEnv(envDatabaseDSN); ok {
			cfg.DatabaseDSN = value
		}
	}
	if cfg.EncryptionKey == "" {
		if value, ok := os.LookupEnv(envEncryptionKey); ok {
			cfg.EncryptionKey = value
		}
	}
	if cfg.MetadataAPIURL == "" {
		if value, ok := os.LookupEnv(envMetadataAPIURL); ok {
			cfg.MetadataAPIURL = value
		}
	}

	// Проверяем обязательные параметры. TLS необязателен: без сертификата
	// сервер поднимается по HTTP с предупреждением (для работы за шлюзом).
	if cfg.DatabaseDSN == "" {
		return nil, errors.New("не указана строка подключения к БД (--database-dsn или " + envDatabaseDSN + ")")
	}
	if cfg.EncryptionKey == "" {
		return nil, errors.New("не указан ключ шифрования содержимого (--encryption-key или " + envEncryptionKey + ")")
	}

	return cfg, nil
}
