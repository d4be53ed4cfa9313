package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // Драйвер PostgreSQL

	"github.com/maynagashev/snipvault/internal/handlers"
	appmiddleware "github.com/maynagashev/snipvault/internal/middleware"
	"github.com/maynagashev/snipvault/internal/repository"
	"github.com/maynagashev/snipvault/internal/services"
	"github.com/maynagashev/snipvault/internal/storage"
	"github.com/maynagashev/snipvault/internal/tasks"
)

const (
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 10 * time.Second
	defaultIdleTimeout  = 30 * time.Second

	// Переменные окружения для MinIO (значения по умолчанию из docker-compose).
	envMinioEndpoint     = "MINIO_ENDPOINT"
	envMinioUser         = "MINIO_USER"
	envMinioPassword     = "MINIO_PASSWORD"
	envMinioBucket       = "MINIO_BUCKET"
	defaultMinioEndpoint = "localhost:9000"
	defaultMinioUser     = "minioadmin"
	defaultMinioPassword = "minioadmin"
	defaultMinioBucket   = "snipvault-content"
	minioUseSSL          = false // Для локальной разработки
)

// Функции инициализации БД выделены в переменные для подмены в тестах.
var (
	newPostgresDB = repository.NewPostgresDB
	runMigrations = repository.RunMigrations
)

// Структура для хранения инициализированных зависимостей.
type dependencies struct {
	db             *sqlx.DB
	fileStorage    storage.FileStorage
	tokenService   services.TokenService
	authHandler    *handlers.AuthHandler
	snippetHandler *handlers.SnippetHandler
}

// main - точка входа. Вызывает run и обрабатывает ошибку.
func main() {
	if err := run(); err != nil {
		log.Printf("Ошибка выполнения сервера: %v", err)
		os.Exit(1)
	}
}

// run содержит основную логику запуска сервера и возвращает ошибку.
func run() error {
	log.Println("Запуск сервера SnipVault...")

	cfg, err := parseFlags()
	if err != nil {
		return fmt.Errorf("ошибка разбора конфигурации: %w", err)
	}

	// Инициализация зависимостей
	deps, err := setupDependencies(cfg)
	if err != nil {
		return fmt.Errorf("ошибка инициализации зависимостей: %w", err)
	}
	// Отложенное закрытие соединения с БД
	defer func() {
		if deps.db != nil {
			if closeErr := deps.db.Close(); closeErr != nil {
				log.Printf("Ошибка закрытия соединения с БД: %v", closeErr)
			}
		}
	}()

	// Настройка роутера
	r := setupRouter(deps.authHandler, deps.snippetHandler, deps.tokenService)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	// С сертификатом и ключом поднимаем HTTPS, иначе HTTP с предупреждением
	// (вариант для запуска за TLS-терминирующим шлюзом).
	if cfg.CertFile != "" && cfg.KeyFile != "" {
		log.Printf("Запуск HTTPS-сервера на порту %s...", cfg.Port)
		err = server.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
	} else {
		log.Printf("ВНИМАНИЕ: TLS не сконфигурирован, запуск HTTP-сервера на порту %s", cfg.Port)
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ошибка запуска сервера: %w", err)
	}
	return nil
}

// setupDependencies инициализирует и возвращает все необходимые зависимости сервера.
func setupDependencies(cfg *config) (*dependencies, error) {
	deps := &dependencies{}
	var err error

	// 1. Подключение к БД и миграции
	deps.db, err = newPostgresDB(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации БД: %w", err)
	}
	log.Println("Соединение с БД успешно установлено.")

	if err = runMigrations(deps.db); err != nil {
		closeDB(deps.db)
		return nil, fmt.Errorf("ошибка применения миграций: %w", err)
	}

	// 2. Инициализация клиента MinIO
	minioCfg := storage.MinioConfig{
		Endpoint:        getEnv(envMinioEndpoint, defaultMinioEndpoint),
		AccessKeyID:     getEnv(envMinioUser, defaultMinioUser),
		SecretAccessKey: getEnv(envMinioPassword, defaultMinioPassword),
		UseSSL:          minioUseSSL,
		BucketName:      getEnv(envMinioBucket, defaultMinioBucket),
	}
	deps.fileStorage, err = storage.NewMinioClient(minioCfg)
	if err != nil {
		closeDB(deps.db)
		return nil, fmt.Errorf("ошибка инициализации клиента MinIO: %w", err)
	}

	// 3. Шифратор содержимого и зашифрованное хранилище
	key, err := base64.StdEncoding.DecodeString(cfg.EncryptionKey)
	if err != nil {
		closeDB(deps.db)
		return nil, fmt.Errorf("ключ шифрования не является валидным base64: %w", err)
	}
	contentCipher, err := storage.NewCipher(key)
	if err != nil {
		closeDB(deps.db)
		return nil, fmt.Errorf("ошибка инициализации шифратора: %w", err)
	}
	contentStore := storage.NewEncryptedContentStore(deps.fileStorage, contentCipher)

	// 4. Создание репозиториев
	userRepo := repository.NewPostgresUserRepository(deps.db)
	tokenRepo := repository.NewPostgresTokenRepository(deps.db)
	snippetRepo := repository.NewPostgresSnippetRepository(deps.db)
	downloadRepo := repository.NewPostgresDownloadRepository(deps.db)

	// 5. Создание сервисов
	deps.tokenService = services.NewTokenService(tokenRepo)
	authService := services.NewAuthService(userRepo, deps.tokenService)

	var notifier tasks.MetadataNotifier
	if cfg.MetadataAPIURL != "" {
		notifier = tasks.NewHTTPMetadataNotifier(cfg.MetadataAPIURL, nil)
	} else {
		notifier = tasks.NewNopMetadataNotifier()
	}
	snippetService := services.NewSnippetService(userRepo, snippetRepo, downloadRepo, contentStore, notifier)

	// 6. Создание обработчиков
	deps.authHandler = handlers.NewAuthHandler(authService, deps.tokenService)
	deps.snippetHandler = handlers.NewSnippetHandler(snippetService)

	return deps, nil
}

// setupRouter настраивает и возвращает роутер chi.
func setupRouter(
	authHandler *handlers.AuthHandler,
	snippetHandler *handlers.SnippetHandler,
	tokenService services.TokenService,
) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// --- Маршруты --- //
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pong\n"))
	})

	// Определяем базовый маршрут /api
	r.Route("/api", func(r chi.Router) {
		// Публичные маршруты (регистрация, вход, проверка токена)
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/token/validate", authHandler.ValidateToken)

		// Приватные маршруты (требуют аутентификации)
		r.Group(func(r chi.Router) {
			// Применяем middleware аутентификации ко всей группе
			r.Use(appmiddleware.Authenticator(tokenService))

			r.Post("/logout", authHandler.Logout)

			// Маршруты для работы со сниппетами
			r.Route("/snippets", func(r chi.Router) {
				r.Post("/upload", snippetHandler.Upload)
				r.Post("/download", snippetHandler.Download)
				r.Post("/update", snippetHandler.Update)
				r.Post("/delete", snippetHandler.Delete)
				r.Post("/permissions", snippetHandler.Permissions)
			})

			r.Get("/dashboard", snippetHandler.Dashboard)
			r.Get("/summary", snippetHandler.Summary)
		})
	})
	return r
}

// closeDB закрывает соединение с БД при ошибке инициализации.
func closeDB(db *sqlx.DB) {
	if closeErr := db.Close(); closeErr != nil {
		log.Printf("Ошибка закрытия соединения с БД при ошибке инициализации: %v", closeErr)
	}
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию.
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	log.Printf("Переменная окружения '%s' не установлена, используется значение по умолчанию: '%s'", key, fallback)
	return fallback
}
