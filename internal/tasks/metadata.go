// Package tasks содержит асинхронные задачи, отвязанные от жизненного цикла запроса.
package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

// MetadataNotifier уведомляет внешний пайплайн извлечения метаданных
// об изменении содержимого сниппета.
type MetadataNotifier interface {
	// SnippetUpdated отправляет уведомление в режиме fire-and-forget:
	// вызов возвращается сразу, ошибки доставки логируются и не влияют
	// на результат операции обновления.
	SnippetUpdated(snippetID, fileName, content string)
}

const (
	notifyTimeout     = 30 * time.Second
	notifyMaxRetries  = 3
	notifyBackoffBase = 500 * time.Millisecond
)

// metadataRequest представляет тело уведомления для пайплайна извлечения.
type metadataRequest struct {
	SnippetID   string `json:"snippetId"`
	FileName    string `json:"fileName"`
	SnippetText string `json:"snippetText"`
}

// httpMetadataNotifier реализует MetadataNotifier поверх HTTP API коллаборатора.
var _ MetadataNotifier = (*httpMetadataNotifier)(nil)

type httpMetadataNotifier struct {
	apiURL string
	client *http.Client
}

// NewHTTPMetadataNotifier создает уведомитель, отправляющий POST-запросы
// на указанный адрес пайплайна извлечения метаданных.
func NewHTTPMetadataNotifier(apiURL string, client *http.Client) MetadataNotifier {
	if client == nil {
		client = &http.Client{Timeout: notifyTimeout}
	}
	return &httpMetadataNotifier{apiURL: apiURL, client: client}
}

// SnippetUpdated запускает доставку уведомления в отдельной горутине.
// Доставка повторяется с фибоначчи-бэкоффом; после исчерпания попыток
// ошибка логируется и теряется - обновление сниппета уже зафиксировано.
func (n *httpMetadataNotifier) SnippetUpdated(snippetID, fileName, content string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		err := retry.Do(ctx, retry.WithMaxRetries(notifyMaxRetries, retry.NewFibonacci(notifyBackoffBase)),
			func(ctx context.Context) error {
				return retry.RetryableError(n.send(ctx, snippetID, fileName, content))
			})
		if err != nil {
			log.Printf("[MetadataNotifier] Не удалось уведомить пайплайн о сниппете %s: %v", snippetID, err)
			return
		}

		log.Printf("[MetadataNotifier] Пайплайн извлечения уведомлен о сниппете %s", snippetID)
	}()
}

// send выполняет одну попытку доставки уведомления.
func (n *httpMetadataNotifier) send(ctx context.Context, snippetID, fileName, content string) error {
	body, err := json.Marshal(metadataRequest{
		SnippetID:   snippetID,
		FileName:    fileName,
		SnippetText: content,
	})
	if err != nil {
		return fmt.Errorf("ошибка сериализации уведомления: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ошибка создания запроса уведомления: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("ошибка отправки уведомления: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("пайплайн извлечения вернул статус %d", resp.StatusCode)
	}

	return nil
}

// nopMetadataNotifier используется, когда адрес пайплайна не сконфигурирован.
type nopMetadataNotifier struct{}

// NewNopMetadataNotifier создает уведомитель-заглушку.
func NewNopMetadataNotifier() MetadataNotifier {
	return nopMetadataNotifier{}
}

func (nopMetadataNotifier) SnippetUpdated(snippetID, _, _ string) {
	log.Printf("[MetadataNotifier] Адрес пайплайна не задан, уведомление о сниппете %s пропущено", snippetID)
}
