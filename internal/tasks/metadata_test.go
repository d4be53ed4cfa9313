package tasks_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maynagashev/snipvault/internal/tasks"
)

func TestHTTPMetadataNotifierSnippetUpdated(t *testing.T) {
	t.Run("Успешная доставка уведомления", func(t *testing.T) {
		received := make(chan []byte, 1)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			body, err := io.ReadAll(r.Body)
			assert.NoError(t, err)
			received <- body
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		notifier := tasks.NewHTTPMetadataNotifier(server.URL, server.Client())
		notifier.SnippetUpdated("snippet-id-1", "main.go", "package main")

		select {
		case body := <-received:
			var payload struct {
				SnippetID   string `json:"snippetId"`
				FileName    string `json:"fileName"`
				SnippetText string `json:"snippetText"`
			}
			require.NoError(t, json.Unmarshal(body, &payload))
			assert.Equal(t, "snippet-id-1", payload.SnippetID)
			assert.Equal(t, "main.go", payload.FileName)
			assert.Equal(t, "package main", payload.SnippetText)
		case <-time.After(5 * time.Second):
			t.Fatal("уведомление не было доставлено")
		}
	})

	t.Run("Повтор после временной ошибки", func(t *testing.T) {
		var calls atomic.Int64
		done := make(chan struct{}, 1)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			// Первая попытка отклоняется, вторая принимается
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			done <- struct{}{}
		}))
		defer server.Close()

		notifier := tasks.NewHTTPMetadataNotifier(server.URL, server.Client())
		notifier.SnippetUpdated("snippet-id-1", "main.go", "package main")

		select {
		case <-done:
			assert.Equal(t, int64(2), calls.Load())
		case <-time.After(10 * time.Second):
			t.Fatal("доставка не была повторена после ошибки")
		}
	})

	t.Run("Ошибка доставки не паникует", func(t *testing.T) {
		notifier := tasks.NewHTTPMetadataNotifier("http://127.0.0.1:0/notify", &http.Client{
			Timeout: 100 * time.Millisecond,
		})

		assert.NotPanics(t, func() {
			notifier.SnippetUpdated("snippet-id-1", "main.go", "package main")
		})
	})
}

func TestNopMetadataNotifier(t *testing.T) {
	notifier := tasks.NewNopMetadataNotifier()

	assert.NotPanics(t, func() {
		notifier.SnippetUpdated("snippet-id-1", "main.go", "package main")
	})
}
