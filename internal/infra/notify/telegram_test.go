package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewTelegramUnconfigured(t *testing.T) {
	n := NewTelegram(Config{})
	if _, ok := n.(Nop); !ok {
		t.Fatalf("Expected Nop notifier without credentials, got %T", n)
	}
	if err := n.Send(context.Background(), "dropped"); err != nil {
		t.Fatalf("Nop Send failed: %v", err)
	}
}

func TestSend(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	}))
	defer srv.Close()

	tg := &Telegram{
		cfg:    Config{BotToken: "123:abc", ChatID: "42"},
		client: srv.Client(),
		base:   srv.URL,
	}

	if err := tg.Send(context.Background(), "Slots found!"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if gotPath != "/bot123:abc/sendMessage" {
		t.Errorf("path = %s", gotPath)
	}
	if gotBody["chat_id"] != "42" || gotBody["text"] != "Slots found!" {
		t.Errorf("payload = %v", gotBody)
	}
}

func TestSendRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	tg := &Telegram{
		cfg:    Config{BotToken: "123:abc", ChatID: "42"},
		client: srv.Client(),
		base:   srv.URL,
	}

	err := tg.Send(context.Background(), "hello")
	if err == nil {
		t.Fatal("Expected error for rejected message")
	}
	if !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("error %q should carry the API description", err)
	}
}

func TestSendServerDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	tg := &Telegram{
		cfg:    Config{BotToken: "123:abc", ChatID: "42"},
		client: &http.Client{},
		base:   srv.URL,
	}

	if err := tg.Send(context.Background(), "hello"); err == nil {
		t.Fatal("Expected transport error")
	}
}
