package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FakeTelegram is a minimal Bot API used to run the server in tests.
// Queued texts are delivered as private messages from one user.
type FakeTelegram struct {
	*httptest.Server

	lock     sync.Mutex
	updateID int
	pending  []map[string]any
	sent     []string
}

// NewFakeTelegram starts a fake Bot API server
func NewFakeTelegram() *FakeTelegram {
	f := &FakeTelegram{}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	return f
}

// Endpoint is the API endpoint format for telegram.Options
func (f *FakeTelegram) Endpoint() string {
	return f.URL + "/bot%s/%s"
}

// Queue texts sent by userID
func (f *FakeTelegram) Queue(userID int64, texts ...string) {
	f.lock.Lock()
	defer f.lock.Unlock()

	for _, t := range texts {
		f.updateID++
		f.pending = append(f.pending, map[string]any{
			"update_id": f.updateID,
			"message": map[string]any{
				"message_id": f.updateID,
				"date":       time.Now().Unix(),
				"text":       t,
				"from": map[string]any{"id": userID, "is_bot": false,
					"first_name": "Test", "username": "tester"},
				"chat": map[string]any{"id": userID, "type": "private"},
			},
		})
	}
}

// Sent returns the texts of all messages sent by the bot
func (f *FakeTelegram) Sent() []string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]string{}, f.sent...)
}

// WaitSent waits for a sent message containing s
func (f *FakeTelegram) WaitSent(s string, timeout time.Duration) error {
	start := time.Now()
	for time.Since(start) < timeout {
		for _, m := range f.Sent() {
			if strings.Contains(m, s) {
				return nil
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for message %q, got: %q", s, f.Sent())
}

func (f *FakeTelegram) serve(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		r.ParseMultipartForm(1 << 20)
	} else {
		r.ParseForm()
	}

	ok := func(result any) {
		err := json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result})
		if err != nil {
			log.Println("Error encoding fake telegram response: ", err)
		}
	}

	message := map[string]any{"message_id": 1, "date": 0,
		"chat": map[string]any{"id": 1, "type": "private"}}

	switch method {
	case "getMe":
		ok(map[string]any{"id": 1, "is_bot": true, "first_name": "budget", "username": "budgetbot"})
	case "deleteWebhook":
		ok(true)
	case "getUpdates":
		f.lock.Lock()
		u := f.pending
		f.pending = nil
		f.lock.Unlock()
		if len(u) == 0 {
			time.Sleep(20 * time.Millisecond)
			u = []map[string]any{}
		}
		ok(u)
	case "sendMessage":
		f.lock.Lock()
		f.sent = append(f.sent, r.FormValue("text"))
		f.lock.Unlock()
		ok(message)
	case "sendPhoto":
		f.lock.Lock()
		f.sent = append(f.sent, r.FormValue("caption"))
		f.lock.Unlock()
		ok(message)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// TestOptions returns options for a server that keeps its files in dir and
// talks to a fake Telegram API
func TestOptions(dir, telegramEndpoint string) Options {
	return Options{
		Token:            "123:test",
		TelegramEndpoint: telegramEndpoint,
		Store:            "sqlite",
		SqliteFile:       filepath.Join(dir, "test.sqlite"),
		ConfigFile:       filepath.Join(dir, "budgetbot.yaml"),
		HTTPPort:         "8990",
		APISecret:        "test",
		NatsServer:       "nats://localhost:4990",
		NatsPort:         4990,
	}
}

// TestServer starts a test server and returns a function to stop it
func TestServer(o Options) (func() error, error) {
	s := NewServer(o)

	stopped := make(chan error, 1)

	go func() {
		err := s.Run()
		if err != nil {
			log.Println("Test Server run returned: ", err)
		}
		stopped <- err
	}()

	stop := func() error {
		s.Stop(nil)
		select {
		case err := <-stopped:
			return err
		case <-time.After(10 * time.Second):
			return fmt.Errorf("timeout stopping test server")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	err := s.WaitStart(ctx)
	cancel()
	if err != nil {
		stop()
		return nil, fmt.Errorf("Error waiting for test server to start: %v", err)
	}

	return stop, nil
}
