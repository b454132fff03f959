package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/simpleiot/budgetbot/bot"
)

const testToken = "123:abc"

type request struct {
	method string
	form   map[string]string
	file   bool
}

// fakeAPI implements the Bot API methods the transport uses
type fakeAPI struct {
	lock     sync.Mutex
	requests []request
	updates  []map[string]any
	failPoll int
	markdown bool
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.lock.Lock()
	defer f.lock.Unlock()

	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]

	req := request{method: method, form: map[string]string{}}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		r.ParseMultipartForm(1 << 20)
		_, _, err := r.FormFile("photo")
		req.file = err == nil
	} else {
		r.ParseForm()
	}
	for k, v := range r.Form {
		req.form[k] = v[0]
	}
	f.requests = append(f.requests, req)

	ok := func(result any) {
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result})
	}

	message := map[string]any{"message_id": 1, "date": 0, "chat": map[string]any{"id": 77}}

	switch method {
	case "getMe":
		ok(map[string]any{"id": 1, "is_bot": true, "first_name": "budget", "username": "budgetbot"})
	case "deleteWebhook":
		ok(true)
	case "getUpdates":
		if f.failPoll > 0 {
			f.failPoll--
			json.NewEncoder(w).Encode(map[string]any{"ok": false, "error_code": 502,
				"description": "Bad Gateway"})
			return
		}
		u := f.updates
		f.updates = nil
		if len(u) == 0 {
			time.Sleep(10 * time.Millisecond)
			u = []map[string]any{}
		}
		ok(u)
	case "sendMessage":
		if f.markdown && req.form["parse_mode"] != "" {
			json.NewEncoder(w).Encode(map[string]any{"ok": false, "error_code": 400,
				"description": "Bad Request: can't parse entities"})
			return
		}
		ok(message)
	case "sendPhoto":
		ok(message)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (f *fakeAPI) find(method string) []request {
	f.lock.Lock()
	defer f.lock.Unlock()
	var ret []request
	for _, r := range f.requests {
		if r.method == method {
			ret = append(ret, r)
		}
	}
	return ret
}

func textUpdate(id int, userID int64, text string) map[string]any {
	return map[string]any{
		"update_id": id,
		"message": map[string]any{
			"message_id": id,
			"date":       0,
			"text":       text,
			"from":       map[string]any{"id": userID, "is_bot": false, "first_name": "Ana", "username": "ana"},
			"chat":       map[string]any{"id": 77, "type": "private"},
		},
	}
}

func newTestTransport(t *testing.T, f *fakeAPI) *Transport {
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	tr, err := New(Options{
		Token:       testToken,
		Endpoint:    srv.URL + "/bot%s/%s",
		Client:      srv.Client(),
		PollTimeout: 1,
		MaxBackoff:  10 * time.Millisecond,
	})
	if err != nil {
		t.Fatal("Error creating transport: ", err)
	}

	return tr
}

type testHandler struct {
	msgs chan bot.Message
}

func (h *testHandler) Handle(_ context.Context, m bot.Message) {
	h.msgs <- m
}

func TestReceive(t *testing.T) {
	f := &fakeAPI{
		failPoll: 1,
		updates: []map[string]any{
			textUpdate(5, 1001, "/start"),
			textUpdate(6, 1001, "RSD 🇷🇸"),
			textUpdate(7, 1002, "/help"),
		},
	}
	tr := newTestTransport(t, f)

	h := &testHandler{msgs: make(chan bot.Message, 10)}
	tr.SetHandler(h)

	runErr := make(chan error)
	go func() {
		runErr <- tr.Run()
	}()

	var got []bot.Message
	for len(got) < 3 {
		select {
		case m := <-h.msgs:
			got = append(got, m)
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for messages, got: ", got)
		}
	}

	// per user order is kept
	var user1 []string
	for _, m := range got {
		if m.UserID == 1001 {
			user1 = append(user1, m.Text)
		}
		if m.ChatID != 77 || m.Username != "ana" || m.FirstName != "Ana" {
			t.Error("bad message: ", m)
		}
	}

	if len(user1) != 2 || user1[0] != "/start" || user1[1] != "RSD 🇷🇸" {
		t.Error("user messages out of order: ", user1)
	}

	// wait for the poll after the updates before stopping
	start := time.Now()
	for {
		polls := f.find("getUpdates")
		if polls[len(polls)-1].form["offset"] == "8" {
			break
		}
		if time.Since(start) > 5*time.Second {
			t.Fatal("offset did not move past the handled updates: ", polls)
		}
		time.Sleep(10 * time.Millisecond)
	}

	tr.Stop(nil)

	select {
	case err := <-runErr:
		if err != nil {
			t.Error("Run returned error: ", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for Run to return")
	}

	drop := f.find("deleteWebhook")
	if len(drop) != 1 || drop[0].form["drop_pending_updates"] != "true" {
		t.Error("pending updates not dropped: ", drop)
	}
}

func TestSend(t *testing.T) {
	f := &fakeAPI{}
	tr := newTestTransport(t, f)

	err := tr.Send(77, bot.Reply{Text: "hi", Keyboard: [][]string{{"Yes", "No"}}})
	if err != nil {
		t.Fatal("Error sending: ", err)
	}

	err = tr.Send(77, bot.Reply{Text: "bye", RemoveKeyboard: true})
	if err != nil {
		t.Fatal("Error sending: ", err)
	}

	sent := f.find("sendMessage")
	if len(sent) != 2 {
		t.Fatal("expected 2 messages, got: ", len(sent))
	}

	if sent[0].form["chat_id"] != "77" || sent[0].form["text"] != "hi" {
		t.Error("bad message: ", sent[0].form)
	}

	kb := sent[0].form["reply_markup"]
	if !strings.Contains(kb, `"keyboard":[[{"text":"Yes"},{"text":"No"}]]`) ||
		!strings.Contains(kb, `"resize_keyboard":true`) {
		t.Error("bad keyboard: ", kb)
	}

	if !strings.Contains(sent[1].form["reply_markup"], `"remove_keyboard":true`) {
		t.Error("keyboard not removed: ", sent[1].form)
	}
}

func TestSendMarkdownFallback(t *testing.T) {
	f := &fakeAPI{markdown: true}
	tr := newTestTransport(t, f)

	err := tr.Send(77, bot.Reply{Text: "*bold_", Markdown: true})
	if err != nil {
		t.Fatal("Error sending: ", err)
	}

	sent := f.find("sendMessage")
	if len(sent) != 2 || sent[0].form["parse_mode"] != "Markdown" || sent[1].form["parse_mode"] != "" {
		t.Error("expected markdown then plain retry: ", sent)
	}
}

func TestSendPhoto(t *testing.T) {
	f := &fakeAPI{}
	tr := newTestTransport(t, f)

	err := tr.SendPhoto(77, []byte{0x89, 'P', 'N', 'G'}, "📊 chart")
	if err != nil {
		t.Fatal("Error sending photo: ", err)
	}

	sent := f.find("sendPhoto")
	if len(sent) != 1 || !sent[0].file || sent[0].form["caption"] != "📊 chart" {
		t.Error("bad photo upload: ", sent)
	}
}

func TestNewWithoutToken(t *testing.T) {
	_, err := New(Options{})
	if err == nil {
		t.Error("expected error without token")
	}
}

// blockingHandler holds the messages of user 1 until release is closed
type blockingHandler struct {
	release chan struct{}
	msgs    chan bot.Message
}

func (h *blockingHandler) Handle(_ context.Context, m bot.Message) {
	if m.UserID == 1 {
		<-h.release
	}
	h.msgs <- m
}

func messageUpdate(id int, userID int64) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: id,
		Message: &tgbotapi.Message{
			MessageID: id,
			Text:      "/start",
			From:      &tgbotapi.User{ID: userID},
			Chat:      &tgbotapi.Chat{ID: userID},
		},
	}
}

func (t *Transport) queued() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return len(t.queues)
}

func TestDispatchBusyUser(t *testing.T) {
	h := &blockingHandler{release: make(chan struct{}), msgs: make(chan bot.Message, 100)}
	tr := &Transport{handler: h, queues: make(map[int64][]bot.Message)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatched := make(chan struct{})
	go func() {
		for i := 0; i < 40; i++ {
			tr.dispatch(ctx, messageUpdate(i, 1))
		}
		tr.dispatch(ctx, messageUpdate(40, 2))
		close(dispatched)
	}()

	select {
	case <-dispatched:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatch blocked on a busy user")
	}

	select {
	case m := <-h.msgs:
		if m.UserID != 2 {
			t.Fatal("expected message from user 2, got: ", m)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("user 2 not handled while user 1 is busy")
	}

	close(h.release)

	for i := 0; i < 40; i++ {
		select {
		case m := <-h.msgs:
			if m.UserID != 1 || m.Text != "/start" {
				t.Fatal("unexpected message: ", m)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for user 1 messages, got: ", i)
		}
	}

	tr.wg.Wait()
	if n := tr.queued(); n != 0 {
		t.Error("workers left after queues drained: ", n)
	}

	// a user whose worker exited gets a new one
	tr.dispatch(ctx, messageUpdate(41, 2))
	select {
	case m := <-h.msgs:
		if m.UserID != 2 {
			t.Error("expected message from user 2, got: ", m)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("message after worker exit not handled")
	}

	tr.wg.Wait()
	if n := tr.queued(); n != 0 {
		t.Error("worker left after queue drained: ", n)
	}
}

func TestDispatchQueueLimit(t *testing.T) {
	h := &blockingHandler{release: make(chan struct{}), msgs: make(chan bot.Message, 2*maxQueue)}
	tr := &Transport{handler: h, queues: make(map[int64][]bot.Message)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the first message is taken by the worker, the rest wait in the queue
	tr.dispatch(ctx, messageUpdate(0, 1))
	start := time.Now()
	for tr.queueLen(1) != 0 {
		if time.Since(start) > 5*time.Second {
			t.Fatal("worker did not take the first message")
		}
		time.Sleep(time.Millisecond)
	}

	for i := 1; i <= maxQueue+10; i++ {
		tr.dispatch(ctx, messageUpdate(i, 1))
	}

	if n := tr.queueLen(1); n != maxQueue {
		t.Error("queue not limited: ", n)
	}

	close(h.release)
	tr.wg.Wait()

	if len(h.msgs) != maxQueue+1 {
		t.Error("expected handled messages: ", maxQueue+1, " got: ", len(h.msgs))
	}
}

func (t *Transport) queueLen(userID int64) int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return len(t.queues[userID])
}
