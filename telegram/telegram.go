// Package telegram connects the bot to the Telegram Bot API using long
// polling.
package telegram

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/simpleiot/budgetbot/bot"
	"github.com/simpleiot/budgetbot/system"
)

// Handler processes incoming messages
type Handler interface {
	Handle(ctx context.Context, m bot.Message)
}

// Options for the Telegram transport
type Options struct {
	Token string
	// API endpoint format, defaults to tgbotapi.APIEndpoint
	Endpoint string
	Client   *http.Client
	// long poll timeout in seconds
	PollTimeout int
	// keep updates sent while the bot was down
	KeepPending bool
	// max delay between failed polls
	MaxBackoff time.Duration
	Debug      bool
}

// Transport receives updates and sends replies. It implements bot.Sender
// and client.RunStop.
type Transport struct {
	api     *tgbotapi.BotAPI
	options Options
	handler Handler

	stop     chan struct{}
	stopOnce sync.Once

	lock   sync.Mutex
	queues map[int64][]bot.Message
	wg     sync.WaitGroup
}

// maxQueue limits the messages waiting for one user
const maxQueue = 256

// New connects to Telegram and checks the token
func New(o Options) (*Transport, error) {
	if o.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}

	if o.Endpoint == "" {
		o.Endpoint = tgbotapi.APIEndpoint
	}

	if o.Client == nil {
		o.Client = &http.Client{}
	}

	if o.PollTimeout <= 0 {
		o.PollTimeout = 60
	}

	if o.MaxBackoff <= 0 {
		o.MaxBackoff = time.Minute
	}

	api, err := tgbotapi.NewBotAPIWithClient(o.Token, o.Endpoint, o.Client)
	if err != nil {
		return nil, fmt.Errorf("Error connecting to telegram: %w", err)
	}

	api.Debug = o.Debug

	log.Printf("Authorized on telegram account %v\n", api.Self.UserName)

	return &Transport{
		api:     api,
		options: o,
		stop:    make(chan struct{}),
		queues:  make(map[int64][]bot.Message),
	}, nil
}

// SetHandler must be called before Run
func (t *Transport) SetHandler(h Handler) {
	t.handler = h
}

// Run polls for updates until Stop is called
func (t *Transport) Run() error {
	if t.handler == nil {
		return fmt.Errorf("telegram transport has no handler")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		t.wg.Wait()
	}()

	go func() {
		select {
		case <-t.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	if !t.options.KeepPending {
		_, err := t.api.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: true})
		if err != nil {
			log.Println("Error dropping pending updates: ", err)
		}
	}

	offset := 0
	attempts := 0

	for {
		if ctx.Err() != nil {
			return nil
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = t.options.PollTimeout

		// the long poll can't be canceled, so Stop doesn't wait for it
		polled := make(chan pollResult, 1)
		go func() {
			updates, err := t.api.GetUpdates(u)
			polled <- pollResult{updates, err}
		}()

		var updates []tgbotapi.Update
		var err error
		select {
		case <-ctx.Done():
			return nil
		case r := <-polled:
			updates, err = r.updates, r.err
		}

		if err != nil {
			delay := system.ExpBackoff(attempts, t.options.MaxBackoff)
			attempts++
			log.Printf("Error getting telegram updates, retry in %v: %v\n", delay, err)
			if system.Sleep(ctx, delay) != nil {
				return nil
			}
			continue
		}

		attempts = 0

		for _, up := range updates {
			if up.UpdateID >= offset {
				offset = up.UpdateID + 1
			}
			t.dispatch(ctx, up)
		}
	}
}

type pollResult struct {
	updates []tgbotapi.Update
	err     error
}

// Stop polling and the per-user workers
func (t *Transport) Stop(_ error) {
	t.stopOnce.Do(func() { close(t.stop) })
}

func toMessage(up tgbotapi.Update) (bot.Message, bool) {
	m := up.Message
	if m == nil || m.From == nil || m.Chat == nil {
		return bot.Message{}, false
	}

	return bot.Message{
		UserID:    m.From.ID,
		ChatID:    m.Chat.ID,
		Username:  m.From.UserName,
		FirstName: m.From.FirstName,
		Text:      m.Text,
	}, true
}

// dispatch queues the update for its user so each user's messages are
// handled in order. It never blocks, a user with a backlog doesn't delay
// the others.
func (t *Transport) dispatch(ctx context.Context, up tgbotapi.Update) {
	m, ok := toMessage(up)
	if !ok {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	q, running := t.queues[m.UserID]
	if len(q) >= maxQueue {
		log.Printf("Dropping telegram message from %v, %v messages queued\n",
			m.UserID, len(q))
		return
	}

	t.queues[m.UserID] = append(q, m)

	if !running {
		t.wg.Add(1)
		go t.worker(ctx, m.UserID)
	}
}

// worker handles the queue of one user and exits when it is empty. The map
// entry exists exactly while a worker runs, so dispatch starts a new one
// for the next message.
func (t *Transport) worker(ctx context.Context, userID int64) {
	defer t.wg.Done()

	for {
		t.lock.Lock()
		q := t.queues[userID]
		if len(q) == 0 || ctx.Err() != nil {
			delete(t.queues, userID)
			t.lock.Unlock()
			return
		}
		m := q[0]
		t.queues[userID] = q[1:]
		t.lock.Unlock()

		t.handler.Handle(ctx, m)
	}
}

func keyboard(rows [][]string) tgbotapi.ReplyKeyboardMarkup {
	kb := make([][]tgbotapi.KeyboardButton, len(rows))
	for i, r := range rows {
		buttons := make([]tgbotapi.KeyboardButton, len(r))
		for j, text := range r {
			buttons[j] = tgbotapi.NewKeyboardButton(text)
		}
		kb[i] = tgbotapi.NewKeyboardButtonRow(buttons...)
	}
	return tgbotapi.NewReplyKeyboard(kb...)
}

// Send a text reply
func (t *Transport) Send(chatID int64, r bot.Reply) error {
	msg := tgbotapi.NewMessage(chatID, r.Text)

	switch {
	case r.RemoveKeyboard:
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	case r.Keyboard != nil:
		msg.ReplyMarkup = keyboard(r.Keyboard)
	}

	if r.Markdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}

	_, err := t.api.Send(msg)
	if err != nil && r.Markdown {
		// user supplied text can break markdown parsing
		log.Println("Error sending markdown message, retrying as plain text: ", err)
		msg.ParseMode = ""
		_, err = t.api.Send(msg)
	}

	if err != nil {
		return fmt.Errorf("Error sending telegram message: %w", err)
	}

	return nil
}

// SendPhoto uploads a PNG image
func (t *Transport) SendPhoto(chatID int64, png []byte, caption string) error {
	p := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "chart.png", Bytes: png})
	p.Caption = caption

	_, err := t.api.Send(p)
	if err != nil {
		return fmt.Errorf("Error sending telegram photo: %w", err)
	}

	return nil
}
