// Package bot implements the budget conversation. It is independent of the
// chat transport: messages come in through Handle and replies go out
// through a Sender.
package bot

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/simpleiot/budgetbot/bus"
	"github.com/simpleiot/budgetbot/data"
	"github.com/simpleiot/budgetbot/store"
)

// Message is an incoming chat message
type Message struct {
	UserID    int64
	ChatID    int64
	Username  string
	FirstName string
	Text      string
}

// Reply is an outgoing text message. A nil Keyboard leaves the user's
// current keyboard alone.
type Reply struct {
	Text           string
	Keyboard       [][]string
	RemoveKeyboard bool
	Markdown       bool
}

// Sender delivers replies to a chat
type Sender interface {
	Send(chatID int64, r Reply) error
	SendPhoto(chatID int64, png []byte, caption string) error
}

// common reply texts
const (
	textUnauthorized = "⛔️ Sorry, you are not authorized to use this bot.\n" +
		"Please contact the administrator for access."
	textSomethingWrong = "Sorry, something went wrong. Please try again later."
	textUseStart       = "Please use /start command first"
	textAnswerYesNo    = "Please answer Yes or No."
)

type step int

const (
	stepNone step = iota
	stepValue
	stepDescription
	stepCategory
	stepConfirm
	stepDeleteConfirm
	stepChartCategory
)

// session is the conversation state of one user
type session struct {
	step       step
	kind       data.Kind
	incomeMenu bool
	// entry being built, or the entry waiting for delete confirmation
	entry data.Entry
}

// Bot dispatches messages to the expense, income and analytics flows
type Bot struct {
	ledger store.Ledger
	sender Sender
	pub    bus.Publisher
	now    func() time.Time

	lock     sync.Mutex
	config   data.Config
	sessions map[int64]session
}

// New creates a bot. pub may be nil if ledger events are not needed.
func New(ledger store.Ledger, sender Sender, pub bus.Publisher, config data.Config) *Bot {
	return &Bot{
		ledger:   ledger,
		sender:   sender,
		pub:      pub,
		now:      time.Now,
		config:   config,
		sessions: make(map[int64]session),
	}
}

// SetConfig replaces the config, used when the config file changes
func (b *Bot) SetConfig(c data.Config) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.config = c
}

// Config returns the current config
func (b *Bot) Config() data.Config {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.config
}

func (b *Bot) session(userID int64) session {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.sessions[userID]
}

func (b *Bot) setSession(userID int64, s session) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.sessions[userID] = s
}

func (b *Bot) reply(m Message, r Reply) {
	err := b.sender.Send(m.ChatID, r)
	if err != nil {
		log.Printf("Error sending reply to chat %v: %v\n", m.ChatID, err)
	}
}

func (b *Bot) publish(typ data.EventType, e data.Entry, userID int64) {
	if b.pub == nil {
		return
	}

	err := bus.Publish(b.pub, data.NewEvent(typ, e, userID))
	if err != nil {
		log.Println("Error publishing ledger event: ", err)
	}
}

// Handle processes one message. Messages of one user must be handled in
// order, messages of different users may be handled concurrently.
func (b *Bot) Handle(ctx context.Context, m Message) {
	c := b.Config()

	if err := authorize(c, m.UserID); err != nil {
		log.Println("Unauthorized access attempt: ", err)
		b.reply(m, Reply{Text: textUnauthorized})
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("Error handling message from user %v: %v\n", m.UserID, r)
			b.setSession(m.UserID, session{})
			b.reply(m, Reply{Text: textSomethingWrong, Keyboard: mainKeyboard(c)})
		}
	}()

	text := strings.TrimSpace(m.Text)
	s := b.session(m.UserID)

	s = b.dispatch(ctx, c, m, text, s)

	b.setSession(m.UserID, s)
}

// authorize returns data.ErrUnauthorized for users not in the config
func authorize(c data.Config, userID int64) error {
	if !c.Authorized(userID) {
		return fmt.Errorf("user %v: %w", userID, data.ErrUnauthorized)
	}
	return nil
}

func (b *Bot) dispatch(ctx context.Context, c data.Config, m Message, text string, s session) session {
	switch text {
	case "/start":
		log.Printf("Authorized user %v started the bot\n", m.UserID)
		b.reply(m, Reply{Text: "Hello, let's start!", Keyboard: mainKeyboard(c)})
		return session{}
	case "/help":
		b.reply(m, Reply{Text: help(c), Keyboard: mainKeyboard(c), Markdown: true})
		return s
	}

	// confirmations own every answer
	switch s.step {
	case stepConfirm:
		switch {
		case isYes(text):
			return b.save(ctx, c, m, s)
		case isNo(text):
			return b.cancel(c, m, s)
		default:
			b.reply(m, Reply{Text: textAnswerYesNo, Keyboard: confirmKeyboard()})
			return s
		}
	case stepDeleteConfirm:
		return b.deleteConfirmed(ctx, c, m, s, isYes(text))
	}

	// the income menu has its own currency buttons
	if cur, ok := currencyButton(c, text, ""); ok && !s.incomeMenu {
		return b.startEntry(m, data.KindExpense, cur)
	}

	if cur, ok := currencyButton(c, text, incomeButtonPrefix); ok {
		return b.startEntry(m, data.KindIncome, cur)
	}

	switch text {
	case btnLastEntries:
		b.lastEntries(ctx, c, m, data.KindExpense)
		return session{}
	case btnDeleteLast:
		return b.deleteLast(ctx, c, m, data.KindExpense)
	case btnIncomeMenu:
		b.reply(m, Reply{Text: "💰 Income Menu - Choose an option:", Keyboard: incomeKeyboard(c)})
		return session{incomeMenu: true}
	case btnLastIncome:
		b.lastEntries(ctx, c, m, data.KindIncome)
		return session{incomeMenu: true}
	case btnDeleteIncome:
		return b.deleteLast(ctx, c, m, data.KindIncome)
	case btnBackToMain:
		b.reply(m, Reply{Text: "🏠 Back to main menu:", Keyboard: mainKeyboard(c)})
		return session{}
	case btnAnalytics:
		b.reply(m, Reply{Text: "Available analytics:", Keyboard: analyticsKeyboard()})
		return session{}
	case btnBack:
		b.reply(m, Reply{Text: "Options:", Keyboard: mainKeyboard(c)})
		return session{}
	case btnTwoMonths:
		b.twoMonths(ctx, c, m)
		return session{}
	case btnLastYear:
		b.lastYear(ctx, c, m)
		return session{}
	case btnCategoryChart:
		b.reply(m, Reply{Text: "Choose a category to view its chart:",
			Keyboard: gridKeyboard(c.Categories, 3)})
		return session{step: stepChartCategory}
	}

	switch s.step {
	case stepValue:
		return b.value(m, text, s)
	case stepDescription:
		return b.description(c, m, text, s)
	case stepCategory:
		return b.category(c, m, text, s)
	case stepChartCategory:
		return b.categoryChart(ctx, c, m, text)
	}

	if s.incomeMenu {
		b.reply(m, Reply{Text: textUseStart, Keyboard: incomeKeyboard(c)})
		return s
	}

	b.reply(m, Reply{Text: textUseStart})
	return s
}
