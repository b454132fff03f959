package bot

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/simpleiot/budgetbot/analytics"
	"github.com/simpleiot/budgetbot/data"
)

const (
	textNoData          = "No data available for analytics."
	textNoDataTwoMonths = "No data available for the last two months."
	textNoDataYear      = "No data available for the last 12 months."
	textChartFailed     = "❌ Failed to generate chart. Please try again later."
)

// recentExpenses loads expenses dated on or after start. ok is false when a
// reply has already been sent.
func (b *Bot) recentExpenses(ctx context.Context, c data.Config, m Message,
	startFunc func(now time.Time) time.Time, noData, failed string) ([]data.Entry, bool) {
	entries, err := b.ledger.Entries(ctx, data.KindExpense)
	if err != nil {
		log.Println("Error loading expenses for analytics: ", err)
		b.reply(m, Reply{Text: failed, Keyboard: mainKeyboard(c)})
		return nil, false
	}

	if len(entries) == 0 {
		b.reply(m, Reply{Text: textNoData, Keyboard: mainKeyboard(c)})
		return nil, false
	}

	recent := analytics.Since(entries, startFunc(b.now()))
	if len(recent) == 0 {
		b.reply(m, Reply{Text: noData, Keyboard: mainKeyboard(c)})
		return nil, false
	}

	return recent, true
}

func (b *Bot) sendChart(m Message, png []byte, err error, caption string) error {
	if err != nil {
		return fmt.Errorf("Error rendering %q: %w", caption, err)
	}

	err = b.sender.SendPhoto(m.ChatID, png, caption)
	if err != nil {
		return fmt.Errorf("Error sending %q: %w", caption, err)
	}

	return nil
}

func (b *Bot) twoMonths(ctx context.Context, c data.Config, m Message) {
	failed := "❌ Failed to generate analytics. Please try again later."

	recent, ok := b.recentExpenses(ctx, c, m, analytics.TwoMonthsStart, textNoDataTwoMonths, failed)
	if !ok {
		return
	}

	now := b.now()
	for _, cur := range c.Currencies {
		r := analytics.TwoMonths(recent, cur.Code, now)
		if len(r.Months) == 0 {
			continue
		}

		title := fmt.Sprintf("Analytics for %v - Last Two Months", cur.Code)
		png, err := analytics.TwoMonthsChart(title, r)
		err = b.sendChart(m, png, err, "📊 "+title)
		if err != nil {
			log.Println("Error generating analytics: ", err)
			b.reply(m, Reply{Text: failed, Keyboard: mainKeyboard(c)})
			return
		}

		b.reply(m, Reply{Text: "```\n" + r.String() + "```", Markdown: true})
	}

	log.Printf("User %v requested analytics\n", m.UserID)
	b.reply(m, Reply{Text: "Choose analytics type:", Keyboard: analyticsKeyboard()})
}

func (b *Bot) lastYear(ctx context.Context, c data.Config, m Message) {
	recent, ok := b.recentExpenses(ctx, c, m, analytics.YearStart, textNoDataYear, textChartFailed)
	if !ok {
		return
	}

	now := b.now()
	for _, cur := range c.Currencies {
		pts := analytics.Monthly(recent, cur.Code, "", now)
		if len(pts) == 0 {
			continue
		}

		title := fmt.Sprintf("Total Expenses - Last 12 Months (%v)", cur.Code)
		png, err := analytics.MonthlyChart(title, "Total Expenses", pts, true)
		err = b.sendChart(m, png, err, "📊 "+title)
		if err != nil {
			log.Println("Error generating last year chart: ", err)
			b.reply(m, Reply{Text: textChartFailed, Keyboard: mainKeyboard(c)})
			return
		}
	}

	log.Printf("User %v requested last year chart\n", m.UserID)
	b.reply(m, Reply{Text: "Choose analytics type:", Keyboard: analyticsKeyboard()})
}

func (b *Bot) categoryChart(ctx context.Context, c data.Config, m Message, text string) session {
	cat, ok := c.Category(text)
	if !ok {
		log.Printf("User %v selected invalid category: %v\n", m.UserID, text)
		b.reply(m, Reply{Text: "Invalid category. Please choose a valid category."})
		return session{step: stepChartCategory}
	}

	recent, ok := b.recentExpenses(ctx, c, m, analytics.YearStart, textNoDataYear, textChartFailed)
	if !ok {
		return session{}
	}

	now := b.now()
	for _, cur := range c.Currencies {
		pts := analytics.Monthly(recent, cur.Code, cat, now)
		if len(pts) == 0 {
			continue
		}

		title := fmt.Sprintf("%v Expenses - Last 12 Months (%v)", cat, cur.Code)
		png, err := analytics.MonthlyChart(title, "Amount", pts, false)
		err = b.sendChart(m, png, err, "📊 "+title)
		if err != nil {
			log.Println("Error generating single category chart: ", err)
			b.reply(m, Reply{Text: textChartFailed, Keyboard: mainKeyboard(c)})
			return session{}
		}
	}

	log.Printf("User %v requested single category chart for %v\n", m.UserID, cat)
	b.reply(m, Reply{Text: "Choose another action:", Keyboard: analyticsKeyboard()})
	return session{}
}
