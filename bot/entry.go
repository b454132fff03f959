package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/simpleiot/budgetbot/data"
	"github.com/simpleiot/budgetbot/store"
)

// menuKeyboard is the menu a flow of kind returns to
func menuKeyboard(c data.Config, kind data.Kind) [][]string {
	if kind == data.KindIncome {
		return incomeKeyboard(c)
	}
	return mainKeyboard(c)
}

// idle is the session after a flow of kind completes
func idle(kind data.Kind) session {
	return session{incomeMenu: kind == data.KindIncome}
}

func (b *Bot) startEntry(m Message, kind data.Kind, cur data.Currency) session {
	s := session{
		step:       stepValue,
		kind:       kind,
		incomeMenu: kind == data.KindIncome,
		entry:      data.NewEntry(kind, cur.Code, b.now()),
	}

	if kind == data.KindIncome {
		b.reply(m, Reply{
			Text:           fmt.Sprintf("💰 You selected %v. Now enter the income amount:", cur.Code),
			RemoveKeyboard: true,
		})
		return s
	}

	log.Printf("Authorized user %v selected payment type: %v\n", m.UserID, cur.Code)
	b.reply(m, Reply{
		Text:           fmt.Sprintf("You selected %v. Now enter the expense amount:", cur.Code),
		RemoveKeyboard: true,
	})
	return s
}

func (b *Bot) value(m Message, text string, s session) session {
	v, err := data.ValidateValue(text)
	if err != nil {
		log.Printf("User %v entered invalid value: %v\n", m.UserID, text)
		if s.kind == data.KindIncome {
			b.reply(m, Reply{Text: "❌ " + err.Error() + "\nPlease enter a valid amount:"})
		} else {
			b.reply(m, Reply{Text: err.Error()})
		}
		return s
	}

	s.entry.Value = v
	s.step = stepDescription

	if s.kind == data.KindIncome {
		b.reply(m, Reply{
			Text: fmt.Sprintf("💰 Amount: %v %v\nNow enter a description for this income:",
				data.FormatValue(v), s.entry.Currency),
			RemoveKeyboard: true,
		})
		return s
	}

	b.reply(m, Reply{Text: "Enter the description:"})
	return s
}

func (b *Bot) description(c data.Config, m Message, text string, s session) session {
	d, err := data.ValidateDescription(text)
	if err != nil {
		log.Printf("User %v entered invalid description: %q\n", m.UserID, text)
		if s.kind == data.KindIncome {
			b.reply(m, Reply{Text: "❌ " + err.Error() + "\nPlease enter a valid description:"})
		} else {
			b.reply(m, Reply{Text: err.Error()})
		}
		return s
	}

	s.entry.Description = d
	s.step = stepCategory

	if s.kind == data.KindIncome {
		b.reply(m, Reply{
			Text:     fmt.Sprintf("📝 Description: %v\nNow select the income type:", d),
			Keyboard: gridKeyboard(c.IncomeTypes, 3),
		})
		return s
	}

	b.reply(m, Reply{Text: "Choose a category:", Keyboard: gridKeyboard(c.Categories, 3)})
	return s
}

func (b *Bot) category(c data.Config, m Message, text string, s session) session {
	if s.kind == data.KindIncome {
		typ, ok := c.IncomeType(text)
		if !ok {
			log.Printf("User %v selected invalid income type: %v\n", m.UserID, text)
			b.reply(m, Reply{Text: "❌ Invalid income type. Please choose a valid type."})
			return s
		}

		// incomes are dated when confirmed
		fresh := data.NewEntry(data.KindIncome, s.entry.Currency, b.now())
		s.entry.Date, s.entry.YearMonth = fresh.Date, fresh.YearMonth
		s.entry.Category = typ
		s.entry.User = userName(m, m.FirstName)
		s.step = stepConfirm

		b.reply(m, Reply{
			Text: fmt.Sprintf("💰 Please confirm your income entry:\n\n"+
				"📅 Date: %v\n💰 Amount: %v %v\n📝 Description: %v\n🏷️ Type: %v\n👤 User: %v\n\n"+
				"Is this correct?",
				s.entry.DateString(), s.entry.ValueString(), s.entry.Currency,
				s.entry.Description, s.entry.Category, s.entry.User),
			Keyboard: confirmKeyboard(),
		})
		return s
	}

	cat, ok := c.Category(text)
	if !ok {
		log.Printf("User %v selected invalid category: %v\n", m.UserID, text)
		b.reply(m, Reply{Text: "Invalid category. Please choose a valid category."})
		return s
	}

	s.entry.Category = cat
	s.entry.User = userName(m, data.NoUsername)
	s.step = stepConfirm

	e := s.entry
	b.reply(m, Reply{
		Text: fmt.Sprintf("Date: %v\nValue: %v\nDescription: %v\nCategory: %v\n"+
			"Payment Type: %v\nYear/Month: %v\nConfirm? (Yes/No)",
			e.DateString(), e.ValueString(), e.Description, e.Category, e.Currency, e.YearMonth),
		Keyboard: confirmKeyboard(),
	})
	return s
}

func (b *Bot) save(ctx context.Context, c data.Config, m Message, s session) session {
	kb := menuKeyboard(c, s.kind)

	e, err := b.ledger.Append(ctx, s.entry)
	if err != nil {
		log.Printf("Error appending %v: %v\n", s.kind, err)
		if s.kind == data.KindIncome {
			b.reply(m, Reply{Text: "❌ Failed to save income entry. Please try again.", Keyboard: kb})
		} else {
			b.reply(m, Reply{Text: "❌ Failed to record expense. Please try again later.", Keyboard: kb})
		}
		return idle(s.kind)
	}

	log.Printf("User %v added %v: %v %v\n", m.UserID, e.Kind, e.ValueString(), e.Currency)
	b.publish(data.EventAdded, e, m.UserID)

	if s.kind == data.KindIncome {
		b.reply(m, Reply{
			Text: fmt.Sprintf("✅ Income entry saved successfully!\n💰 %v %v - %v",
				e.ValueString(), e.Currency, e.Description),
			Keyboard: kb,
		})
	} else {
		b.reply(m, Reply{Text: "✅ Expense recorded successfully!", Keyboard: kb})
	}

	return idle(s.kind)
}

func (b *Bot) cancel(c data.Config, m Message, s session) session {
	log.Printf("User %v cancelled %v recording\n", m.UserID, s.kind)

	if s.kind == data.KindIncome {
		b.reply(m, Reply{Text: "❌ Income entry cancelled.", Keyboard: incomeKeyboard(c)})
	} else {
		b.reply(m, Reply{Text: "Expense recording cancelled. Choose payment type:",
			Keyboard: mainKeyboard(c)})
	}

	return idle(s.kind)
}

func (b *Bot) lastEntries(ctx context.Context, c data.Config, m Message, kind data.Kind) {
	kb := menuKeyboard(c, kind)

	entries, err := store.Last(ctx, b.ledger, kind, 3)
	if err != nil {
		log.Printf("Error showing last %v entries: %v\n", kind, err)
		if kind == data.KindIncome {
			b.reply(m, Reply{Text: "❌ Failed to retrieve income entries. Please try again later.",
				Keyboard: kb})
		} else {
			b.reply(m, Reply{Text: "❌ Failed to fetch entries. Please try again later.",
				Keyboard: kb})
		}
		return
	}

	log.Printf("User %v requested last 3 %v entries\n", m.UserID, kind)

	if kind == data.KindIncome {
		if len(entries) == 0 {
			b.reply(m, Reply{Text: "💰 No income entries found.", Keyboard: kb})
			return
		}

		var sb strings.Builder
		sb.WriteString("💰 Last 3 Income Entries:\n\n")
		// newest first
		for i := len(entries) - 1; i >= 0; i-- {
			fmt.Fprintf(&sb, "Entry %v:\n%v\n\n", len(entries)-i, formatIncome(entries[i]))
		}

		b.reply(m, Reply{Text: strings.TrimRight(sb.String(), "\n"), Keyboard: kb})
		return
	}

	if len(entries) == 0 {
		b.reply(m, Reply{Text: "No entries found.", Keyboard: kb})
		return
	}

	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = formatExpense(e)
	}

	b.reply(m, Reply{Text: "📋 Last 3 entries:\n\n" + strings.Join(texts, "\n\n"), Keyboard: kb})
}

func (b *Bot) deleteLast(ctx context.Context, c data.Config, m Message, kind data.Kind) session {
	kb := menuKeyboard(c, kind)

	last, err := store.LastEntry(ctx, b.ledger, kind)
	if errors.Is(err, data.ErrNoEntries) {
		if kind == data.KindIncome {
			b.reply(m, Reply{Text: "💰 No income entries to delete.", Keyboard: kb})
		} else {
			b.reply(m, Reply{Text: "No data to delete.", Keyboard: kb})
		}
		return idle(kind)
	}

	if err != nil {
		log.Printf("Error preparing %v deletion: %v\n", kind, err)
		if kind == data.KindIncome {
			b.reply(m, Reply{Text: "❌ Failed to process deletion request. Please try again later.",
				Keyboard: kb})
		} else {
			b.reply(m, Reply{Text: "❌ Failed to prepare deletion. Please try again later.",
				Keyboard: kb})
		}
		return idle(kind)
	}

	log.Printf("User %v requested to delete last %v row\n", m.UserID, kind)

	if kind == data.KindIncome {
		b.reply(m, Reply{
			Text: "🗑️ Confirm Income Deletion\n\n" +
				"Are you sure you want to delete this income entry?\n\n" + formatIncome(last),
			Keyboard: confirmKeyboard(),
		})
	} else {
		b.reply(m, Reply{
			Text: "⚠️ Are you sure you want to delete this entry?\n\n" + formatExpense(last) +
				"\n\nConfirm? (Yes/No)",
			RemoveKeyboard: true,
		})
	}

	return session{
		step:       stepDeleteConfirm,
		kind:       kind,
		incomeMenu: kind == data.KindIncome,
		entry:      last,
	}
}

func (b *Bot) deleteConfirmed(ctx context.Context, c data.Config, m Message, s session, yes bool) session {
	income := s.kind == data.KindIncome
	kb := menuKeyboard(c, s.kind)

	if !yes {
		log.Printf("User %v cancelled row deletion\n", m.UserID)
		if income {
			b.reply(m, Reply{Text: "❌ Deletion cancelled.", Keyboard: kb})
		} else {
			b.reply(m, Reply{Text: "Deletion cancelled.", Keyboard: kb})
		}
		return idle(s.kind)
	}

	err := b.ledger.Delete(ctx, s.entry)
	switch {
	case errors.Is(err, data.ErrEntryChanged):
		log.Printf("User %v tried to delete row %v but it changed\n", m.UserID, s.entry.Row)
		if income {
			b.reply(m, Reply{Text: "❌ Could not find the last income entry to delete.", Keyboard: kb})
		} else {
			b.reply(m, Reply{Text: "❌ Could not find the last row to delete.", Keyboard: kb})
		}
	case err != nil:
		log.Printf("Error deleting %v row: %v\n", s.kind, err)
		if income {
			b.reply(m, Reply{Text: "❌ Failed to delete income entry. Please try again later.",
				Keyboard: kb})
		} else {
			b.reply(m, Reply{Text: "❌ Failed to delete row. Please try again later.", Keyboard: kb})
		}
	default:
		log.Printf("User %v deleted last %v row\n", m.UserID, s.kind)
		b.publish(data.EventDeleted, s.entry, m.UserID)
		if income {
			b.reply(m, Reply{Text: "✅ Last income entry deleted successfully!", Keyboard: kb})
		} else {
			b.reply(m, Reply{Text: "✅ Last row deleted successfully!", Keyboard: kb})
		}
	}

	return idle(s.kind)
}
