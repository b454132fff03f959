package bot

import (
	"fmt"
	"strings"

	"github.com/simpleiot/budgetbot/data"
)

// button labels
const (
	btnLastEntries     = "Show Last 3 Entries 📜"
	btnAnalytics       = "Show analytics 📊"
	btnDeleteLast      = "Delete last row 🗑️"
	btnIncomeMenu      = "Income menu 💰"
	btnTwoMonths       = "Two months 📅"
	btnLastYear        = "Last year 🗓️"
	btnCategoryChart   = "Single category chart 📊"
	btnBack            = "Back 🔙"
	btnLastIncome      = "Show Last 3 Income Entries 📜"
	btnDeleteIncome    = "Delete last income row 🗑️"
	btnBackToMain      = "Back to Main 🔙"
	btnYes             = "Yes"
	btnNo              = "No"
	incomeButtonPrefix = "Income "
)

func currencyButtons(c data.Config, prefix string) []string {
	ret := make([]string, len(c.Currencies))
	for i, cur := range c.Currencies {
		ret[i] = prefix + cur.Label()
	}
	return ret
}

func mainKeyboard(c data.Config) [][]string {
	return [][]string{
		currencyButtons(c, ""),
		{btnLastEntries, btnAnalytics},
		{btnDeleteLast, btnIncomeMenu},
	}
}

func analyticsKeyboard() [][]string {
	return [][]string{
		{btnTwoMonths, btnLastYear},
		{btnCategoryChart},
		{btnBack},
	}
}

func incomeKeyboard(c data.Config) [][]string {
	return [][]string{
		currencyButtons(c, incomeButtonPrefix),
		{btnLastIncome},
		{btnDeleteIncome},
		{btnBackToMain},
	}
}

func confirmKeyboard() [][]string {
	return [][]string{{btnYes, btnNo}}
}

// gridKeyboard lays items out in rows of cols buttons
func gridKeyboard(items []string, cols int) [][]string {
	var ret [][]string
	for len(items) > 0 {
		n := cols
		if n > len(items) {
			n = len(items)
		}
		ret = append(ret, items[:n])
		items = items[n:]
	}
	return ret
}

// currencyButton returns the currency a main or income menu button selects
func currencyButton(c data.Config, text, prefix string) (data.Currency, bool) {
	for _, cur := range c.Currencies {
		if text == prefix+cur.Label() {
			return cur, true
		}
	}
	return data.Currency{}, false
}

func userName(m Message, fallback string) string {
	if m.Username != "" {
		return m.Username
	}
	return fallback
}

func formatExpense(e data.Entry) string {
	return fmt.Sprintf("📅 Date: %v\n💰 Value: %v\n📝 Description: %v\n🏷️ Category: %v\n"+
		"💳 Payment Type: %v\n📅 Year/Month: %v\n👤 User: %v",
		e.DateString(), e.ValueString(), e.Description, e.Category, e.Currency,
		e.YearMonth, e.User)
}

func formatIncome(e data.Entry) string {
	return fmt.Sprintf("📅 Date: %v\n💰 Amount: %v %v\n📝 Description: %v\n🏷️ Type: %v\n👤 User: %v",
		e.DateString(), e.ValueString(), e.Currency, e.Description, e.Category, e.User)
}

func isYes(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), btnYes)
}

func isNo(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), btnNo)
}

const helpText = "🤖 *Budget Bot Help*\n\n" +
	"Available commands:\n" +
	"• /start - Start the bot\n" +
	"• /help - Show this help message\n\n" +
	"Features:\n" +
	"• Add expenses in %v\n" +
	"• Categorize your expenses\n" +
	"• View last 3 entries\n" +
	"• View monthly analytics\n" +
	"• Delete last entry\n" +
	"• Record incomes from the income menu\n\n" +
	"Need more help? Contact the administrator."

func help(c data.Config) string {
	codes := c.CurrencyCodes()
	list := strings.Join(codes, " or ")
	if len(codes) > 2 {
		list = strings.Join(codes[:len(codes)-1], ", ") + " or " + codes[len(codes)-1]
	}
	return fmt.Sprintf(helpText, list)
}
