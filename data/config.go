package data

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

// Currency is a currency the bot offers on its menus
type Currency struct {
	Code string `yaml:"code"`
	Flag string `yaml:"flag"`
}

// Label is the button text for the currency
func (c Currency) Label() string {
	if c.Flag == "" {
		return c.Code
	}
	return c.Code + " " + c.Flag
}

// Budget is a monthly spending limit for a category in one currency
type Budget struct {
	Category string  `yaml:"category"`
	Currency string  `yaml:"currency"`
	Limit    float64 `yaml:"limit"`
}

// Alerts describes who gets told when a budget is exceeded
type Alerts struct {
	SMS      []string `yaml:"sms"`
	Telegram bool     `yaml:"telegram"`
}

// Config is the domain configuration of the bot, usually loaded from
// budgetbot.yaml
type Config struct {
	Currencies      []Currency `yaml:"currencies"`
	Categories      []string   `yaml:"categories"`
	IncomeTypes     []string   `yaml:"incomeTypes"`
	AuthorizedUsers []int64    `yaml:"authorizedUsers"`
	Budgets         []Budget   `yaml:"budgets"`
	Alerts          Alerts     `yaml:"alerts"`
}

// DefaultConfig is used for anything the config file leaves out
func DefaultConfig() Config {
	return Config{
		Currencies: []Currency{
			{Code: "RUB", Flag: "🇷🇺"},
			{Code: "RSD", Flag: "🇷🇸"},
		},
		Categories:  []string{"Food", "Transport", "Home", "Health", "Fun", "Other"},
		IncomeTypes: []string{"Salary", "Freelance", "Gift", "Other"},
	}
}

// LoadConfig reads and validates a YAML config file
func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("Error reading config: %w", err)
	}

	return ParseConfig(b)
}

// ParseConfig parses and validates YAML config. Empty lists are filled from
// DefaultConfig.
func ParseConfig(b []byte) (Config, error) {
	var c Config
	err := yaml.UnmarshalWithOptions(b, &c, yaml.DisallowUnknownField())
	if err != nil {
		return Config{}, fmt.Errorf("Error parsing config: %w", err)
	}

	def := DefaultConfig()
	if len(c.Currencies) == 0 {
		c.Currencies = def.Currencies
	}
	if len(c.Categories) == 0 {
		c.Categories = def.Categories
	}
	if len(c.IncomeTypes) == 0 {
		c.IncomeTypes = def.IncomeTypes
	}

	return c, c.Validate()
}

// Validate checks the config for duplicates and bad budgets
func (c Config) Validate() error {
	var errs []error

	seen := map[string]bool{}
	for _, cur := range c.Currencies {
		code := strings.ToUpper(cur.Code)
		if code == "" {
			errs = append(errs, errors.New("currency with empty code"))
		}
		if seen[code] {
			errs = append(errs, fmt.Errorf("duplicate currency: %v", cur.Code))
		}
		seen[code] = true
	}

	if err := uniqueFold("category", c.Categories); err != nil {
		errs = append(errs, err)
	}

	if err := uniqueFold("income type", c.IncomeTypes); err != nil {
		errs = append(errs, err)
	}

	for _, b := range c.Budgets {
		if _, ok := c.Category(b.Category); !ok {
			errs = append(errs, fmt.Errorf("budget for unknown category: %v", b.Category))
		}
		if _, ok := c.Currency(b.Currency); !ok {
			errs = append(errs, fmt.Errorf("budget for unknown currency: %v", b.Currency))
		}
		if b.Limit <= 0 {
			errs = append(errs, fmt.Errorf("budget limit for %v must be positive", b.Category))
		}
	}

	return errors.Join(errs...)
}

// Currency looks up a currency by code, ignoring case
func (c Config) Currency(code string) (Currency, bool) {
	for _, cur := range c.Currencies {
		if strings.EqualFold(cur.Code, strings.TrimSpace(code)) {
			return cur, true
		}
	}
	return Currency{}, false
}

// CurrencyCodes returns the configured currency codes in menu order
func (c Config) CurrencyCodes() []string {
	ret := make([]string, len(c.Currencies))
	for i, cur := range c.Currencies {
		ret[i] = cur.Code
	}
	return ret
}

// Category returns the configured spelling of a category typed by the user
func (c Config) Category(text string) (string, bool) {
	return matchFold(c.Categories, text)
}

// IncomeType returns the configured spelling of an income type
func (c Config) IncomeType(text string) (string, bool) {
	return matchFold(c.IncomeTypes, text)
}

// Authorized returns true if the Telegram user may use the bot
func (c Config) Authorized(userID int64) bool {
	for _, id := range c.AuthorizedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// Budget returns the budget for a category/currency pair
func (c Config) Budget(category, currency string) (Budget, bool) {
	for _, b := range c.Budgets {
		if strings.EqualFold(b.Category, category) &&
			strings.EqualFold(b.Currency, currency) {
			return b, true
		}
	}
	return Budget{}, false
}

func matchFold(list []string, text string) (string, bool) {
	text = strings.TrimSpace(text)
	for _, v := range list {
		if strings.EqualFold(v, text) {
			return v, true
		}
	}
	return "", false
}

func uniqueFold(what string, list []string) error {
	seen := map[string]bool{}
	for _, v := range list {
		k := strings.ToLower(strings.TrimSpace(v))
		if k == "" {
			return fmt.Errorf("empty %v", what)
		}
		if seen[k] {
			return fmt.Errorf("duplicate %v: %v", what, v)
		}
		seen[k] = true
	}
	return nil
}
