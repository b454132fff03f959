package data

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind is the ledger an entry belongs to
type Kind int

// define valid kinds
const (
	KindExpense Kind = iota
	KindIncome
)

func (k Kind) String() string {
	switch k {
	case KindExpense:
		return "expense"
	case KindIncome:
		return "income"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind converts the output of Kind.String back to a Kind
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "expense", "expenses", "":
		return KindExpense, nil
	case "income", "incomes":
		return KindIncome, nil
	}
	return 0, fmt.Errorf("unknown ledger kind: %v", s)
}

// MarshalText implements encoding.TextMarshaler
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// date formats used in the ledger
const (
	DateFormat      = "2006-01-02"
	YearMonthFormat = "2006-01"
)

// RowHeader is the optional first row of a ledger sheet
var RowHeader = []string{"date", "value", "description", "category", "payment_type", "year_month", "user"}

// NoUsername is stored when a Telegram user has no username
const NoUsername = "No username"

// Entry is a single expense or income. Category holds the income type for
// incomes.
type Entry struct {
	Kind        Kind      `json:"kind"`
	Row         int       `json:"row"`
	Date        time.Time `json:"date"`
	Value       float64   `json:"value"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Currency    string    `json:"currency"`
	YearMonth   string    `json:"yearMonth"`
	User        string    `json:"user"`
}

type entryAlias Entry

// entryJSON carries a NaN value as null
type entryJSON struct {
	entryAlias
	Value *float64 `json:"value"`
}

// MarshalJSON implements json.Marshaler. A value that could not be parsed
// from the ledger is encoded as null.
func (e Entry) MarshalJSON() ([]byte, error) {
	j := entryJSON{entryAlias: entryAlias(e)}
	if !math.IsNaN(e.Value) {
		v := e.Value
		j.Value = &v
	}
	return json.Marshal(j)
}

// UnmarshalJSON implements json.Unmarshaler, null decodes to NaN
func (e *Entry) UnmarshalJSON(b []byte) error {
	var j entryJSON
	err := json.Unmarshal(b, &j)
	if err != nil {
		return err
	}

	*e = Entry(j.entryAlias)
	e.Value = math.NaN()
	if j.Value != nil {
		e.Value = *j.Value
	}
	return nil
}

// NewEntry returns an entry dated t with the year/month filled in
func NewEntry(kind Kind, currency string, t time.Time) Entry {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return Entry{
		Kind:      kind,
		Date:      day,
		Currency:  currency,
		YearMonth: t.Format(YearMonthFormat),
	}
}

// DateString returns the date as stored in the ledger, or "" when the date is
// unknown.
func (e Entry) DateString() string {
	if e.Date.IsZero() {
		return ""
	}
	return e.Date.Format(DateFormat)
}

// ValueString formats the value without trailing zeros
func (e Entry) ValueString() string {
	return FormatValue(e.Value)
}

// Valid returns true if the entry can be used in analytics
func (e Entry) Valid() bool {
	return !e.Date.IsZero() && !math.IsNaN(e.Value)
}

// ToRow returns the ledger cells for the entry
func (e Entry) ToRow() []string {
	return []string{
		e.DateString(),
		e.ValueString(),
		e.Description,
		e.Category,
		e.Currency,
		e.YearMonth,
		e.User,
	}
}

// SameRow returns true if both entries would be written as the same cells.
// Kind and Row are not compared.
func (e Entry) SameRow(o Entry) bool {
	a, b := e.ToRow(), o.ToRow()
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// EntryFromRow decodes ledger cells. Decoding never fails: a bad date is
// left zero, a bad value becomes NaN and missing cells are empty.
func EntryFromRow(kind Kind, row int, cells []string) Entry {
	cell := func(i int) string {
		if i < len(cells) {
			return strings.TrimSpace(cells[i])
		}
		return ""
	}

	e := Entry{
		Kind:        kind,
		Row:         row,
		Description: cell(2),
		Category:    cell(3),
		Currency:    cell(4),
		YearMonth:   cell(5),
		User:        cell(6),
	}

	if d, err := time.Parse(DateFormat, cell(0)); err == nil {
		e.Date = d
	}

	v, err := parseNumber(cell(1))
	if err != nil {
		v = math.NaN()
	}
	e.Value = v

	return e
}

// IsHeader returns true if cells look like the ledger header row
func IsHeader(cells []string) bool {
	if len(cells) < 2 {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(cells[0]), RowHeader[0]) &&
		strings.EqualFold(strings.TrimSpace(cells[1]), RowHeader[1])
}

// FormatValue formats an amount the way it is stored
func FormatValue(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ",", ".")
	// ParseFloat also takes hex floats
	if strings.ContainsAny(s, "xX") {
		return 0, fmt.Errorf("not a decimal number: %v", s)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("not a finite number: %v", s)
	}
	return v, nil
}
