package api

import (
	"encoding/json"
	"io"
	"log"
	"math"
	"net/http"

	"github.com/simpleiot/budgetbot/data"
)

func encode(w io.Writer, v interface{}) error {
	return json.NewEncoder(w).Encode(v)
}

func writeJSON(res http.ResponseWriter, v interface{}) {
	res.Header().Set("Content-Type", "application/json")
	err := encode(res, v)
	if err != nil {
		log.Println("Error encoding response: ", err)
	}
}

// Entry is the API form of a ledger entry. Values that could not be parsed
// are null.
type Entry struct {
	Kind        string   `json:"kind"`
	Row         int      `json:"row"`
	Date        string   `json:"date"`
	Value       *float64 `json:"value"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Currency    string   `json:"currency"`
	YearMonth   string   `json:"yearMonth"`
	User        string   `json:"user"`
}

func newEntry(e data.Entry) Entry {
	ret := Entry{
		Kind:        e.Kind.String(),
		Row:         e.Row,
		Date:        e.DateString(),
		Description: e.Description,
		Category:    e.Category,
		Currency:    e.Currency,
		YearMonth:   e.YearMonth,
		User:        e.User,
	}
	if !math.IsNaN(e.Value) {
		v := e.Value
		ret.Value = &v
	}
	return ret
}
