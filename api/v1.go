package api

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/simpleiot/budgetbot/analytics"
	"github.com/simpleiot/budgetbot/data"
	"github.com/simpleiot/budgetbot/store"
)

const (
	defaultLimit = 10
	maxLimit     = 1000
)

// V1 handles v1 api requests
type V1 struct {
	ledger store.Ledger
	check  Authorizer
	now    func() time.Time
}

// NewV1Handler returns a handler for the v1 API
func NewV1Handler(ledger store.Ledger, check Authorizer, now func() time.Time) http.Handler {
	return &V1{ledger: ledger, check: check, now: now}
}

// Top level handler for v1 requests
func (h *V1) ServeHTTP(res http.ResponseWriter, req *http.Request) {
	if !h.check.Valid(req) {
		http.Error(res, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if req.Method != http.MethodGet {
		http.Error(res, "only GET allowed", http.StatusMethodNotAllowed)
		return
	}

	var head string
	head, req.URL.Path = ShiftPath(req.URL.Path)

	switch head {
	case "entries":
		h.entries(res, req)
	case "analytics":
		head, req.URL.Path = ShiftPath(req.URL.Path)
		switch head {
		case "monthly":
			h.monthly(res, req)
		case "twomonths":
			h.twoMonths(res, req)
		default:
			http.Error(res, "Not Found", http.StatusNotFound)
		}
	default:
		http.Error(res, "Not Found", http.StatusNotFound)
	}
}

func (h *V1) entries(res http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()

	kind := data.KindExpense
	if k := q.Get("kind"); k != "" {
		var err error
		kind, err = data.ParseKind(k)
		if err != nil {
			http.Error(res, err.Error(), http.StatusBadRequest)
			return
		}
	}

	limit := defaultLimit
	if l := q.Get("limit"); l != "" {
		var err error
		limit, err = strconv.Atoi(l)
		if err != nil || limit < 1 {
			http.Error(res, "limit must be a positive number", http.StatusBadRequest)
			return
		}
		if limit > maxLimit {
			limit = maxLimit
		}
	}

	entries, err := store.Last(req.Context(), h.ledger, kind, limit)
	if err != nil {
		log.Println("Error getting entries: ", err)
		http.Error(res, "Error getting entries", http.StatusInternalServerError)
		return
	}

	ret := make([]Entry, len(entries))
	for i, e := range entries {
		ret[i] = newEntry(e)
	}

	writeJSON(res, ret)
}

func (h *V1) expenses(res http.ResponseWriter, req *http.Request) ([]data.Entry, string, bool) {
	currency := strings.TrimSpace(req.URL.Query().Get("currency"))
	if currency == "" {
		http.Error(res, "currency is required", http.StatusBadRequest)
		return nil, "", false
	}

	entries, err := h.ledger.Entries(req.Context(), data.KindExpense)
	if err != nil {
		log.Println("Error getting expenses: ", err)
		http.Error(res, "Error getting expenses", http.StatusInternalServerError)
		return nil, "", false
	}

	return entries, strings.ToUpper(currency), true
}

func (h *V1) monthly(res http.ResponseWriter, req *http.Request) {
	entries, currency, ok := h.expenses(res, req)
	if !ok {
		return
	}

	pts := analytics.Monthly(entries, currency, req.URL.Query().Get("category"), h.now())
	if pts == nil {
		pts = []analytics.Point{}
	}

	writeJSON(res, pts)
}

func (h *V1) twoMonths(res http.ResponseWriter, req *http.Request) {
	entries, currency, ok := h.expenses(res, req)
	if !ok {
		return
	}

	r := analytics.TwoMonths(entries, currency, h.now())
	if r.Months == nil {
		r.Months = []analytics.MonthTable{}
	}

	writeJSON(res, r)
}
