package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/simpleiot/budgetbot/data"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const fakeSheetID = "sheet123"

type fakeTab struct {
	title string
	gid   int64
	rows  [][]any
}

// fakeSheets implements the subset of the Sheets v4 and Drive v3 REST APIs
// the ledger uses
type fakeSheets struct {
	lock    sync.Mutex
	tabs    []*fakeTab
	batches []string
	// number of spreadsheet metadata requests to fail
	failGet int
	gets    int
}

func newFakeSheets() *fakeSheets {
	return &fakeSheets{
		tabs: []*fakeTab{{title: "Sheet1", gid: 0, rows: [][]any{
			{"date", "value", "description", "category", "payment_type", "year_month", "user"},
			{"2024-05-01", 100.0, "bread", "Food", "RSD", "2024-05", "ana"},
			{"2024-05-02", 250.5, "bus", "Transport", "RSD", "2024-05", "ana"},
		}}},
	}
}

func (f *fakeSheets) tab(rng string) *fakeTab {
	if i := strings.LastIndex(rng, "!"); i >= 0 {
		rng = rng[:i]
	}
	rng = strings.TrimPrefix(strings.TrimSuffix(rng, "'"), "'")
	rng = strings.ReplaceAll(rng, "''", "'")
	for _, t := range f.tabs {
		if t.title == rng {
			return t
		}
	}
	return nil
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.lock.Lock()
	defer f.lock.Unlock()

	w.Header().Set("Content-Type", "application/json")

	if r.URL.Path == "/files" {
		json.NewEncoder(w).Encode(map[string]any{
			"files": []map[string]string{{"id": fakeSheetID, "name": "Budget"}},
		})
		return
	}

	prefix := "/v4/spreadsheets/" + fakeSheetID
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, prefix)

	switch {
	case rest == "" && r.Method == http.MethodGet:
		f.gets++
		if f.failGet > 0 {
			f.failGet--
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"error":{"code":400,"message":"unavailable"}}`)
			return
		}
		var sh []map[string]any
		for _, t := range f.tabs {
			sh = append(sh, map[string]any{
				"properties": map[string]any{"sheetId": t.gid, "title": t.title}})
		}
		json.NewEncoder(w).Encode(map[string]any{"sheets": sh})

	case rest == ":batchUpdate":
		b, _ := io.ReadAll(r.Body)
		f.batches = append(f.batches, string(b))
		var req sheets.BatchUpdateSpreadsheetRequest
		if err := json.Unmarshal(b, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var replies []map[string]any
		for _, rq := range req.Requests {
			reply := map[string]any{}
			if rq.AddSheet != nil {
				t := &fakeTab{title: rq.AddSheet.Properties.Title, gid: int64(100 + len(f.tabs))}
				f.tabs = append(f.tabs, t)
				reply["addSheet"] = map[string]any{
					"properties": map[string]any{"sheetId": t.gid, "title": t.title}}
			}
			if rq.DeleteDimension != nil {
				dr := rq.DeleteDimension.Range
				for _, t := range f.tabs {
					if t.gid == dr.SheetId {
						t.rows = append(t.rows[:dr.StartIndex], t.rows[dr.EndIndex:]...)
					}
				}
			}
			replies = append(replies, reply)
		}
		json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": fakeSheetID, "replies": replies})

	case strings.HasPrefix(rest, "/values/"):
		rng := strings.TrimPrefix(rest, "/values/")
		appendReq := strings.HasSuffix(rng, ":append")
		rng = strings.TrimSuffix(rng, ":append")
		t := f.tab(rng)
		if t == nil {
			http.Error(w, "no such tab: "+rng, http.StatusBadRequest)
			return
		}

		switch {
		case r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(map[string]any{"range": rng, "values": t.rows})
		case appendReq:
			var vr sheets.ValueRange
			json.NewDecoder(r.Body).Decode(&vr)
			t.rows = append(t.rows, vr.Values...)
			n := len(t.rows)
			json.NewEncoder(w).Encode(map[string]any{"updates": map[string]any{
				"updatedRange": fmt.Sprintf("'%v'!A%v:G%v", t.title, n, n)}})
		case r.Method == http.MethodPut:
			var vr sheets.ValueRange
			json.NewDecoder(r.Body).Decode(&vr)
			if len(t.rows) == 0 {
				t.rows = vr.Values
			}
			json.NewEncoder(w).Encode(map[string]any{})
		}

	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func newTestSheets(t *testing.T, o SheetsOptions) (*Sheets, *fakeSheets) {
	fake := newFakeSheets()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	o.ClientOptions = []option.ClientOption{
		option.WithEndpoint(srv.URL + "/"),
		option.WithHTTPClient(srv.Client()),
	}

	l, err := NewSheets(context.Background(), o)
	if err != nil {
		t.Fatal("Error opening sheets ledger: ", err)
	}

	return l, fake
}

func TestSheetsEntries(t *testing.T) {
	l, fake := newTestSheets(t, SheetsOptions{ID: fakeSheetID})

	entries, err := l.Entries(context.Background(), data.KindExpense)
	if err != nil {
		t.Fatal("Error getting entries: ", err)
	}

	if len(entries) != 2 {
		t.Fatal("expected 2 entries, got: ", len(entries))
	}

	if entries[0].Row != 2 || entries[0].Value != 100 || entries[1].Value != 250.5 {
		t.Errorf("wrong entries: %+v", entries)
	}

	// income tab is created with a header
	if len(fake.tabs) != 2 || fake.tabs[1].title != "Income" || len(fake.tabs[1].rows) != 1 {
		t.Fatal("income tab not created")
	}

	incomes, err := l.Entries(context.Background(), data.KindIncome)
	if err != nil {
		t.Fatal("Error getting incomes: ", err)
	}

	if len(incomes) != 0 {
		t.Error("expected no incomes, got: ", incomes)
	}
}

func TestSheetsAppendDelete(t *testing.T) {
	l, fake := newTestSheets(t, SheetsOptions{Title: "Budget"})
	ctx := context.Background()

	e := data.EntryFromRow(data.KindExpense, 0,
		[]string{"2024-05-03", "12.5", "coffee", "Fun", "RUB", "2024-05", "bo"})

	e, err := l.Append(ctx, e)
	if err != nil {
		t.Fatal("Error appending: ", err)
	}

	if e.Row != 4 {
		t.Fatal("expected row 4, got: ", e.Row)
	}

	if v, ok := fake.tabs[0].rows[3][1].(float64); !ok || v != 12.5 {
		t.Error("value not written as number: ", fake.tabs[0].rows[3])
	}

	stale := e
	stale.Description = "tea"
	if err := l.Delete(ctx, stale); !errors.Is(err, data.ErrEntryChanged) {
		t.Fatal("expected ErrEntryChanged, got: ", err)
	}

	if err := l.Delete(ctx, e); err != nil {
		t.Fatal("Error deleting: ", err)
	}

	last := fake.batches[len(fake.batches)-1]
	if !strings.Contains(last, `"sheetId":0`) {
		t.Error("gid 0 was not sent: ", last)
	}

	entries, err := l.Entries(ctx, data.KindExpense)
	if err != nil {
		t.Fatal("Error getting entries: ", err)
	}

	if len(entries) != 2 || entries[1].Description != "bus" {
		t.Error("wrong entries after delete: ", entries)
	}
}

func TestSheetsMissingTab(t *testing.T) {
	fake := newFakeSheets()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	_, err := NewSheets(context.Background(), SheetsOptions{
		ID:         fakeSheetID,
		ExpenseTab: "Nope",
		ClientOptions: []option.ClientOption{
			option.WithEndpoint(srv.URL + "/"),
			option.WithHTTPClient(srv.Client()),
		},
	})

	if err == nil {
		t.Fatal("expected error for missing worksheet")
	}
}

func TestSheetsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":500,"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewSheets(context.Background(), SheetsOptions{
		ID: fakeSheetID,
		ClientOptions: []option.ClientOption{
			option.WithEndpoint(srv.URL + "/"),
			option.WithHTTPClient(srv.Client()),
		},
	})

	if !errors.Is(err, ErrSheets) {
		t.Fatal("expected ErrSheets, got: ", err)
	}
}

func TestNewLedgerRetry(t *testing.T) {
	tests := []struct {
		failGet int
		errOK   bool
	}{
		{2, false},
		{3, true},
	}

	for _, test := range tests {
		fake := newFakeSheets()
		fake.failGet = test.failGet
		srv := httptest.NewServer(fake)

		l, err := NewLedger(context.Background(), Params{
			Type:       TypeSheets,
			MaxBackoff: time.Millisecond,
			Sheets: SheetsOptions{
				ID: fakeSheetID,
				ClientOptions: []option.ClientOption{
					option.WithEndpoint(srv.URL + "/"),
					option.WithHTTPClient(srv.Client()),
				},
			},
		})

		if test.errOK && err == nil {
			t.Errorf("%v failures: expected error", test.failGet)
		}

		if !test.errOK {
			if err != nil {
				t.Errorf("%v failures: Error opening ledger: %v", test.failGet, err)
			} else {
				l.Close()
			}
		}

		fake.lock.Lock()
		gets := fake.gets
		fake.lock.Unlock()

		if gets != 3 {
			t.Errorf("%v failures: expected 3 attempts, got %v", test.failGet, gets)
		}

		srv.Close()
	}
}

func TestRangeRow(t *testing.T) {
	tests := map[string]int{
		"'Sheet1'!A5:G5":   5,
		"Income!A12:G12":   12,
		"'it''s'!$A$3:G3":  3,
		"'a!b'!A7":         7,
	}

	for in, exp := range tests {
		n, err := rangeRow(in)
		if err != nil {
			t.Errorf("%v: %v", in, err)
		}
		if n != exp {
			t.Errorf("%v: expected %v, got %v", in, exp, n)
		}
	}
}
