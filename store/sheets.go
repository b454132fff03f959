package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/simpleiot/budgetbot/data"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// ErrSheets wraps every failure reported by the Google APIs
var ErrSheets = errors.New("google sheets error")

// SheetsOptions describe which spreadsheet to use
type SheetsOptions struct {
	// service account key file
	CredsFile string
	// spreadsheet ID, takes precedence over Title
	ID string
	// spreadsheet title, looked up through Drive
	Title string
	// worksheet for expenses, defaults to the first worksheet
	ExpenseTab string
	// worksheet for incomes, created if missing
	IncomeTab string
	// extra client options, mostly used in tests
	ClientOptions []option.ClientOption
}

// Sheets is a ledger kept in a Google spreadsheet
type Sheets struct {
	srv *sheets.Service
	id  string

	tabs map[data.Kind]string
	gids map[string]int64

	// serializes check+delete so two deletes can't race on row numbers
	lock sync.Mutex
}

func sheetsErr(err error, format string, args ...any) error {
	return errors.Wrapf(fmt.Errorf("%w: %w", ErrSheets, err), format, args...)
}

// NewSheets connects to the spreadsheet described by o
func NewSheets(ctx context.Context, o SheetsOptions) (*Sheets, error) {
	opts := o.ClientOptions
	if o.CredsFile != "" {
		opts = append([]option.ClientOption{
			option.WithCredentialsFile(o.CredsFile),
			option.WithScopes(sheets.SpreadsheetsScope, drive.DriveReadonlyScope),
		}, opts...)
	}

	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, sheetsErr(err, "Error creating sheets client")
	}

	id := o.ID
	if id == "" {
		if o.Title == "" {
			return nil, errors.New("spreadsheet ID or title is required")
		}
		id, err = findSpreadsheet(ctx, o.Title, opts)
		if err != nil {
			return nil, err
		}
	}

	ret := &Sheets{
		srv:  srv,
		id:   id,
		tabs: make(map[data.Kind]string),
		gids: make(map[string]int64),
	}

	err = ret.initTabs(ctx, o.ExpenseTab, o.IncomeTab)
	if err != nil {
		return nil, err
	}

	return ret, nil
}

// findSpreadsheet looks up a spreadsheet ID by title the way gspread's
// open(title) does
func findSpreadsheet(ctx context.Context, title string, opts []option.ClientOption) (string, error) {
	d, err := drive.NewService(ctx, opts...)
	if err != nil {
		return "", sheetsErr(err, "Error creating drive client")
	}

	q := fmt.Sprintf("name = '%s' and mimeType = 'application/vnd.google-apps.spreadsheet' and trashed = false",
		strings.ReplaceAll(title, "'", `\'`))

	r, err := d.Files.List().Q(q).Fields("files(id, name)").PageSize(10).
		Context(ctx).Do()
	if err != nil {
		return "", sheetsErr(err, "Error searching for spreadsheet %q", title)
	}

	if len(r.Files) == 0 {
		return "", errors.Errorf("spreadsheet %q not found", title)
	}

	return r.Files[0].Id, nil
}

func (s *Sheets) initTabs(ctx context.Context, expenseTab, incomeTab string) error {
	ss, err := s.srv.Spreadsheets.Get(s.id).Fields("sheets(properties(sheetId,title))").
		Context(ctx).Do()
	if err != nil {
		return sheetsErr(err, "Error opening spreadsheet")
	}

	if len(ss.Sheets) == 0 {
		return errors.New("spreadsheet has no worksheets")
	}

	for _, sh := range ss.Sheets {
		s.gids[sh.Properties.Title] = sh.Properties.SheetId
	}

	if expenseTab == "" {
		expenseTab = ss.Sheets[0].Properties.Title
	}

	if _, ok := s.gids[expenseTab]; !ok {
		return errors.Errorf("worksheet %q not found", expenseTab)
	}
	s.tabs[data.KindExpense] = expenseTab

	if incomeTab == "" {
		incomeTab = "Income"
	}

	if _, ok := s.gids[incomeTab]; !ok {
		err := s.addTab(ctx, incomeTab)
		if err != nil {
			return err
		}
	}
	s.tabs[data.KindIncome] = incomeTab

	return nil
}

func (s *Sheets) addTab(ctx context.Context, title string) error {
	resp, err := s.srv.Spreadsheets.BatchUpdate(s.id, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: title},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return sheetsErr(err, "Error adding worksheet %q", title)
	}

	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil {
		s.gids[title] = resp.Replies[0].AddSheet.Properties.SheetId
	}

	header := make([]any, len(data.RowHeader))
	for i, h := range data.RowHeader {
		header[i] = h
	}

	_, err = s.srv.Spreadsheets.Values.Update(s.id, a1(title, "A1"), &sheets.ValueRange{
		Values: [][]any{header},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return sheetsErr(err, "Error writing header to %q", title)
	}

	return nil
}

func (s *Sheets) tab(kind data.Kind) (string, error) {
	t, ok := s.tabs[kind]
	if !ok {
		return "", errors.Errorf("no worksheet for %v", kind)
	}
	return t, nil
}

// rows returns all cells of a worksheet, row i is sheet row i+1
func (s *Sheets) rows(ctx context.Context, tab string) ([][]string, error) {
	vr, err := s.srv.Spreadsheets.Values.Get(s.id, a1(tab, "")).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return nil, sheetsErr(err, "Error reading %q", tab)
	}

	ret := make([][]string, len(vr.Values))
	for i, r := range vr.Values {
		ret[i] = make([]string, len(r))
		for j, c := range r {
			ret[i][j] = cellString(c)
		}
	}

	return ret, nil
}

// Entries returns all data rows of the worksheet for kind. Empty rows and
// the header are skipped.
func (s *Sheets) Entries(ctx context.Context, kind data.Kind) ([]data.Entry, error) {
	tab, err := s.tab(kind)
	if err != nil {
		return nil, err
	}

	rows, err := s.rows(ctx, tab)
	if err != nil {
		return nil, err
	}

	var ret []data.Entry
	for i, r := range rows {
		if emptyRow(r) || data.IsHeader(r) {
			continue
		}
		ret = append(ret, data.EntryFromRow(kind, i+1, r))
	}

	return ret, nil
}

// Append adds e after the last row of its worksheet
func (s *Sheets) Append(ctx context.Context, e data.Entry) (data.Entry, error) {
	tab, err := s.tab(e.Kind)
	if err != nil {
		return e, err
	}

	c := e.ToRow()
	row := []any{c[0], e.Value, c[2], c[3], c[4], c[5], c[6]}

	resp, err := s.srv.Spreadsheets.Values.Append(s.id, a1(tab, "A1"), &sheets.ValueRange{
		Values: [][]any{row},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return e, sheetsErr(err, "Error appending row to %q", tab)
	}

	if resp.Updates != nil {
		n, err := rangeRow(resp.Updates.UpdatedRange)
		if err == nil {
			e.Row = n
		}
	}

	return e, nil
}

// Delete removes the sheet row holding e
func (s *Sheets) Delete(ctx context.Context, e data.Entry) error {
	tab, err := s.tab(e.Kind)
	if err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	rows, err := s.rows(ctx, tab)
	if err != nil {
		return err
	}

	if e.Row < 1 || e.Row > len(rows) {
		return data.ErrEntryChanged
	}

	if !data.EntryFromRow(e.Kind, e.Row, rows[e.Row-1]).SameRow(e) {
		return data.ErrEntryChanged
	}

	gid := s.gids[tab]

	_, err = s.srv.Spreadsheets.BatchUpdate(s.id, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    gid,
					Dimension:  "ROWS",
					StartIndex: int64(e.Row - 1),
					EndIndex:   int64(e.Row),
					// gid and start index are often 0
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return sheetsErr(err, "Error deleting row %v of %q", e.Row, tab)
	}

	return nil
}

// Close is a no-op, the HTTP client has nothing to release
func (s *Sheets) Close() error {
	return nil
}

// a1 builds an A1 range for a worksheet, quoting the title
func a1(tab, cells string) string {
	r := "'" + strings.ReplaceAll(tab, "'", "''") + "'"
	if cells != "" {
		r += "!" + cells
	}
	return r
}

// rangeRow returns the first row number of an A1 range like 'Sheet1'!A5:G5
func rangeRow(r string) (int, error) {
	if i := strings.LastIndex(r, "!"); i >= 0 {
		r = r[i+1:]
	}
	if i := strings.Index(r, ":"); i >= 0 {
		r = r[:i]
	}
	r = strings.TrimLeft(r, "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz$")
	return strconv.Atoi(r)
}

func cellString(c any) string {
	switch v := c.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return data.FormatValue(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

func emptyRow(r []string) bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
