package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/go-cmp/cmp"
	"github.com/simpleiot/budgetbot/analytics"
	"github.com/simpleiot/budgetbot/data"
	"github.com/simpleiot/budgetbot/store"
)

const testSecret = "sekret"

var testNow = time.Date(2024, time.May, 20, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, secret string) (*httptest.Server, store.Ledger) {
	l, err := store.NewSqlite(":memory:")
	if err != nil {
		t.Fatal("Error opening ledger: ", err)
	}
	t.Cleanup(func() { l.Close() })

	rows := [][]string{
		{"2024-04-10", "250", "rent", "Home", "RSD", "2024-04", "ana"},
		{"2024-05-01", "100", "bread", "Food", "RSD", "2024-05", "ana"},
		{"2024-05-02", "oops", "bad", "Food", "RSD", "2024-05", "ana"},
		{"2024-05-03", "300", "fish", "Food", "RSD", "2024-05", "bo"},
		{"2024-05-04", "50", "tea", "Food", "RUB", "2024-05", "bo"},
	}

	for _, r := range rows {
		_, err := l.Append(context.Background(), data.EntryFromRow(data.KindExpense, 0, r))
		if err != nil {
			t.Fatal("Error appending: ", err)
		}
	}

	s, err := NewServer(ServerArgs{
		Port:   "0",
		Ledger: l,
		Secret: secret,
		Now:    func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatal("Error creating server: ", err)
	}

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	return srv, l
}

func get(t *testing.T, srv *httptest.Server, path, token string, v any) int {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
	if err != nil {
		t.Fatal("Error creating request: ", err)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal("Error getting: ", err)
	}
	defer resp.Body.Close()

	if v != nil && resp.StatusCode == http.StatusOK {
		err := json.NewDecoder(resp.Body).Decode(v)
		if err != nil {
			t.Fatal("Error decoding response: ", err)
		}
	}

	return resp.StatusCode
}

func testToken(t *testing.T) string {
	key, err := NewKey(testSecret)
	if err != nil {
		t.Fatal("Error creating key: ", err)
	}

	token, err := key.NewToken("test", time.Hour)
	if err != nil {
		t.Fatal("Error creating token: ", err)
	}

	return token
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, "")

	var h map[string]string
	if code := get(t, srv, "/health", "", &h); code != http.StatusOK {
		t.Fatal("health returned: ", code)
	}

	if h["status"] != "ok" {
		t.Error("wrong health: ", h)
	}
}

func TestV1Disabled(t *testing.T) {
	srv, _ := newTestServer(t, "")

	if code := get(t, srv, "/v1/entries", testToken(t), nil); code != http.StatusNotFound {
		t.Error("expected 404 without a secret, got: ", code)
	}
}

func TestV1Auth(t *testing.T) {
	srv, _ := newTestServer(t, testSecret)

	other, err := NewKey("other")
	if err != nil {
		t.Fatal("Error creating key: ", err)
	}
	badToken, _ := other.NewToken("test", time.Hour)

	for _, tok := range []string{"", "garbage", badToken} {
		if code := get(t, srv, "/v1/entries", tok, nil); code != http.StatusUnauthorized {
			t.Errorf("token %q: expected 401, got %v", tok, code)
		}
	}
}

func TestV1Entries(t *testing.T) {
	srv, _ := newTestServer(t, testSecret)
	token := testToken(t)

	var entries []Entry
	if code := get(t, srv, "/v1/entries?limit=3", token, &entries); code != http.StatusOK {
		t.Fatal("entries returned: ", code)
	}

	if len(entries) != 3 {
		t.Fatal("expected 3 entries, got: ", len(entries))
	}

	if entries[0].Value != nil {
		t.Error("unparsable value should be null: ", *entries[0].Value)
	}

	if entries[2].Description != "tea" || entries[2].Value == nil || *entries[2].Value != 50 {
		t.Error("wrong last entry: ", entries[2])
	}

	if entries[1].Kind != "expense" || entries[1].Date != "2024-05-03" {
		t.Error("wrong entry: ", entries[1])
	}

	var incomes []Entry
	if code := get(t, srv, "/v1/entries?kind=income", token, &incomes); code != http.StatusOK {
		t.Fatal("income entries returned: ", code)
	}

	if len(incomes) != 0 {
		t.Error("expected no incomes: ", incomes)
	}

	for _, q := range []string{"?kind=loan", "?limit=0", "?limit=x"} {
		if code := get(t, srv, "/v1/entries"+q, token, nil); code != http.StatusBadRequest {
			t.Errorf("%v: expected 400, got %v", q, code)
		}
	}
}

func TestV1Monthly(t *testing.T) {
	srv, _ := newTestServer(t, testSecret)
	token := testToken(t)

	var pts []analytics.Point
	if code := get(t, srv, "/v1/analytics/monthly?currency=rsd", token, &pts); code != http.StatusOK {
		t.Fatal("monthly returned: ", code)
	}

	exp := []analytics.Point{{Month: "2024-04", Value: 250}, {Month: "2024-05", Value: 400}}
	if diff := cmp.Diff(exp, pts); diff != "" {
		t.Error("wrong points: ", diff)
	}

	if code := get(t, srv, "/v1/analytics/monthly?currency=RSD&category=Home", token, &pts); code != http.StatusOK {
		t.Fatal("monthly returned: ", code)
	}

	if len(pts) != 1 || pts[0].Value != 250 {
		t.Error("wrong category points: ", pts)
	}

	if code := get(t, srv, "/v1/analytics/monthly", token, nil); code != http.StatusBadRequest {
		t.Error("expected 400 without currency, got: ", code)
	}
}

func TestV1TwoMonths(t *testing.T) {
	srv, _ := newTestServer(t, testSecret)

	var r analytics.TwoMonthsReport
	code := get(t, srv, "/v1/analytics/twomonths?currency=RUB", testToken(t), &r)
	if code != http.StatusOK {
		t.Fatal("twomonths returned: ", code)
	}

	if len(r.Months) != 1 || r.Months[0].Total != 50 || r.Currency != "RUB" {
		t.Error("wrong report: ", r)
	}

	if code := get(t, srv, "/v1/analytics/nope?currency=RUB", testToken(t), nil); code != http.StatusNotFound {
		t.Error("expected 404, got: ", code)
	}
}

func TestShiftPath(t *testing.T) {
	tests := []struct{ in, head, tail string }{
		{"/v1/entries", "v1", "/entries"},
		{"/health", "health", "/"},
		{"/", "", "/"},
		{"v1/../x/y/", "x", "/y"},
	}

	for _, tc := range tests {
		h, tl := ShiftPath(tc.in)
		if h != tc.head || tl != tc.tail {
			t.Errorf("%v: got %v %v", tc.in, h, tl)
		}
	}
}

func TestKeyExpiry(t *testing.T) {
	key, _ := NewKey(testSecret)
	token, err := key.NewToken("test", 0)
	if err != nil {
		t.Fatal("Error creating token: ", err)
	}

	if !key.ValidToken(token) {
		t.Error("token without expiry should be valid")
	}

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal("Error signing token: ", err)
	}

	if key.ValidToken(expired) {
		t.Error("expired token accepted")
	}

	foreign, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer: "someone",
	}).SignedString([]byte(testSecret))

	if key.ValidToken(foreign) {
		t.Error("token from another issuer accepted")
	}

	if _, err := NewKey(""); err == nil {
		t.Error("expected error for empty secret")
	}
}

func TestHTTPLogger(t *testing.T) {
	var buf strings.Builder
	l := NewHTTPLogger("test: ")
	l.SetOutput(&buf)

	h := l.Handler(&App{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatal("health returned: ", rec.Code)
	}

	if !strings.Contains(buf.String(), `"GET /health" 200`) ||
		!strings.Contains(buf.String(), `{"status":"ok"}`) {
		t.Error("wrong log: ", buf.String())
	}
}
