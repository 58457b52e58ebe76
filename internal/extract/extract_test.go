package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Svencol/data-modeling-pipeline/pkg/records"
)

func fixedNow() time.Time {
	return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
}

func writeTempCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestCSVExtractTypesAndStamp(t *testing.T) {
	path := writeTempCSV(t, "customers.csv",
		"customer_id,name,age,score,signup_date\n"+
			"1,Ada,36,9.5,2024-01-15\n"+
			"2,Grace,,8.25,\n")

	c := &CSV{Path: path, DateColumns: []string{"signup_date"}, Now: fixedNow}
	ds, err := c.Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	wantCols := []string{"customer_id", "name", "age", "score", "signup_date", records.MetaLoadedAt, records.MetaSource}
	if len(ds.Columns) != len(wantCols) {
		t.Fatalf("got %d columns %v; want %d", len(ds.Columns), ds.Columns, len(wantCols))
	}
	for i, c := range wantCols {
		if ds.Columns[i] != c {
			t.Fatalf("column[%d]=%q; want %q", i, ds.Columns[i], c)
		}
	}
	if ds.Len() != 2 {
		t.Fatalf("got %d rows; want 2", ds.Len())
	}

	r0 := ds.Rows[0]
	if got, ok := r0["customer_id"].(int64); !ok || got != 1 {
		t.Errorf("customer_id=%v (%T); want int64 1", r0["customer_id"], r0["customer_id"])
	}
	if got, ok := r0["score"].(float64); !ok || got != 9.5 {
		t.Errorf("score=%v (%T); want float64 9.5", r0["score"], r0["score"])
	}
	if got, ok := r0["signup_date"].(time.Time); !ok || !got.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("signup_date=%v; want 2024-01-15", r0["signup_date"])
	}
	if r0[records.MetaSource] != "customers" {
		t.Errorf("%s=%v; want customers", records.MetaSource, r0[records.MetaSource])
	}
	if got, ok := r0[records.MetaLoadedAt].(time.Time); !ok || !got.Equal(fixedNow()) {
		t.Errorf("%s=%v; want fixed timestamp", records.MetaLoadedAt, r0[records.MetaLoadedAt])
	}

	r1 := ds.Rows[1]
	if r1["age"] != nil {
		t.Errorf("empty cell age=%v; want nil", r1["age"])
	}
	if r1["signup_date"] != nil {
		t.Errorf("empty date cell=%v; want nil", r1["signup_date"])
	}
}

func TestCSVExtractShortRowPadding(t *testing.T) {
	path := writeTempCSV(t, "short.csv", "a,b,c\n1,2\n")
	c := &CSV{Path: path, Now: fixedNow}
	ds, err := c.Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if ds.Rows[0]["c"] != nil {
		t.Fatalf("missing trailing cell c=%v; want nil", ds.Rows[0]["c"])
	}
}

func TestCSVExtractMissingFile(t *testing.T) {
	c := &CSV{Path: filepath.Join(t.TempDir(), "nope.csv")}
	_, err := c.Extract(context.Background())
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	var xe *ExtractionError
	if !errors.As(err, &xe) {
		t.Fatalf("got %T; want *ExtractionError", err)
	}
	if xe.Source != "nope" {
		t.Fatalf("Source=%q; want nope", xe.Source)
	}
}

func TestCSVExtractUnparseableDateStaysString(t *testing.T) {
	path := writeTempCSV(t, "dates.csv", "d\nnot-a-date\n")
	c := &CSV{Path: path, DateColumns: []string{"d"}, Now: fixedNow}
	ds, err := c.Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if ds.Rows[0]["d"] != "not-a-date" {
		t.Fatalf("d=%v; want raw string preserved", ds.Rows[0]["d"])
	}
}

func TestAPIExtractPaginated(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, pass, ok := r.BasicAuth(); !ok || user != "svc" || pass == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/v1/orders":
			if got := r.URL.Query().Get("status"); got != "completed" {
				t.Errorf("first page query status=%q; want completed", got)
			}
			fmt.Fprintf(w, `{"results":[{"order_id":1,"total":10.5}],"next":%q}`, srv.URL+"/v1/orders/page2")
		case "/v1/orders/page2":
			fmt.Fprint(w, `{"results":[{"order_id":2,"tags":["a","b"]}],"next":null}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	a := &API{
		BaseURL:     srv.URL,
		Endpoint:    "/v1/orders",
		Params:      map[string][]string{"status": {"completed"}},
		Username:    "svc",
		Password:    "secret",
		DataKey:     "results",
		NextPageKey: "next",
		Now:         fixedNow,
	}
	ds, err := a.Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if ds.Len() != 2 {
		t.Fatalf("got %d rows; want 2", ds.Len())
	}

	// Sorted union of row keys plus provenance columns.
	wantCols := []string{"order_id", "tags", "total", records.MetaLoadedAt, records.MetaSource}
	if len(ds.Columns) != len(wantCols) {
		t.Fatalf("columns=%v; want %v", ds.Columns, wantCols)
	}
	for i, c := range wantCols {
		if ds.Columns[i] != c {
			t.Fatalf("column[%d]=%q; want %q", i, ds.Columns[i], c)
		}
	}

	if ds.Rows[0]["total"] != 10.5 {
		t.Errorf("total=%v; want 10.5", ds.Rows[0]["total"])
	}
	if ds.Rows[0]["tags"] != nil {
		t.Errorf("absent key tags=%v; want nil", ds.Rows[0]["tags"])
	}
	if got := ds.Rows[1]["tags"]; got != `["a","b"]` {
		t.Errorf("array value=%v; want compact JSON text", got)
	}
	if ds.Rows[1]["total"] != nil {
		t.Errorf("absent key total=%v; want nil", ds.Rows[1]["total"])
	}
	if ds.Rows[0][records.MetaSource] != "v1/orders" {
		t.Errorf("%s=%v; want v1/orders", records.MetaSource, ds.Rows[0][records.MetaSource])
	}
}

func TestAPIExtractBareArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id":1},{"id":2}]`)
	}))
	defer srv.Close()

	a := &API{BaseURL: srv.URL, Endpoint: "/items", Now: fixedNow}
	ds, err := a.Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if ds.Len() != 2 {
		t.Fatalf("got %d rows; want 2", ds.Len())
	}
}

func TestAPIExtractRetriesTransientFailures(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"data":[{"id":1}]}`)
	}))
	defer srv.Close()

	a := &API{
		BaseURL: srv.URL,
		DataKey: "data",
		Client:  HTTPConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
		Now:     fixedNow,
	}
	ds, err := a.Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if calls != 2 {
		t.Fatalf("server calls=%d; want 2", calls)
	}
	if ds.Len() != 1 {
		t.Fatalf("got %d rows; want 1", ds.Len())
	}
}

func TestAPIExtractMissingDataKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"rows":[]}`)
	}))
	defer srv.Close()

	a := &API{BaseURL: srv.URL, DataKey: "data", Source: "items"}
	_, err := a.Extract(context.Background())
	if err == nil {
		t.Fatal("expected error for missing data key")
	}
	var xe *ExtractionError
	if !errors.As(err, &xe) {
		t.Fatalf("got %T; want *ExtractionError", err)
	}
	if xe.Source != "items" {
		t.Fatalf("Source=%q; want items", xe.Source)
	}
}

func TestHTTPClientDefaults(t *testing.T) {
	c := newHTTPClient(HTTPConfig{})
	if c.maxRetries != 3 {
		t.Fatalf("maxRetries=%d; want default 3", c.maxRetries)
	}
	if c.inner.Timeout != 30*time.Second {
		t.Fatalf("timeout=%v; want default 30s", c.inner.Timeout)
	}
	if c := newHTTPClient(HTTPConfig{MaxRetries: -1}); c.maxRetries != 0 {
		t.Fatalf("maxRetries=%d; want retries disabled for negative config", c.maxRetries)
	}
}

func TestBackoffDuration(t *testing.T) {
	initial := 100 * time.Millisecond
	max := 500 * time.Millisecond
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 500 * time.Millisecond},
		{10, 500 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := backoffDuration(initial, tt.attempt, max); got != tt.want {
			t.Errorf("backoffDuration(attempt=%d)=%v; want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestDecodeValue(t *testing.T) {
	tests := []struct {
		raw  string
		want any
	}{
		{`"s"`, "s"},
		{`1.5`, 1.5},
		{`true`, true},
		{`null`, nil},
		{`{"a":1}`, `{"a":1}`},
	}
	for _, tt := range tests {
		if got := decodeValue(json.RawMessage(tt.raw)); got != tt.want {
			t.Errorf("decodeValue(%s)=%v; want %v", tt.raw, got, tt.want)
		}
	}
}

