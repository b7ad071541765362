package database

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/supabase-community/postgrest-go"
)

// recordedRequest はテスト用PostgRESTサーバーが受け取ったリクエストです。
type recordedRequest struct {
	Method string
	Table  string
	Query  url.Values
	Body   string
	Prefer string
}

// fakePostgrest はテーブルごとに固定のJSONを返すPostgRESTの代役です。
type fakePostgrest struct {
	t         *testing.T
	mu        sync.Mutex
	responses map[string][]string
	status    int
	requests  []recordedRequest
}

func newFakePostgrest(t *testing.T) (*fakePostgrest, *postgrest.Client) {
	t.Helper()
	f := &fakePostgrest{t: t, responses: map[string][]string{}, status: http.StatusOK}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, postgrest.NewClient(srv.URL, "", nil)
}

// respond は table への次のリクエストで返すレスポンスを積みます。
func (f *fakePostgrest) respond(table string, v interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := json.Marshal(v)
	if err != nil {
		f.t.Fatalf("marshal: %v", err)
	}
	f.responses[table] = append(f.responses[table], string(b))
}

func (f *fakePostgrest) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	table := strings.TrimPrefix(r.URL.Path, "/")

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Method: r.Method,
		Table:  table,
		Query:  r.URL.Query(),
		Body:   string(body),
		Prefer: r.Header.Get("Prefer"),
	})
	resp := "[]"
	if queue := f.responses[table]; len(queue) > 0 {
		resp = queue[0]
		f.responses[table] = queue[1:]
	}
	status := f.status
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if status >= 400 {
		_, _ = w.Write([]byte(`{"code":"PGRST000","message":"boom"}`))
		return
	}
	_, _ = w.Write([]byte(resp))
}

func (f *fakePostgrest) requestsTo(table string) []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedRequest
	for _, r := range f.requests {
		if r.Table == table {
			out = append(out, r)
		}
	}
	return out
}
