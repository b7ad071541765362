package database

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// edgeErrorBodyLimit はエラー時にログへ残すレスポンスの上限です。
const edgeErrorBodyLimit = 512

// EdgeFunctions はSupabase Edge Functionを <url>/functions/v1/<name> へのPOSTで呼び出します。
type EdgeFunctions struct {
	baseURL    string
	key        string
	httpClient *http.Client
}

// NewEdgeFunctions はEdgeFunctionsを作成します。key にはservice_roleキーを渡します。
func NewEdgeFunctions(supabaseURL, key string, timeout time.Duration) *EdgeFunctions {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &EdgeFunctions{
		baseURL:    strings.TrimRight(supabaseURL, "/") + "/functions/v1/",
		key:        key,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Invoke は payload をJSONで送り、レスポンスボディを返します。2xx以外はエラーです。
func (f *EdgeFunctions) Invoke(ctx context.Context, name string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("edge function %s: payloadのエンコードに失敗しました: %w", name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+url.PathEscape(name), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("edge function %s: リクエストの作成に失敗しました: %w", name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.key)
	req.Header.Set("apikey", f.key)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("edge function %s: %w", name, err)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("edge function %s: レスポンスの読み込みに失敗しました: %w", name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(out) > edgeErrorBodyLimit {
			out = out[:edgeErrorBodyLimit]
		}
		return nil, fmt.Errorf("edge function %s: status %d: %s", name, resp.StatusCode, out)
	}
	return out, nil
}
