package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
)

var (
	// ErrNotFound は対象のレコードが存在しないことを表します。
	ErrNotFound = errors.New("record not found")
	// ErrQuotaExceeded はAIクエリの上限に達していることを表します。
	ErrQuotaExceeded = errors.New("query quota exceeded")
	// ErrConflict は同時更新により更新できなかったことを表します。
	ErrConflict = errors.New("concurrent update")
)

// RestClient はPostgRESTのテーブルにアクセスするクライアントです。
// *supabase.Client と *postgrest.Client の両方が満たします。
type RestClient interface {
	From(table string) *postgrest.QueryBuilder
}

// NewSupabaseClient はSupabaseのクライアントを作成します。
// key にはサーバー側で使う service_role キーを渡します。
func NewSupabaseClient(url, key string) (*supabase.Client, error) {
	client, err := supabase.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("Supabaseクライアントの作成に失敗しました: %w", err)
	}
	return client, nil
}

// query は postgrest の呼び出しを別ゴルーチンで実行し、ctx のキャンセルやタイムアウトで打ち切ります。
// postgrest-go は context を受け取らないため、結果は呼び出し内のローカル変数に書き込みます。
func query[T any](ctx context.Context, fn func(dest *T) error) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		var v T
		err := fn(&v)
		ch <- result{v: v, err: err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func asc() *postgrest.OrderOpts {
	return &postgrest.OrderOpts{Ascending: true}
}

func desc() *postgrest.OrderOpts {
	return &postgrest.OrderOpts{Ascending: false}
}
