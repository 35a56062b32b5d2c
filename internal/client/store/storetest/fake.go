// Package storetest provides a scriptable store.Client for hook tests.
package storetest

import (
	"context"
	"encoding/json"
	"sync"

	"alawein/internal/client/store"
)

type Call struct {
	Method         string
	Table          string
	Query          *store.Query
	Body           interface{}
	IdempotencyKey string
}

// Fake records every call and answers with Handler. The handler's result is
// JSON round-tripped into the caller's out value.
type Fake struct {
	mu      sync.Mutex
	calls   []Call
	Handler func(ctx context.Context, call Call) (interface{}, error)
}

func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *Fake) Select(ctx context.Context, table string, q *store.Query, out interface{}) error {
	return f.call(ctx, Call{Method: "select", Table: table, Query: q}, out)
}

func (f *Fake) Insert(ctx context.Context, table string, row interface{}, out interface{}) error {
	return f.call(ctx, Call{Method: "insert", Table: table, Body: row}, out)
}

func (f *Fake) Update(ctx context.Context, table string, q *store.Query, patch interface{}, out interface{}) error {
	return f.call(ctx, Call{Method: "update", Table: table, Query: q, Body: patch}, out)
}

func (f *Fake) Delete(ctx context.Context, table string, q *store.Query, out interface{}) error {
	return f.call(ctx, Call{Method: "delete", Table: table, Query: q}, out)
}

func (f *Fake) Invoke(ctx context.Context, function string, body interface{}, out interface{}) error {
	return f.call(ctx, Call{Method: "invoke", Table: function, Body: body}, out)
}

func (f *Fake) call(ctx context.Context, c Call, out interface{}) error {
	c.IdempotencyKey = store.IdempotencyKey(ctx)
	f.mu.Lock()
	f.calls = append(f.calls, c)
	handler := f.Handler
	f.mu.Unlock()

	if handler == nil {
		return nil
	}
	res, err := handler(ctx, c)
	if err != nil || out == nil || res == nil {
		return err
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
