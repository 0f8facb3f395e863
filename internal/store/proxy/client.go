// Package proxy implements the store contract for execution contexts that
// cannot safely hold backend credentials. Every call is forwarded as an
// authenticated JSON request to a trusted intermediary, which executes the
// real backend call and returns the facade's declared result shape.
//
// The proxied path has no push channel and no server-side transaction
// primitive reachable from here, so subscriptions poll and transactions and
// batches use the record-then-apply emulation over individual proxied writes.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"docuport-backend-go/internal/store"
)

// Client satisfies store.Store over the proxy wire contract.
type Client struct {
	baseURL      string
	backendKind  string
	httpClient   *http.Client
	tokens       TokenProvider
	logger       *zap.Logger
	pollInterval time.Duration
}

// Config collects the explicit construction inputs for a proxied store.
type Config struct {
	// BaseURL of the trusted intermediary, without the /api suffix.
	BaseURL string
	// BackendKind names the backend the intermediary runs ("firestore",
	// "sqlite"); it becomes the {backendKind} path segment and the Kind of
	// cursors this client accepts.
	BackendKind string
	// Tokens may be nil; requests are then sent unauthenticated.
	Tokens TokenProvider
	// PollInterval bounds subscription staleness. Zero selects a default.
	PollInterval time.Duration
	// HTTPClient may be nil; http.DefaultClient semantics with a timeout
	// are used.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// NewClient builds a proxied store.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("proxy base URL is required")
	}
	if cfg.BackendKind == "" {
		return nil, fmt.Errorf("proxy backend kind is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		backendKind:  cfg.BackendKind,
		httpClient:   httpClient,
		tokens:       cfg.Tokens,
		logger:       logger,
		pollInterval: interval,
	}, nil
}

// Kind implements store.Store: cursors issued through the proxy belong to the
// backend behind it.
func (c *Client) Kind() string { return c.backendKind }

// IsConfigured implements store.Store.
func (c *Client) IsConfigured() bool { return c != nil && c.baseURL != "" }

// Close implements store.Store. The HTTP client holds no per-store state.
func (c *Client) Close() error { return nil }

// call posts one operation body and decodes the response into out. An empty
// success body is treated as {}, not an error.
func (c *Client) call(ctx context.Context, op string, in, out any) error {
	if !c.IsConfigured() {
		return store.ErrNotConfigured
	}
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", op, err)
	}
	url := fmt.Sprintf("%s/api/%s/%s", c.baseURL, c.backendKind, op)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.tokens != nil {
		token, err := c.tokens.IDToken(ctx, false)
		if err != nil {
			return fmt.Errorf("obtain id token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("proxy %s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", op, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return c.decodeError(op, resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

func (c *Client) decodeError(op string, status int, raw []byte) error {
	var er ErrorResponse
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &er) // fall through to the generic error below
	}
	switch er.Code {
	case CodeNotFound:
		return fmt.Errorf("proxy %s: %w", op, store.ErrNotFound)
	case CodeNotConfigured:
		return store.ErrNotConfigured
	case CodePermissionDenied, CodeUnauthenticated:
		return &store.PermissionError{Code: er.Code, Op: op, Err: fmt.Errorf("%s", er.Error)}
	}
	if er.Error != "" {
		return fmt.Errorf("proxy %s: %s (http %d)", op, er.Error, status)
	}
	return fmt.Errorf("proxy %s: http %d", op, status)
}

// Get implements store.Store.
func (c *Client) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	var resp GetResponse
	if err := c.call(ctx, OpGet, GetRequest{Collection: collection, ID: id}, &resp); err != nil {
		return nil, err
	}
	return resp.Document, nil
}

// Set implements store.Store.
func (c *Client) Set(ctx context.Context, collection, id string, fields map[string]any, merge bool) error {
	return c.call(ctx, OpSet, SetRequest{Collection: collection, ID: id, Fields: fields, Merge: merge}, nil)
}

// Update implements store.Store.
func (c *Client) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	return c.call(ctx, OpUpdate, UpdateRequest{Collection: collection, ID: id, Fields: fields}, nil)
}

// Delete implements store.Store.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	return c.call(ctx, OpDelete, DeleteRequest{Collection: collection, ID: id}, nil)
}

// Add implements store.Store.
func (c *Client) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	var resp AddResponse
	if err := c.call(ctx, OpAdd, AddRequest{Collection: collection, Fields: fields}, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// Query implements store.Store.
func (c *Client) Query(ctx context.Context, collection string, opts store.Options) (*store.Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	var resp QueryResponse
	if err := c.call(ctx, OpQuery, QueryRequest{Collection: collection, Options: opts}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RunTransaction implements store.Store with the record-then-apply emulation.
// Reads observe live state; writes queue during fn and are applied as
// individual proxied calls after it returns. A callback error applies
// nothing. A mid-apply backend failure can leave a prefix applied, since the
// proxied path has no engine transaction to roll back with; the error reports
// how far the apply got.
func (c *Client) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	tx := &proxyTx{ctx: ctx, client: c}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for i, apply := range tx.writes {
		if err := apply(); err != nil {
			return fmt.Errorf("transaction write %d (%d applied): %w", i, i, err)
		}
	}
	return nil
}

type proxyTx struct {
	ctx    context.Context
	client *Client
	writes []func() error
}

func (t *proxyTx) Get(collection, id string) (*store.Document, error) {
	return t.client.Get(t.ctx, collection, id)
}

func (t *proxyTx) Set(collection, id string, fields map[string]any, merge bool) error {
	t.writes = append(t.writes, func() error {
		return t.client.Set(t.ctx, collection, id, fields, merge)
	})
	return nil
}

func (t *proxyTx) Update(collection, id string, fields map[string]any) error {
	t.writes = append(t.writes, func() error {
		return t.client.Update(t.ctx, collection, id, fields)
	})
	return nil
}

func (t *proxyTx) Delete(collection, id string) error {
	t.writes = append(t.writes, func() error {
		return t.client.Delete(t.ctx, collection, id)
	})
	return nil
}

// proxyBatch applies operations sequentially in submission order; a mid-batch
// failure leaves earlier operations committed and Commit reports the applied
// prefix through *store.BatchError.
type proxyBatch struct {
	client *Client
	ops    []func(ctx context.Context) error
}

// Batch implements store.Store.
func (c *Client) Batch() store.Batch {
	return &proxyBatch{client: c}
}

func (b *proxyBatch) Set(collection, id string, fields map[string]any, merge bool) store.Batch {
	b.ops = append(b.ops, func(ctx context.Context) error {
		return b.client.Set(ctx, collection, id, fields, merge)
	})
	return b
}

func (b *proxyBatch) Update(collection, id string, fields map[string]any) store.Batch {
	b.ops = append(b.ops, func(ctx context.Context) error {
		return b.client.Update(ctx, collection, id, fields)
	})
	return b
}

func (b *proxyBatch) Delete(collection, id string) store.Batch {
	b.ops = append(b.ops, func(ctx context.Context) error {
		return b.client.Delete(ctx, collection, id)
	})
	return b
}

func (b *proxyBatch) Commit(ctx context.Context) error {
	for i, op := range b.ops {
		if err := op(ctx); err != nil {
			return &store.BatchError{Applied: i, FailedIndex: i, Err: err}
		}
	}
	return nil
}

// SubscribeToDocument implements store.Store by polling through the proxied
// read; see store.PollHandle for the delivery and unsubscribe guarantees.
func (c *Client) SubscribeToDocument(ctx context.Context, collection, id string,
	onNext func(*store.Document), onError func(error)) (store.Unsubscribe, error) {
	if !c.IsConfigured() {
		return nil, store.ErrNotConfigured
	}
	h := store.NewPollHandle(c.pollInterval, c.logger, func(ctx context.Context) (func(), error) {
		doc, err := c.Get(ctx, collection, id)
		if err != nil {
			return nil, err
		}
		return func() { onNext(doc) }, nil
	}, onError)
	h.Start(ctx)
	return h.Stop, nil
}

// SubscribeToQuery implements store.Store by polling the proxied query.
func (c *Client) SubscribeToQuery(ctx context.Context, collection string, opts store.Options,
	onNext func([]*store.Document), onError func(error)) (store.Unsubscribe, error) {
	if !c.IsConfigured() {
		return nil, store.ErrNotConfigured
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	h := store.NewPollHandle(c.pollInterval, c.logger, func(ctx context.Context) (func(), error) {
		res, err := c.Query(ctx, collection, opts)
		if err != nil {
			return nil, err
		}
		return func() { onNext(res.Items) }, nil
	}, onError)
	h.Start(ctx)
	return h.Stop, nil
}
