package arango

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/loykin/migrado/internal/auth"
	"github.com/loykin/migrado/internal/common"
	"github.com/loykin/migrado/internal/httpc"
	"github.com/loykin/migrado/internal/retry"
	"github.com/loykin/migrado/internal/schema"
)

const (
	collectionTypeDocument = 2
	collectionTypeEdge     = 3
)

// Client is an ArangoDB HTTP client bound to one database.
type Client struct {
	cfg    Config
	auth   auth.Method
	http   *resty.Client
	retry  *retry.Config
	logger *common.Logger
}

// New returns a client for cfg. A nil method sends no credentials.
func New(cfg Config, method auth.Method) *Client {
	if method == nil {
		method = auth.None()
	}
	h := httpc.Httpc{Insecure: cfg.Insecure, Timeout: cfg.Timeout}
	c := h.New().
		SetBaseURL(cfg.Endpoint()).
		SetHeader("Accept", "application/json")
	return &Client{
		cfg:    cfg,
		auth:   method,
		http:   c,
		retry:  retry.DefaultRetryConfig(),
		logger: common.GetLogger().WithComponent("arango"),
	}
}

// SetRetry replaces the retry policy for idempotent reads. nil disables
// retries.
func (c *Client) SetRetry(rc *retry.Config) {
	c.retry = rc
}

func (c *Client) Config() Config { return c.cfg }

func (c *Client) dbPath(format string, args ...any) string {
	return "/_db/" + url.PathEscape(c.cfg.Database) + fmt.Sprintf(format, args...)
}

func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	r := c.http.R().SetContext(ctx)
	header, err := c.auth.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire credentials: %w", err)
	}
	if header != "" {
		r.SetHeader("Authorization", header)
	}
	return r, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*resty.Response, error) {
	r, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	if body != nil {
		r.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	c.logger.WithRequest(method, path).Debug("arangodb request")
	resp, err := r.Execute(method, path)
	if err != nil {
		return nil, err
	}
	return resp, checkResponse(resp)
}

// get retries transport failures; error responses are returned as they are.
func (c *Client) get(ctx context.Context, path string) (*resty.Response, error) {
	if c.retry == nil {
		return c.do(ctx, resty.MethodGet, path, nil)
	}
	var apiErr error
	resp, err := retry.WithRetryValue(ctx, c.retry, func() (*resty.Response, error) {
		resp, err := c.do(ctx, resty.MethodGet, path, nil)
		if resp != nil && err != nil {
			apiErr = err
			return resp, nil
		}
		apiErr = nil
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	return resp, apiErr
}

// Version returns the server version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	resp, err := c.get(ctx, "/_api/version")
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(resp.Body(), "version").String(), nil
}

// TransactionOptions tune a JavaScript transaction. Zero sizes are left to
// the server.
type TransactionOptions struct {
	MaxTransactionSize      int64
	IntermediateCommitSize  int64
	IntermediateCommitCount int64
	WaitForSync             bool
}

// ExecuteTransaction runs action, a JavaScript function source, as a
// server-side transaction with write access to the given collections.
func (c *Client) ExecuteTransaction(ctx context.Context, action string, write []string, opts TransactionOptions) (json.RawMessage, error) {
	if write == nil {
		write = []string{}
	}
	payload := map[string]any{
		"collections":   map[string]any{"write": write},
		"action":        action,
		"waitForSync":   opts.WaitForSync,
		"allowImplicit": true,
	}
	if opts.MaxTransactionSize > 0 {
		payload["maxTransactionSize"] = opts.MaxTransactionSize
	}
	if opts.IntermediateCommitSize > 0 {
		payload["intermediateCommitSize"] = opts.IntermediateCommitSize
	}
	if opts.IntermediateCommitCount > 0 {
		payload["intermediateCommitCount"] = opts.IntermediateCommitCount
	}
	resp, err := c.do(ctx, resty.MethodPost, c.dbPath("/_api/transaction"), payload)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(gjson.GetBytes(resp.Body(), "result").Raw), nil
}

// Collections lists every collection of the database. With withRules each
// collection's validation rule is fetched as well.
func (c *Client) Collections(ctx context.Context, withRules bool) ([]schema.CollectionInfo, error) {
	resp, err := c.get(ctx, c.dbPath("/_api/collection?excludeSystem=false"))
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	var out []schema.CollectionInfo
	for _, r := range gjson.GetBytes(resp.Body(), "result").Array() {
		info := schema.CollectionInfo{
			Name:   r.Get("name").String(),
			Edge:   r.Get("type").Int() == collectionTypeEdge,
			System: r.Get("isSystem").Bool() || strings.HasPrefix(r.Get("name").String(), "_"),
		}
		if withRules && !info.System {
			rule, err := c.Rule(ctx, info.Name)
			if err != nil {
				return nil, err
			}
			info.Rule = rule
		}
		out = append(out, info)
	}
	return out, nil
}

// Rule returns the validation rule of a collection, nil when it has none.
func (c *Client) Rule(ctx context.Context, name string) (schema.Rule, error) {
	resp, err := c.get(ctx, c.dbPath("/_api/collection/%s/properties", url.PathEscape(name)))
	if err != nil {
		return nil, fmt.Errorf("properties of %s: %w", name, err)
	}
	rule := gjson.GetBytes(resp.Body(), "schema.rule")
	if !rule.IsObject() {
		return nil, nil
	}
	var r schema.Rule
	if err := json.Unmarshal([]byte(rule.Raw), &r); err != nil {
		return nil, fmt.Errorf("decode rule of %s: %w", name, err)
	}
	return r, nil
}

// HasCollection reports whether the named collection exists.
func (c *Client) HasCollection(ctx context.Context, name string) (bool, error) {
	_, err := c.get(ctx, c.dbPath("/_api/collection/%s", url.PathEscape(name)))
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CreateCollection creates a document or edge collection.
func (c *Client) CreateCollection(ctx context.Context, name string, edge bool) error {
	typ := collectionTypeDocument
	if edge {
		typ = collectionTypeEdge
	}
	_, err := c.do(ctx, resty.MethodPost, c.dbPath("/_api/collection"), map[string]any{"name": name, "type": typ})
	return err
}

// EnsureCollection creates the named document collection unless it exists.
func (c *Client) EnsureCollection(ctx context.Context, name string) error {
	ok, err := c.HasCollection(ctx, name)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if err := c.CreateCollection(ctx, name, false); err != nil && !IsDuplicate(err) {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	c.logger.Info("created collection", "collection", name)
	return nil
}

// ReadDocument fetches a document by key. found is false when the
// collection or the document does not exist.
func (c *Client) ReadDocument(ctx context.Context, collection, key string) ([]byte, bool, error) {
	resp, err := c.get(ctx, c.dbPath("/_api/document/%s/%s", url.PathEscape(collection), url.PathEscape(key)))
	if err != nil {
		if IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return resp.Body(), true, nil
}

// ReplaceDocument inserts doc, replacing any document with the same _key.
func (c *Client) ReplaceDocument(ctx context.Context, collection string, doc any) error {
	path := c.dbPath("/_api/document/%s?overwriteMode=replace&silent=true", url.PathEscape(collection))
	_, err := c.do(ctx, resty.MethodPost, path, doc)
	return err
}
