// Package repo is the client for the remote per-tenant record store. It
// exposes the four record operations over the store's XRPC HTTP surface,
// a defensive paginated lister, and a WebSocket subscription to the
// store's commit event stream.
package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/buger/jsonparser"

	"github.com/wharfside/wharf/pkg/models"
)

// XRPC endpoint names for the record operations.
const (
	procGetRecord    = "com.atproto.repo.getRecord"
	procPutRecord    = "com.atproto.repo.putRecord"
	procListRecords  = "com.atproto.repo.listRecords"
	procDeleteRecord = "com.atproto.repo.deleteRecord"
)

// Error codes the store is known to return for absent records.
const (
	codeRecordNotFound = "RecordNotFound"
	codeCouldNotLocate = "CouldNotLocateRecord"
)

// Page is one page of a record listing.
type Page struct {
	Records []models.Record
	// Cursor is opaque; empty means the listing is complete.
	Cursor string
}

// Store is the record-store surface the engine depends on. *Client is the
// production implementation; tests run against the fake PDS through the
// same client.
type Store interface {
	// GetRecord fetches one record, returning (nil, nil) when absent.
	GetRecord(ctx context.Context, tenant, collection, rkey string) (*models.Record, error)
	// PutRecord overwrites one record in the session tenant's repo. There
	// is no tenant parameter: writes are structurally scoped to the
	// authenticated tenant.
	PutRecord(ctx context.Context, collection, rkey string, value models.Value) error
	// ListRecords fetches one page of a tenant's collection.
	ListRecords(ctx context.Context, tenant, collection string, limit int, cursor string) (*Page, error)
	// DeleteRecord removes one record from the session tenant's repo.
	DeleteRecord(ctx context.Context, collection, rkey string) error
}

// Client talks to the record store over HTTP.
type Client struct {
	// BaseURL is the store endpoint, e.g. "https://pds.example.com".
	BaseURL string
	// Session authenticates writes. Reads work unauthenticated.
	Session Session

	HTTP *http.Client
}

var _ Store = (*Client)(nil)

// NewClient creates a store client for the given endpoint.
func NewClient(baseURL string, session Session) *Client {
	return &Client{
		BaseURL: baseURL,
		Session: session,
		HTTP:    &http.Client{},
	}
}

// StoreError is a non-2xx response from the store, with the error code and
// message decoded from the XRPC error body when present.
type StoreError struct {
	Status  int
	Code    string
	Message string
}

func (e *StoreError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("store: %s: %s (http %d)", e.Code, e.Message, e.Status)
	}
	return fmt.Sprintf("store: http %d", e.Status)
}

// NotFound reports whether the error indicates an absent record rather
// than a store failure.
func (e *StoreError) NotFound() bool {
	return e.Status == http.StatusNotFound || e.Code == codeRecordNotFound || e.Code == codeCouldNotLocate
}

// recordEnvelope mirrors the store's getRecord/listRecords record shape.
type recordEnvelope struct {
	URI   string       `json:"uri"`
	Value models.Value `json:"value"`
}

type listRecordsResponse struct {
	Records []recordEnvelope `json:"records"`
	Cursor  string           `json:"cursor,omitempty"`
}

func (c *Client) GetRecord(ctx context.Context, tenant, collection, rkey string) (*models.Record, error) {
	q := url.Values{}
	q.Set("repo", tenant)
	q.Set("collection", collection)
	q.Set("rkey", rkey)

	body, err := c.query(ctx, procGetRecord, q)
	if err != nil {
		var se *StoreError
		if errors.As(err, &se) && se.NotFound() {
			return nil, nil
		}
		return nil, err
	}

	var env recordEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", procGetRecord, err)
	}
	return envelopeToRecord(env, tenant, collection, rkey), nil
}

func (c *Client) PutRecord(ctx context.Context, collection, rkey string, value models.Value) error {
	req := map[string]any{
		"repo":       c.Session.DID,
		"collection": collection,
		"rkey":       rkey,
		"record":     value,
	}
	_, err := c.procedure(ctx, procPutRecord, req)
	return err
}

func (c *Client) ListRecords(ctx context.Context, tenant, collection string, limit int, cursor string) (*Page, error) {
	q := url.Values{}
	q.Set("repo", tenant)
	q.Set("collection", collection)
	q.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	body, err := c.query(ctx, procListRecords, q)
	if err != nil {
		return nil, err
	}

	var resp listRecordsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", procListRecords, err)
	}

	page := &Page{Cursor: resp.Cursor}
	for _, env := range resp.Records {
		page.Records = append(page.Records, *envelopeToRecord(env, tenant, collection, ""))
	}
	return page, nil
}

func (c *Client) DeleteRecord(ctx context.Context, collection, rkey string) error {
	req := map[string]any{
		"repo":       c.Session.DID,
		"collection": collection,
		"rkey":       rkey,
	}
	_, err := c.procedure(ctx, procDeleteRecord, req)
	return err
}

// query performs a GET xrpc call.
func (c *Client) query(ctx context.Context, proc string, q url.Values) ([]byte, error) {
	u := fmt.Sprintf("%s/xrpc/%s?%s", c.BaseURL, proc, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

// procedure performs a POST xrpc call with a JSON body. Writes require an
// authenticated session.
func (c *Client) procedure(ctx context.Context, proc string, body any) ([]byte, error) {
	if !c.Session.Authenticated() {
		return nil, fmt.Errorf("%s requires an authenticated session", proc)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/xrpc/%s", c.BaseURL, proc)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.Session.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.Session.AccessToken)
	}
	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeStoreError(resp.StatusCode, data)
	}
	return data, nil
}

// decodeStoreError extracts the error code and message from an XRPC error
// body without assuming the body is well formed.
func decodeStoreError(status int, body []byte) *StoreError {
	se := &StoreError{Status: status}
	if code, err := jsonparser.GetString(body, "error"); err == nil {
		se.Code = code
	}
	if msg, err := jsonparser.GetString(body, "message"); err == nil {
		se.Message = msg
	}
	return se
}

// envelopeToRecord converts a wire record, falling back to the request
// coordinates when the store omits or mangles the uri field.
func envelopeToRecord(env recordEnvelope, tenant, collection, rkey string) *models.Record {
	uri, err := models.ParseAtURI(env.URI)
	if err != nil {
		uri = models.AtURI{DID: tenant, Collection: collection, RecordKey: rkey}
	}
	if env.Value == nil {
		env.Value = models.Value{}
	}
	return &models.Record{URI: uri, Value: env.Value}
}
