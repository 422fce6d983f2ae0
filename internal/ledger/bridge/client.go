// Package bridge implements the ledger port against the HTTP signing bridge.
//
// The bridge sits in front of the contract: it forwards appends to the wallet
// for signature, broadcasts signed transactions, and exposes read endpoints
// over the contract's list ABI.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Coritp27/sysga-sub001/internal/ledger"
	"github.com/Coritp27/sysga-sub001/pkg/platform/sentinel"
)

const defaultPollInterval = 2 * time.Second

// Client talks JSON over HTTP to the signing bridge.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithPollInterval overrides how often WaitConfirmed polls the bridge.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// New builds a bridge client rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:      baseURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type appendRequest struct {
	CardNumber   string `json:"card_number"`
	IssuedOn     int64  `json:"issued_on"`
	Status       string `json:"status"`
	Organization string `json:"organization"`
}

type appendResponse struct {
	TxHash string `json:"tx_hash"`
}

// Append submits the card fields for signing. The bridge returns 202 with a
// transaction hash once the wallet has signed and the transaction is
// broadcast; 403 when the wallet holder declined.
func (c *Client) Append(ctx context.Context, cardNumber string, issuedOn int64, status string, orgAddress string) (ledger.PendingTx, error) {
	body, err := json.Marshal(appendRequest{
		CardNumber:   cardNumber,
		IssuedOn:     issuedOn,
		Status:       status,
		Organization: orgAddress,
	})
	if err != nil {
		return ledger.PendingTx{}, fmt.Errorf("encode append request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transactions", bytes.NewReader(body))
	if err != nil {
		return ledger.PendingTx{}, fmt.Errorf("build append request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ledger.PendingTx{}, fmt.Errorf("submit append: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusAccepted, http.StatusOK:
	case http.StatusForbidden:
		return ledger.PendingTx{}, ledger.ErrRejected
	case http.StatusUnprocessableEntity:
		return ledger.PendingTx{}, ledger.ErrReverted
	default:
		return ledger.PendingTx{}, fmt.Errorf("submit append: %w: bridge returned %d", sentinel.ErrUnavailable, resp.StatusCode)
	}

	var out appendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ledger.PendingTx{}, fmt.Errorf("decode append response: %w", err)
	}
	if out.TxHash == "" {
		return ledger.PendingTx{}, fmt.Errorf("bridge returned empty tx hash")
	}
	return ledger.PendingTx{Hash: out.TxHash}, nil
}

type txStatusResponse struct {
	Status   string `json:"status"`
	LedgerID int64  `json:"ledger_id"`
}

// WaitConfirmed polls the bridge until the transaction is confirmed, the
// transaction reverts, or ctx expires. The caller owns the deadline; a
// context error here is the "ledger timeout" signal and must leave no
// registry trace behind.
func (c *Client) WaitConfirmed(ctx context.Context, tx ledger.PendingTx) (ledger.Confirmation, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		status, err := c.txStatus(ctx, tx.Hash)
		if err != nil {
			return ledger.Confirmation{}, err
		}

		switch status.Status {
		case "confirmed":
			return ledger.Confirmation{LedgerID: status.LedgerID, TxHash: tx.Hash}, nil
		case "reverted":
			return ledger.Confirmation{}, ledger.ErrReverted
		}

		select {
		case <-ctx.Done():
			return ledger.Confirmation{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) txStatus(ctx context.Context, hash string) (txStatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/transactions/"+url.PathEscape(hash), nil)
	if err != nil {
		return txStatusResponse{}, fmt.Errorf("build status request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return txStatusResponse{}, ctx.Err()
		}
		return txStatusResponse{}, fmt.Errorf("poll transaction: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return txStatusResponse{}, fmt.Errorf("poll transaction: %w: bridge returned %d", sentinel.ErrUnavailable, resp.StatusCode)
	}

	var out txStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return txStatusResponse{}, fmt.Errorf("decode status response: %w", err)
	}
	return out, nil
}

type listEntry struct {
	ID           int64  `json:"id"`
	CardNumber   string `json:"card_number"`
	IssuedOn     int64  `json:"issued_on"`
	Status       string `json:"status"`
	Organization string `json:"organization"`
}

// List fetches every entry for the organization address via the contract's
// read ABI. Point-in-time read; no retries.
func (c *Client) List(ctx context.Context, orgAddress string) ([]ledger.Entry, error) {
	u := c.baseURL + "/cards?organization=" + url.QueryEscape(orgAddress)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build list request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list ledger entries: %w: bridge returned %d", sentinel.ErrUnavailable, resp.StatusCode)
	}

	var rows []listEntry
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode list response: %w", err)
	}

	entries := make([]ledger.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, ledger.Entry{
			ID:           row.ID,
			CardNumber:   row.CardNumber,
			IssuedOn:     row.IssuedOn,
			Status:       row.Status,
			Organization: row.Organization,
		})
	}
	return entries, nil
}
