package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
)

const (
	defaultRequestTimeout = 15 * time.Second
	// accountTxPageSize bounds one page of history per request.
	accountTxPageSize = 200
)

// Client speaks the ledger's websocket JSON-RPC dialect. Each request dials,
// exchanges one command, and closes; the reconciler polls slowly enough that
// holding a connection open buys nothing.
type Client struct {
	endpoint string
	limiter  *rate.Limiter
	timeout  time.Duration
	nextID   atomic.Uint64
}

// ClientOption customises the client instance.
type ClientOption func(*Client)

// WithRequestTimeout bounds each websocket exchange.
func WithRequestTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.timeout = timeout }
}

// WithRateLimit throttles outbound requests to the query service.
func WithRateLimit(limit rate.Limit, burst int) ClientOption {
	return func(c *Client) { c.limiter = rate.NewLimiter(limit, burst) }
}

// NewClient constructs a client for the supplied websocket endpoint.
func NewClient(endpoint string, opts ...ClientOption) (*Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("ledger: endpoint required")
	}
	client := &Client{
		endpoint: trimmed,
		limiter:  rate.NewLimiter(rate.Limit(5), 5),
		timeout:  defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type request struct {
	ID      uint64 `json:"id"`
	Command string `json:"command"`

	Account        string          `json:"account,omitempty"`
	LedgerIndexMin int64           `json:"ledger_index_min,omitempty"`
	LedgerIndexMax int64           `json:"ledger_index_max,omitempty"`
	Forward        bool            `json:"forward,omitempty"`
	Limit          int             `json:"limit,omitempty"`
	Marker         json.RawMessage `json:"marker,omitempty"`

	TxBlob string `json:"tx_blob,omitempty"`
}

type response struct {
	ID           uint64          `json:"id"`
	Status       string          `json:"status"`
	Result       json.RawMessage `json:"result"`
	ErrorMessage string          `json:"error_message"`
	ErrorCode    string          `json:"error"`
}

type accountTxResult struct {
	Transactions []accountTxEntry `json:"transactions"`
	Marker       json.RawMessage  `json:"marker"`
}

type accountTxEntry struct {
	Validated bool     `json:"validated"`
	Tx        wireTx   `json:"tx"`
	Meta      wireMeta `json:"meta"`
}

type wireTx struct {
	TransactionType  string   `json:"TransactionType"`
	Account          string   `json:"Account"`
	Destination      string   `json:"Destination"`
	Hash             string   `json:"hash"`
	LedgerIndex      uint64   `json:"ledger_index"`
	NFTokenSellOffer string   `json:"NFTokenSellOffer"`
	NFTokenOffers    []string `json:"NFTokenOffers"`
}

type wireMeta struct {
	TransactionResult string         `json:"TransactionResult"`
	DeliveredAmount   Amount         `json:"delivered_amount"`
	AffectedNodes     []wireAffected `json:"AffectedNodes"`
}

type wireAffected struct {
	CreatedNode *wireCreatedNode `json:"CreatedNode"`
}

type wireCreatedNode struct {
	LedgerEntryType string         `json:"LedgerEntryType"`
	LedgerIndex     string         `json:"LedgerIndex"`
	NewFields       map[string]any `json:"NewFields"`
}

// AccountTx replays the validated transaction history of an account forward
// from minLedger. The upper bound is left open (-1) so each pass observes
// everything validated since the watermark. Pages are followed via the
// server-issued marker.
func (c *Client) AccountTx(ctx context.Context, account string, minLedger int64) ([]Tx, error) {
	if strings.TrimSpace(account) == "" {
		return nil, fmt.Errorf("ledger: account required")
	}
	var (
		out    []Tx
		marker json.RawMessage
	)
	for {
		req := request{
			ID:             c.nextID.Add(1),
			Command:        "account_tx",
			Account:        account,
			LedgerIndexMin: minLedger,
			LedgerIndexMax: -1,
			Forward:        true,
			Limit:          accountTxPageSize,
			Marker:         marker,
		}
		raw, err := c.exchange(ctx, req)
		if err != nil {
			return nil, err
		}
		var page accountTxResult
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, fmt.Errorf("ledger: decode account_tx result: %w", err)
		}
		for _, entry := range page.Transactions {
			if !entry.Validated {
				continue
			}
			out = append(out, entry.toTx())
		}
		if len(page.Marker) == 0 || string(page.Marker) == "null" {
			return out, nil
		}
		marker = page.Marker
	}
}

func (e accountTxEntry) toTx() Tx {
	tx := Tx{
		Kind:            ParseKind(e.Tx.TransactionType),
		Account:         e.Tx.Account,
		Destination:     e.Tx.Destination,
		Hash:            e.Tx.Hash,
		LedgerIndex:     e.Tx.LedgerIndex,
		EngineResult:    e.Meta.TransactionResult,
		DeliveredAmount: e.Meta.DeliveredAmount,
		OfferIndex:      e.Tx.NFTokenSellOffer,
	}
	if tx.OfferIndex == "" && len(e.Tx.NFTokenOffers) > 0 {
		tx.OfferIndex = e.Tx.NFTokenOffers[0]
	}
	for _, node := range e.Meta.AffectedNodes {
		if node.CreatedNode == nil {
			continue
		}
		tx.CreatedNodes = append(tx.CreatedNodes, CreatedNode{
			LedgerEntryType: node.CreatedNode.LedgerEntryType,
			LedgerIndex:     node.CreatedNode.LedgerIndex,
			NewFields:       node.CreatedNode.NewFields,
		})
	}
	return tx
}

// SubmitResult reports the provisional outcome of a submitted transaction.
type SubmitResult struct {
	Hash         string `json:"hash"`
	EngineResult string `json:"engineResult"`
	Message      string `json:"message"`
}

// Accepted reports whether the submission was provisionally applied.
func (r SubmitResult) Accepted() bool {
	return r.EngineResult == EngineResultSuccess
}

type submitResult struct {
	EngineResult        string `json:"engine_result"`
	EngineResultMessage string `json:"engine_result_message"`
	TxJSON              struct {
		Hash string `json:"hash"`
	} `json:"tx_json"`
}

// Submit forwards a pre-signed transaction blob. Signing happens outside
// this process; the client never sees key material.
func (c *Client) Submit(ctx context.Context, txBlob string) (SubmitResult, error) {
	if strings.TrimSpace(txBlob) == "" {
		return SubmitResult{}, fmt.Errorf("ledger: tx blob required")
	}
	raw, err := c.exchange(ctx, request{
		ID:      c.nextID.Add(1),
		Command: "submit",
		TxBlob:  txBlob,
	})
	if err != nil {
		return SubmitResult{}, err
	}
	var parsed submitResult
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return SubmitResult{}, fmt.Errorf("ledger: decode submit result: %w", err)
	}
	return SubmitResult{
		Hash:         parsed.TxJSON.Hash,
		EngineResult: parsed.EngineResult,
		Message:      parsed.EngineResultMessage,
	}, nil
}

func (c *Client) exchange(ctx context.Context, req request) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("ledger: dial %s: %w", c.endpoint, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "request complete")

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("ledger: encode request: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return nil, fmt.Errorf("ledger: write request: %w", err)
	}
	_, data, err := conn.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: read response: %w", err)
	}
	var resp response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("ledger: decode response: %w", err)
	}
	if resp.Status != "success" {
		msg := resp.ErrorMessage
		if msg == "" {
			msg = resp.ErrorCode
		}
		return nil, fmt.Errorf("ledger: %s failed: %s", req.Command, msg)
	}
	return resp.Result, nil
}
