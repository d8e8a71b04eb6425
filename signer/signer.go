// Package signer bridges to the external signing collaborator. Key custody
// never enters this process: the service posts an offer description and gets
// back a signed transaction blob ready for submission.
package signer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"nftdrop/reconcile"
)

// Remote signs offer-create transactions via an HTTP signing service.
type Remote struct {
	endpoint string
	client   *http.Client
}

// NewRemote constructs a remote signer for the supplied endpoint.
func NewRemote(endpoint string, timeout time.Duration) (*Remote, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("signer: endpoint required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Remote{
		endpoint: trimmed,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

type signRequest struct {
	TokenID     string `json:"tokenId"`
	Destination string `json:"destination,omitempty"`
	Free        bool   `json:"free"`

	CurrencyType string `json:"currencyType"`
	CurrencyCode string `json:"currencyCode,omitempty"`
	Issuer       string `json:"issuer,omitempty"`
	Amount       string `json:"amount"`
}

type signResponse struct {
	TxBlob string `json:"tx_blob"`
	Error  string `json:"error"`
}

// SignCreateOffer implements reconcile.OfferSigner.
func (r *Remote) SignCreateOffer(ctx context.Context, req reconcile.OfferRequest) (string, error) {
	payload, err := json.Marshal(signRequest{
		TokenID:      req.TokenID,
		Destination:  req.Destination,
		Free:         req.Free,
		CurrencyType: string(req.Currency.Type),
		CurrencyCode: req.Currency.Code,
		Issuer:       req.Currency.Issuer,
		Amount:       req.Currency.Amount,
	})
	if err != nil {
		return "", fmt.Errorf("signer: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("signer: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := r.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("signer: call signing service: %w", err)
	}
	defer resp.Body.Close()
	var parsed signResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("signer: decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := parsed.Error
		if msg == "" {
			msg = resp.Status
		}
		return "", fmt.Errorf("signer: signing service refused: %s", msg)
	}
	if strings.TrimSpace(parsed.TxBlob) == "" {
		return "", fmt.Errorf("signer: signing service returned empty blob")
	}
	return parsed.TxBlob, nil
}
