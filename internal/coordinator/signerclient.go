// Package coordinator implements the escrow-owning service: deal creation,
// the buyer-initiated release flow (with auto-payout routing below a
// configured ceiling), dispute intake, and the chainwatch.DepositSink that
// applies confirmed on-chain transfers to the escrow they belong to.
// Grounded on the original app/main.py's request_deposit_address,
// request_release, approve_and_send_payout, and open_dispute handlers,
// stripped of their aiogram/Telegram transport.
package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yourusername/trustora/internal/amount"
	"github.com/yourusername/trustora/internal/chains"
	"github.com/yourusername/trustora/internal/security"
)

// SignerClient calls the signer's HMAC-authenticated HTTP API, mirroring
// request_deposit_address and approve_and_send_payout's httpx.AsyncClient
// calls to the signer's /address and /payout endpoints.
type SignerClient struct {
	BaseURL string
	HMACKey []byte
	HTTP    *http.Client
}

func NewSignerClient(baseURL string, hmacKey []byte, timeout time.Duration) *SignerClient {
	return &SignerClient{
		BaseURL: baseURL,
		HMACKey: hmacKey,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type addressRequestBody struct {
	Chain     string `json:"chain"`
	Timestamp int64  `json:"timestamp"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"`
}

type addressResponseBody struct {
	Address string `json:"address"`
}

// RequestAddress asks the signer for a fresh, unused deposit address on c.
func (c *SignerClient) RequestAddress(ctx context.Context, chain chains.Chain) (string, error) {
	nonce, err := security.GenerateNonce()
	if err != nil {
		return "", fmt.Errorf("coordinator: generate nonce: %w", err)
	}
	timestamp := time.Now().Unix()
	msg := fmt.Sprintf("address|%s|%d|%s", string(chain), timestamp, nonce)
	sig := security.Sign(c.HMACKey, msg)

	body := addressRequestBody{
		Chain:     string(chain),
		Timestamp: timestamp,
		Nonce:     nonce,
		Signature: sig,
	}
	var resp addressResponseBody
	if err := c.post(ctx, "/address", body, &resp); err != nil {
		return "", err
	}
	return resp.Address, nil
}

type payoutRequestBody struct {
	EscrowID      string `json:"escrow_id"`
	Chain         string `json:"chain"`
	PayoutAddress string `json:"payout_address"`
	Amount        string `json:"amount"`
	Timestamp     int64  `json:"timestamp"`
	Nonce         string `json:"nonce"`
	Signature     string `json:"signature"`
}

type payoutResponseBody struct {
	SellerTxHash string `json:"seller_tx_hash"`
	FeeTxHash    string `json:"fee_tx_hash"`
}

// RequestPayout asks the signer to broadcast the net amount owed on
// escrowID to payoutAddress, returning the resulting transaction hashes.
func (c *SignerClient) RequestPayout(ctx context.Context, escrowID string, chain chains.Chain, payoutAddress string, net amount.Micro) (sellerTxHash, feeTxHash string, err error) {
	nonce, err := security.GenerateNonce()
	if err != nil {
		return "", "", fmt.Errorf("coordinator: generate nonce: %w", err)
	}
	timestamp := time.Now().Unix()
	amountStr := net.String()
	env := security.SignedRequest{
		Chain:     string(chain),
		Address:   payoutAddress,
		Amount:    amountStr,
		RequestID: escrowID,
		Timestamp: timestamp,
		Nonce:     nonce,
	}
	sig := security.Sign(c.HMACKey, env.Message())

	body := payoutRequestBody{
		EscrowID:      escrowID,
		Chain:         string(chain),
		PayoutAddress: payoutAddress,
		Amount:        amountStr,
		Timestamp:     timestamp,
		Nonce:         nonce,
		Signature:     sig,
	}
	var resp payoutResponseBody
	if err := c.post(ctx, "/payout", body, &resp); err != nil {
		return "", "", err
	}
	return resp.SellerTxHash, resp.FeeTxHash, nil
}

func (c *SignerClient) post(ctx context.Context, path string, body, out interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("coordinator: marshal signer request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("coordinator: build signer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("coordinator: signer request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("coordinator: read signer response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("coordinator: signer returned %d: %s", resp.StatusCode, string(respBody))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("coordinator: parse signer response: %w", err)
	}
	return nil
}
