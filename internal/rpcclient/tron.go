package rpcclient

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"

	"github.com/yourusername/trustora/internal/amount"
	"github.com/yourusername/trustora/internal/chains"
	"github.com/yourusername/trustora/internal/chainwatch"
)

// TronBackend implements chainwatch.Backend against a TRC20 USDT contract
// using a TronGrid-style REST API (not JSON-RPC, unlike BEP20), mirroring
// the original watcher_tron/main.py's tronpy Contract.get_event_logs
// polling translated to raw HTTP.
type TronBackend struct {
	baseURL    string
	contract   string
	httpClient *http.Client
}

func NewTronBackend(baseURL, contract string, timeout time.Duration) *TronBackend {
	return &TronBackend{
		baseURL:    baseURL,
		contract:   contract,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (b *TronBackend) Chain() chains.Chain { return chains.TRC20 }

type tronBlockResponse struct {
	BlockHeader struct {
		RawData struct {
			Number int64 `json:"number"`
		} `json:"raw_data"`
	} `json:"block_header"`
}

// LatestBlock queries /wallet/getnowblock for the current head.
func (b *TronBackend) LatestBlock(ctx context.Context) (int64, error) {
	var out tronBlockResponse
	if err := b.get(ctx, "/wallet/getnowblock", nil, &out); err != nil {
		return 0, fmt.Errorf("tron: getnowblock: %w", err)
	}
	return out.BlockHeader.RawData.Number, nil
}

type tronEvent struct {
	TransactionID string `json:"transaction_id"`
	BlockNumber   int64  `json:"block_number"`
	Result        struct {
		To    string `json:"to"`
		Value string `json:"value"`
	} `json:"result"`
}

type tronEventsResponse struct {
	Data []tronEvent `json:"data"`
}

// TransferLogs queries the contract's Transfer event log over
// [fromBlock, toBlock] via TronGrid's /v1/contracts/{address}/events,
// mirroring get_event_logs(event_name="Transfer", since=from, stop=to).
func (b *TronBackend) TransferLogs(ctx context.Context, fromBlock, toBlock int64) ([]chainwatch.Transfer, error) {
	latest, err := b.LatestBlock(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("event_name", "Transfer")
	params.Set("min_block_number", strconv.FormatInt(fromBlock, 10))
	params.Set("max_block_number", strconv.FormatInt(toBlock, 10))
	params.Set("only_confirmed", "true")

	var out tronEventsResponse
	path := fmt.Sprintf("/v1/contracts/%s/events", b.contract)
	if err := b.get(ctx, path, params, &out); err != nil {
		return nil, fmt.Errorf("tron: contract events: %w", err)
	}

	transfers := make([]chainwatch.Transfer, 0, len(out.Data))
	for _, ev := range out.Data {
		micro, err := microFromTronValue(ev.Result.Value)
		if err != nil {
			continue
		}
		transfers = append(transfers, chainwatch.Transfer{
			TxHash:        ev.TransactionID,
			ToAddress:     ev.Result.To,
			Amount:        micro,
			BlockNumber:   ev.BlockNumber,
			Confirmations: latest - ev.BlockNumber,
		})
	}
	return transfers, nil
}

// microFromTronValue converts a raw USDT-TRC20 value (6 on-chain decimals,
// same scale as amount.Micro) from its decimal-string log representation.
func microFromTronValue(raw string) (amount.Micro, error) {
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid transfer value %q: %w", raw, err)
	}
	return amount.FromInt64(v), nil
}

func (b *TronBackend) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := b.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (b *TronBackend) post(ctx context.Context, path string, body, out interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type triggerContractRequest struct {
	OwnerAddress    string `json:"owner_address"`
	ContractAddress string `json:"contract_address"`
	FunctionSelector string `json:"function_selector"`
	Parameter       string `json:"parameter"`
	FeeLimit        int64  `json:"fee_limit"`
	CallValue       int64  `json:"call_value"`
}

type tronTransaction struct {
	TxID       string          `json:"txID"`
	RawData    json.RawMessage `json:"raw_data"`
	RawDataHex string          `json:"raw_data_hex"`
	Signature  []string        `json:"signature,omitempty"`
}

type triggerContractResponse struct {
	Transaction tronTransaction `json:"transaction"`
	Result      struct {
		Result  bool   `json:"result"`
		Message string `json:"message"`
	} `json:"result"`
}

type broadcastResponse struct {
	Result  bool   `json:"result"`
	TxID    string `json:"txid"`
	Message string `json:"message"`
}

// SendUSDT implements signerapi.Broadcaster: it builds a TRC20
// transfer(to, net) call via /wallet/triggersmartcontract, signs the
// resulting transaction hash with the secp256k1 key controlling
// fromPrivateKeyHex, and submits it via /wallet/broadcasttransaction —
// the same build/sign/broadcast shape as the original send_tron_usdt's
// tronpy Contract.functions.transfer(...).build().sign(key).broadcast().
func (b *TronBackend) SendUSDT(ctx context.Context, fromPrivateKeyHex, toAddress string, net amount.Micro) (string, error) {
	priv, err := crypto.HexToECDSA(strings.TrimPrefix(fromPrivateKeyHex, "0x"))
	if err != nil {
		return "", fmt.Errorf("tron: invalid private key: %w", err)
	}
	ownerAddr := crypto.PubkeyToAddress(priv.PublicKey)
	ownerHex := "41" + hex.EncodeToString(ownerAddr.Bytes())

	contractHex, err := base58AddressToHex(b.contract)
	if err != nil {
		return "", fmt.Errorf("tron: decode contract address: %w", err)
	}
	toHex20, err := base58AddressToEVMHex(toAddress)
	if err != nil {
		return "", fmt.Errorf("tron: decode destination address: %w", err)
	}

	amountParam := fmt.Sprintf("%064x", big.NewInt(net.Int64()))
	addressParam := leftPadHex(toHex20, 64)
	parameter := addressParam + amountParam

	var trigger triggerContractResponse
	err = b.post(ctx, "/wallet/triggersmartcontract", triggerContractRequest{
		OwnerAddress:     ownerHex,
		ContractAddress:  contractHex,
		FunctionSelector: "transfer(address,uint256)",
		Parameter:        parameter,
		FeeLimit:         10_000_000,
		CallValue:        0,
	}, &trigger)
	if err != nil {
		return "", fmt.Errorf("tron: triggersmartcontract: %w", err)
	}
	if !trigger.Result.Result {
		return "", fmt.Errorf("tron: triggersmartcontract rejected: %s", trigger.Result.Message)
	}

	txIDBytes, err := hex.DecodeString(trigger.Transaction.TxID)
	if err != nil {
		return "", fmt.Errorf("tron: decode txID: %w", err)
	}
	sig, err := crypto.Sign(txIDBytes, priv)
	if err != nil {
		return "", fmt.Errorf("tron: sign transaction: %w", err)
	}
	trigger.Transaction.Signature = []string{hex.EncodeToString(sig)}

	var broadcast broadcastResponse
	if err := b.post(ctx, "/wallet/broadcasttransaction", trigger.Transaction, &broadcast); err != nil {
		return "", fmt.Errorf("tron: broadcasttransaction: %w", err)
	}
	if !broadcast.Result {
		return "", fmt.Errorf("tron: broadcast rejected: %s", broadcast.Message)
	}
	return trigger.Transaction.TxID, nil
}

// base58AddressToHex decodes a Tron base58check address (e.g.
// "TXYZ...") into its 21-byte 0x41-prefixed hex form, as
// triggersmartcontract expects for owner_address/contract_address.
func base58AddressToHex(addr string) (string, error) {
	raw, err := base58.Decode(addr)
	if err != nil {
		return "", err
	}
	if len(raw) < 25 {
		return "", fmt.Errorf("tron: address too short")
	}
	return hex.EncodeToString(raw[:21]), nil
}

// leftPadHex pads hexStr on the left with '0' up to width characters, the
// ABI convention for a 20-byte address occupying a 32-byte parameter slot.
func leftPadHex(hexStr string, width int) string {
	if len(hexStr) >= width {
		return hexStr
	}
	zeros := make([]byte, width-len(hexStr))
	for i := range zeros {
		zeros[i] = '0'
	}
	return string(zeros) + hexStr
}

// base58AddressToEVMHex decodes a Tron base58check address into its
// 20-byte EVM-style hex form (no 0x41 prefix), the shape a contract call's
// `address` parameter is ABI-encoded with.
func base58AddressToEVMHex(addr string) (string, error) {
	full, err := base58AddressToHex(addr)
	if err != nil {
		return "", err
	}
	return full[2:], nil // drop the leading "41" prefix byte
}
