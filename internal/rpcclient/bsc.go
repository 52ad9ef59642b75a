package rpcclient

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/yourusername/trustora/internal/amount"
	"github.com/yourusername/trustora/internal/chains"
	"github.com/yourusername/trustora/internal/chainwatch"
)

// transferTopic is keccak256("Transfer(address,address,uint256)"), the log
// topic every ERC20/BEP20 Transfer event carries.
var transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// BSCBackend implements chainwatch.Backend against a BEP20 USDT contract
// via raw eth_getLogs/eth_blockNumber JSON-RPC calls, translating the
// original watcher_bsc/main.py's web3.py-based scan into direct RPC.
type BSCBackend struct {
	client          *Client
	contractAddress common.Address
	decimalsScale   int64 // USDT on BSC uses 18 decimals on-chain
}

func NewBSCBackend(client *Client, contractAddress string) *BSCBackend {
	return &BSCBackend{
		client:          client,
		contractAddress: common.HexToAddress(contractAddress),
		decimalsScale:   1_000_000_000_000, // 1e18 / 1e6 micro-units
	}
}

func (b *BSCBackend) Chain() chains.Chain { return chains.BEP20 }

func (b *BSCBackend) LatestBlock(ctx context.Context) (int64, error) {
	raw, err := b.client.Call(ctx, "eth_blockNumber", []interface{}{})
	if err != nil {
		return 0, fmt.Errorf("bsc: eth_blockNumber: %w", err)
	}
	var hexStr string
	if err := json.Unmarshal(raw, &hexStr); err != nil {
		return 0, fmt.Errorf("bsc: parse block number: %w", err)
	}
	n, err := hexutil.DecodeUint64(hexStr)
	if err != nil {
		return 0, fmt.Errorf("bsc: decode block number: %w", err)
	}
	return int64(n), nil
}

type ethLog struct {
	Address     string   `json:"address"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
	BlockNumber string   `json:"blockNumber"`
	TxHash      string   `json:"transactionHash"`
}

func (b *BSCBackend) TransferLogs(ctx context.Context, fromBlock, toBlock int64) ([]chainwatch.Transfer, error) {
	filter := map[string]interface{}{
		"address":   b.contractAddress.Hex(),
		"topics":    []interface{}{transferTopic.Hex()},
		"fromBlock": hexutil.EncodeUint64(uint64(fromBlock)),
		"toBlock":   hexutil.EncodeUint64(uint64(toBlock)),
	}

	raw, err := b.client.Call(ctx, "eth_getLogs", []interface{}{filter})
	if err != nil {
		return nil, fmt.Errorf("bsc: eth_getLogs: %w", err)
	}

	var logs []ethLog
	if err := json.Unmarshal(raw, &logs); err != nil {
		return nil, fmt.Errorf("bsc: parse logs: %w", err)
	}

	latest, err := b.LatestBlock(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]chainwatch.Transfer, 0, len(logs))
	for _, l := range logs {
		if len(l.Topics) < 3 {
			continue
		}
		toAddr := common.HexToAddress(l.Topics[2]).Hex()

		valueBig, err := hexutil.DecodeBig(l.Data)
		if err != nil {
			continue
		}
		micro := new(big.Int).Quo(valueBig, big.NewInt(b.decimalsScale)).Int64()

		blockNum, err := hexutil.DecodeUint64(l.BlockNumber)
		if err != nil {
			continue
		}

		out = append(out, chainwatch.Transfer{
			TxHash:        l.TxHash,
			ToAddress:     toAddr,
			Amount:        amount.FromInt64(micro),
			BlockNumber:   int64(blockNum),
			Confirmations: latest - int64(blockNum),
		})
	}
	return out, nil
}

// transferABI is the minimal ERC20 ABI fragment send_bsc_usdt needs to
// build a transfer(address,uint256) call.
var transferABI = mustParseABI(`[{
	"constant": false,
	"inputs": [{"name": "_to", "type": "address"}, {"name": "_value", "type": "uint256"}],
	"name": "transfer",
	"outputs": [{"name": "", "type": "bool"}],
	"type": "function"
}]`)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("rpcclient: invalid embedded ABI: %v", err))
	}
	return parsed
}

// SendUSDT implements signerapi.Broadcaster: it builds, signs, and
// broadcasts a BEP20 USDT transfer(to, net) call from fromPrivateKeyHex,
// translating send_bsc_usdt's web3.py transaction build into a raw
// eth_sendRawTransaction, since this client never links web3.py's Go
// equivalent (there isn't one) and instead speaks JSON-RPC directly like
// the rest of this package.
func (b *BSCBackend) SendUSDT(ctx context.Context, fromPrivateKeyHex, toAddress string, net amount.Micro) (string, error) {
	priv, err := crypto.HexToECDSA(strings.TrimPrefix(fromPrivateKeyHex, "0x"))
	if err != nil {
		return "", fmt.Errorf("bsc: invalid private key: %w", err)
	}
	from := crypto.PubkeyToAddress(priv.PublicKey)

	onChainValue := new(big.Int).Mul(big.NewInt(net.Int64()), big.NewInt(b.decimalsScale))
	data, err := transferABI.Pack("transfer", common.HexToAddress(toAddress), onChainValue)
	if err != nil {
		return "", fmt.Errorf("bsc: encode transfer call: %w", err)
	}

	nonce, err := b.transactionCount(ctx, from)
	if err != nil {
		return "", err
	}
	gasPrice, err := b.gasPrice(ctx)
	if err != nil {
		return "", err
	}
	chainID, err := b.chainID(ctx)
	if err != nil {
		return "", err
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &b.contractAddress,
		Value:    big.NewInt(0),
		Gas:      120_000,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.NewEIP155Signer(chainID), priv)
	if err != nil {
		return "", fmt.Errorf("bsc: sign transaction: %w", err)
	}
	rawTx, err := signed.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("bsc: encode signed transaction: %w", err)
	}

	raw, err := b.client.Call(ctx, "eth_sendRawTransaction", []interface{}{hexutil.Encode(rawTx)})
	if err != nil {
		return "", fmt.Errorf("bsc: eth_sendRawTransaction: %w", err)
	}
	var txHash string
	if err := json.Unmarshal(raw, &txHash); err != nil {
		return "", fmt.Errorf("bsc: parse send response: %w", err)
	}
	return txHash, nil
}

func (b *BSCBackend) transactionCount(ctx context.Context, addr common.Address) (uint64, error) {
	raw, err := b.client.Call(ctx, "eth_getTransactionCount", []interface{}{addr.Hex(), "pending"})
	if err != nil {
		return 0, fmt.Errorf("bsc: eth_getTransactionCount: %w", err)
	}
	var hexStr string
	if err := json.Unmarshal(raw, &hexStr); err != nil {
		return 0, fmt.Errorf("bsc: parse nonce: %w", err)
	}
	return hexutil.DecodeUint64(hexStr)
}

func (b *BSCBackend) gasPrice(ctx context.Context) (*big.Int, error) {
	raw, err := b.client.Call(ctx, "eth_gasPrice", []interface{}{})
	if err != nil {
		return nil, fmt.Errorf("bsc: eth_gasPrice: %w", err)
	}
	var hexStr string
	if err := json.Unmarshal(raw, &hexStr); err != nil {
		return nil, fmt.Errorf("bsc: parse gas price: %w", err)
	}
	return hexutil.DecodeBig(hexStr)
}

func (b *BSCBackend) chainID(ctx context.Context) (*big.Int, error) {
	raw, err := b.client.Call(ctx, "eth_chainId", []interface{}{})
	if err != nil {
		return nil, fmt.Errorf("bsc: eth_chainId: %w", err)
	}
	var hexStr string
	if err := json.Unmarshal(raw, &hexStr); err != nil {
		return nil, fmt.Errorf("bsc: parse chain id: %w", err)
	}
	return hexutil.DecodeBig(hexStr)
}
