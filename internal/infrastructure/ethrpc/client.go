package ethrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"txbridge/internal/domain"
)

// Client speaks JSON-RPC to a single node endpoint over HTTP.
type Client struct {
	url        string
	httpClient *http.Client
	idCounter  uint64
}

type Config struct {
	URL string
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("rpc url is required")
	}
	return &Client{
		url:        cfg.URL,
		httpClient: &http.Client{},
	}, nil
}

// Error is a structured JSON-RPC error returned by the node. The submitter
// inspects Code and Message to distinguish gas-allowance rejections from
// other value rejections.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// callParams flattens an envelope into wire params, omitting zero values.
func callParams(env domain.CallEnvelope) map[string]any {
	p := make(map[string]any, 5)
	if env.From != "" {
		p["from"] = env.From
	}
	if env.To != "" {
		p["to"] = env.To
	}
	if env.Data != "" {
		p["data"] = env.Data
	}
	if env.Gas != 0 {
		p["gas"] = formatHexUint(env.Gas)
	}
	if env.Value != nil && env.Value.Sign() != 0 {
		p["value"] = "0x" + env.Value.Text(16)
	}
	return p
}

func (c *Client) ChainID(ctx context.Context) (uint64, error) {
	var result string
	if err := c.call(ctx, "eth_chainId", []any{}, &result); err != nil {
		return 0, err
	}
	return parseHexUint(result)
}

func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	var result string
	if err := c.call(ctx, "eth_blockNumber", []any{}, &result); err != nil {
		return 0, err
	}
	return parseHexUint(result)
}

// TransactionCount returns the node's pending-inclusive transaction count
// for the address. Used only as a divergence diagnostic; nonce assignment
// is driven by the local store.
func (c *Client) TransactionCount(ctx context.Context, address string) (uint64, error) {
	var result string
	if err := c.call(ctx, "eth_getTransactionCount", []any{address, "pending"}, &result); err != nil {
		return 0, err
	}
	return parseHexUint(result)
}

func (c *Client) Balance(ctx context.Context, address string) (*big.Int, error) {
	var result string
	if err := c.call(ctx, "eth_getBalance", []any{address, "latest"}, &result); err != nil {
		return nil, err
	}
	return parseHexBig(result)
}

func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	var result string
	if err := c.call(ctx, "eth_gasPrice", []any{}, &result); err != nil {
		return nil, err
	}
	return parseHexBig(result)
}

func (c *Client) EstimateGas(ctx context.Context, env domain.CallEnvelope) (uint64, error) {
	var result string
	if err := c.call(ctx, "eth_estimateGas", []any{callParams(env)}, &result); err != nil {
		return 0, err
	}
	return parseHexUint(result)
}

// SendRawTransaction broadcasts a signed transaction and returns the hash
// acknowledged by the node. Callers derive the canonical hash from the
// signed payload themselves and treat this value as confirmation only.
func (c *Client) SendRawTransaction(ctx context.Context, rawTx string) (string, error) {
	var result string
	if err := c.call(ctx, "eth_sendRawTransaction", []any{rawTx}, &result); err != nil {
		return "", err
	}
	return result, nil
}

func (c *Client) CallContract(ctx context.Context, env domain.CallEnvelope) (string, error) {
	var result string
	if err := c.call(ctx, "eth_call", []any{callParams(env), "latest"}, &result); err != nil {
		return "", err
	}
	return result, nil
}

type rpcReceipt struct {
	TxHash          string `json:"transactionHash"`
	BlockNumber     string `json:"blockNumber"`
	Status          string `json:"status"`
	GasUsed         string `json:"gasUsed"`
	ContractAddress string `json:"contractAddress"`
}

// TransactionReceipt returns the receipt for a transaction hash, or
// ok=false when the transaction is not yet included in a block.
func (c *Client) TransactionReceipt(ctx context.Context, txHash string) (domain.Receipt, bool, error) {
	var result *rpcReceipt
	if err := c.call(ctx, "eth_getTransactionReceipt", []any{txHash}, &result); err != nil {
		if errors.Is(err, errEmptyResult) {
			return domain.Receipt{}, false, nil
		}
		return domain.Receipt{}, false, err
	}
	if result == nil {
		return domain.Receipt{}, false, nil
	}
	blockNumber, err := parseHexUint(result.BlockNumber)
	if err != nil {
		return domain.Receipt{}, false, err
	}
	status, err := parseHexUint(result.Status)
	if err != nil {
		return domain.Receipt{}, false, err
	}
	gasUsed, err := parseHexUint(result.GasUsed)
	if err != nil {
		return domain.Receipt{}, false, err
	}
	return domain.Receipt{
		TxHash:          strings.ToLower(result.TxHash),
		BlockNumber:     blockNumber,
		Status:          status,
		GasUsed:         gasUsed,
		ContractAddress: result.ContractAddress,
	}, true, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *Error          `json:"error"`
}

var errEmptyResult = errors.New("rpc result is empty")

func (c *Client) call(ctx context.Context, method string, params []any, result any) error {
	id := atomic.AddUint64(&c.idCounter, 1)
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("rpc status %d", resp.StatusCode)
	}

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return err
	}
	if decoded.Error != nil {
		return decoded.Error
	}
	if result == nil {
		return nil
	}
	if len(decoded.Result) == 0 || bytes.Equal(decoded.Result, []byte("null")) {
		return errEmptyResult
	}
	return json.Unmarshal(decoded.Result, result)
}

func parseHexUint(value string) (uint64, error) {
	trimmed := strings.TrimPrefix(value, "0x")
	if trimmed == "" {
		return 0, errors.New("empty hex value")
	}
	return strconv.ParseUint(trimmed, 16, 64)
}

func parseHexBig(value string) (*big.Int, error) {
	trimmed := strings.TrimPrefix(value, "0x")
	if trimmed == "" {
		return nil, errors.New("empty hex value")
	}
	parsed, ok := new(big.Int).SetString(trimmed, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex value %q", value)
	}
	return parsed, nil
}

func formatHexUint(value uint64) string {
	return fmt.Sprintf("0x%x", value)
}
