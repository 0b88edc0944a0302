package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultNode = "https://node.innunfold.network"

// Client is a minimal HTTP client for an Archethic-style ledger node. It
// submits contract-action transactions and calls public contract functions.
// Transaction construction, signing and confirmation are the node's concern;
// the client only speaks the node's JSON API.
type Client struct {
	node       string
	httpClient *http.Client

	// apiToken authorizes write endpoints; reads work without it.
	apiToken string
}

// NewClient creates a new ledger client. If node is empty, it defaults to
// the public Inn Unfold node.
func NewClient(node string) *Client {
	if node == "" {
		node = defaultNode
	}
	return &Client{
		node: node,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithToken sets the API token used for transaction submission.
func (c *Client) WithToken(token string) *Client {
	c.apiToken = token
	return c
}

// SendTransaction submits a contract-action transaction addressed to
// recipient (a hall or the master contract) and returns the transaction
// address assigned by the node.
func (c *Client) SendTransaction(ctx context.Context, recipient, action string, params []any) (string, error) {
	if c.apiToken == "" {
		return "", fmt.Errorf("not authorized: an API token is required to send transactions")
	}

	body := sendTransactionRequest{
		Recipient: recipient,
		Action:    action,
		Params:    params,
	}

	var resp sendTransactionResponse
	if err := c.post(ctx, "/api/v1/transactions", body, &resp); err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}
	return resp.TxHash, nil
}

// CallFunction invokes a public contract function and decodes the result
// into result.
func (c *Client) CallFunction(ctx context.Context, contract, function string, args []any, result any) error {
	body := callFunctionRequest{
		Contract: contract,
		Function: function,
		Args:     args,
	}

	var resp callFunctionResponse
	if err := c.post(ctx, "/api/v1/contracts/call", body, &resp); err != nil {
		return fmt.Errorf("call %s.%s: %w", contract, function, err)
	}

	if result != nil && len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, result); err != nil {
			return fmt.Errorf("decode %s.%s result: %w", contract, function, err)
		}
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.node+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("node error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}

type sendTransactionRequest struct {
	Recipient string `json:"recipient"`
	Action    string `json:"action"`
	Params    []any  `json:"params"`
}

type sendTransactionResponse struct {
	TxHash string `json:"tx_hash"`
	Status string `json:"status"`
}

type callFunctionRequest struct {
	Contract string `json:"contract"`
	Function string `json:"function"`
	Args     []any  `json:"args"`
}

type callFunctionResponse struct {
	Data json.RawMessage `json:"data"`
}
