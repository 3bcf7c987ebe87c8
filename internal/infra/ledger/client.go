// Package ledger is the access layer for the remote ledger. It exposes
// exactly the four operations the deployment pipeline consumes: fetch the
// current sequencing token, submit a signed batch, poll a submission's
// confirmation, and query an account's existence or balance.
package ledger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"dropforge/internal/domain"
)

const maxResponseBytes = 256 * 1024

var (
	ErrEmptyToken        = errors.New("ledger returned empty sequencing token")
	ErrEmptySubmission   = errors.New("ledger returned empty submission id")
	ErrUnknownSubmission = errors.New("unknown submission")
)

// RPCError is a ledger-side rejection, distinct from transport failures.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("ledger rpc error %d: %s", e.Code, e.Message)
}

type Client struct {
	baseURL string
	httpDo  func(*http.Request) (*http.Response, error)
}

func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("ledger rpc url is required")
	}
	doer := http.DefaultClient.Do
	if httpClient != nil {
		doer = httpClient.Do
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpDo: doer}, nil
}

func (c *Client) LatestToken(ctx context.Context) (domain.SequencingToken, error) {
	var result struct {
		Token string `json:"token"`
	}
	if err := c.call(ctx, "getLatestSequencingToken", nil, &result); err != nil {
		return "", err
	}
	if result.Token == "" {
		return "", ErrEmptyToken
	}
	return domain.SequencingToken(result.Token), nil
}

func (c *Client) Submit(ctx context.Context, sub domain.BatchSubmission) (string, error) {
	params := struct {
		Token     string `json:"token"`
		Payload   string `json:"payload"`
		Signature string `json:"signature"`
		Signer    string `json:"signer"`
	}{
		Token:     string(sub.Token),
		Payload:   base64.StdEncoding.EncodeToString(sub.Payload),
		Signature: base64.StdEncoding.EncodeToString(sub.Signature),
		Signer:    sub.Signer,
	}
	var result struct {
		SubmissionID string `json:"submission_id"`
	}
	if err := c.call(ctx, "submitBatch", params, &result); err != nil {
		return "", err
	}
	if result.SubmissionID == "" {
		return "", ErrEmptySubmission
	}
	return result.SubmissionID, nil
}

func (c *Client) Confirmation(ctx context.Context, submissionID string) (domain.ConfirmationStatus, error) {
	params := struct {
		SubmissionID string `json:"submission_id"`
	}{SubmissionID: submissionID}
	var result struct {
		Status string `json:"status"`
	}
	if err := c.call(ctx, "getConfirmation", params, &result); err != nil {
		return "", err
	}
	switch status := domain.ConfirmationStatus(result.Status); status {
	case domain.ConfirmationPending, domain.ConfirmationConfirmed, domain.ConfirmationFailed:
		return status, nil
	default:
		return "", fmt.Errorf("%w: status %q", ErrUnknownSubmission, result.Status)
	}
}

func (c *Client) AccountExists(ctx context.Context, address string) (bool, error) {
	account, err := c.getAccount(ctx, address)
	if err != nil {
		return false, err
	}
	return account.Exists, nil
}

func (c *Client) AccountBalance(ctx context.Context, address string) (uint64, error) {
	account, err := c.getAccount(ctx, address)
	if err != nil {
		return 0, err
	}
	if !account.Exists {
		return 0, nil
	}
	return account.Balance, nil
}

type accountResult struct {
	Exists  bool   `json:"exists"`
	Balance uint64 `json:"balance"`
}

func (c *Client) getAccount(ctx context.Context, address string) (accountResult, error) {
	params := struct {
		Address string `json:"address"`
	}{Address: address}
	var result accountResult
	if err := c.call(ctx, "getAccount", params, &result); err != nil {
		return accountResult{}, err
	}
	return result, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpDo(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", method, resp.StatusCode)
	}

	var parsed rpcResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if parsed.Error != nil {
		return &RPCError{Code: parsed.Error.Code, Message: parsed.Error.Message}
	}
	if result != nil {
		if err := json.Unmarshal(parsed.Result, result); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
	}
	return nil
}
