package etherscan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/time/rate"

	"github.com/abiscan-org/abiscan/internal/config"
	"github.com/abiscan-org/abiscan/internal/domain"
	"github.com/abiscan-org/abiscan/internal/usecase"
)

// unverifiedSentinel is the exact message Etherscan-compatible APIs return
// in place of an ABI for unverified contracts. It is an answer, not an error.
const unverifiedSentinel = "Contract source code not verified"

// maxLogWindow caps the block span of a single getLogs request; wider ranges
// are split into sequential sub-requests to stay under explorer caps.
const maxLogWindow = 100_000

// placeholder API keys that ship in example configs and must be rejected
var placeholderKeys = map[string]bool{
	"YourApiKeyToken": true,
	"CHANGEME":        true,
}

// errRateLimited marks a status==0/NOTOK envelope, the retryable
// rate-limit-class failure distinct from a structural one.
var errRateLimited = errors.New("explorer rate limited (NOTOK)")

// Client queries an Etherscan-compatible API. Calls are throttled
// client-side and retried with capped exponential backoff; sequential only,
// never concurrent retries.
type Client struct {
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts uint
	retryDelay  time.Duration
	log         *slog.Logger
}

// NewClient creates a new explorer client
func NewClient(cfg *config.RuntimeConfig, log *slog.Logger) *Client {
	rps := cfg.ExplorerRPS
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
		maxAttempts: 4,
		retryDelay:  500 * time.Millisecond,
		log:         log,
	}
}

// apiResponse is the status/message envelope every endpoint answers with.
// Success is status==1 or message=="OK"; status==0 with message=="NOTOK"
// is the retryable rate-limit class.
type apiResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func (r *apiResponse) ok() bool {
	return r.Status == "1" || r.Message == "OK"
}

// GetABI fetches the contract ABI. Returns (nil, nil) when the explorer
// reports the contract as unverified.
func (c *Client) GetABI(ctx context.Context, address string, chain *domain.Chain) (domain.ABI, error) {
	resp, err := c.call(ctx, chain, url.Values{
		"module":  {"contract"},
		"action":  {"getabi"},
		"address": {address},
	})
	if err != nil {
		return nil, err
	}

	var raw string
	if err := json.Unmarshal(resp.Result, &raw); err != nil {
		return nil, &domain.NetworkError{Op: "getabi", Err: fmt.Errorf("unexpected result shape: %w", err)}
	}
	if !resp.ok() {
		if raw == unverifiedSentinel {
			return nil, nil
		}
		return nil, &domain.NetworkError{Op: "getabi", Err: fmt.Errorf("explorer error: %s", raw)}
	}

	parsed, err := domain.ParseABI(raw)
	if err != nil {
		return nil, &domain.NetworkError{Op: "getabi", Err: err}
	}
	return parsed, nil
}

// sourceCodeRow mirrors the getsourcecode result columns.
type sourceCodeRow struct {
	SourceCode      string `json:"SourceCode"`
	ABI             string `json:"ABI"`
	ContractName    string `json:"ContractName"`
	CompilerVersion string `json:"CompilerVersion"`
	Proxy           string `json:"Proxy"`
	Implementation  string `json:"Implementation"`
}

// GetSourceCode fetches and splits the verified source of a contract.
// Returns (nil, nil) for unverified contracts.
func (c *Client) GetSourceCode(ctx context.Context, address string, chain *domain.Chain) (*domain.SourceCodeRecord, error) {
	resp, err := c.call(ctx, chain, url.Values{
		"module":  {"contract"},
		"action":  {"getsourcecode"},
		"address": {address},
	})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, &domain.NetworkError{Op: "getsourcecode", Err: fmt.Errorf("explorer error: %s", resp.Message)}
	}

	var rows []sourceCodeRow
	if err := json.Unmarshal(resp.Result, &rows); err != nil {
		return nil, &domain.NetworkError{Op: "getsourcecode", Err: fmt.Errorf("unexpected result shape: %w", err)}
	}
	if len(rows) == 0 {
		return nil, nil
	}

	row := rows[0]
	if row.ABI == unverifiedSentinel || row.SourceCode == "" {
		return nil, nil
	}

	record := &domain.SourceCodeRecord{
		ContractName:    row.ContractName,
		CompilerVersion: row.CompilerVersion,
		ABI:             row.ABI,
		Proxy:           row.Proxy == "1",
		Implementation:  row.Implementation,
		Sources:         splitSources(row.ContractName, row.SourceCode),
	}
	return record, nil
}

// splitSources normalizes the three shapes the SourceCode column comes in:
// a flat source string, a standard-JSON compiler input with a sources map,
// and the same JSON double-wrapped in an extra brace pair. Files are kept
// separate to preserve directory-per-file semantics downstream.
func splitSources(contractName, blob string) map[string]string {
	trimmed := strings.TrimSpace(blob)

	// Double-wrapped standard JSON: {{"language":...}} needs one unwrap.
	if strings.HasPrefix(trimmed, "{{") && strings.HasSuffix(trimmed, "}}") {
		trimmed = trimmed[1 : len(trimmed)-1]
	}

	if strings.HasPrefix(trimmed, "{") {
		var input struct {
			Sources map[string]struct {
				Content string `json:"content"`
			} `json:"sources"`
		}
		if err := json.Unmarshal([]byte(trimmed), &input.Sources); err != nil || len(input.Sources) == 0 {
			if err := json.Unmarshal([]byte(trimmed), &input); err != nil || len(input.Sources) == 0 {
				// Unparseable JSON-ish blob: keep it whole rather than lose it.
				return map[string]string{fallbackName(contractName): blob}
			}
		}
		files := make(map[string]string, len(input.Sources))
		for path, src := range input.Sources {
			files[path] = src.Content
		}
		return files
	}

	return map[string]string{fallbackName(contractName): blob}
}

func fallbackName(contractName string) string {
	if contractName == "" {
		return "Contract.sol"
	}
	return contractName + ".sol"
}

// GetContractCreation resolves the creation transaction. The dedicated
// endpoint is tried first; if unsupported or empty, the oldest txlist entry
// is used as a heuristic, accepted only when it actually created the queried
// address. Factory deployments can defeat this; callers treat nil as
// "unknown", not as an error.
func (c *Client) GetContractCreation(ctx context.Context, address string, chain *domain.Chain) (*domain.ContractCreation, error) {
	resp, err := c.call(ctx, chain, url.Values{
		"module":            {"contract"},
		"action":            {"getcontractcreation"},
		"contractaddresses": {address},
	})
	if err != nil {
		return nil, err
	}

	if resp.ok() {
		var rows []struct {
			ContractAddress string `json:"contractAddress"`
			TxHash          string `json:"txHash"`
			BlockNumber     string `json:"blockNumber"`
		}
		if err := json.Unmarshal(resp.Result, &rows); err == nil && len(rows) > 0 && rows[0].TxHash != "" {
			return &domain.ContractCreation{
				TxHash:      rows[0].TxHash,
				BlockNumber: parseUint(rows[0].BlockNumber),
			}, nil
		}
	}

	return c.creationFromTxList(ctx, address, chain)
}

// creationFromTxList fetches the oldest transaction touching the address and
// treats it as the deployment only when its contractAddress matches.
func (c *Client) creationFromTxList(ctx context.Context, address string, chain *domain.Chain) (*domain.ContractCreation, error) {
	resp, err := c.call(ctx, chain, url.Values{
		"module":     {"account"},
		"action":     {"txlist"},
		"address":    {address},
		"startblock": {"0"},
		"endblock":   {"99999999"},
		"page":       {"1"},
		"offset":     {"1"},
		"sort":       {"asc"},
	})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		// "No transactions found" and friends: a clean empty answer.
		return nil, nil
	}

	var txs []struct {
		BlockNumber     string `json:"blockNumber"`
		Hash            string `json:"hash"`
		To              string `json:"to"`
		ContractAddress string `json:"contractAddress"`
	}
	if err := json.Unmarshal(resp.Result, &txs); err != nil || len(txs) == 0 {
		return nil, nil
	}

	oldest := txs[0]
	if oldest.To != "" || !strings.EqualFold(oldest.ContractAddress, address) {
		c.log.Debug("oldest transaction did not create the contract, creation unknown",
			"address", address, "tx", oldest.Hash)
		return nil, nil
	}

	return &domain.ContractCreation{
		TxHash:      oldest.Hash,
		BlockNumber: parseUint(oldest.BlockNumber),
	}, nil
}

// GetLogs fetches raw event logs for an address. toBlock==0 means latest.
// Wide ranges are split into sequential sub-requests (never parallel, to
// avoid tripping rate limits) and aggregated in request order.
func (c *Client) GetLogs(ctx context.Context, address string, chain *domain.Chain, fromBlock, toBlock uint64, topics []string) ([]domain.EventLog, error) {
	if toBlock == 0 || toBlock-fromBlock <= maxLogWindow {
		return c.getLogsRange(ctx, address, chain, fromBlock, toBlock, topics)
	}

	var all []domain.EventLog
	for start := fromBlock; start <= toBlock; start += maxLogWindow + 1 {
		end := start + maxLogWindow
		if end > toBlock {
			end = toBlock
		}
		logs, err := c.getLogsRange(ctx, address, chain, start, end, topics)
		if err != nil {
			return nil, err
		}
		all = append(all, logs...)
	}
	return all, nil
}

func (c *Client) getLogsRange(ctx context.Context, address string, chain *domain.Chain, fromBlock, toBlock uint64, topics []string) ([]domain.EventLog, error) {
	params := url.Values{
		"module":    {"logs"},
		"action":    {"getLogs"},
		"address":   {address},
		"fromBlock": {strconv.FormatUint(fromBlock, 10)},
	}
	if toBlock == 0 {
		params.Set("toBlock", "latest")
	} else {
		params.Set("toBlock", strconv.FormatUint(toBlock, 10))
	}
	for i, topic := range topics {
		params.Set(fmt.Sprintf("topic%d", i), topic)
	}

	resp, err := c.call(ctx, chain, params)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		// "No records found" is a clean empty answer
		return nil, nil
	}

	var rows []struct {
		Address         string   `json:"address"`
		Topics          []string `json:"topics"`
		Data            string   `json:"data"`
		BlockNumber     string   `json:"blockNumber"`
		TransactionHash string   `json:"transactionHash"`
		LogIndex        string   `json:"logIndex"`
	}
	if err := json.Unmarshal(resp.Result, &rows); err != nil {
		return nil, &domain.NetworkError{Op: "getLogs", Err: fmt.Errorf("unexpected result shape: %w", err)}
	}

	logs := make([]domain.EventLog, 0, len(rows))
	for _, row := range rows {
		logs = append(logs, domain.EventLog{
			Address:     row.Address,
			Topics:      row.Topics,
			Data:        row.Data,
			BlockNumber: parseUint(row.BlockNumber),
			TxHash:      row.TransactionHash,
			LogIndex:    parseUint(row.LogIndex),
		})
	}
	return logs, nil
}

// call performs one throttled, retried API request and decodes the envelope.
func (c *Client) call(ctx context.Context, chain *domain.Chain, params url.Values) (*apiResponse, error) {
	if chain.ExplorerAPIURL == "" {
		return nil, fmt.Errorf("%w: chain %d has no explorer API URL", domain.ErrInvalidChainID, chain.ID)
	}
	if chain.APIKey == "" || placeholderKeys[chain.APIKey] {
		return nil, fmt.Errorf("%w: chain %s", domain.ErrMissingAPIKey, chain.Name)
	}

	params.Set("apikey", chain.APIKey)
	endpoint := chain.ExplorerAPIURL + "?" + params.Encode()
	action := params.Get("action")

	var envelope *apiResponse
	err := retry.Do(
		func() error {
			resp, err := c.attempt(ctx, endpoint, action)
			if err != nil {
				return err
			}
			envelope = resp
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.maxAttempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			c.log.Debug("retrying explorer call", "action", action, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return envelope, nil
}

// attempt performs a single HTTP round trip.
func (c *Client) attempt(ctx context.Context, endpoint, action string) (*apiResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &domain.NetworkError{Op: action, Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.NetworkError{Op: action, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: HTTP 429", errRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &domain.NetworkError{Op: action, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.NetworkError{Op: action, Err: err}
	}

	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &domain.NetworkError{Op: action, Err: fmt.Errorf("malformed envelope: %w", err)}
	}

	if envelope.Status == "0" && envelope.Message == "NOTOK" {
		var detail string
		_ = json.Unmarshal(envelope.Result, &detail)
		// The unverified sentinel rides the same NOTOK envelope; it is an
		// answer, not a rate limit.
		if detail != unverifiedSentinel {
			return nil, fmt.Errorf("%w: %s", errRateLimited, detail)
		}
	}

	return &envelope, nil
}

// isRetryable: rate-limit envelopes and transport/HTTP-level failures are
// retried; missing API keys and context cancellation are not.
func isRetryable(err error) bool {
	if errors.Is(err, domain.ErrMissingAPIKey) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr *domain.NetworkError
	return errors.Is(err, errRateLimited) || errors.As(err, &netErr)
}

// parseUint parses decimal or 0x-prefixed hex block/index fields.
func parseUint(s string) uint64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, _ := strconv.ParseUint(s[2:], 16, 64)
		return v
	}
	v, _ := strconv.ParseUint(s, 10, 64)
	return v
}

// Ensure the client implements the port
var _ usecase.ExplorerClient = (*Client)(nil)
