package sourcify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/abiscan-org/abiscan/internal/config"
	"github.com/abiscan-org/abiscan/internal/domain"
	"github.com/abiscan-org/abiscan/internal/usecase"
)

// DefaultRepoURL is the public Sourcify contract repository.
const DefaultRepoURL = "https://repo.sourcify.dev/contracts"

// Client looks up full and partial matches in the Sourcify repository.
// No API key is required; the repository is keyed by match level, chain id
// and checksummed address.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient creates a new Sourcify client
func NewClient(cfg *config.RuntimeConfig, log *slog.Logger) *Client {
	baseURL := cfg.RegistryURL
	if baseURL == "" {
		baseURL = DefaultRepoURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
}

// Lookup queries the full-match endpoint first and falls back to the
// partial-match endpoint. Not-found on both is a clean miss (Level none).
// Any other failure is a *domain.RegistryFaultError: a faulted probe must
// not be conflated with a miss.
func (c *Client) Lookup(ctx context.Context, address string, chainID uint64) (*domain.RegistryMatch, error) {
	doc, err := c.fetchMetadata(ctx, "full_match", address, chainID)
	if err != nil {
		return nil, err
	}
	level := domain.MatchFull

	if doc == nil {
		doc, err = c.fetchMetadata(ctx, "partial_match", address, chainID)
		if err != nil {
			return nil, err
		}
		level = domain.MatchPartial
	}

	if doc == nil {
		return &domain.RegistryMatch{Level: domain.MatchNone}, nil
	}

	match, err := buildMatch(level, doc)
	if err != nil {
		return nil, &domain.RegistryFaultError{Err: err}
	}
	c.log.Debug("registry match", "address", address, "chain", chainID, "level", level)
	return match, nil
}

// metadataDoc is the Solidity compiler metadata document Sourcify stores
// per contract. The ABI lives under output.abi.
type metadataDoc struct {
	Compiler struct {
		Version string `json:"version"`
	} `json:"compiler"`
	Language string `json:"language"`
	Output   struct {
		ABI json.RawMessage `json:"abi"`
	} `json:"output"`
	Settings json.RawMessage `json:"settings"`
	Sources  map[string]struct {
		Content string `json:"content"`
	} `json:"sources"`
	// Not part of the standard metadata; present on some re-verified
	// entries. Absent means the explorer creation lookup runs instead.
	Deployment *struct {
		TxHash      string `json:"transactionHash"`
		BlockNumber uint64 `json:"blockNumber"`
	} `json:"deployment"`
}

// fetchMetadata returns the parsed metadata document for one match level,
// nil for a miss, or a registry fault.
func (c *Client) fetchMetadata(ctx context.Context, level, address string, chainID uint64) (*metadataDoc, error) {
	url := fmt.Sprintf("%s/%s/%d/%s/metadata.json", c.baseURL, level, chainID, address)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &domain.RegistryFaultError{Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.RegistryFaultError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &domain.RegistryFaultError{
			Err: fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.RegistryFaultError{Err: err}
	}

	// Some registry deployments answer misses with empty or HTML bodies
	// instead of a 404. Treat anything that is not a JSON document as
	// absence of a match, not an error.
	trimmed := strings.TrimSpace(string(body))
	if !strings.HasPrefix(trimmed, "{") {
		c.log.Debug("non-JSON registry body treated as miss", "url", url)
		return nil, nil
	}

	var doc metadataDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &domain.RegistryFaultError{Err: fmt.Errorf("malformed metadata: %w", err)}
	}
	return &doc, nil
}

// buildMatch converts a metadata document into a RegistryMatch.
func buildMatch(level domain.MatchLevel, doc *metadataDoc) (*domain.RegistryMatch, error) {
	match := &domain.RegistryMatch{
		Level: level,
		Metadata: &domain.RegistryMetadata{
			CompilerVersion: doc.Compiler.Version,
			Language:        doc.Language,
			Settings:        doc.Settings,
		},
	}

	if len(doc.Output.ABI) > 0 {
		parsed, err := domain.ParseABI(string(doc.Output.ABI))
		if err != nil {
			return nil, fmt.Errorf("registry metadata carries unusable ABI: %w", err)
		}
		match.ABI = parsed
	}

	if len(doc.Sources) > 0 {
		match.Sources = make(map[string]string, len(doc.Sources))
		for path, src := range doc.Sources {
			if src.Content != "" {
				match.Sources[path] = src.Content
			}
		}
	}

	if doc.Deployment != nil && doc.Deployment.TxHash != "" {
		match.Deployment = &domain.DeploymentInfo{
			TxHash:      doc.Deployment.TxHash,
			BlockNumber: doc.Deployment.BlockNumber,
			Source:      domain.DeploymentSourceRegistry,
		}
	}

	return match, nil
}

// Ensure the client implements the port
var _ usecase.RegistryClient = (*Client)(nil)
