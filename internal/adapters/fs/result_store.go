package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/abiscan-org/abiscan/internal/config"
	"github.com/abiscan-org/abiscan/internal/domain"
	"github.com/abiscan-org/abiscan/internal/usecase"
)

// ResultStore persists analysis artifacts as a directory tree:
//
//	<output>/<chainID>/<lowercase address>/
//	    verification.json
//	    abi.json
//	    combined_abi.json
//	    events.json
//	    sources/<original path>
//	    logs.json
//
// One file per logical artifact; files for absent artifacts are not written.
type ResultStore struct {
	root string
	log  *slog.Logger
}

// NewResultStore creates a new result store rooted at the configured output dir
func NewResultStore(cfg *config.RuntimeConfig, log *slog.Logger) *ResultStore {
	return &ResultStore{root: cfg.OutputDir, log: log}
}

// summary is the verification.json document
type summary struct {
	*domain.VerificationResult
	Files []string `json:"files"`
}

// Save writes all artifacts of a verification result and returns the
// directory they were written to.
func (s *ResultStore) Save(ctx context.Context, result *domain.VerificationResult) (string, error) {
	dir := s.dirFor(result)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create result directory: %w", err)
	}

	var files []string

	if len(result.ABI) > 0 {
		if err := s.writeJSON(filepath.Join(dir, "abi.json"), result.ABI); err != nil {
			return "", err
		}
		files = append(files, "abi.json")
	}

	if len(result.CombinedABI) > 0 {
		if err := s.writeJSON(filepath.Join(dir, "combined_abi.json"), result.CombinedABI); err != nil {
			return "", err
		}
		files = append(files, "combined_abi.json")
	}

	if len(result.Events) > 0 {
		if err := s.writeJSON(filepath.Join(dir, "events.json"), result.Events); err != nil {
			return "", err
		}
		files = append(files, "events.json")
	}

	for path, content := range result.SourceFiles {
		rel, err := s.writeSource(dir, path, content)
		if err != nil {
			return "", err
		}
		files = append(files, rel)
	}
	sort.Strings(files)

	doc := summary{VerificationResult: result, Files: files}
	if err := s.writeJSON(filepath.Join(dir, "verification.json"), doc); err != nil {
		return "", err
	}

	s.log.Debug("analysis persisted", "dir", dir, "files", len(files)+1)
	return dir, nil
}

// SaveLogs writes raw event logs next to the other artifacts.
func (s *ResultStore) SaveLogs(ctx context.Context, result *domain.VerificationResult, logs []domain.EventLog) (string, error) {
	dir := s.dirFor(result)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create result directory: %w", err)
	}
	path := filepath.Join(dir, "logs.json")
	if logs == nil {
		logs = []domain.EventLog{}
	}
	if err := s.writeJSON(path, logs); err != nil {
		return "", err
	}
	return path, nil
}

// dirFor builds the deterministic path keyed by chain id and lowercase address.
func (s *ResultStore) dirFor(result *domain.VerificationResult) string {
	return filepath.Join(s.root,
		strconv.FormatUint(result.ChainID, 10),
		strings.ToLower(result.Address))
}

// writeSource writes one source file under sources/, preserving the original
// relative path but refusing traversal outside the result directory.
func (s *ResultStore) writeSource(dir, path, content string) (string, error) {
	clean := filepath.Clean(strings.TrimLeft(path, "/\\"))
	for strings.HasPrefix(clean, ".."+string(filepath.Separator)) || clean == ".." {
		clean = strings.TrimPrefix(clean, "..")
		clean = strings.TrimLeft(clean, "/\\")
		clean = filepath.Clean(clean)
	}
	rel := filepath.Join("sources", clean)
	full := filepath.Join(dir, rel)

	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return "", fmt.Errorf("failed to create source directory: %w", err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write source %s: %w", path, err)
	}
	return rel, nil
}

func (s *ResultStore) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Ensure the store implements the port
var _ usecase.ResultStore = (*ResultStore)(nil)
