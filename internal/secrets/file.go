package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileConfig configures the JSON file backend. Meant for local
// development; deployments use env or vault.
type FileConfig struct {
	// Path to a JSON object mapping secret keys (embedding_api_key,
	// qdrant_api_key, temporal_token) to values.
	Path string
}

// FileProvider serves secrets from a JSON file. The file is re-read on
// every lookup, so editing it during a dev session takes effect
// immediately; a missing file behaves as an empty one until the first
// Set creates it.
type FileProvider struct {
	path string
	mu   sync.Mutex
}

// NewFileProvider creates a file-based secrets provider.
func NewFileProvider(config *FileConfig) (*FileProvider, error) {
	if config == nil || config.Path == "" {
		return nil, fmt.Errorf("secrets file path required")
	}
	return &FileProvider{path: config.Path}, nil
}

func (p *FileProvider) Name() string { return "file" }

func (p *FileProvider) Get(ctx context.Context, key string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := p.read()
	if err != nil {
		return "", err
	}
	val, ok := data[key]
	if !ok || val == "" {
		return "", fmt.Errorf("secret %q not in %s", key, p.path)
	}
	return val, nil
}

func (p *FileProvider) Set(ctx context.Context, key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := p.read()
	if err != nil {
		return err
	}
	data[key] = value
	return p.write(data)
}

func (p *FileProvider) Delete(ctx context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := p.read()
	if err != nil {
		return err
	}
	delete(data, key)
	return p.write(data)
}

func (p *FileProvider) read() (map[string]string, error) {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("read secrets file: %w", err)
	}
	data := make(map[string]string)
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse %s: %w", p.path, err)
	}
	return data, nil
}

// write persists through a temp file and rename, with permissions tight
// enough for credential material.
func (p *FileProvider) write(data map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return fmt.Errorf("create secrets dir: %w", err)
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, p.path)
}
