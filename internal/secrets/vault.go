package secrets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// VaultConfig configures the HashiCorp Vault backend. All engine secrets
// live as fields of a single KV v2 entry, so one read serves every key.
type VaultConfig struct {
	// Address of the Vault server, e.g. "http://localhost:8200".
	Address string
	// Token used for the X-Vault-Token header.
	Token string
	// MountPath of the KV v2 secrets engine (default "secret").
	MountPath string
	// SecretPath of the entry holding the engine's keys (default "locus").
	SecretPath string
	// Timeout for Vault API requests.
	Timeout time.Duration
}

// DefaultVaultConfig returns default Vault configuration.
func DefaultVaultConfig() *VaultConfig {
	return &VaultConfig{
		Address:    "http://localhost:8200",
		MountPath:  "secret",
		SecretPath: "locus",
		Timeout:    10 * time.Second,
	}
}

// errVaultPathMissing marks a 404 on the configured secret path. Reads
// surface it; writes treat it as an empty entry.
var errVaultPathMissing = errors.New("vault secret path not found")

// VaultProvider reads and writes engine secrets in HashiCorp Vault.
type VaultProvider struct {
	config *VaultConfig
	client *http.Client
}

// NewVaultProvider creates a Vault secrets provider.
func NewVaultProvider(config *VaultConfig) (*VaultProvider, error) {
	if config == nil {
		config = DefaultVaultConfig()
	}
	if config.Address == "" {
		return nil, fmt.Errorf("vault address required")
	}
	if config.Token == "" {
		return nil, fmt.Errorf("vault token required")
	}
	defaults := DefaultVaultConfig()
	if config.MountPath == "" {
		config.MountPath = defaults.MountPath
	}
	if config.SecretPath == "" {
		config.SecretPath = defaults.SecretPath
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}

	return &VaultProvider{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}, nil
}

func (p *VaultProvider) Name() string { return "vault" }

func (p *VaultProvider) Get(ctx context.Context, key string) (string, error) {
	entry, err := p.readEntry(ctx)
	if err != nil {
		if errors.Is(err, errVaultPathMissing) {
			return "", fmt.Errorf("%w: %s", errVaultPathMissing, p.config.SecretPath)
		}
		return "", err
	}

	val, ok := entry[key]
	if !ok {
		return "", fmt.Errorf("key %q not in vault entry %s", key, p.config.SecretPath)
	}
	if s, ok := val.(string); ok {
		return s, nil
	}
	return fmt.Sprintf("%v", val), nil
}

func (p *VaultProvider) Set(ctx context.Context, key, value string) error {
	entry, err := p.readEntry(ctx)
	if err != nil && !errors.Is(err, errVaultPathMissing) {
		return err
	}
	if entry == nil {
		entry = make(map[string]any)
	}
	entry[key] = value
	return p.writeEntry(ctx, entry)
}

func (p *VaultProvider) Delete(ctx context.Context, key string) error {
	entry, err := p.readEntry(ctx)
	if err != nil {
		if errors.Is(err, errVaultPathMissing) {
			return nil
		}
		return err
	}
	delete(entry, key)
	return p.writeEntry(ctx, entry)
}

// entryURL is the KV v2 data endpoint for the configured secret path.
func (p *VaultProvider) entryURL() string {
	return fmt.Sprintf("%s/v1/%s/data/%s",
		strings.TrimSuffix(p.config.Address, "/"),
		p.config.MountPath,
		p.config.SecretPath,
	)
}

func (p *VaultProvider) readEntry(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.entryURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Vault-Token", p.config.Token)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vault request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errVaultPathMissing
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("vault error %d: %s", resp.StatusCode, body)
	}

	// KV v2 wraps the entry in a double data envelope.
	var result struct {
		Data struct {
			Data map[string]any `json:"data"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode vault response: %w", err)
	}
	if result.Data.Data == nil {
		return make(map[string]any), nil
	}
	return result.Data.Data, nil
}

func (p *VaultProvider) writeEntry(ctx context.Context, entry map[string]any) error {
	body, err := json.Marshal(map[string]any{"data": entry})
	if err != nil {
		return fmt.Errorf("marshal vault entry: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.entryURL(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Vault-Token", p.config.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("vault request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("vault error %d: %s", resp.StatusCode, respBody)
	}
	return nil
}
