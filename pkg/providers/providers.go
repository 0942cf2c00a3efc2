package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Package providers contains pluggable provider configs (YAML/JSON) and the adapters that fetch them.

// Provider is one entry of the providers file. File order is provider priority.
type Provider struct {
	ID             string         `json:"id" yaml:"id"`
	Name           string         `json:"name" yaml:"name"`
	Type           string         `json:"type" yaml:"type"`
	SourceURL      string         `json:"source_url" yaml:"source_url"`
	APIKeyEnv      string         `json:"api_key_env" yaml:"api_key_env"`
	TimeoutSeconds int            `json:"timeout_seconds" yaml:"timeout_seconds"`
	MaxResults     int            `json:"max_results" yaml:"max_results"`
	Enabled        *bool          `json:"enabled" yaml:"enabled"`
	Config         map[string]any `json:"config" yaml:"config"`
}

type registryFile struct {
	Providers []Provider `json:"providers" yaml:"providers"`
}

// Registry is the validated, ordered provider list loaded from a file.
type Registry struct {
	providers []Provider
	idx       map[string]Provider
}

// defaultSourceURLs fills source_url for provider types with a well-known endpoint.
var defaultSourceURLs = map[string]string{
	ProviderTypeGoogleNewsRSS: "https://news.google.com/rss",
	ProviderTypeNewsData:      "https://newsdata.io/api/1/latest",
	ProviderTypeNewsAPIAI:     "https://eventregistry.org/api/v1/article/getArticles",
}

// LoadRegistry loads and validates the providers file.
func LoadRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("providers file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open providers file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read providers file: %w", err)
	}

	parsed, err := parseRegistry(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	return NewRegistry(parsed.Providers)
}

// NewRegistry sanitizes and validates providers, keeping their order.
func NewRegistry(list []Provider) (*Registry, error) {
	if len(list) == 0 {
		return nil, errors.New("providers file contains no providers entries")
	}

	reg := &Registry{
		providers: make([]Provider, 0, len(list)),
		idx:       make(map[string]Provider, len(list)),
	}
	for i := range list {
		p := sanitizeProvider(list[i])
		if err := validateProvider(p); err != nil {
			return nil, fmt.Errorf("provider[%d]: %w", i, err)
		}
		if _, exists := reg.idx[p.ID]; exists {
			return nil, fmt.Errorf("duplicate provider id %q", p.ID)
		}
		reg.providers = append(reg.providers, p)
		reg.idx[p.ID] = p
	}
	return reg, nil
}

// All returns a copy of the providers in priority order.
func (r *Registry) All() []Provider {
	if r == nil || len(r.providers) == 0 {
		return nil
	}
	out := make([]Provider, len(r.providers))
	copy(out, r.providers)
	return out
}

// ByID returns the provider entry for the given id, if loaded.
func (r *Registry) ByID(id string) (Provider, bool) {
	if r == nil {
		return Provider{}, false
	}
	p, ok := r.idx[strings.TrimSpace(id)]
	return p, ok
}

func parseRegistry(data []byte, ext string) (registryFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   unmarshalFn
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		if reg, err := unmarshalRegistry(d.name, data, d.fn); err == nil {
			return reg, nil
		}
	}

	return registryFile{}, errors.New("providers file format not recognized (expected YAML or JSON)")
}

type unmarshalFn func([]byte, any) error

func unmarshalRegistry(name string, data []byte, fn unmarshalFn) (registryFile, error) {
	var reg registryFile
	if err := fn(data, &reg); err != nil {
		return registryFile{}, fmt.Errorf("decode %s providers: %w", name, err)
	}
	return reg, nil
}

func sanitizeProvider(p Provider) Provider {
	p.ID = strings.TrimSpace(p.ID)
	p.Name = strings.TrimSpace(p.Name)
	p.Type = strings.ToLower(strings.TrimSpace(p.Type))
	p.SourceURL = strings.TrimSpace(p.SourceURL)
	p.APIKeyEnv = strings.TrimSpace(p.APIKeyEnv)

	if p.SourceURL == "" {
		p.SourceURL = defaultSourceURLs[p.Type]
	}
	if p.Name == "" {
		p.Name = p.ID
	}
	if p.Config == nil {
		p.Config = map[string]any{}
	}
	if p.Enabled == nil {
		def := true
		p.Enabled = &def
	}
	return p
}

func validateProvider(p Provider) error {
	if p.ID == "" {
		return errors.New("id is required")
	}
	if p.Type == "" {
		return fmt.Errorf("type is required for provider %q", p.ID)
	}
	if p.SourceURL == "" {
		return fmt.Errorf("source_url is required for provider %q", p.ID)
	}
	if p.TimeoutSeconds < 0 || p.MaxResults < 0 {
		return fmt.Errorf("timeout_seconds and max_results must not be negative for provider %q", p.ID)
	}
	return nil
}

// Timeout returns the provider override or fallback.
func (p Provider) Timeout(fallback time.Duration) time.Duration {
	if p.TimeoutSeconds > 0 {
		return time.Duration(p.TimeoutSeconds) * time.Second
	}
	return fallback
}

// ResultCap returns the provider override or fallback.
func (p Provider) ResultCap(fallback int) int {
	if p.MaxResults > 0 {
		return p.MaxResults
	}
	return fallback
}

// APIKey reads the credential from the environment variable named by api_key_env.
func (p Provider) APIKey() string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(p.APIKeyEnv))
}

// DisabledReason explains why the provider cannot be used, or returns "".
func (p Provider) DisabledReason() string {
	if p.Enabled != nil && !*p.Enabled {
		return "disabled in providers file"
	}
	if p.APIKeyEnv != "" && p.APIKey() == "" {
		return fmt.Sprintf("credential %s is not set", p.APIKeyEnv)
	}
	return ""
}
