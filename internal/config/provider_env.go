package config

import (
	"context"
	"os"
)

// SecretProvider resolves secret values by key. Keys are SSM parameter paths
// or equivalent identifiers; missing keys are omitted from the result.
type SecretProvider interface {
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}

// EnvVarProvider resolves each key as an OS environment variable. Used for
// local development where secrets live in the environment or a .env file.
type EnvVarProvider struct {
	lookup func(string) (string, bool)
}

// NewEnvVarProvider creates an EnvVarProvider backed by os.LookupEnv.
func NewEnvVarProvider() *EnvVarProvider {
	return &EnvVarProvider{lookup: os.LookupEnv}
}

// GetParametersBatch returns the keys present in the environment.
func (p *EnvVarProvider) GetParametersBatch(_ context.Context, keys []string) (map[string]string, error) {
	lookup := p.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	result := make(map[string]string, len(keys))
	for _, key := range keys {
		if val, ok := lookup(key); ok {
			result[key] = val
		}
	}
	return result, nil
}
