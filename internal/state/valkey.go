package state

import (
	"context"
	"fmt"

	"github.com/valkey-io/valkey-go"
)

// ValkeyConfig configures a ValkeyKV.
type ValkeyConfig struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
}

// ValkeyKV is a KV backed by a Valkey (or Redis) server, for deployments
// where several replicas share sync cursors.
type ValkeyKV struct {
	client valkey.Client
	prefix string
}

// OpenValkey connects to the configured server.
func OpenValkey(cfg ValkeyConfig) (*ValkeyKV, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("valkey address is required")
	}

	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{cfg.Address},
		Password:    cfg.Password,
		SelectDB:    cfg.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to valkey at %s: %w", cfg.Address, err)
	}

	return &ValkeyKV{client: client, prefix: cfg.KeyPrefix}, nil
}

func (v *ValkeyKV) key(k string) string {
	return v.prefix + k
}

func (v *ValkeyKV) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := v.client.Do(ctx, v.client.B().Get().Key(v.key(key)).Build()).ToString()
	if valkey.IsValkeyNil(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %q: %w", key, err)
	}
	return value, true, nil
}

func (v *ValkeyKV) Put(ctx context.Context, key, value string) error {
	if err := v.client.Do(ctx, v.client.B().Set().Key(v.key(key)).Value(value).Build()).Error(); err != nil {
		return fmt.Errorf("failed to write %q: %w", key, err)
	}
	return nil
}

func (v *ValkeyKV) Delete(ctx context.Context, key string) error {
	if err := v.client.Do(ctx, v.client.B().Del().Key(v.key(key)).Build()).Error(); err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

func (v *ValkeyKV) Close() error {
	v.client.Close()
	return nil
}
