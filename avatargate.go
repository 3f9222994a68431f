// Package avatargate provides a top-level convenience entry point for
// building a delivery client from configuration with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/avatargate"
//
//	client, err := avatargate.New("avatargate.yaml", logger)
//	res, err := client.Speak(ctx, &avatar.SpeakRequest{Text: "what a goal!"})
//
// This wires the config loader, the provider factory, and the avatar client
// together. Use the avatar and providers packages directly when you need
// finer control over assembly.
package avatargate

import (
	"fmt"

	"github.com/BaSui01/avatargate/avatar"
	"github.com/BaSui01/avatargate/config"
	"github.com/BaSui01/avatargate/providers"
	"go.uber.org/zap"

	// Adapter kinds self-register with the provider factory.
	_ "github.com/BaSui01/avatargate/providers/akool"
	_ "github.com/BaSui01/avatargate/providers/duix"
	_ "github.com/BaSui01/avatargate/providers/local"
	_ "github.com/BaSui01/avatargate/providers/mock"
	_ "github.com/BaSui01/avatargate/providers/senseavatar"
)

// New loads configuration from path and assembles a ready-to-use client
// with every configured provider registered. Call [avatar.Client.Start] to
// begin background health probing.
func New(path string, logger *zap.Logger) (*avatar.Client, error) {
	cfg, err := config.NewLoader().WithConfigPath(path).Load()
	if err != nil {
		return nil, err
	}
	return FromConfig(cfg, logger)
}

// FromConfig assembles a client from an already loaded configuration.
func FromConfig(cfg *config.Config, logger *zap.Logger) (*avatar.Client, error) {
	client, err := avatar.NewClient(avatar.ClientConfig{
		AvatarID:      cfg.AvatarID,
		Retry:         cfg.Retry,
		Health:        cfg.Health,
		CacheTTL:      cfg.Cache.TTL,
		CacheCapacity: cfg.Cache.Capacity,
	}, logger)
	if err != nil {
		return nil, err
	}
	for _, pc := range cfg.Providers {
		desc := pc.Descriptor()
		p, err := providers.Build(desc, logger)
		if err != nil {
			return nil, fmt.Errorf("build provider %q: %w", desc.Name, err)
		}
		if err := client.Register(desc, p); err != nil {
			return nil, fmt.Errorf("register provider %q: %w", desc.Name, err)
		}
	}
	return client, nil
}
