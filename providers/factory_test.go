package providers_test

import (
	"testing"

	"github.com/BaSui01/avatargate/avatar"
	"github.com/BaSui01/avatargate/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/BaSui01/avatargate/providers/akool"
	_ "github.com/BaSui01/avatargate/providers/duix"
	_ "github.com/BaSui01/avatargate/providers/local"
	_ "github.com/BaSui01/avatargate/providers/mock"
	_ "github.com/BaSui01/avatargate/providers/senseavatar"
)

func TestBuildKnownKinds(t *testing.T) {
	for _, kind := range []string{"duix", "senseavatar", "akool", "local", "mock"} {
		p, err := providers.Build(avatar.Descriptor{
			Name:    kind + "-1",
			Kind:    kind,
			BaseURL: "http://localhost:9999",
		}, nil)
		require.NoError(t, err, "kind %q", kind)
		assert.Equal(t, kind+"-1", p.Name())
	}
}

func TestBuildUnknownKind(t *testing.T) {
	_, err := providers.Build(avatar.Descriptor{Name: "x", Kind: "hologram"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hologram")
}

func TestKindsRegistered(t *testing.T) {
	kinds := providers.Kinds()
	for _, want := range []string{"duix", "senseavatar", "akool", "local", "mock"} {
		assert.Contains(t, kinds, want)
	}
}
