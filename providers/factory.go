// Package providers hosts the avatar service adapters and the shared HTTP
// plumbing they build on.
package providers

import (
	"fmt"

	"github.com/BaSui01/avatargate/avatar"
	"go.uber.org/zap"
)

// Constructor builds a provider from its descriptor.
type Constructor func(desc avatar.Descriptor, logger *zap.Logger) (avatar.Provider, error)

var constructors = map[string]Constructor{}

// RegisterKind installs a constructor for a provider kind. Adapter packages
// call this from Build's dispatch table; external callers may add their own
// kinds before loading config.
func RegisterKind(kind string, ctor Constructor) {
	constructors[kind] = ctor
}

// Kinds lists the registered provider kinds.
func Kinds() []string {
	out := make([]string, 0, len(constructors))
	for k := range constructors {
		out = append(out, k)
	}
	return out
}

// Build constructs the adapter for a descriptor by its Kind.
func Build(desc avatar.Descriptor, logger *zap.Logger) (avatar.Provider, error) {
	ctor, ok := constructors[desc.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown provider kind %q (have %v)", desc.Kind, Kinds())
	}
	return ctor(desc, logger)
}
