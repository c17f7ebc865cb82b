// Package hooks provides lifecycle hook defaults.
package hooks

import "github.com/Lucascis/coord/types"

// NewNop returns an empty Hooks value.
//
// Every callback is nil; callers check for nil before invoking, so an empty
// value is a valid no-op implementation.
func NewNop() types.Hooks {
	return types.Hooks{}
}
