// Package sherpa re-exports the sherpa-onnx bindings for the current platform
// so the speech packages can build against one import path.
package sherpa

import "slices"

// ResolveProvider maps a requested execution provider to one this build
// supports. "auto" and unknown values fall back to DefaultProvider.
func ResolveProvider(requested string) string {
	if requested != "" && requested != "auto" && slices.Contains(AvailableProviders(), requested) {
		return requested
	}
	return DefaultProvider()
}
