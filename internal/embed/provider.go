// Package embed converts text into fixed-length vectors via pluggable
// backend providers.
package embed

import "context"

// Provider is the interface all embedding backends must implement.
type Provider interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension returns the fixed vector length this provider produces.
	Dimension() int
	// Name returns the provider identifier (e.g. "openai", "static").
	Name() string
}
