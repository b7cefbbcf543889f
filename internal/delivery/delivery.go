// Package delivery defines the contract every transport entrypoint satisfies.
package delivery

import "context"

// Delivery is implemented by each serving surface. Serve blocks until the
// server stops or fails.
type Delivery interface {
	Serve(ctx context.Context) error
}
