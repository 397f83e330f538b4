package health

import "context"

// BackendPinger checks inference backend availability.
type BackendPinger interface {
	Ping(ctx context.Context) error
}
