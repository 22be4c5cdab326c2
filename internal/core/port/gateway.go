package port

import (
	"context"

	"github.com/berfenger/powerwall2mqtt/pkg/powerwall"
)

// Gateway is the local API of a Powerwall gateway. The host is passed on each
// call since it may change at runtime through the hub parameters.
type Gateway interface {
	Authenticate(ctx context.Context, host, password string) (string, error)
	FetchAggregateMeters(ctx context.Context, host string) (powerwall.Aggregates, error)
	FetchOperationMode(ctx context.Context, host, token string) (*powerwall.OperatingMode, error)
	SetOperationMode(ctx context.Context, host, token string, mode powerwall.OperatingMode) error
}

// ensure interface compliance
var (
	_ Gateway = (*powerwall.Client)(nil)
	_ Gateway = (*powerwall.TestGateway)(nil)
)
