package port

import (
	"context"

	"github.com/berfenger/powerwall2mqtt/internal/core/domain"
)

// Hub is the home automation side of the bridge.
type Hub interface {
	AddNodes(ctx context.Context, nodes []domain.Node) error
	RemoveNodes(ctx context.Context, nodes []domain.Node) error
	InstallProfile(ctx context.Context, nodes []domain.Node) error
	Report(events []domain.SensorUpdateEvent)
	AddNotice(key, message string)
	RemoveNoticesAll()
	SaveLogLevel(level int)
}
