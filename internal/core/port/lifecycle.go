package port

import (
	"context"

	"github.com/berfenger/powerwall2mqtt/internal/core/domain"
)

// Lifecycle is driven by a single scheduler; implementations are not safe
// for concurrent use.
type Lifecycle interface {
	Start(ctx context.Context)
	ShortPoll(ctx context.Context)
	LongPoll(ctx context.Context)
	Query(ctx context.Context)
	Stop(ctx context.Context)
	Delete(ctx context.Context)
	ConfigChanged(raw map[string]string)
	Command(ctx context.Context, cmd domain.ControllerCommand) error
	State() string
}
