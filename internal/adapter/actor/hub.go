package actor

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/berfenger/powerwall2mqtt/internal/core/domain"
	"github.com/berfenger/powerwall2mqtt/internal/core/port"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

const DEFAULT_HUB_TIMEOUT = 10 * time.Second

// MQTTHub exposes the MQTT actor as a port.Hub. Reports are fire and forget;
// discovery changes wait for the broker to acknowledge them.
type MQTTHub struct {
	sender  actor.SenderContext
	pid     *actor.PID
	notices map[string]string
	logger  *zap.Logger
}

func NewMQTTHub(sender actor.SenderContext, pid *actor.PID, logger *zap.Logger) *MQTTHub {
	return &MQTTHub{
		sender:  sender,
		pid:     pid,
		notices: map[string]string{},
		logger:  logger,
	}
}

func (h *MQTTHub) AddNodes(ctx context.Context, nodes []domain.Node) error {
	resp, err := h.request(ctx, domain.PublishDiscoveryRequest{Nodes: nodes})
	if err != nil {
		return err
	}
	r, ok := resp.(domain.PublishDiscoveryResponse)
	if !ok {
		return fmt.Errorf("unexpected response %T", resp)
	}
	if r.HasResponseError() {
		return r.GetResponseError()
	}
	h.logger.Debug("discovery published", zap.Int("nodes", len(nodes)), zap.Int("entities", r.Published))
	return nil
}

func (h *MQTTHub) RemoveNodes(ctx context.Context, nodes []domain.Node) error {
	resp, err := h.request(ctx, domain.RemoveDiscoveryRequest{Nodes: nodes})
	if err != nil {
		return err
	}
	r, ok := resp.(domain.RemoveDiscoveryResponse)
	if !ok {
		return fmt.Errorf("unexpected response %T", resp)
	}
	if r.HasResponseError() {
		return r.GetResponseError()
	}
	h.logger.Debug("discovery removed", zap.Int("nodes", len(nodes)), zap.Int("entities", r.Removed))
	return nil
}

// InstallProfile republishes the discovery documents so the hub picks up
// entity definition changes.
func (h *MQTTHub) InstallProfile(ctx context.Context, nodes []domain.Node) error {
	return h.AddNodes(ctx, nodes)
}

func (h *MQTTHub) Report(events []domain.SensorUpdateEvent) {
	if len(events) == 0 {
		return
	}
	h.sender.Send(h.pid, domain.PublishSensorUpdateRequest{Events: events})
}

func (h *MQTTHub) AddNotice(key, message string) {
	if current, ok := h.notices[key]; ok && current == message {
		return
	}
	h.notices[key] = message
	h.publishNotices()
}

func (h *MQTTHub) RemoveNoticesAll() {
	h.notices = map[string]string{}
	h.publishNotices()
}

func (h *MQTTHub) Notices() map[string]string {
	return maps.Clone(h.notices)
}

func (h *MQTTHub) SaveLogLevel(level int) {
	h.sender.Send(h.pid, domain.SaveLogLevelRequest{Level: level})
}

func (h *MQTTHub) publishNotices() {
	h.sender.Send(h.pid, domain.PublishNoticesRequest{Notices: maps.Clone(h.notices)})
}

func (h *MQTTHub) request(ctx context.Context, msg any) (any, error) {
	timeout := DEFAULT_HUB_TIMEOUT
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return nil, ctx.Err()
		}
	}
	return h.sender.RequestFuture(h.pid, msg, timeout).Result()
}

// ensure interface compliance
var _ port.Hub = (*MQTTHub)(nil)
