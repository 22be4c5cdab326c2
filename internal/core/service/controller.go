package service

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/berfenger/powerwall2mqtt/internal/core/domain"
	"github.com/berfenger/powerwall2mqtt/internal/core/events"
	"github.com/berfenger/powerwall2mqtt/internal/core/port"
	"github.com/berfenger/powerwall2mqtt/internal/metrics"
	"github.com/berfenger/powerwall2mqtt/pkg/powerwall"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	STATE_UNCONFIGURED = "unconfigured"
	STATE_CONFIGURED   = "configured"
)

// LevelSetter is satisfied by zap.AtomicLevel.
type LevelSetter interface {
	SetLevel(zapcore.Level)
	Level() zapcore.Level
}

type ControllerConfig struct {
	// Credentialed enables the authenticated gateway endpoints (operation mode).
	Credentialed bool
	// Identity seeds the hub device identifiers.
	Identity string
}

type session struct {
	token string
	valid bool
}

type Controller struct {
	cfg     ControllerConfig
	gateway port.Gateway
	hub     port.Hub
	level   LevelSetter
	metrics *metrics.Metrics
	logger  *zap.Logger

	params       *ParameterStore
	customParams map[string]string
	configured   bool
	force        bool
	session      session

	device   domain.Device
	channels []*MeterChannel
	nodes    []domain.Node
	mode     *powerwall.OperatingMode
	logLevel *int
}

func NewController(cfg ControllerConfig, gateway port.Gateway, hub port.Hub, level LevelSetter,
	m *metrics.Metrics, logger *zap.Logger) *Controller {
	return &Controller{
		cfg:          cfg,
		gateway:      gateway,
		hub:          hub,
		level:        level,
		metrics:      m,
		logger:       logger,
		params:       NewParameterStore(DefaultParameters(cfg.Credentialed)),
		customParams: map[string]string{},
		force:        true,
		device:       domain.ControllerDevice(cfg.Identity),
	}
}

func (c *Controller) State() string {
	if c.configured {
		return STATE_CONFIGURED
	}
	return STATE_UNCONFIGURED
}

func (c *Controller) Start(ctx context.Context) {
	c.logger.Info("starting node server", zap.Bool("credentialed", c.cfg.Credentialed))
	c.checkParams()
	c.discover(ctx)
	c.hub.Report(events.ControllerStatusToUpdateEvents(true))
	c.reportParameters()
	if c.configured && c.cfg.Credentialed {
		_ = c.authenticate(ctx)
	}
	c.poll(ctx)
	c.force = false
	c.logger.Info("node server started", zap.String("state", c.State()))
}

func (c *Controller) checkParams() {
	c.hub.RemoveNoticesAll()
	c.setConfigured(c.params.GetFromHub(c.customParams))
	if !c.configured {
		c.sendNotices()
	}
}

func (c *Controller) sendNotices() {
	for key, notice := range c.params.Notices() {
		c.hub.AddNotice(key, notice)
	}
}

func (c *Controller) setConfigured(configured bool) {
	c.configured = configured
	c.metrics.SetConfigured(configured)
}

func (c *Controller) ConfigChanged(raw map[string]string) {
	c.customParams = maps.Clone(raw)
	valid, changed := c.params.UpdateFromHub(raw)
	switch {
	case changed && !valid:
		c.logger.Debug("configuration changed but is incomplete")
		c.hub.RemoveNoticesAll()
		c.sendNotices()
		c.setConfigured(false)
	case changed && valid:
		c.logger.Info("configuration changed and is complete")
		c.hub.RemoveNoticesAll()
		c.setConfigured(true)
		c.session = session{}
	default:
		c.logger.Debug("configuration unchanged", zap.Bool("valid", valid))
	}
	c.reportParameters()
}

func (c *Controller) discover(ctx context.Context) {
	if c.nodes == nil {
		texts := lo.Map(c.params.Parameters(), func(p Parameter, _ int) domain.GenericText {
			return domain.ParameterText(c.device, p.Key(), p.Name, p.Secret)
		})
		c.nodes = append(c.nodes, domain.ControllerNode(c.device, c.cfg.Credentialed, texts))
		for _, meter := range domain.Meters {
			c.channels = append(c.channels, NewMeterChannel(meter))
			c.nodes = append(c.nodes, domain.MeterNode(c.device, meter))
		}
	}
	if err := c.hub.AddNodes(ctx, c.nodes); err != nil {
		c.logger.Error("failed to add nodes", zap.Error(err))
	}
}

func (c *Controller) ShortPoll(ctx context.Context) {
	if !c.configured {
		c.logger.Info("not configured, skipping poll")
		c.metrics.ObservePoll(metrics.POLL_RESULT_SKIPPED)
		return
	}
	c.poll(ctx)
}

func (c *Controller) LongPoll(_ context.Context) {
	c.logger.Debug("long poll")
}

func (c *Controller) poll(ctx context.Context) {
	if !c.configured {
		return
	}
	err := c.pollMeters(ctx)
	if c.cfg.Credentialed {
		err = errors.Join(err, c.pollOperationMode(ctx))
	}
	c.metrics.ObservePoll(domain.ErrorKind(err))
}

func (c *Controller) host() string {
	host, _ := c.params.Get(PARAM_IP_ADDRESS)
	return host
}

func (c *Controller) pollMeters(ctx context.Context) error {
	aggregates, err := c.gateway.FetchAggregateMeters(ctx, c.host())
	err = gatewayError(err)
	c.metrics.ObserveGatewayRequest(metrics.ENDPOINT_AGGREGATES, err)
	if err != nil {
		c.logger.Error("failed to read meter aggregates", zap.Error(err))
		return err
	}

	var updates []domain.SensorUpdateEvent
	for _, ch := range c.channels {
		reading, ok := aggregates[ch.Key()]
		if !ok {
			continue
		}
		u := ch.Update(reading, c.force)
		c.metrics.ObserveChannelUpdates(ch.Address(), len(u))
		updates = append(updates, u...)
	}
	if len(updates) > 0 {
		c.hub.Report(updates)
	}
	return nil
}

func (c *Controller) pollOperationMode(ctx context.Context) error {
	var mode *powerwall.OperatingMode
	err := c.withSession(ctx, func(token string) error {
		var err error
		mode, err = c.gateway.FetchOperationMode(ctx, c.host(), token)
		err = gatewayError(err)
		c.metrics.ObserveGatewayRequest(metrics.ENDPOINT_OPERATION, err)
		return err
	})
	if err != nil {
		c.logger.Error("failed to read operation mode", zap.Error(err))
		return err
	}
	if mode == nil {
		return nil
	}
	if c.force || c.mode == nil || *c.mode != *mode {
		c.hub.Report(events.OperationModeToUpdateEvents(*mode))
	}
	c.mode = mode
	return nil
}

// withSession runs fn with a valid token. A rejected token triggers one
// re-authentication and retry per call.
func (c *Controller) withSession(ctx context.Context, fn func(token string) error) error {
	fresh := false
	if !c.session.valid {
		if err := c.authenticate(ctx); err != nil {
			return err
		}
		fresh = true
	}
	err := fn(c.session.token)
	if !errors.Is(err, domain.ErrAuthFailure) || fresh {
		return err
	}
	c.logger.Info("gateway session expired, authenticating again")
	c.session = session{}
	if err := c.authenticate(ctx); err != nil {
		return err
	}
	return fn(c.session.token)
}

func (c *Controller) authenticate(ctx context.Context) error {
	password, _ := c.params.Get(PARAM_PASSWORD)
	token, err := c.gateway.Authenticate(ctx, c.host(), password)
	if err != nil {
		err = fmt.Errorf("%w: %w", domain.ErrAuthFailure, err)
		c.metrics.ObserveGatewayRequest(metrics.ENDPOINT_LOGIN, err)
		c.session = session{}
		c.logger.Error("gateway authentication failed", zap.Error(err))
		return err
	}
	c.metrics.ObserveGatewayRequest(metrics.ENDPOINT_LOGIN, nil)
	c.session = session{token: token, valid: true}
	c.logger.Debug("gateway session established")
	return nil
}

func (c *Controller) Query(_ context.Context) {
	var updates []domain.SensorUpdateEvent
	updates = append(updates, events.ControllerStatusToUpdateEvents(true)...)
	if c.mode != nil {
		updates = append(updates, events.OperationModeToUpdateEvents(*c.mode)...)
	}
	if c.logLevel != nil {
		updates = append(updates, events.LogLevelToUpdateEvents(*c.logLevel)...)
	}
	for _, ch := range c.channels {
		updates = append(updates, ch.Report()...)
	}
	c.hub.Report(updates)
	c.reportParameters()
}

func (c *Controller) reportParameters() {
	var updates []domain.SensorUpdateEvent
	for _, p := range c.params.Parameters() {
		if p.Secret {
			continue
		}
		v, _ := c.params.Get(p.Name)
		updates = append(updates, events.ParameterToUpdateEvent(p.Key(), v))
	}
	if len(updates) > 0 {
		c.hub.Report(updates)
	}
}

func (c *Controller) Stop(_ context.Context) {
	c.hub.Report(events.ControllerStatusToUpdateEvents(false))
	c.logger.Info("node server stopping")
}

func (c *Controller) Delete(ctx context.Context) {
	c.logger.Info("removing node server")
	if err := c.hub.RemoveNodes(ctx, c.nodes); err != nil {
		c.logger.Error("failed to remove nodes", zap.Error(err))
	}
}

func (c *Controller) Command(ctx context.Context, cmd domain.ControllerCommand) error {
	c.logger.Debug("command received", zap.String("command", cmd.CommandName()))
	switch cmd := cmd.(type) {
	case domain.UpdateProfileCommand:
		return c.updateProfile(ctx)
	case domain.RemoveNoticesAllCommand:
		c.hub.RemoveNoticesAll()
		return nil
	case domain.DebugCommand:
		c.setLoggingLevel(cmd.Level)
		return nil
	case domain.OperationCommand:
		return c.setOperation(ctx, cmd.Mode)
	case domain.QueryCommand:
		c.Query(ctx)
		return nil
	case domain.DeleteCommand:
		c.Delete(ctx)
		return nil
	case domain.RestoreLogLevelCommand:
		c.restoreLoggingLevel(cmd.Level)
		return nil
	case domain.HubOnlineCommand:
		c.discover(ctx)
		c.Query(ctx)
		return nil
	default:
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedCommand, cmd.CommandName())
	}
}

func (c *Controller) updateProfile(ctx context.Context) error {
	c.logger.Info("installing profile")
	if err := c.hub.InstallProfile(ctx, c.nodes); err != nil {
		c.logger.Error("profile install failed", zap.Error(err))
		return err
	}
	return nil
}

func (c *Controller) setLoggingLevel(level *int) {
	var value int
	switch {
	case level != nil:
		value = *level
	case c.logLevel != nil:
		value = *c.logLevel
	default:
		value = domain.DEFAULT_LOG_LEVEL
	}
	c.logLevel = &value
	c.hub.SaveLogLevel(value)
	c.logger.Info("setting log level", zap.Int("level", value))
	c.level.SetLevel(ZapLevel(value))
	c.hub.Report(events.LogLevelToUpdateEvents(value))
}

func (c *Controller) restoreLoggingLevel(level int) {
	c.logLevel = &level
	c.level.SetLevel(ZapLevel(level))
	c.hub.Report(events.LogLevelToUpdateEvents(level))
}

func (c *Controller) setOperation(ctx context.Context, name string) error {
	if !c.cfg.Credentialed {
		c.logger.Warn("operation mode changes need gateway credentials", zap.String("mode", name))
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedCommand, domain.COMMAND_OPERATION)
	}
	if !c.configured {
		return fmt.Errorf("%w: %s", domain.ErrConfigInvalid, domain.COMMAND_OPERATION)
	}
	mode, ok := powerwall.ParseOperatingMode(name)
	if !ok {
		c.logger.Warn("unknown operation mode", zap.String("mode", name))
		return fmt.Errorf("%w: operation mode %q", domain.ErrUnrecognizedValue, name)
	}

	c.logger.Info("setting operation mode", zap.Stringer("mode", mode))
	err := c.withSession(ctx, func(token string) error {
		err := gatewayError(c.gateway.SetOperationMode(ctx, c.host(), token, mode))
		c.metrics.ObserveGatewayRequest(metrics.ENDPOINT_OPERATION_SET, err)
		return err
	})
	if err != nil {
		c.logger.Error("failed to set operation mode", zap.Error(err))
		return err
	}
	c.force = true
	err = c.pollOperationMode(ctx)
	c.force = false
	return err
}

// ZapLevel maps numeric levels (10 debug .. 50 critical) onto zap levels.
func ZapLevel(level int) zapcore.Level {
	switch {
	case level <= 10:
		return zapcore.DebugLevel
	case level <= 20:
		return zapcore.InfoLevel
	case level <= 30:
		return zapcore.WarnLevel
	case level <= 40:
		return zapcore.ErrorLevel
	default:
		return zapcore.FatalLevel
	}
}

func gatewayError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, powerwall.ErrUnauthorized), errors.Is(err, powerwall.ErrAuth):
		return fmt.Errorf("%w: %w", domain.ErrAuthFailure, err)
	case errors.Is(err, powerwall.ErrEmptyResponse), errors.Is(err, powerwall.ErrMalformedResponse):
		return fmt.Errorf("%w: %w", domain.ErrMalformedResponse, err)
	case errors.Is(err, powerwall.ErrUnknownMode):
		return fmt.Errorf("%w: %w", domain.ErrUnrecognizedValue, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}
}

// ensure interface compliance
var _ port.Lifecycle = (*Controller)(nil)
