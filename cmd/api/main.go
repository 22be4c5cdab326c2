package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	adactor "github.com/berfenger/powerwall2mqtt/internal/adapter/actor"
	"github.com/berfenger/powerwall2mqtt/internal/config"
	"github.com/berfenger/powerwall2mqtt/internal/core/actor"
	"github.com/berfenger/powerwall2mqtt/internal/core/domain"
	"github.com/berfenger/powerwall2mqtt/internal/core/port"
	"github.com/berfenger/powerwall2mqtt/internal/core/service"
	"github.com/berfenger/powerwall2mqtt/internal/metrics"
	"github.com/berfenger/powerwall2mqtt/internal/server"
	"github.com/berfenger/powerwall2mqtt/internal/util/actorutil"
	"github.com/berfenger/powerwall2mqtt/pkg/powerwall"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		os.Exit(1)
	}
	safePrintConfig(*cfg)

	// zap logger, its level can be changed at runtime with the DEBUG command
	level := zap.NewAtomicLevelAt(cfg.LogLevel)
	logger, err := config.NewLogger(cfg.LogFormat, level)
	if err != nil {
		slog.Error("logger", "error", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// gateway client
	gateway := powerwall.NewClient(
		powerwall.WithTimeout(cfg.Gateway.Timeout()),
		powerwall.WithInsecureSkipVerify(cfg.Gateway.InsecureSkipVerify),
		powerwall.WithForceSmOff(cfg.Gateway.ForceSmOff),
		powerwall.WithLogger(logger.With(zap.String("component", "gateway"))),
		powerwall.WithInstrument(m.GatewayInstrument()),
	)

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	root := as.Root

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, mqttActorProvider(cfg, logger),
			lifecycleProvider(cfg, gateway, level, m, logger), logger)
	})
	pid, err := root.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		logger.Error("could not spawn master actor", zap.Error(err))
		return
	}

	apiServer := server.NewServer(*cfg, root, pid, reg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := apiServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down gracefully, press Ctrl+C again to force")
		stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return apiServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited with error", zap.Error(err))
	}

	// stopping the master stops the controller (node server off) and the MQTT actor (bridge offline)
	if err := root.StopFuture(pid).Wait(); err != nil {
		logger.Warn("master actor did not stop cleanly", zap.Error(err))
	}
	as.Shutdown()
	logger.Info("graceful shutdown complete")
}

func initConfig() (*config.Config, error) {

	// alias PORT => POWERWALL_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("POWERWALL_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("powerwall")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	cfg.LogLevel = config.ParseLogLevel(viper.GetString("log_level"))

	logFormat, err := config.ValidateLogFormat(cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	cfg.LogFormat = logFormat

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	// check bounds
	if cfg.MonitorConfig.PollIntervalMillis < 1000 {
		return nil, errors.New("config param monitor.poll_interval_millis should be >= 1000")
	}
	if cfg.MonitorConfig.LongPollIntervalMillis < cfg.MonitorConfig.PollIntervalMillis {
		return nil, errors.New("config param monitor.long_poll_interval_millis should be >= monitor.poll_interval_millis")
	}
	if cfg.Gateway.TimeoutMillis < 500 {
		return nil, errors.New("config param gateway.timeout_millis should be >= 500")
	}

	return &cfg, nil
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func() *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, logger)
	}
}

func lifecycleProvider(cfg *config.Config, gateway port.Gateway, level zap.AtomicLevel, m *metrics.Metrics, logger *zap.Logger) actor.LifecycleProvider {
	return func(hub port.Hub) port.Lifecycle {
		return service.NewController(service.ControllerConfig{
			Credentialed: cfg.Gateway.Credentialed,
			Identity:     cfg.MQTT.BaseTopic,
		}, gateway, hub, level, m, logger.With(zap.String("component", "controller")))
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("log_format", config.LOG_FORMAT_CONSOLE)
	viper.SetDefault("gateway.host", "")
	viper.SetDefault("gateway.password", "")
	viper.SetDefault("gateway.serial_number", "")
	viper.SetDefault("gateway.credentialed", false)
	viper.SetDefault("gateway.insecure_skip_verify", true)
	viper.SetDefault("gateway.force_sm_off", false)
	viper.SetDefault("gateway.timeout_millis", 10000)
	viper.SetDefault("mqtt.host", "localhost")
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "powerwall")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("monitor.poll_interval_millis", 10000)
	viper.SetDefault("monitor.long_poll_interval_millis", 60000)
	viper.SetDefault("port", 8080)
	viper.SetDefault("http_log", false)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	cfg.Gateway.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
