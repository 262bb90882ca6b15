package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"thermo-bridge/common/database"
	mqttcommon "thermo-bridge/common/mqtt"
	rediscommon "thermo-bridge/common/redis"
	"thermo-bridge/internal/codec"
	"thermo-bridge/internal/config"
	"thermo-bridge/internal/consumer"
	"thermo-bridge/internal/dispatcher"
	"thermo-bridge/internal/events"
	httpapi "thermo-bridge/internal/http"
	"thermo-bridge/internal/listener"
	"thermo-bridge/internal/registry"
	"thermo-bridge/internal/store"
)

// Bridge wires the ingestion pipeline together: listeners feed codecs,
// codecs feed the registry, the registry feeds the event sinks. Optional
// integrations (Redis, MQTT, PostgreSQL, webhook) attach when enabled.
type Bridge struct {
	cfg    *config.Config
	logger *zap.Logger

	registry    *registry.Registry
	deviceStore store.DeviceStore

	redisClient     *rediscommon.Client
	db              *sql.DB
	mqttClient      *mqttcommon.Client
	confirmConsumer *consumer.ConfirmConsumer

	udpListener *listener.UDPListener
	tcpListener *listener.TCPListener
	httpServer  *http.Server
}

// New builds the bridge from config. External connections (Redis, MQTT,
// PostgreSQL) are opened here; a failed connection is a startup error.
func New(cfg *config.Config, logger *zap.Logger) (*Bridge, error) {
	b := &Bridge{
		cfg:    cfg,
		logger: logger,
	}

	var publishers []events.Publisher

	if cfg.RedisEnabled {
		client := rediscommon.NewRedisClient(&cfg.Redis)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rediscommon.Ping(ctx, client)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}

		b.redisClient = client
		publishers = append(publishers, events.NewRedisPublisher(
			client,
			cfg.DiscoveryStream,
			cfg.MeasurementStream,
			"",
			cfg.StateTTL,
			logger,
		))
		logger.Info("Redis publisher enabled", zap.String("addr", cfg.Redis.Addr))
	}

	if cfg.WebhookEnabled {
		publishers = append(publishers, events.NewWebhookNotifier(cfg.WebhookURL, logger))
		logger.Info("Discovery webhook enabled", zap.String("url", cfg.WebhookURL))
	}

	var publisher events.Publisher
	switch len(publishers) {
	case 0:
		publisher = nil
	case 1:
		publisher = publishers[0]
	default:
		publisher = events.Multi(publishers)
	}

	b.registry = registry.New(publisher, logger)

	if cfg.DatabaseEnabled {
		db, err := database.NewPostgresDB(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		b.db = db

		pgStore := store.NewPostgresDeviceStore(db, logger)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := pgStore.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		b.deviceStore = pgStore

		if err := b.restoreDevices(ctx, pgStore); err != nil {
			return nil, err
		}
	}

	if cfg.MQTTEnabled {
		mqttClient, err := mqttcommon.NewClient(&cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}
		b.mqttClient = mqttClient
		b.confirmConsumer = consumer.NewConfirmConsumer(
			cfg.ConfirmTopic,
			cfg.MQTT.QoS,
			mqttClient,
			b.registry,
			b.deviceStore,
			logger,
		)
	}

	if cfg.UDPEnabled() {
		d := dispatcher.New(&codec.DelimitedCodec{}, b.registry, logger)
		b.udpListener = listener.NewUDPListener(cfg.UDPBind, cfg.UDPPort, d, logger)
	}

	if cfg.TCPEnabled() {
		d := dispatcher.New(&codec.NDJSONCodec{}, b.registry, logger)
		b.tcpListener = listener.NewTCPListener(cfg.TCPBind, cfg.TCPPort, cfg.TCPIdleTimeout, d, logger)
	}

	if cfg.HTTPEnabled {
		router := httpapi.NewRouter(logger)
		router.RegisterBridgeRoutes(httpapi.NewDeviceHandler(b.registry, b.deviceStore, logger))
		b.httpServer = &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: router,
		}
	}

	return b, nil
}

// restoreDevices pre-seeds the registry with previously confirmed devices
func (b *Bridge) restoreDevices(ctx context.Context, s store.DeviceStore) error {
	entries, err := s.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore device entries: %w", err)
	}

	for _, entry := range entries {
		b.registry.Restore(entry.DeviceID, codec.RecordType(entry.DeviceType), entry.DisplayName)
	}

	b.logger.Info("Restored confirmed devices", zap.Int("count", len(entries)))
	return nil
}

// Start launches the listeners, the confirmation consumer and the HTTP
// server
func (b *Bridge) Start(ctx context.Context) error {
	if b.udpListener != nil {
		if err := b.udpListener.Start(ctx); err != nil {
			return err
		}
	}

	if b.tcpListener != nil {
		if err := b.tcpListener.Start(ctx); err != nil {
			return err
		}
	}

	if b.confirmConsumer != nil {
		if err := b.confirmConsumer.Start(ctx); err != nil {
			return err
		}
	}

	if b.mqttClient != nil {
		if err := b.mqttClient.Publish(b.cfg.StatusTopic, b.cfg.MQTT.QoS, true, []byte("online")); err != nil {
			b.logger.Warn("Failed to publish online status", zap.Error(err))
		}
	}

	if b.httpServer != nil {
		go func() {
			b.logger.Info("HTTP server started", zap.String("addr", b.httpServer.Addr))
			if err := b.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				b.logger.Error("HTTP server error", zap.Error(err))
			}
		}()
	}

	b.logger.Info("Bridge started",
		zap.String("listen_mode", b.cfg.ListenMode),
	)
	return nil
}

// Stop shuts everything down in reverse order: intake first, so nothing
// new enters the pipeline while the sinks drain.
func (b *Bridge) Stop(ctx context.Context) error {
	if b.udpListener != nil {
		if err := b.udpListener.Stop(ctx); err != nil {
			b.logger.Warn("UDP listener stop failed", zap.Error(err))
		}
	}

	if b.tcpListener != nil {
		if err := b.tcpListener.Stop(ctx); err != nil {
			b.logger.Warn("TCP listener stop failed", zap.Error(err))
		}
	}

	if b.confirmConsumer != nil {
		_ = b.confirmConsumer.Stop(ctx)
	}

	if b.mqttClient != nil {
		if err := b.mqttClient.Publish(b.cfg.StatusTopic, b.cfg.MQTT.QoS, true, []byte("offline")); err != nil {
			b.logger.Warn("Failed to publish offline status", zap.Error(err))
		}
		b.mqttClient.Disconnect()
	}

	if b.httpServer != nil {
		if err := b.httpServer.Shutdown(ctx); err != nil {
			b.logger.Warn("HTTP server shutdown failed", zap.Error(err))
		}
	}

	if b.redisClient != nil {
		_ = rediscommon.Close(b.redisClient)
	}

	if b.db != nil {
		_ = database.Close(b.db)
	}

	b.logger.Info("Bridge stopped")
	return nil
}
