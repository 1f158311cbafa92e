package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_block/internal/domain"
	"github.com/eliteGoblin/focusd/site_block/internal/usecase"
)

// Config holds the daemon's periodic intervals.
type Config struct {
	ScheduleInterval  time.Duration // how often to re-evaluate the schedule window
	HeartbeatInterval time.Duration // how often to update the pidfile heartbeat
	PruneInterval     time.Duration // how often to prune old history
	HistoryRetention  time.Duration // how far back history is kept
}

// DefaultConfig returns the default daemon configuration.
func DefaultConfig() Config {
	return Config{
		ScheduleInterval:  time.Minute,
		HeartbeatInterval: 30 * time.Second,
		PruneInterval:     24 * time.Hour,
		HistoryRetention:  90 * 24 * time.Hour,
	}
}

// Daemon runs the engine's periodic work and the message server.
// Session ticks and expiry alarms arrive through the TimerSet; this
// loop owns the ambient tickers (schedule window, heartbeat, pruning).
type Daemon struct {
	config   Config
	engine   *usecase.Engine
	registry domain.DaemonRegistry
	server   *Server
	logger   *zap.Logger
	info     domain.DaemonInfo
}

// New creates a daemon.
func New(
	config Config,
	engine *usecase.Engine,
	registry domain.DaemonRegistry,
	server *Server,
	info domain.DaemonInfo,
	logger *zap.Logger,
) *Daemon {
	return &Daemon{
		config:   config,
		engine:   engine,
		registry: registry,
		server:   server,
		logger:   logger,
		info:     info,
	}
}

// Run starts the daemon. This blocks until context is canceled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.registry.Register(d.info); err != nil {
		d.logger.Error("failed to register daemon", zap.Error(err))
		return err
	}

	// Reconcile persisted state before accepting commands: missed
	// completions, nuclear re-arm, override re-arm, rule re-assert.
	if err := d.engine.Recover(); err != nil {
		d.logger.Error("state recovery failed", zap.Error(err))
		return err
	}

	if err := d.server.Listen(); err != nil {
		d.logger.Error("failed to bind socket", zap.Error(err))
		return err
	}
	defer d.server.Close()

	serveDone := make(chan error, 1)
	go func() { serveDone <- d.server.Serve(ctx) }()

	d.logger.Info("daemon started", zap.Int("pid", d.info.PID))

	d.engine.PruneHistory(d.config.HistoryRetention)

	scheduleTicker := time.NewTicker(d.config.ScheduleInterval)
	heartbeatTicker := time.NewTicker(d.config.HeartbeatInterval)
	pruneTicker := time.NewTicker(d.config.PruneInterval)
	defer func() {
		scheduleTicker.Stop()
		heartbeatTicker.Stop()
		pruneTicker.Stop()
	}()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("daemon stopping")
			if err := d.registry.Clear(); err != nil {
				d.logger.Warn("failed to clear pidfile", zap.Error(err))
			}
			<-serveDone
			return ctx.Err()

		case err := <-serveDone:
			// Server died out from under us; the daemon is useless
			// without its socket.
			d.logger.Error("message server exited", zap.Error(err))
			return err

		case <-scheduleTicker.C:
			d.engine.EvaluateSchedule()

		case <-heartbeatTicker.C:
			if err := d.registry.Heartbeat(); err != nil {
				d.logger.Warn("failed to update heartbeat", zap.Error(err))
			}

		case <-pruneTicker.C:
			d.engine.PruneHistory(d.config.HistoryRetention)
		}
	}
}
