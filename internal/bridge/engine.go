// Package bridge composes the pose ingester, the PLC workers, the optional relay
// and the audit trail into one long-running process.
package bridge

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/dyluth/locbridge/internal/config"
	"github.com/dyluth/locbridge/internal/locator"
	"github.com/dyluth/locbridge/internal/pose"
	"github.com/dyluth/locbridge/internal/register"
	"github.com/dyluth/locbridge/internal/relay"
	"github.com/dyluth/locbridge/internal/resilient"
	"github.com/dyluth/locbridge/internal/seedzero"
	"github.com/dyluth/locbridge/internal/teachset"
	"github.com/dyluth/locbridge/pkg/blackboard"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// AuditQueueSize is the number of audit records buffered ahead of Redis.
const AuditQueueSize = 256

type worker struct {
	name string
	run  func(ctx context.Context) error
}

// Engine runs every worker of the bridge until its context is cancelled.
type Engine struct {
	cfg      *config.Config
	log      *zap.SugaredLogger
	cell     *pose.Cell
	links    []*resilient.Link
	workers  []worker
	bbClient *blackboard.Client
	sink     *EventSink
	now      func() time.Time
	wg       sync.WaitGroup
}

// New builds an engine for cfg. Redis is connected only when redis.url is set;
// an unreachable Redis is logged and does not prevent startup.
func New(cfg *config.Config, log *zap.SugaredLogger) (*Engine, error) {
	e := &Engine{
		cfg:  cfg,
		log:  log.Named("bridge"),
		cell: pose.NewCell(),
		now:  time.Now,
	}

	if cfg.Redis.URL != "" {
		bb, err := blackboard.NewClientFromURL(cfg.Redis.URL, cfg.Instance)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Sync.ConnectTimeout)
		if err := bb.Ping(ctx); err != nil {
			e.log.Warnw("Redis not reachable, audit records will be dropped until it is", "url", cfg.Redis.URL, "err", err)
		}
		cancel()
		e.bbClient = bb
		e.sink = NewEventSink(bb, AuditQueueSize, log.Named("audit"))
	}

	// An untyped nil keeps the workers' nil checks working when auditing is off.
	var zeroEvents seedzero.EventSink
	var syncEvents teachset.EventSink
	if e.sink != nil {
		zeroEvents = e.sink
		syncEvents = e.sink
	}

	poseLink := resilient.NewLink("pose")
	zeroLink := resilient.NewLink("seedzero")
	syncLink := resilient.NewLink("teachset")
	e.links = []*resilient.Link{poseLink, zeroLink, syncLink}

	orders := cfg.Orders()
	modbusPolicy := func(link *resilient.Link) resilient.Policy {
		return resilient.Policy{
			ConnectBackoff: cfg.Sync.ModbusBackoff,
			RetryBackoff:   cfg.Sync.ModbusBackoff,
			Link:           link,
		}
	}

	ingester := pose.NewIngester(pose.IngesterConfig{
		Addr:        net.JoinHostPort(cfg.Locator.Host, strconv.Itoa(cfg.Locator.PosePort)),
		DialTimeout: cfg.Sync.ConnectTimeout,
		ReadTimeout: cfg.Sync.ConnectTimeout,
		Policy: resilient.Policy{
			ConnectBackoff: cfg.Sync.PoseBackoff,
			RetryBackoff:   cfg.Sync.PoseBackoff,
			Link:           poseLink,
		},
	}, e.cell, log.Named("pose"))

	updater := seedzero.New(seedzero.Config{
		Address:  cfg.CurrentPoseAddress(),
		Interval: cfg.Sync.PollInterval,
		Thresholds: seedzero.Thresholds{
			Translation: cfg.Sync.MinTranslation,
			Rotation:    cfg.Sync.MinRotation,
		},
		Orders: orders,
		Policy: modbusPolicy(zeroLink),
	}, e.cell, e.dialPLC, zeroEvents, log.Named("seedzero"))

	seeder := locator.NewClient(LocatorConfig(cfg), log.Named("locator"))
	synchronizer := teachset.New(teachset.Config{
		BitsAddress:  cfg.Seeds.BitsStartingAddr,
		PosesAddress: cfg.Seeds.PosesStartingAddr,
		SeedCount:    cfg.Seeds.Count,
		Interval:     cfg.Sync.PollInterval,
		Orders:       orders,
		Policy:       modbusPolicy(syncLink),
	}, e.cell, e.dialPLC, seeder, syncEvents, log.Named("teachset"))

	e.workers = []worker{
		{"pose", ingester.Run},
		{"seedzero", updater.Run},
		{"teachset", synchronizer.Run},
	}

	if cfg.Relay.Enabled {
		r := relay.New(RelayConfig(cfg), log.Named("relay"))
		e.workers = append(e.workers, worker{"relay", r.Run})
	}

	return e, nil
}

// LocatorConfig maps the locator section of cfg onto a JSON-RPC client config.
func LocatorConfig(cfg *config.Config) locator.Config {
	return locator.Config{
		Host:           cfg.Locator.Host,
		Port:           cfg.Locator.JSONRPCPort,
		UserName:       cfg.Locator.UserName,
		Password:       cfg.Locator.Password,
		SessionTimeout: cfg.Locator.SessionTimeout,
		RequestTimeout: cfg.Locator.RequestTimeout,
	}
}

// RelayConfig maps the relay section of cfg onto a relay config.
func RelayConfig(cfg *config.Config) relay.Config {
	return relay.Config{
		Source:      net.JoinHostPort(cfg.Locator.Host, strconv.Itoa(cfg.Locator.PosePort)),
		Listen:      cfg.Relay.Listen,
		Frequency:   cfg.Relay.Frequency,
		DialTimeout: cfg.Sync.ConnectTimeout,
		ReadTimeout: cfg.Sync.ConnectTimeout,
		Policy: resilient.Policy{
			ConnectBackoff: cfg.Sync.ModbusBackoff,
			RetryBackoff:   cfg.Sync.ModbusBackoff,
		},
	}
}

// ModbusConfig maps the plc section of cfg onto a gateway config.
func ModbusConfig(cfg *config.Config) register.ModbusConfig {
	return register.ModbusConfig{
		Host:    cfg.PLC.Host,
		Port:    cfg.PLC.Port,
		UnitID:  byte(cfg.PLC.UnitID),
		Timeout: cfg.PLC.Timeout,
	}
}

// dialPLC opens a fresh Modbus connection. Each PLC worker owns its own.
func (e *Engine) dialPLC(ctx context.Context) (register.Gateway, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Sync.ConnectTimeout)
	defer cancel()
	gw, err := register.DialModbus(ctx, ModbusConfig(e.cfg))
	if err != nil {
		return nil, err
	}
	return gw, nil
}

// Cell returns the shared pose cell.
func (e *Engine) Cell() *pose.Cell {
	return e.cell
}

// Start launches every worker and blocks until ctx is cancelled and all of
// them have exited.
func (e *Engine) Start(ctx context.Context) error {
	e.log.Infow("Bridge starting",
		"instance", e.cfg.Instance,
		"locator", e.cfg.Locator.Host,
		"plc", ModbusConfig(e.cfg).Address(),
		"seeds", e.cfg.Seeds.Count)

	if e.sink != nil {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.sink.Run(ctx)
		}()
	}

	for _, w := range e.workers {
		e.wg.Add(1)
		go func(w worker) {
			defer e.wg.Done()
			if err := w.run(ctx); err != nil && ctx.Err() == nil {
				e.log.Errorw("Worker stopped", "worker", w.name, "err", err)
			}
		}(w)
	}

	<-ctx.Done()
	e.log.Infow("Shutdown signal received, stopping workers")

	e.wg.Wait()
	e.log.Infow("All workers exited, shutdown complete")
	return nil
}

// Close releases the Redis client.
func (e *Engine) Close() error {
	var err error
	if e.bbClient != nil {
		err = multierr.Append(err, e.bbClient.Close())
	}
	return err
}

// Report implements Reporter.
func (e *Engine) Report(ctx context.Context) HealthReport {
	report := HealthReport{Status: "healthy"}

	if p, ok := e.cell.Load(); ok {
		report.Pose = PoseStatus{
			Received:  true,
			Localized: p.Localized(),
			State:     p.State,
			X:         p.X,
			Y:         p.Y,
			Yaw:       p.Yaw,
		}
		if !p.Timestamp.IsZero() {
			report.Pose.AgeMs = e.now().Sub(p.Timestamp).Milliseconds()
		}
	}

	var down []string
	for _, l := range e.links {
		state := l.State()
		report.Links = append(report.Links, state)
		if !state.Connected {
			down = append(down, state.Name)
		}
	}
	if len(down) > 0 {
		report.Status = "unhealthy"
		report.Error = fmt.Sprintf("not connected: %v", down)
	}

	if e.bbClient != nil {
		if err := e.bbClient.Ping(ctx); err != nil {
			report.Redis = "unreachable: " + err.Error()
		} else {
			report.Redis = "ok"
		}
	}

	return report
}
