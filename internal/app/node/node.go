// Package node wires the adapters into a running field node: sensor bus,
// safety relay, MQTT transport, spool, outbox, metrics, the optional status
// server and archive, and the control loop that drives them.
package node

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Thomas-Heisig/MODAX/internal/adapters/archive"
	"github.com/Thomas-Heisig/MODAX/internal/adapters/clockmono"
	"github.com/Thomas-Heisig/MODAX/internal/adapters/hardware"
	"github.com/Thomas-Heisig/MODAX/internal/adapters/mqtt"
	"github.com/Thomas-Heisig/MODAX/internal/adapters/observability"
	"github.com/Thomas-Heisig/MODAX/internal/adapters/opcuabus"
	"github.com/Thomas-Heisig/MODAX/internal/adapters/outbox"
	"github.com/Thomas-Heisig/MODAX/internal/adapters/serialbus"
	"github.com/Thomas-Heisig/MODAX/internal/adapters/sim"
	"github.com/Thomas-Heisig/MODAX/internal/adapters/spool"
	"github.com/Thomas-Heisig/MODAX/internal/app/acquire"
	"github.com/Thomas-Heisig/MODAX/internal/app/config"
	"github.com/Thomas-Heisig/MODAX/internal/app/loop"
	"github.com/Thomas-Heisig/MODAX/internal/app/publish"
	"github.com/Thomas-Heisig/MODAX/internal/app/safety"
	"github.com/Thomas-Heisig/MODAX/internal/domain"
	"github.com/Thomas-Heisig/MODAX/internal/ports"
	"github.com/Thomas-Heisig/MODAX/internal/status"
)

// Option replaces one of the node's default adapters. Tests and embedders
// use these to run against fakes or custom hardware.
type Option func(*overrides)

type overrides struct {
	bus       ports.SensorBus
	transport ports.Transport
	clock     ports.Clock
	actuator  ports.Actuator
	obs       ports.Observability
	spool     ports.Spool
	outbox    ports.Outbox
	hooks     loop.Hooks
}

func WithSensorBus(b ports.SensorBus) Option {
	return func(o *overrides) { o.bus = b }
}

func WithTransport(t ports.Transport) Option {
	return func(o *overrides) { o.transport = t }
}

func WithClock(c ports.Clock) Option {
	return func(o *overrides) { o.clock = c }
}

func WithActuator(a ports.Actuator) Option {
	return func(o *overrides) { o.actuator = a }
}

func WithObservability(obs ports.Observability) Option {
	return func(o *overrides) { o.obs = obs }
}

func WithSpool(s ports.Spool) Option {
	return func(o *overrides) { o.spool = s }
}

func WithOutbox(ob ports.Outbox) Option {
	return func(o *overrides) { o.outbox = ob }
}

// WithHooks registers extra observers for published samples and safety
// states, in addition to the node's own status server.
func WithHooks(h loop.Hooks) Option {
	return func(o *overrides) { o.hooks = h }
}

type starter interface{ Start() error }
type stopper interface{ Stop() error }

// Node owns every long-lived component of a field node.
type Node struct {
	cfg       *config.Config
	obs       ports.Observability
	bus       ports.SensorBus
	transport ports.Transport
	spool     ports.Spool
	loop      *loop.Loop

	metricsSrv *http.Server
	statusSrv  *status.Server
	archiveRun *archive.Runner
	archiveDB  *archive.PostgresSink

	bg     []func(context.Context)
	cancel context.CancelFunc
	doneCh chan struct{}
}

// New assembles a node from the configuration, honoring any overrides.
func New(cfg *config.Config, opts ...Option) (*Node, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var ov overrides
	for _, opt := range opts {
		if opt != nil {
			opt(&ov)
		}
	}

	obs := ov.obs
	if obs == nil {
		obs = observability.NewPromObs()
	}

	clock := ov.clock
	if clock == nil {
		clock = clockmono.New()
	}

	bus := ov.bus
	actuator := ov.actuator
	if bus == nil {
		var err error
		bus, actuator, err = buildBackend(cfg, actuator)
		if err != nil {
			return nil, err
		}
	}
	if actuator == nil {
		actuator = sim.NewActuator()
	}

	transport := ov.transport
	if transport == nil {
		transport = mqtt.NewClient(mqtt.Config{
			BrokerURL:     cfg.MQTT.BrokerURL,
			ClientID:      cfg.MQTT.ClientID,
			QoS:           cfg.MQTT.QoS,
			RetryInterval: cfg.MQTT.RetryInterval,
		}, obs)
	}

	sp := ov.spool
	if sp == nil {
		var err error
		sp, err = spool.NewFileSpool(cfg.Spool.Dir)
		if err != nil {
			return nil, err
		}
	}

	ob := ov.outbox
	if ob == nil {
		ob = outbox.NewMemOutbox(cfg.Spool.MaxQueueLen)
	}

	if err := replaySpoolIntoOutbox(sp, ob, obs); err != nil {
		return nil, err
	}

	n := &Node{
		cfg:       cfg,
		obs:       obs,
		bus:       bus,
		transport: transport,
		spool:     sp,
		doneCh:    make(chan struct{}),
	}

	hooks := ov.hooks
	if cfg.Status.Addr != "" {
		n.statusSrv = status.NewServer(cfg.Status.Addr, cfg.Device.ID)
		hooks = chainHooks(hooks, loop.Hooks{
			OnSample: n.statusSrv.OnSample,
			OnSafety: func(s domain.SafetyState, _ uint32) { n.statusSrv.OnSafety(s) },
		})
	}
	if cfg.Archive.Enabled {
		sink, err := archive.Open(cfg.Archive.ConnString, cfg.Archive.Table)
		if err != nil {
			return nil, err
		}
		n.archiveDB = sink
		n.archiveRun = archive.NewRunner(sink, cfg.Archive.BatchSize, cfg.Archive.FlushEvery)
		hooks = chainHooks(hooks, loop.Hooks{
			OnSample: func(s domain.SensorSample) {
				if !n.archiveRun.Offer(s) {
					obs.IncCounter("modax_archive_dropped_total", 1)
				}
			},
		})
	}

	acq := acquire.New(bus)
	eval := safety.NewEvaluator(acq, actuator, obs, safety.Thresholds{
		OverloadAmps:      cfg.Thresholds.OverloadAmps,
		TemperatureMaxC:   cfg.Thresholds.TemperatureMaxC,
		HysteresisAmps:    cfg.Thresholds.HysteresisAmps,
		HysteresisCelsius: cfg.Thresholds.HysteresisCelsius,
	}, cfg.Cadence.HeartbeatMillis)

	n.loop = loop.New(loop.Config{
		SafetyPeriodMillis: cfg.Cadence.SafetyMillis,
		SensorPeriodMillis: cfg.Cadence.SensorMillis,
		DispatchBatch:      cfg.Spool.DispatchBatch,
		IdleSleep:          cfg.Cadence.IdleSleep,
	}, clock, transport, acq, eval,
		publish.NewTelemetry(cfg.Device.ID), publish.NewSafety(cfg.Device.ID),
		ob, sp, obs, cfg.Device.ID, hooks)

	return n, nil
}

func buildBackend(cfg *config.Config, actuator ports.Actuator) (ports.SensorBus, ports.Actuator, error) {
	switch cfg.Acquisition.Backend {
	case "sim":
		return sim.NewBus(), actuator, nil
	case "hardware":
		bus, err := hardware.NewBus(cfg.Acquisition.Hardware)
		if err != nil {
			return nil, nil, err
		}
		if actuator == nil {
			relay, err := hardware.NewRelay(cfg.Acquisition.Hardware.RelayPin)
			if err != nil {
				return nil, nil, err
			}
			actuator = relay
		}
		return bus, actuator, nil
	case "opcua":
		bus, err := opcuabus.NewBus(cfg.Acquisition.OPCUA)
		if err != nil {
			return nil, nil, err
		}
		return bus, actuator, nil
	case "serial":
		bus, err := serialbus.NewBus(cfg.Acquisition.Serial)
		if err != nil {
			return nil, nil, err
		}
		return bus, actuator, nil
	default:
		return nil, nil, fmt.Errorf("unknown acquisition backend %q", cfg.Acquisition.Backend)
	}
}

// Start brings up the sensor backend, transport and auxiliary servers, and
// launches the control loop. It returns immediately; Run blocks instead.
func (n *Node) Start() error {
	if s, ok := n.bus.(starter); ok {
		if err := s.Start(); err != nil {
			return fmt.Errorf("start sensor bus: %w", err)
		}
	}
	if err := n.transport.Connect(); err != nil {
		// Connect only arms the state machine; a down broker is not fatal.
		n.obs.LogError("transport_connect", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel

	n.startMetrics()
	if n.statusSrv != nil {
		go func() {
			if err := n.statusSrv.Run(ctx); err != nil {
				log.Printf("status server exited: %v", err)
			}
		}()
	}
	if n.archiveRun != nil {
		go n.archiveRun.Run(ctx)
	}

	go func() {
		defer close(n.doneCh)
		_ = n.loop.Run(ctx)
	}()
	return nil
}

// Run starts the node and blocks until the context is cancelled, then shuts
// down gracefully.
func (n *Node) Run(ctx context.Context) error {
	if err := n.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	shctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return n.Shutdown(shctx)
}

// Shutdown stops the loop, flushes the archive, and closes every adapter.
func (n *Node) Shutdown(ctx context.Context) error {
	var errs []error

	if n.cancel != nil {
		n.cancel()
	}
	select {
	case <-n.doneCh:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("control loop did not stop: %w", ctx.Err()))
	}

	if n.metricsSrv != nil {
		if err := n.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}
	if s, ok := n.bus.(stopper); ok {
		if err := s.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := n.transport.Close(); err != nil {
		errs = append(errs, err)
	}
	if n.archiveDB != nil {
		if err := n.archiveDB.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (n *Node) startMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	n.metricsSrv = &http.Server{
		Addr:              n.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := n.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server exited: %v", err)
		}
	}()
}

// replaySpoolIntoOutbox re-queues messages that were spooled but never
// acknowledged before the last shutdown or power loss.
func replaySpoolIntoOutbox(sp ports.Spool, ob ports.Outbox, obs ports.Observability) error {
	stats := sp.Stats()
	if stats.LatestAppended == 0 {
		return nil
	}
	start := stats.OldestUncommitted
	if start == 0 || start > stats.LatestAppended {
		return nil
	}

	var replayed int
	err := sp.Iterate(start, func(id ports.SpoolEntryID, m *domain.Message) error {
		if !ob.Enqueue(id, m) {
			return fmt.Errorf("outbox full during spool replay")
		}
		replayed++
		return nil
	})
	if err != nil {
		return err
	}
	if replayed > 0 {
		obs.LogInfo("spool_replay_complete",
			ports.Field{Key: "messages", Value: replayed},
			ports.Field{Key: "from_id", Value: start})
	}
	return nil
}

func chainHooks(a, b loop.Hooks) loop.Hooks {
	return loop.Hooks{
		OnSample: func(s domain.SensorSample) {
			if a.OnSample != nil {
				a.OnSample(s)
			}
			if b.OnSample != nil {
				b.OnSample(s)
			}
		},
		OnSafety: func(s domain.SafetyState, now uint32) {
			if a.OnSafety != nil {
				a.OnSafety(s, now)
			}
			if b.OnSafety != nil {
				b.OnSafety(s, now)
			}
		},
	}
}
