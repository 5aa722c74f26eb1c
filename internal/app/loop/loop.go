// Package loop runs the single-goroutine cooperative scheduler that
// interleaves safety evaluation and telemetry sampling at two independent
// cadences. Nothing in here blocks: transport liveness is a polled state
// machine, so a broker outage can never starve a safety tick.
package loop

import (
	"context"
	"time"

	"github.com/Thomas-Heisig/MODAX/internal/app/acquire"
	"github.com/Thomas-Heisig/MODAX/internal/app/publish"
	"github.com/Thomas-Heisig/MODAX/internal/app/safety"
	"github.com/Thomas-Heisig/MODAX/internal/domain"
	"github.com/Thomas-Heisig/MODAX/internal/ports"
)

type Config struct {
	SafetyPeriodMillis uint32
	SensorPeriodMillis uint32
	DispatchBatch      int           // max outbox messages flushed per iteration
	IdleSleep          time.Duration // sleep between iterations
}

// Hooks let the runtime observe published data without the loop knowing
// about status servers or archives. Both callbacks must not block.
type Hooks struct {
	OnSample func(domain.SensorSample)
	OnSafety func(domain.SafetyState, uint32)
}

type Loop struct {
	cfg       Config
	clock     ports.Clock
	transport ports.Transport
	acq       *acquire.Acquisition
	eval      *safety.Evaluator
	telemetry *publish.Telemetry
	safetyPub *publish.Safety
	outbox    ports.Outbox
	spool     ports.Spool
	obs       ports.Observability
	hooks     Hooks
	deviceID  string

	// Cadence state, mutated every iteration. Elapsed time is computed by
	// unsigned subtraction so the uint32 wrap is handled correctly.
	lastSafety uint32
	lastSensor uint32
}

func New(cfg Config, clock ports.Clock, transport ports.Transport, acq *acquire.Acquisition,
	eval *safety.Evaluator, telemetry *publish.Telemetry, safetyPub *publish.Safety,
	outbox ports.Outbox, spool ports.Spool, obs ports.Observability, deviceID string, hooks Hooks) *Loop {

	now := clock.Millis()
	return &Loop{
		cfg:       cfg,
		clock:     clock,
		transport: transport,
		acq:       acq,
		eval:      eval,
		telemetry: telemetry,
		safetyPub: safetyPub,
		outbox:    outbox,
		spool:     spool,
		obs:       obs,
		hooks:     hooks,
		deviceID:  deviceID,
		// Both cadences are due on the first iteration.
		lastSafety: now - cfg.SafetyPeriodMillis,
		lastSensor: now - cfg.SensorPeriodMillis,
	}
}

// Run steps the loop until the context is cancelled. The loop body runs to
// completion each iteration; there is no preemption and no other goroutine
// ever touches the safety state.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		l.Step()
		time.Sleep(l.cfg.IdleSleep)
	}
}

// Step performs one iteration: transport liveness first, then due cadences
// in fixed priority order — safety strictly before sensor — then an outbox
// flush. Overrun ticks are dropped, never queued.
func (l *Loop) Step() {
	l.transport.Service()

	now := l.clock.Millis()
	if now-l.lastSafety >= l.cfg.SafetyPeriodMillis {
		l.lastSafety = now
		l.safetyTick(now)
	}
	if now-l.lastSensor >= l.cfg.SensorPeriodMillis {
		l.lastSensor = now
		l.sensorTick(now)
	}

	l.dispatch()
}

func (l *Loop) safetyTick(now uint32) {
	start := time.Now()
	state, due := l.eval.Evaluate(now)
	l.obs.ObserveLatency("modax_safety_cycle_seconds", time.Since(start).Seconds())
	if !due {
		return
	}

	msg, err := l.safetyPub.Build(state, now)
	if err != nil {
		l.obs.LogCritical("safety_build_failed", err)
		return
	}
	if err := l.transport.Publish(msg.Channel, msg.Payload); err != nil {
		// Non-fatal: the heartbeat resends the full state within 1s.
		l.obs.IncCounter("modax_publish_failures_total", 1)
		l.obs.LogError("safety_publish_failed", err)
	} else {
		l.obs.IncCounter("modax_safety_publishes_total", 1)
	}
	if l.hooks.OnSafety != nil {
		l.hooks.OnSafety(state, now)
	}
}

func (l *Loop) sensorTick(now uint32) {
	c1, err1 := l.acq.ReadCurrent(ports.ChannelCurrent1)
	c2, err2 := l.acq.ReadCurrent(ports.ChannelCurrent2)
	temp, err3 := l.acq.ReadTemperature(ports.ChannelTemperature1)
	if err1 != nil || err2 != nil || err3 != nil {
		// No fabricated zeros on the wire; skip this cycle.
		l.obs.IncCounter("modax_sensor_read_failures_total", 1)
		l.obs.LogError("telemetry_read_failed", firstErr(err1, err2, err3))
		return
	}

	sample := domain.SensorSample{
		Timestamp:     now,
		DeviceID:      l.deviceID,
		MotorCurrents: [2]float64{c1, c2},
		Vibration:     l.acq.ReadVibration(),
		Temperature:   temp,
	}
	if !sample.Vibration.Available {
		l.obs.IncCounter("modax_vibration_unavailable_total", 1)
	}

	msg, err := l.telemetry.Build(sample)
	if err != nil {
		l.obs.LogError("telemetry_build_failed", err)
		return
	}
	l.enqueue(msg)

	if l.hooks.OnSample != nil {
		l.hooks.OnSample(sample)
	}
}

// enqueue spools the message to disk and queues it for dispatch. Telemetry
// tolerates loss under backpressure: when the outbox is full the message is
// dropped and counted.
func (l *Loop) enqueue(msg *domain.Message) {
	id, err := l.spool.Append(msg)
	if err != nil {
		l.obs.LogError("spool_append_failed", err)
	}
	if !l.outbox.Enqueue(id, msg) {
		l.obs.IncCounter("modax_outbox_dropped_total", 1)
	}
}

// dispatch flushes queued telemetry while the transport is up. Safety
// messages never pass through here; they are published on their own tick.
func (l *Loop) dispatch() {
	defer func() {
		l.obs.SetGauge("modax_outbox_length", float64(l.outbox.Len()))
		l.obs.SetGauge("modax_spool_size_bytes", float64(l.spool.Stats().SizeBytes))
	}()

	if !l.transport.IsConnected() {
		return
	}

	batch := l.outbox.DequeueBatch(l.cfg.DispatchBatch)
	if len(batch) == 0 {
		return
	}

	var maxID ports.SpoolEntryID
	for i, qm := range batch {
		if err := l.transport.Publish(qm.Msg.Channel, qm.Msg.Payload); err != nil {
			l.obs.IncCounter("modax_publish_failures_total", 1)
			l.obs.LogError("telemetry_publish_failed", err)
			if !l.outbox.Requeue(batch[i:]) {
				l.obs.IncCounter("modax_outbox_dropped_total", float64(len(batch)-i))
			}
			break
		}
		l.obs.IncCounter("modax_telemetry_publishes_total", 1)
		if qm.ID > maxID {
			maxID = qm.ID
		}
	}

	if maxID > 0 {
		if err := l.spool.Commit(maxID); err != nil {
			l.obs.LogError("spool_commit_failed", err)
		}
	}
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
