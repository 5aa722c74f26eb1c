// Package opcuabus implements the sensor bus against an OPC UA server —
// typically a soft PLC on the bench that mirrors the field wiring. Analog
// tags carry raw 12-bit ADC codes, digital tags the electrical level of the
// inputs, accelerometer tags m/s² floats. Monitored-item updates land in a
// cache; reads serve the cached value and fail when it goes stale.
package opcuabus

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"

	"github.com/Thomas-Heisig/MODAX/internal/ports"
)

// ErrNoReading is returned when a tag has not been seen yet or its last
// update is older than MaxAge.
var ErrNoReading = errors.New("opcuabus: no fresh reading for tag")

type Config struct {
	Endpoint        string        `yaml:"endpoint"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	SecurityMode    string        `yaml:"security_mode"`
	SecurityPolicy  string        `yaml:"security_policy"`
	ApplicationName string        `yaml:"application_name"`
	PublishInterval time.Duration `yaml:"publish_interval"`
	MaxAge          time.Duration `yaml:"max_age"`
	Tags            TagMap        `yaml:"tags"`
}

// TagMap binds the logical sensor channels to server node IDs.
type TagMap struct {
	Current1      string `yaml:"current_1"`
	Current2      string `yaml:"current_2"`
	Temperature1  string `yaml:"temperature_1"`
	EmergencyStop string `yaml:"emergency_stop"`
	Door          string `yaml:"door"`
	AccelX        string `yaml:"accel_x"`
	AccelY        string `yaml:"accel_y"`
	AccelZ        string `yaml:"accel_z"`
}

func (c *Config) ApplyDefaults() {
	if c.SecurityMode == "" {
		c.SecurityMode = "None"
	}
	if c.SecurityPolicy == "" {
		c.SecurityPolicy = "None"
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "MODAX Field Node"
	}
	if c.PublishInterval <= 0 {
		c.PublishInterval = 25 * time.Millisecond
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 500 * time.Millisecond
	}
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	t := c.Tags
	for name, id := range map[string]string{
		"current_1": t.Current1, "current_2": t.Current2,
		"temperature_1":  t.Temperature1,
		"emergency_stop": t.EmergencyStop, "door": t.Door,
	} {
		if id == "" {
			return fmt.Errorf("tags.%s is required", name)
		}
	}
	// Accelerometer tags are optional; reads report unavailable instead.
	return nil
}

type reading struct {
	value float64
	at    time.Time
}

type Bus struct {
	cfg    Config
	client *opcua.Client
	sub    *opcua.Subscription
	cancel context.CancelFunc
	wg     sync.WaitGroup

	handleMap map[uint32]string // monitored-item handle -> tag node ID

	mu    sync.Mutex
	cache map[string]reading
}

func NewBus(cfg Config) (*Bus, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Bus{
		cfg:   cfg,
		cache: make(map[string]reading),
	}, nil
}

// Start connects, subscribes to every configured tag and begins filling the
// cache. It must be called before the bus serves reads.
func (b *Bus) Start() error {
	ctx, cancel := context.WithCancel(context.Background())

	opts := []opcua.Option{
		opcua.SecurityModeString(b.cfg.SecurityMode),
		opcua.SecurityPolicy(b.cfg.SecurityPolicy),
		opcua.ApplicationName(b.cfg.ApplicationName),
		opcua.AutoReconnect(true),
	}
	if b.cfg.Username != "" {
		opts = append(opts, opcua.AuthUsername(b.cfg.Username, b.cfg.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}

	client, err := opcua.NewClient(b.cfg.Endpoint, opts...)
	if err != nil {
		cancel()
		return fmt.Errorf("opcua new client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		cancel()
		return fmt.Errorf("opcua connect: %w", err)
	}

	tags := b.tagList()
	notifyCh := make(chan *opcua.PublishNotificationData, len(tags)*4)
	sub, err := client.Subscribe(ctx, &opcua.SubscriptionParameters{
		Interval: b.cfg.PublishInterval,
	}, notifyCh)
	if err != nil {
		cancel()
		_ = client.Close(ctx)
		return fmt.Errorf("opcua subscribe: %w", err)
	}

	handleMap := make(map[uint32]string, len(tags))
	for i, tag := range tags {
		nodeID, err := ua.ParseNodeID(tag)
		if err != nil {
			b.teardown(ctx, cancel, sub, client)
			return fmt.Errorf("parse node id %q: %w", tag, err)
		}
		handle := uint32(i + 1)
		req := opcua.NewMonitoredItemCreateRequestWithDefaults(nodeID, ua.AttributeIDValue, handle)
		res, err := sub.Monitor(ctx, ua.TimestampsToReturnBoth, req)
		if err != nil {
			b.teardown(ctx, cancel, sub, client)
			return fmt.Errorf("monitor tag %q: %w", tag, err)
		}
		if len(res.Results) == 0 || res.Results[0].StatusCode != ua.StatusOK {
			b.teardown(ctx, cancel, sub, client)
			return fmt.Errorf("monitor tag %q rejected", tag)
		}
		handleMap[handle] = tag
	}

	b.client = client
	b.sub = sub
	b.cancel = cancel
	b.handleMap = handleMap

	b.wg.Add(1)
	go b.consume(ctx, notifyCh)
	return nil
}

func (b *Bus) Stop() error {
	if b.cancel == nil {
		return nil
	}
	b.cancel()

	ctx, ctxCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer ctxCancel()

	var err error
	if b.sub != nil {
		if e := b.sub.Cancel(ctx); e != nil && !errors.Is(e, context.Canceled) {
			err = errors.Join(err, e)
		}
	}
	if b.client != nil {
		if e := b.client.Close(ctx); e != nil && !errors.Is(e, context.Canceled) {
			err = errors.Join(err, e)
		}
	}
	b.wg.Wait()
	return err
}

func (b *Bus) tagList() []string {
	t := b.cfg.Tags
	tags := []string{t.Current1, t.Current2, t.Temperature1, t.EmergencyStop, t.Door}
	for _, opt := range []string{t.AccelX, t.AccelY, t.AccelZ} {
		if opt != "" {
			tags = append(tags, opt)
		}
	}
	return tags
}

func (b *Bus) consume(ctx context.Context, ch <-chan *opcua.PublishNotificationData) {
	defer b.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case notif := <-ch:
			if notif == nil {
				continue
			}
			if notif.Error != nil {
				log.Printf("opcuabus: notification error: %v", notif.Error)
				continue
			}
			data, ok := notif.Value.(*ua.DataChangeNotification)
			if !ok {
				continue
			}
			now := time.Now()
			for _, item := range data.MonitoredItems {
				tag, ok := b.handleMap[item.ClientHandle]
				if !ok {
					continue
				}
				fv, ok := variantToFloat(item.Value.Value)
				if !ok {
					log.Printf("opcuabus: tag %s has unsupported type %T", tag, item.Value.Value)
					continue
				}
				b.mu.Lock()
				b.cache[tag] = reading{value: fv, at: now}
				b.mu.Unlock()
			}
		}
	}
}

func (b *Bus) fresh(tag string) (float64, error) {
	if tag == "" {
		return 0, ErrNoReading
	}
	b.mu.Lock()
	r, ok := b.cache[tag]
	b.mu.Unlock()
	if !ok || time.Since(r.at) > b.cfg.MaxAge {
		return 0, fmt.Errorf("%w: %s", ErrNoReading, tag)
	}
	return r.value, nil
}

// ports.SensorBus

func (b *Bus) ReadADC(ch ports.AnalogChannel) (uint16, error) {
	var tag string
	switch ch {
	case ports.ChannelCurrent1:
		tag = b.cfg.Tags.Current1
	case ports.ChannelCurrent2:
		tag = b.cfg.Tags.Current2
	case ports.ChannelTemperature1:
		tag = b.cfg.Tags.Temperature1
	default:
		return 0, fmt.Errorf("no tag mapped for analog channel %d", ch)
	}
	v, err := b.fresh(tag)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		v = 0
	}
	if v > 4095 {
		v = 4095
	}
	return uint16(v), nil
}

func (b *Bus) ReadDigital(in ports.DigitalInput) (bool, error) {
	var tag string
	switch in {
	case ports.InputEmergencyStop:
		tag = b.cfg.Tags.EmergencyStop
	case ports.InputDoorSwitch:
		tag = b.cfg.Tags.Door
	default:
		return false, fmt.Errorf("no tag mapped for digital input %d", in)
	}
	v, err := b.fresh(tag)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func (b *Bus) ReadAccel() (x, y, z float64, err error) {
	t := b.cfg.Tags
	ax, errX := b.fresh(t.AccelX)
	ay, errY := b.fresh(t.AccelY)
	az, errZ := b.fresh(t.AccelZ)
	if errX != nil || errY != nil || errZ != nil {
		return 0, 0, 0, ErrNoReading
	}
	return ax, ay, az, nil
}

func variantToFloat(v *ua.Variant) (float64, bool) {
	if v == nil {
		return 0, false
	}
	switch val := v.Value().(type) {
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case int8:
		return float64(val), true
	case uint8:
		return float64(val), true
	case int16:
		return float64(val), true
	case uint16:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	default:
		return 0, false
	}
}

func (b *Bus) teardown(ctx context.Context, cancel context.CancelFunc, sub *opcua.Subscription, client *opcua.Client) {
	cancel()
	if sub != nil {
		_ = sub.Cancel(ctx)
	}
	if client != nil {
		_ = client.Close(ctx)
	}
}

var _ ports.SensorBus = (*Bus)(nil)
