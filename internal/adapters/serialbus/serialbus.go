// Package serialbus implements the sensor bus over a serial link to a small
// slave board that owns the actual wiring. The board streams one sample
// frame per line:
//
//	S,<adc0>,<adc1>,<adc2>,<estop>,<door>,<ax>,<ay>,<az>
//
// where adcN are raw 12-bit codes, estop/door are the electrical levels
// (0/1) and ax/ay/az are accelerations in m/s². A reader goroutine parses
// frames into a snapshot; reads serve the snapshot and fail once it goes
// stale, so a wedged link shows up as read errors instead of frozen values.
package serialbus

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/Thomas-Heisig/MODAX/internal/ports"
)

var (
	// ErrStale is returned when no valid frame arrived within MaxAge.
	ErrStale = errors.New("serialbus: no fresh frame from slave board")

	errBadFrame = errors.New("serialbus: malformed frame")
)

type Config struct {
	Port     string        `yaml:"port"`
	BaudRate int           `yaml:"baud_rate"`
	MaxAge   time.Duration `yaml:"max_age"`
}

func (c *Config) ApplyDefaults() {
	if c.BaudRate <= 0 {
		c.BaudRate = 115200
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 500 * time.Millisecond
	}
}

func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	return nil
}

type frame struct {
	adc   [3]uint16
	estop bool // electrical level
	door  bool
	accel [3]float64
	at    time.Time
}

type Bus struct {
	cfg  Config
	port serial.Port

	mu   sync.Mutex
	last frame
	seen bool

	done chan struct{}
	wg   sync.WaitGroup
}

func NewBus(cfg Config) (*Bus, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Bus{cfg: cfg, done: make(chan struct{})}, nil
}

// Start opens the port and launches the reader goroutine.
func (b *Bus) Start() error {
	mode := &serial.Mode{
		BaudRate: b.cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(b.cfg.Port, mode)
	if err != nil {
		return fmt.Errorf("open %s: %w", b.cfg.Port, err)
	}
	b.port = port

	b.wg.Add(1)
	go b.readLoop()
	return nil
}

func (b *Bus) Stop() error {
	close(b.done)
	var err error
	if b.port != nil {
		err = b.port.Close()
	}
	b.wg.Wait()
	return err
}

func (b *Bus) readLoop() {
	defer b.wg.Done()

	scanner := bufio.NewScanner(b.port)
	for scanner.Scan() {
		select {
		case <-b.done:
			return
		default:
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		f, err := parseFrame(line)
		if err != nil {
			log.Printf("serialbus: %v (%q)", err, line)
			continue
		}
		b.mu.Lock()
		b.last = f
		b.seen = true
		b.mu.Unlock()
	}
	select {
	case <-b.done:
	default:
		log.Printf("serialbus: reader stopped: %v", scanner.Err())
	}
}

func parseFrame(line string) (frame, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 9 || fields[0] != "S" {
		return frame{}, errBadFrame
	}
	var f frame
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseUint(fields[1+i], 10, 16)
		if err != nil || v > 4095 {
			return frame{}, fmt.Errorf("%w: adc%d", errBadFrame, i)
		}
		f.adc[i] = uint16(v)
	}
	for i, dst := range []*bool{&f.estop, &f.door} {
		switch fields[4+i] {
		case "0":
			*dst = false
		case "1":
			*dst = true
		default:
			return frame{}, fmt.Errorf("%w: digital field %d", errBadFrame, i)
		}
	}
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(fields[6+i], 64)
		if err != nil {
			return frame{}, fmt.Errorf("%w: accel axis %d", errBadFrame, i)
		}
		f.accel[i] = v
	}
	f.at = time.Now()
	return f, nil
}

func (b *Bus) snapshot() (frame, error) {
	b.mu.Lock()
	f, seen := b.last, b.seen
	b.mu.Unlock()
	if !seen || time.Since(f.at) > b.cfg.MaxAge {
		return frame{}, ErrStale
	}
	return f, nil
}

// ports.SensorBus

func (b *Bus) ReadADC(ch ports.AnalogChannel) (uint16, error) {
	f, err := b.snapshot()
	if err != nil {
		return 0, err
	}
	switch ch {
	case ports.ChannelCurrent1:
		return f.adc[0], nil
	case ports.ChannelCurrent2:
		return f.adc[1], nil
	case ports.ChannelTemperature1:
		return f.adc[2], nil
	default:
		return 0, fmt.Errorf("no slave channel for analog channel %d", ch)
	}
}

func (b *Bus) ReadDigital(in ports.DigitalInput) (bool, error) {
	f, err := b.snapshot()
	if err != nil {
		return false, err
	}
	switch in {
	case ports.InputEmergencyStop:
		return f.estop, nil
	case ports.InputDoorSwitch:
		return f.door, nil
	default:
		return false, fmt.Errorf("no slave channel for digital input %d", in)
	}
}

func (b *Bus) ReadAccel() (x, y, z float64, err error) {
	f, err := b.snapshot()
	if err != nil {
		return 0, 0, 0, err
	}
	return f.accel[0], f.accel[1], f.accel[2], nil
}

var _ ports.SensorBus = (*Bus)(nil)
