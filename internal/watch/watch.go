// Package watch implements a live terminal view of a field node: it
// subscribes to the telemetry and safety channels on the broker and renders
// motor currents, temperature, vibration and the safety flags with short
// sparkline histories.
package watch

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/Thomas-Heisig/MODAX/internal/domain"
)

const historyDepth = 240

// Run connects to the broker and drives the TUI until the user quits.
func Run(brokerURL, clientID string) error {
	events := make(chan tea.Msg, 64)

	opts := paho.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(func(c paho.Client) {
		c.Subscribe(domain.ChannelTelemetry, 0, func(_ paho.Client, m paho.Message) {
			var p telemetryMsg
			if err := json.Unmarshal(m.Payload(), &p); err == nil {
				events <- p
			}
		})
		c.Subscribe(domain.ChannelSafety, 0, func(_ paho.Client, m paho.Message) {
			var p safetyMsg
			if err := json.Unmarshal(m.Payload(), &p); err == nil {
				events <- p
			}
		})
	})

	cli := paho.NewClient(opts)
	if tok := cli.Connect(); tok.Wait() && tok.Error() != nil {
		return fmt.Errorf("connect %s: %w", brokerURL, tok.Error())
	}
	defer cli.Disconnect(250)

	p := tea.NewProgram(initModel(brokerURL), tea.WithAltScreen())
	go func() {
		for ev := range events {
			p.Send(ev)
		}
	}()

	_, err := p.Run()
	return err
}

type telemetryMsg struct {
	Timestamp     uint32     `json:"timestamp"`
	DeviceID      string     `json:"device_id"`
	MotorCurrents [2]float64 `json:"motor_currents"`
	Vibration     *struct {
		X         float64 `json:"x"`
		Y         float64 `json:"y"`
		Z         float64 `json:"z"`
		Magnitude float64 `json:"magnitude"`
	} `json:"vibration"`
	Temperatures []float64 `json:"temperatures"`
}

type safetyMsg struct {
	Timestamp        uint32 `json:"timestamp"`
	DeviceID         string `json:"device_id"`
	EmergencyStop    bool   `json:"emergency_stop"`
	DoorClosed       bool   `json:"door_closed"`
	OverloadDetected bool   `json:"overload_detected"`
	TemperatureOK    bool   `json:"temperature_ok"`
}

var (
	colorTitleBg  = lipgloss.Color("17")
	colorTitleFg  = lipgloss.Color("51")
	colorBorder   = lipgloss.Color("62")
	colorLabel    = lipgloss.Color("252")
	colorDim      = lipgloss.Color("240")
	colorFooterBg = lipgloss.Color("235")
	colorOK       = lipgloss.Color("82")
	colorCrit     = lipgloss.Color("196")
)

type model struct {
	broker   string
	deviceID string
	store    *Store
	safety   *safetyMsg
	safetyAt time.Time
	lastSeen time.Time
	width    int
	height   int
}

func initModel(broker string) model {
	return model{
		broker: broker,
		store:  NewStore(historyDepth),
	}
}

func (m model) Init() tea.Cmd {
	return tick()
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		return m, tick()

	case telemetryMsg:
		now := time.Now()
		m.deviceID = msg.DeviceID
		m.lastSeen = now
		m.store.Record("current_1", msg.MotorCurrents[0], now)
		m.store.Record("current_2", msg.MotorCurrents[1], now)
		if len(msg.Temperatures) > 0 {
			m.store.Record("temperature", msg.Temperatures[0], now)
		}
		if msg.Vibration != nil {
			m.store.Record("vibration", msg.Vibration.Magnitude, now)
		}

	case safetyMsg:
		cp := msg
		m.safety = &cp
		m.safetyAt = time.Now()
		m.deviceID = msg.DeviceID
	}

	return m, nil
}

func (m model) View() string {
	if m.width == 0 {
		return "  Connecting..."
	}

	contentWidth := m.width - 2
	if contentWidth < 48 {
		contentWidth = 48
	}

	var sections []string
	sections = append(sections, m.renderTitle(contentWidth))
	sections = append(sections, m.renderSafety(contentWidth))
	sections = append(sections, m.renderSeries(contentWidth))
	sections = append(sections, m.renderFooter(contentWidth))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m model) renderTitle(width int) string {
	logo := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorTitleFg).
		Render("MODAX WATCH")

	devID := m.deviceID
	if devID == "" {
		devID = "waiting for data"
	}
	right := lipgloss.NewStyle().Foreground(colorDim).
		Render(fmt.Sprintf("%s  @ %s", devID, m.broker))

	gap := width - lipgloss.Width(logo) - lipgloss.Width(right) - 4
	if gap < 1 {
		gap = 1
	}

	return lipgloss.NewStyle().
		Background(colorTitleBg).
		Width(width).
		Padding(0, 1).
		Render(logo + strings.Repeat(" ", gap) + right)
}

func (m model) renderSafety(width int) string {
	var rows []string

	if m.safety == nil {
		rows = append(rows, lipgloss.NewStyle().Foreground(colorDim).
			Render("no safety heartbeat received yet"))
	} else {
		s := m.safety
		rows = append(rows, strings.Join([]string{
			flag("E-STOP", s.EmergencyStop, true),
			flag("DOOR", !s.DoorClosed, true),
			flag("OVERLOAD", s.OverloadDetected, true),
			flag("OVERTEMP", !s.TemperatureOK, true),
		}, "  "))

		age := time.Since(m.safetyAt).Round(100 * time.Millisecond)
		ageStyle := lipgloss.NewStyle().Foreground(colorDim)
		if age > 3*time.Second {
			// Heartbeat interval is 1s; a stale state is itself an alarm.
			ageStyle = lipgloss.NewStyle().Foreground(colorCrit).Bold(true)
		}
		rows = append(rows, ageStyle.Render(fmt.Sprintf("heartbeat %s ago", age)))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, rows...)
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1).
		Width(width).
		Render(content)
}

func flag(name string, raised, redWhenRaised bool) string {
	style := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	if raised && redWhenRaised {
		return style.Background(colorCrit).Foreground(lipgloss.Color("231")).Render(name)
	}
	return style.Background(lipgloss.Color("22")).Foreground(colorOK).Render(name)
}

func (m model) renderSeries(width int) string {
	labelW := 14
	valueW := 10
	chartW := width - labelW - valueW - 28
	if chartW < 16 {
		chartW = 16
	}

	var rows []string
	for _, series := range []struct {
		key, label, unit string
	}{
		{"current_1", "motor 1", "A"},
		{"current_2", "motor 2", "A"},
		{"temperature", "temperature", "°C"},
		{"vibration", "vibration", "m/s²"},
	} {
		b := m.store.Get(series.key)
		label := lipgloss.NewStyle().Foreground(colorLabel).Bold(true).
			Width(labelW).Render(series.label)

		if b == nil || len(b.Points) == 0 {
			dim := lipgloss.NewStyle().Foreground(colorDim).Render("no data")
			rows = append(rows, label+" "+dim)
			continue
		}

		value := lipgloss.NewStyle().Width(valueW).Align(lipgloss.Right).
			Render(fmt.Sprintf("%.2f %s", b.Last(), series.unit))

		spark := sparkline(b.LastN(chartW), chartW)

		dimS := lipgloss.NewStyle().Foreground(colorDim)
		valS := lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
		stats := dimS.Render("avg") + valS.Render(fmt.Sprintf("%6.2f", b.Avg())) +
			dimS.Render(" pk") + valS.Render(fmt.Sprintf("%6.2f", b.Peak))

		rows = append(rows, label+" "+value+" "+spark+" "+stats)
	}

	staleness := ""
	if !m.lastSeen.IsZero() {
		staleness = lipgloss.NewStyle().Foreground(colorDim).
			Render(fmt.Sprintf("last sample %s ago",
				time.Since(m.lastSeen).Round(100*time.Millisecond)))
	}
	if staleness != "" {
		rows = append(rows, staleness)
	}

	content := lipgloss.JoinVertical(lipgloss.Left, rows...)
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1).
		Width(width).
		Render(content)
}

func (m model) renderFooter(width int) string {
	dimS := lipgloss.NewStyle().Foreground(colorDim)
	keyS := lipgloss.NewStyle().Foreground(colorLabel)

	keys := dimS.Render("q") + keyS.Render(":quit")

	return lipgloss.NewStyle().
		Background(colorFooterBg).
		Width(width).
		Padding(0, 1).
		Render(keys)
}

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// sparkline renders values right-aligned into a fixed-width bar chart.
func sparkline(vals []float64, width int) string {
	if width <= 0 {
		return ""
	}
	if len(vals) == 0 {
		return strings.Repeat(" ", width)
	}

	lo, hi := math.MaxFloat64, -math.MaxFloat64
	for _, v := range vals {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	var sb strings.Builder
	pad := width - len(vals)
	if pad > 0 {
		sb.WriteString(strings.Repeat(" ", pad))
	}
	for _, v := range vals {
		idx := int((v - lo) / span * float64(len(sparkRunes)-1))
		sb.WriteRune(sparkRunes[idx])
	}
	return lipgloss.NewStyle().Foreground(colorTitleFg).Render(sb.String())
}
