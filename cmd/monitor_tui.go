// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/fluffstat/pkg/furble"
	"github.com/Thermoquad/fluffstat/pkg/session"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Monitor log entry
type monitorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for info
}

// Monitor TUI model
type monitorModel struct {
	connInfo       string
	showAll        bool
	stats          *furble.Statistics
	log            []monitorLogEntry
	maxLogEntries  int
	connected      bool
	connectedSince time.Time
	reconnects     int
	width          int
	height         int
	quitting       bool

	state     *furble.State
	stateTime time.Time
	slots     *furble.Slots
	firmware  *uint8
}

// Messages
type tickMsg time.Time
type frameMsg struct {
	raw          []byte
	notification furble.Notification
	decodeErr    error
}
type eventMsg struct {
	event session.Event
}
type sessionEndedMsg struct{}

// formatUptime formats a duration as a human-friendly string
func formatUptime(d time.Duration) string {
	total := uint64(d / time.Second)
	if total == 0 {
		return "0 seconds"
	}

	seconds := total % 60
	minutes := total / 60 % 60
	hours := total / 3600 % 24
	days := total / 86400

	parts := []string{}
	for _, unit := range []struct {
		n    uint64
		name string
	}{
		{days, "day"},
		{hours, "hour"},
		{minutes, "minute"},
		{seconds, "second"},
	} {
		switch {
		case unit.n == 1:
			parts = append(parts, "1 "+unit.name)
		case unit.n > 1:
			parts = append(parts, fmt.Sprintf("%d %ss", unit.n, unit.name))
		}
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

func initialMonitorModel(connInfo string, showAll bool) monitorModel {
	return monitorModel{
		connInfo:       connInfo,
		showAll:        showAll,
		stats:          furble.NewStatistics(),
		log:            make([]monitorLogEntry, 0),
		maxLogEntries:  100,
		connected:      true,
		connectedSince: time.Now(),
		width:          80,
		height:         24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.addLogEntry("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats.CalculateRates()
		return m, tickCmd()

	case sessionEndedMsg:
		m.quitting = true
		return m, tea.Quit

	case frameMsg:
		m.stats.Update(msg.notification, msg.decodeErr)
		switch {
		case msg.decodeErr != nil:
			m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v (%s)", msg.decodeErr, furble.ToHex(msg.raw)), true)
		default:
			if _, unknown := msg.notification.(*furble.RawFrame); unknown {
				m.addLogEntry(fmt.Sprintf("UNKNOWN FRAME: %s", furble.ToHex(msg.raw)), true)
			} else if m.showAll {
				m.addLogEntry(fmt.Sprintf("%s %s", furble.FormatMessageType(msg.notification.Type()), furble.ToHex(msg.raw)), false)
			}
		}

	case eventMsg:
		m.applyEvent(msg.event)
	}

	return m, nil
}

func (m *monitorModel) applyEvent(ev session.Event) {
	switch e := ev.(type) {
	case session.Connected:
		m.connected = true
		m.connectedSince = time.Now()
		m.reconnects++
		m.addLogEntry("Connected", false)
	case session.Disconnected:
		m.connected = false
		if e.Err != nil {
			m.addLogEntry(fmt.Sprintf("Disconnected: %v", e.Err), true)
		} else {
			m.addLogEntry("Disconnected", true)
		}
	case session.StateChanged:
		st := e.State
		m.state = &st
		m.stateTime = time.Now()
	case session.SlotStatusChanged:
		slots := e.Slots
		m.slots = &slots
		m.addLogEntry(fmt.Sprintf("Slots: %s", slots), false)
	case session.FirmwareVersion:
		v := e.Version
		m.firmware = &v
	}
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	entry := monitorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.log = append(m.log, entry)

	// Keep only last N entries
	if len(m.log) > m.maxLogEntries {
		m.log = m.log[len(m.log)-m.maxLogEntries:]
	}
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	infoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("FLUFFSTAT - MONITOR"))
	s.WriteString("\n")
	mode := "Errors only"
	if m.showAll {
		mode = "All frames"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | 'r' reset stats | 'q' quit", m.connInfo, mode)))
	s.WriteString("\n\n")

	// Link status
	if m.connected {
		s.WriteString(valueStyle.Render("✓ Connected"))
		s.WriteString(headerStyle.Render(" for " + formatUptime(time.Since(m.connectedSince))))
	} else {
		s.WriteString(infoStyle.Render("⏳ Reconnecting..."))
	}
	if m.reconnects > 0 {
		s.WriteString(headerStyle.Render(fmt.Sprintf(" (%d reconnects)", m.reconnects)))
	}
	s.WriteString("\n\n")

	// Statistics
	m.stats.CalculateRates()
	var statsContent strings.Builder
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Total:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.TotalFrames)),
		labelStyle.Render("Sensor:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.SensorFrames)),
		labelStyle.Render("Slot Info:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.SlotInfoFrames)),
	))
	if m.stats.ShortFrames > 0 || m.stats.DeadLetters > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			labelStyle.Render("Short:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.ShortFrames)),
			labelStyle.Render("Dead Letters:"), infoStyle.Render(fmt.Sprintf("%d", m.stats.DeadLetters)),
		))
	}
	errorRate := valueStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
	if m.stats.ErrorRate > 0 {
		errorRate = errorStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
	}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		labelStyle.Render("Frame Rate:"), valueStyle.Render(fmt.Sprintf("%.1f frames/s", m.stats.FrameRate)),
		labelStyle.Render("Error Rate:"), errorRate,
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Toy section (only shown once something was reported)
	if m.state != nil || m.slots != nil || m.firmware != nil {
		s.WriteString(labelStyle.Render("Latest State:"))
		s.WriteString("\n")

		var toy strings.Builder
		if m.state != nil {
			toy.WriteString(fmt.Sprintf("%s %s   %s %s\n",
				labelStyle.Render("Antenna:"), valueStyle.Render(m.state.Antenna.String()),
				labelStyle.Render("Orientation:"), valueStyle.Render(m.state.Orientation.String()),
			))
			toy.WriteString(fmt.Sprintf("%s %s %s\n",
				labelStyle.Render("Sensors:"), valueStyle.Render(m.state.Sensors.String()),
				headerStyle.Render(fmt.Sprintf("(%s ago)", time.Since(m.stateTime).Round(time.Second))),
			))
		}
		if m.slots != nil {
			toy.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Slots:"), valueStyle.Render(m.slots.String())))
		}
		if m.firmware != nil {
			toy.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Firmware:"), valueStyle.Render(fmt.Sprintf("%d", *m.firmware))))
		}

		s.WriteString(boxStyle.Render(strings.TrimSuffix(toy.String(), "\n")))
		s.WriteString("\n\n")
	}

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 18
	if logHeight < 5 {
		logHeight = 5
	}
	startIdx := len(m.log) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	var logContent strings.Builder
	if len(m.log) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for _, entry := range m.log[startIdx:] {
			timestamp := headerStyle.Render(entry.timestamp.Format("01/02/06 15:04:05.000"))
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n", timestamp, errorStyle.Render("✗ "+entry.message)))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n", timestamp, infoStyle.Render("ℹ "+entry.message)))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
