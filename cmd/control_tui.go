// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/fluffstat/pkg/catalog"
	"github.com/Thermoquad/fluffstat/pkg/furble"
	"github.com/Thermoquad/fluffstat/pkg/session"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	commandTimeout      = 5 * time.Second
	slotRefreshInterval = 30 * time.Second
)

// Focus states
const (
	focusActionList = iota
	focusColorInput
	focusButton
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// actionItem is a catalog button shown in the action list
type actionItem struct {
	entry  catalog.Entry
	button catalog.Button
	action furble.Action
}

// Implement list.Item interface
func (a actionItem) Title() string       { return a.button.Title }
func (a actionItem) Description() string { return fmt.Sprintf("%s %s", a.entry.Title, a.action) }
func (a actionItem) FilterValue() string { return a.button.Title }

// uploadStatus tracks the upload started from the TUI
type uploadStatus struct {
	slot  int
	name  string
	sent  int
	total int
}

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	ctx      context.Context
	fs       *furbySession
	catalog  *catalog.Catalog
	connInfo string

	// Actions
	actionList list.Model

	// Monitoring
	stats         *furble.Statistics
	eventLog      []monitorLogEntry
	maxLogEntries int

	// Toy state
	state         *furble.State
	slots         *furble.Slots
	firmware      *uint8
	lastSlotQuery time.Time

	// Control
	colorInput   textinput.Model
	focusedField int
	upload       *uploadStatus
	bar          progress.Model

	// UI state
	width          int
	height         int
	quitting       bool
	connectionLost bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

type commandResultMsg struct {
	desc string
	err  error
}

type uploadStartedMsg struct {
	status uploadStatus
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(ctx context.Context, fs *furbySession, cat *catalog.Catalog) controlModel {
	// Initialize text input for the antenna color
	ti := textinput.New()
	ti.Placeholder = "ff8000"
	ti.CharLimit = 7
	ti.Width = 10

	// Initialize action list from the catalog
	var items []list.Item
	if cat != nil {
		for _, e := range cat.Entries {
			for _, b := range e.Buttons {
				action, err := b.Action()
				if err != nil {
					continue
				}
				items = append(items, actionItem{entry: e, button: b, action: action})
			}
		}
	}
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	actionList := list.New(items, delegate, 30, 10)
	actionList.Title = "Actions"
	actionList.SetShowStatusBar(false)
	actionList.SetShowHelp(false)
	actionList.SetFilteringEnabled(false)

	return controlModel{
		ctx:           ctx,
		fs:            fs,
		catalog:       cat,
		connInfo:      fs.info,
		actionList:    actionList,
		stats:         furble.NewStatistics(),
		eventLog:      make([]monitorLogEntry, 0),
		maxLogEntries: 100,
		colorInput:    ti,
		focusedField:  focusActionList,
		bar:           progress.New(progress.WithDefaultGradient()),
		lastSlotQuery: time.Now(),
		width:         80,
		height:        24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return controlTickCmd()
}

func controlTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.MouseMsg:
		return m.handleMouseMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case controlTickMsg:
		m.stats.CalculateRates()
		// Periodic slot table refresh
		if !m.connectionLost && m.upload == nil && time.Since(m.lastSlotQuery) >= slotRefreshInterval {
			m.lastSlotQuery = time.Now()
			cmds = append(cmds, m.requestSlots())
		}
		cmds = append(cmds, controlTickCmd())
		return m, tea.Batch(cmds...)

	case controlBatchMsg:
		for _, f := range msg.frames {
			m.processFrame(f)
		}
		for _, ev := range msg.events {
			if cmd := m.processEvent(ev); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}

	case commandResultMsg:
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("%s failed: %v", msg.desc, msg.err), true)
		} else if msg.desc != "" {
			m.addLogEntry(msg.desc, false)
		}

	case uploadStartedMsg:
		status := msg.status
		m.upload = &status
		m.addLogEntry(fmt.Sprintf("Uploading %s to slot %d (%d bytes)", status.name, status.slot, status.total), false)

	case sessionEndedMsg:
		m.quitting = true
		return m, tea.Quit
	}

	// Update child components
	var cmd tea.Cmd
	if m.focusedField == focusColorInput {
		m.colorInput, cmd = m.colorInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	if m.focusedField == focusActionList {
		m.actionList, cmd = m.actionList.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "tab":
		return m.cycleFocus(1), nil

	case "shift+tab":
		return m.cycleFocus(-1), nil

	case "enter":
		return m.handleEnter()
	}

	// Pass through to the color input while it has focus
	if m.focusedField == focusColorInput {
		var cmd tea.Cmd
		m.colorInput, cmd = m.colorInput.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit

	case "u":
		return m.startUpload()

	case "x":
		if m.upload != nil {
			m.fs.CancelUpload()
			m.addLogEntry("Cancelling upload...", false)
		}
		return m, nil

	case "s":
		m.lastSlotQuery = time.Now()
		return m, m.requestSlots()

	case "r":
		m.stats.Reset()
		m.addLogEntry("Statistics reset", false)
		return m, nil

	case "up", "k", "down", "j":
		if m.focusedField == focusActionList {
			var cmd tea.Cmd
			m.actionList, cmd = m.actionList.Update(msg)
			return m, cmd
		}
	}

	return m, nil
}

func (m *controlModel) handleMouseMsg(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionRelease || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}

	// Pass mouse events to the list
	m.actionList, _ = m.actionList.Update(msg)

	return m, nil
}

func (m *controlModel) cycleFocus(delta int) *controlModel {
	maxFocus := focusButton
	m.focusedField = (m.focusedField + delta + maxFocus + 1) % (maxFocus + 1)

	// Update focus state
	if m.focusedField == focusColorInput {
		m.colorInput.Focus()
	} else {
		m.colorInput.Blur()
	}

	return m
}

func (m *controlModel) handleEnter() (tea.Model, tea.Cmd) {
	// Don't allow control commands while connection is lost
	if m.connectionLost {
		m.addLogEntry("Cannot send command: connection lost", true)
		return m, nil
	}

	switch m.focusedField {
	case focusActionList:
		return m.sendAction()
	case focusColorInput, focusButton:
		return m.sendColor()
	}
	return m, nil
}

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	buttonStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("12")).
		Padding(0, 2)

	focusedButtonStyle := buttonStyle.
		Background(lipgloss.Color("10"))

	// Header
	s.WriteString(titleStyle.Render("FLUFFSTAT CONTROL"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | q=quit Tab=switch u=upload x=cancel s=slots", connStatus)))
	s.WriteString("\n")

	if m.firmware != nil {
		s.WriteString(fmt.Sprintf(" %s %s",
			statsLabelStyle.Render("Firmware:"),
			statsValueStyle.Render(fmt.Sprintf("%d", *m.firmware))))
	}
	s.WriteString("\n\n")

	// Layout: left panel (actions) | right panel (control)
	leftWidth := 30
	rightWidth := m.width - leftWidth - 6

	listStyle := boxStyle.Width(leftWidth)
	if m.focusedField == focusActionList {
		listStyle = focusedBoxStyle.Width(leftWidth)
	}
	var actionPanel string
	if len(m.actionList.Items()) == 0 {
		actionPanel = listStyle.Render(headerStyle.Render("No actions\n(load a catalog\nwith --catalog)"))
	} else {
		actionPanel = listStyle.Render(m.actionList.View())
	}

	controlContent := m.renderControlPanel(statsLabelStyle, statsValueStyle, headerStyle, buttonStyle, focusedButtonStyle)
	controlPanel := boxStyle.Width(rightWidth).Render(controlContent)

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, actionPanel, " ", controlPanel))
	s.WriteString("\n\n")

	// Statistics bar
	s.WriteString(m.renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle))
	s.WriteString("\n\n")

	// Sensor state
	s.WriteString(m.renderState(statsLabelStyle, statsValueStyle, boxStyle))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(m.renderEventLog(statsLabelStyle, warningStyle, boxStyle))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m controlModel) renderControlPanel(statsLabelStyle, statsValueStyle, headerStyle, buttonStyle, focusedButtonStyle lipgloss.Style) string {
	var s strings.Builder

	// Antenna color
	s.WriteString(statsLabelStyle.Render("Antenna: #"))
	if m.focusedField == focusColorInput {
		s.WriteString(m.colorInput.View())
	} else {
		val := m.colorInput.Value()
		if val == "" {
			val = m.colorInput.Placeholder
		}
		s.WriteString(fmt.Sprintf("[%s]", val))
	}
	s.WriteString("  ")

	btnText := "[ Set Color ]"
	if m.focusedField == focusButton {
		s.WriteString(focusedButtonStyle.Render(btnText))
	} else {
		s.WriteString(buttonStyle.Render(btnText))
	}
	s.WriteString("\n\n")

	// Slot table
	s.WriteString(statsLabelStyle.Render("Slots: "))
	if m.slots != nil {
		s.WriteString(statsValueStyle.Render(m.slots.String()))
	} else {
		s.WriteString(headerStyle.Render("unknown"))
	}
	s.WriteString("\n")

	// Upload progress
	if m.upload != nil {
		percent := 0.0
		if m.upload.total > 0 {
			percent = float64(m.upload.sent) / float64(m.upload.total)
		}
		s.WriteString(fmt.Sprintf("\n%s %s → slot %d\n",
			statsLabelStyle.Render("Upload:"), m.upload.name, m.upload.slot))
		s.WriteString(m.bar.ViewAs(percent))
		s.WriteString(fmt.Sprintf(" %d/%d", m.upload.sent, m.upload.total))
	} else if item, ok := m.actionList.SelectedItem().(actionItem); ok {
		s.WriteString(headerStyle.Render(fmt.Sprintf("\nSelected DLC: %s (press u to upload)", item.entry.DeviceFilename())))
	}

	return s.String()
}

func (m controlModel) renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle lipgloss.Style) string {
	m.stats.CalculateRates()
	var shortPercent float64
	if m.stats.TotalFrames > 0 {
		shortPercent = float64(m.stats.ShortFrames) * 100.0 / float64(m.stats.TotalFrames)
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.TotalFrames)),
		statsLabelStyle.Render("Sensor:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.SensorFrames)),
		statsLabelStyle.Render("Short:"), func() string {
			if shortPercent > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f%%", shortPercent))
			}
			return statsValueStyle.Render("0.0%")
		}(),
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", m.stats.FrameRate)),
	)

	return boxStyle.Width(m.width - 4).Render(content)
}

func (m controlModel) renderState(statsLabelStyle, statsValueStyle, boxStyle lipgloss.Style) string {
	var content strings.Builder
	content.WriteString(statsLabelStyle.Render("STATE"))
	content.WriteString(" | ")

	if m.state == nil {
		content.WriteString("No sensor data")
		return boxStyle.Width(m.width - 4).Render(content.String())
	}

	content.WriteString(fmt.Sprintf("%s %s  %s %s  %s %s",
		statsLabelStyle.Render("Antenna:"), statsValueStyle.Render(m.state.Antenna.String()),
		statsLabelStyle.Render("Orientation:"), statsValueStyle.Render(m.state.Orientation.String()),
		statsLabelStyle.Render("Sensors:"), statsValueStyle.Render(m.state.Sensors.String()),
	))

	return boxStyle.Width(m.width - 4).Render(content.String())
}

func (m controlModel) renderEventLog(statsLabelStyle, warningStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")

	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyleLocal := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	logHeight := 8
	if len(m.eventLog) < logHeight {
		logHeight = len(m.eventLog)
	}
	startIdx := len(m.eventLog) - logHeight

	if len(m.eventLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for _, entry := range m.eventLog[startIdx:] {
			icon := "i"
			style := warningStyle
			if entry.isError {
				icon = "x"
				style = errorStyleLocal
			}
			s.WriteString(fmt.Sprintf("%s %s %s\n",
				headerStyle.Render(entry.timestamp.Format("15:04:05.000")),
				style.Render(icon),
				entry.message))
		}
	}

	return boxStyle.Width(m.width - 4).Render(s.String())
}

//////////////////////////////////////////////////////////////
// Data Processing
//////////////////////////////////////////////////////////////

func (m *controlModel) processFrame(msg frameMsg) {
	m.stats.Update(msg.notification, msg.decodeErr)
	if msg.decodeErr != nil {
		m.addLogEntry(fmt.Sprintf("Decode error: %v (%s)", msg.decodeErr, furble.ToHex(msg.raw)), true)
	}
}

func (m *controlModel) processEvent(ev session.Event) tea.Cmd {
	switch e := ev.(type) {
	case session.Connected:
		m.connectionLost = false
		m.addLogEntry("Reconnected", false)
		m.lastSlotQuery = time.Now()
		return m.requestSlots()

	case session.Disconnected:
		m.connectionLost = true
		if e.Err != nil {
			m.addLogEntry(fmt.Sprintf("Connection lost: %v - reconnecting...", e.Err), true)
		} else {
			m.addLogEntry("Connection lost - reconnecting...", true)
		}

	case session.StateChanged:
		st := e.State
		m.state = &st

	case session.SlotStatusChanged:
		slots := e.Slots
		m.slots = &slots

	case session.FirmwareVersion:
		v := e.Version
		m.firmware = &v

	case session.TransferProgress:
		if m.upload != nil && m.upload.slot == e.Slot {
			m.upload.sent = e.Sent
			m.upload.total = e.Total
		}

	case session.TransferCompleted:
		m.upload = nil
		m.addLogEntry(fmt.Sprintf("Upload to slot %d complete", e.Slot), false)

	case session.TransferFailed:
		m.upload = nil
		m.addLogEntry(fmt.Sprintf("Upload to slot %d failed: %s", e.Slot, e.Reason), true)
	}
	return nil
}

//////////////////////////////////////////////////////////////
// Commands
//////////////////////////////////////////////////////////////

// run executes a supervisor call off the UI goroutine
func (m *controlModel) run(desc string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		reqCtx, cancel := context.WithTimeout(ctx, commandTimeout)
		defer cancel()
		if err := fn(reqCtx); err != nil {
			return commandResultMsg{desc: desc, err: err}
		}
		return commandResultMsg{desc: desc}
	}
}

func (m *controlModel) sendAction() (tea.Model, tea.Cmd) {
	item, ok := m.actionList.SelectedItem().(actionItem)
	if !ok {
		return m, nil
	}

	fs := m.fs
	return m, m.run(fmt.Sprintf("Sent %s (%s)", item.button.Title, item.action), func(ctx context.Context) error {
		return fs.SendAction(ctx, item.action)
	})
}

func (m *controlModel) sendColor() (tea.Model, tea.Cmd) {
	val := m.colorInput.Value()
	if val == "" {
		val = m.colorInput.Placeholder
	}

	r, g, b, err := parseColor([]string{val})
	if err != nil {
		m.addLogEntry(err.Error(), true)
		return m, nil
	}

	fs := m.fs
	return m, m.run(fmt.Sprintf("Antenna set to #%02x%02x%02x", r, g, b), func(ctx context.Context) error {
		return fs.SetAntennaColor(ctx, r, g, b)
	})
}

func (m *controlModel) requestSlots() tea.Cmd {
	fs := m.fs
	return m.run("", func(ctx context.Context) error {
		_, err := fs.RequestSlotInfo(ctx)
		return err
	})
}

func (m *controlModel) startUpload() (tea.Model, tea.Cmd) {
	if m.upload != nil {
		m.addLogEntry("Upload already in progress", true)
		return m, nil
	}
	item, ok := m.actionList.SelectedItem().(actionItem)
	if !ok || m.catalog == nil {
		m.addLogEntry("Select a catalog action to upload its DLC", true)
		return m, nil
	}

	slot := -1
	if m.slots != nil {
		slot = m.slots.FirstEmpty()
		if slot == -1 {
			m.addLogEntry("No empty DLC slot", true)
			return m, nil
		}
	}

	cat, fs, ctx := m.catalog, m.fs, m.ctx
	entry := item.entry
	return m, func() tea.Msg {
		payload, _, err := cat.Payload(entry)
		if err != nil {
			return commandResultMsg{desc: "Upload", err: err}
		}

		reqCtx, cancel := context.WithTimeout(ctx, commandTimeout)
		defer cancel()

		target := slot
		if target == -1 {
			slots, err := fs.RequestSlotInfo(reqCtx)
			if err != nil {
				return commandResultMsg{desc: "Upload", err: err}
			}
			if target = slots.FirstEmpty(); target == -1 {
				return commandResultMsg{desc: "Upload", err: fmt.Errorf("no empty DLC slot")}
			}
		}

		if err := fs.BeginUpload(reqCtx, target, entry.DeviceFilename(), payload); err != nil {
			return commandResultMsg{desc: "Upload", err: err}
		}
		return uploadStartedMsg{status: uploadStatus{slot: target, name: entry.DeviceFilename(), total: len(payload)}}
	}
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *controlModel) addLogEntry(message string, isError bool) {
	entry := monitorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m *controlModel) updateListSize() {
	listHeight := m.height / 3
	if listHeight < 5 {
		listHeight = 5
	}
	m.actionList.SetSize(28, listHeight)
	m.bar.Width = m.width - 50
	if m.bar.Width < 10 {
		m.bar.Width = 10
	}
}
