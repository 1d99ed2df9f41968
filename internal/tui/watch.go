// Package tui implements the terminal viewer for live matches. It consumes
// the broadcast stream a watcher connection receives and renders a scrolling
// event log next to a standings sidebar.
package tui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/lox/seatsforbots/sdk"
)

// WatchModel is the Bubble Tea model for watching a match. It owns no
// connection; events arrive on a channel fed by the caller and the model
// only renders what it was told.
type WatchModel struct {
	events <-chan *sdk.Message
	logger *log.Logger

	// UI components
	logViewport viewport.Model
	spin        spinner.Model

	// Match state rebuilt from broadcasts
	matchID   string
	players   []sdk.SeatInfo
	rounds    int
	round     int
	prices    []int
	sold      []int
	standings []sdk.StandingInfo
	finished  bool

	// Stream state
	eventLog []string
	closed   bool
	quitting bool

	// Dimensions
	width       int
	height      int
	initialized bool
}

// streamMsg delivers one server broadcast into the update loop.
type streamMsg struct {
	msg *sdk.Message
}

// streamClosedMsg signals that the event channel was closed.
type streamClosedMsg struct{}

// NewWatchModel creates a watch model reading from events. The channel
// should be closed when the underlying connection goes away.
func NewWatchModel(events <-chan *sdk.Message, logger *log.Logger) *WatchModel {
	vp := viewport.New(10, 5)
	vp.SetContent("")

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))

	return &WatchModel{
		events:      events,
		logger:      logger.WithPrefix("tui"),
		logViewport: vp,
		spin:        sp,
		eventLog:    []string{},
	}
}

// Init starts the spinner and the event pump.
func (m *WatchModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.waitForEvent())
}

// waitForEvent returns a command that blocks for the next broadcast.
func (m *WatchModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-m.events
		if !ok {
			return streamClosedMsg{}
		}
		return streamMsg{msg: msg}
	}
}

// Update handles messages in the watch view.
func (m *WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			m.quitting = true
			return m, tea.Sequence(tea.ClearScreen, tea.Quit)
		case "up", "k":
			m.logViewport.ScrollUp(1)
		case "down", "j":
			m.logViewport.ScrollDown(1)
		case "pgup", "b":
			m.logViewport.HalfPageUp()
		case "pgdown", "f":
			m.logViewport.HalfPageDown()
		case "home", "g":
			m.logViewport.GotoTop()
		case "end", "G":
			m.logViewport.GotoBottom()
		}

	case spinner.TickMsg:
		if m.closed {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case streamMsg:
		m.handleEvent(msg.msg)
		return m, m.waitForEvent()

	case streamClosedMsg:
		m.closed = true
		m.appendLog(InfoStyle.Render("connection closed"))
		return m, nil
	}

	return m, nil
}

// handleEvent folds one broadcast into the match state and the event log.
func (m *WatchModel) handleEvent(msg *sdk.Message) {
	switch msg.Type {
	case sdk.MessageTypeWelcome:
		var data sdk.WelcomeData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			m.logger.Error("Failed to parse welcome", "error", err)
			return
		}
		m.matchID = data.MatchID
		m.appendLog(InfoStyle.Render(fmt.Sprintf("watching match %s (%d seats)", data.MatchID, data.Players)))

	case sdk.MessageTypeMatchStart:
		var data sdk.MatchStartData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			m.logger.Error("Failed to parse match_start", "error", err)
			return
		}
		m.matchID = data.MatchID
		m.players = data.Players
		m.rounds = data.Rounds
		m.round = 0
		m.prices = make([]int, len(data.Players))
		m.sold = make([]int, len(data.Players))
		m.standings = nil
		m.finished = false
		m.appendLog(RoundStyle.Render(fmt.Sprintf("match started: %d rounds, opening price $%d", data.Rounds, data.InitialPrice)))
		for _, p := range data.Players {
			m.appendLog(fmt.Sprintf("  seat %d: %s", p.Seat, p.Name))
		}

	case sdk.MessageTypePriceSet:
		var data sdk.PriceSetData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			m.logger.Error("Failed to parse price_set", "error", err)
			return
		}
		if data.Seat >= 0 && data.Seat < len(m.prices) {
			m.prices[data.Seat] = data.Price
		}
		m.appendLog(fmt.Sprintf("%s sets price %s", m.seatName(data.Seat), PriceStyle.Render(fmt.Sprintf("$%d", data.Price))))

	case sdk.MessageTypeRoundResult:
		var data sdk.RoundResultData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			m.logger.Error("Failed to parse round_result", "error", err)
			return
		}
		m.round = data.Round
		for seat, n := range data.Sold {
			if seat < len(m.sold) {
				m.sold[seat] += n
			}
		}
		m.appendLog(RoundStyle.Render(fmt.Sprintf("round %d/%d", data.Round, m.rounds)) +
			fmt.Sprintf(" sold %d seats %v", data.TotalSold, data.Sold))

	case sdk.MessageTypeMatchEnd:
		var data sdk.MatchEndData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			m.logger.Error("Failed to parse match_end", "error", err)
			return
		}
		m.finished = true
		m.standings = data.Standings
		m.appendLog(RoundStyle.Render(fmt.Sprintf("match over after %d rounds", data.Rounds)))
		for i, s := range data.Standings {
			m.appendLog(fmt.Sprintf("  %d. %s %s", i+1, s.Name, renderPnl(s.Pnl)))
		}

	case sdk.MessageTypeError:
		var data sdk.ErrorData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			m.logger.Error("Failed to parse error", "error", err)
			return
		}
		m.appendLog(ErrorStyle.Render(fmt.Sprintf("error: %s (%s)", data.Message, data.Code)))

	default:
		m.logger.Debug("Ignoring message", "type", msg.Type)
	}
}

// appendLog adds a line to the event log.
func (m *WatchModel) appendLog(line string) {
	m.eventLog = append(m.eventLog, line)
}

// seatName resolves a seat number to the occupant's name.
func (m *WatchModel) seatName(seat int) string {
	for _, p := range m.players {
		if p.Seat == seat {
			return p.Name
		}
	}
	return fmt.Sprintf("seat %d", seat)
}

// renderPnl formats a profit or loss with the matching style.
func renderPnl(pnl float64) string {
	if pnl < 0 {
		return LossStyle.Render(fmt.Sprintf("%.0f", pnl))
	}
	return ProfitStyle.Render(fmt.Sprintf("+%.0f", pnl))
}

// View renders the watch layout: event log on the left, match sidebar on the
// right, key help at the bottom.
func (m *WatchModel) View() string {
	if m.quitting {
		return ""
	}

	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	header := HeaderStyle.Width(m.width).Render(" seatsforbots watch ")
	headerHeight := lipgloss.Height(header)

	help := InfoStyle.Render(" q quit | j/k scroll | g/G top/bottom")
	helpHeight := lipgloss.Height(help)

	// Sidebar pane (right side, same height as log pane)
	sidebarContent := m.renderSidebar()

	calculatedSidebarWidth := 28
	if w := lipgloss.Width(sidebarContent); w > calculatedSidebarWidth {
		calculatedSidebarWidth = w
	}

	calculatedPaneHeight := m.height - headerHeight - helpHeight - 2 // Account for borders
	if calculatedPaneHeight < 1 {
		calculatedPaneHeight = 1
	}
	if calculatedSidebarWidth < 1 {
		calculatedSidebarWidth = 1
	}

	sidebarStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Width(calculatedSidebarWidth).
		Height(calculatedPaneHeight)

	sidebarPane := sidebarStyle.Render(sidebarContent)

	// Log pane fills the remaining width
	calculatedLogWidth := m.width - calculatedSidebarWidth - 4 // Account for border x 2
	if calculatedLogWidth < 1 {
		calculatedLogWidth = 1
	}

	atBottom := m.logViewport.AtBottom()
	m.logViewport.Width = calculatedLogWidth
	m.logViewport.Height = calculatedPaneHeight
	m.logViewport.SetContent(EventLogStyle.Render(strings.Join(m.eventLog, "\n")))

	// Follow the tail unless the user scrolled up
	if !m.initialized || atBottom {
		m.logViewport.GotoBottom()
		m.initialized = true
	}

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Width(calculatedLogWidth).
		Height(calculatedPaneHeight)

	logPane := logStyle.Render(m.logViewport.View())

	body := lipgloss.JoinHorizontal(lipgloss.Top, logPane, sidebarPane)

	return lipgloss.JoinVertical(lipgloss.Top, header, body, help)
}

// renderSidebar creates the sidebar content
func (m *WatchModel) renderSidebar() string {
	var content strings.Builder

	if m.matchID != "" {
		content.WriteString(WarningStyle.Render(fmt.Sprintf("Match: %s", m.matchID)))
		content.WriteString("\n")
	}

	switch {
	case m.closed:
		content.WriteString(InfoStyle.Render("Disconnected"))
	case m.finished:
		content.WriteString(RoundStyle.Render("Final standings"))
	case m.rounds > 0:
		content.WriteString(fmt.Sprintf("%s Round %d/%d", m.spin.View(), m.round, m.rounds))
	default:
		content.WriteString(fmt.Sprintf("%s Waiting for match", m.spin.View()))
	}
	content.WriteString("\n\n")

	if m.finished && len(m.standings) > 0 {
		for i, s := range m.standings {
			content.WriteString(fmt.Sprintf("%d. %s\n", i+1, s.Name))
			content.WriteString(fmt.Sprintf("   bought %d sold %d %s\n", s.Bought, s.Sold, renderPnl(s.Pnl)))
		}
		return content.String()
	}

	if len(m.players) > 0 {
		content.WriteString(InfoStyle.Render("Sellers:"))
		content.WriteString("\n")
		for _, p := range m.players {
			line := fmt.Sprintf("  %s", p.Name)
			if p.Seat < len(m.prices) && m.prices[p.Seat] > 0 {
				line += fmt.Sprintf(" $%d", m.prices[p.Seat])
			}
			if p.Seat < len(m.sold) {
				line += fmt.Sprintf(" (%d sold)", m.sold[p.Seat])
			}
			content.WriteString(line)
			content.WriteString("\n")
		}
	}

	return content.String()
}
