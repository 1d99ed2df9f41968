package tui

import (
	"io"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/lox/seatsforbots/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModel(events <-chan *sdk.Message) *WatchModel {
	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel}) // Quiet logger for tests
	return NewWatchModel(events, logger)
}

func event(t *testing.T, msgType sdk.MessageType, payload interface{}) streamMsg {
	t.Helper()
	msg, err := sdk.NewMessage(msgType, payload)
	require.NoError(t, err)
	return streamMsg{msg: msg}
}

func matchStartEvent(t *testing.T) streamMsg {
	t.Helper()
	return event(t, sdk.MessageTypeMatchStart, sdk.MatchStartData{
		MatchID:      "duel",
		YourSeat:     -1,
		Players:      []sdk.SeatInfo{{Seat: 0, Name: "alpha"}, {Seat: 1, Name: "beta"}},
		Rounds:       10,
		InitialPrice: 60,
		LatePrice:    40,
	})
}

func TestWatchModel(t *testing.T) {
	t.Run("match start resets state and logs seats", func(t *testing.T) {
		m := newTestModel(nil)
		m.round = 7
		m.finished = true

		m.Update(matchStartEvent(t))

		assert.Equal(t, "duel", m.matchID)
		assert.Equal(t, 10, m.rounds)
		assert.Equal(t, 0, m.round)
		assert.False(t, m.finished)
		require.Len(t, m.players, 2)

		logText := strings.Join(m.eventLog, "\n")
		assert.Contains(t, logText, "alpha")
		assert.Contains(t, logText, "beta")
		assert.Contains(t, logText, "10 rounds")
	})

	t.Run("price and round broadcasts update the tracker", func(t *testing.T) {
		m := newTestModel(nil)
		m.Update(matchStartEvent(t))

		m.Update(event(t, sdk.MessageTypePriceSet, sdk.PriceSetData{MatchID: "duel", Seat: 0, Round: 0, Price: 65}))
		m.Update(event(t, sdk.MessageTypePriceSet, sdk.PriceSetData{MatchID: "duel", Seat: 1, Round: 0, Price: 50}))
		m.Update(event(t, sdk.MessageTypeRoundResult, sdk.RoundResultData{
			MatchID: "duel", Round: 1, Prices: []int{65, 50}, Sold: []int{3, 2}, TotalSold: 5,
		}))

		assert.Equal(t, 1, m.round)
		assert.Equal(t, []int{65, 50}, m.prices)
		assert.Equal(t, []int{3, 2}, m.sold)

		m.Update(event(t, sdk.MessageTypeRoundResult, sdk.RoundResultData{
			MatchID: "duel", Round: 2, Prices: []int{65, 50}, Sold: []int{1, 0}, TotalSold: 1,
		}))

		assert.Equal(t, 2, m.round)
		assert.Equal(t, []int{4, 2}, m.sold)

		logText := strings.Join(m.eventLog, "\n")
		assert.Contains(t, logText, "alpha sets price")
		assert.Contains(t, logText, "round 1/10")
	})

	t.Run("match end captures standings", func(t *testing.T) {
		m := newTestModel(nil)
		m.Update(matchStartEvent(t))
		m.Update(event(t, sdk.MessageTypeMatchEnd, sdk.MatchEndData{
			MatchID: "duel",
			Rounds:  10,
			Returns: []float64{120, -40},
			Standings: []sdk.StandingInfo{
				{Seat: 0, Name: "alpha", Bought: 20, Sold: 18, Pnl: 120},
				{Seat: 1, Name: "beta", Bought: 10, Sold: 4, Pnl: -40},
			},
		}))

		assert.True(t, m.finished)
		require.Len(t, m.standings, 2)
		assert.Equal(t, "alpha", m.standings[0].Name)

		logText := strings.Join(m.eventLog, "\n")
		assert.Contains(t, logText, "match over after 10 rounds")
		assert.Contains(t, logText, "1. alpha")
	})

	t.Run("errors land in the log", func(t *testing.T) {
		m := newTestModel(nil)
		m.Update(event(t, sdk.MessageTypeError, sdk.ErrorData{Code: "watch_only", Message: "watchers cannot act"}))

		logText := strings.Join(m.eventLog, "\n")
		assert.Contains(t, logText, "watchers cannot act")
		assert.Contains(t, logText, "watch_only")
	})

	t.Run("stream close is reported once", func(t *testing.T) {
		m := newTestModel(nil)
		_, cmd := m.Update(streamClosedMsg{})

		assert.True(t, m.closed)
		assert.Nil(t, cmd)
		assert.Contains(t, strings.Join(m.eventLog, "\n"), "connection closed")
	})

	t.Run("quit keys stop the program", func(t *testing.T) {
		m := newTestModel(nil)
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})

		assert.True(t, m.quitting)
		assert.NotNil(t, cmd)
		assert.Empty(t, m.View())
	})
}

func TestWaitForEvent(t *testing.T) {
	events := make(chan *sdk.Message, 1)
	m := newTestModel(events)

	welcome, err := sdk.NewMessage(sdk.MessageTypeWelcome, sdk.WelcomeData{BotID: "watcher", MatchID: "duel", Seat: -1, Players: 2})
	require.NoError(t, err)
	events <- welcome

	got := m.waitForEvent()()
	stream, ok := got.(streamMsg)
	require.True(t, ok, "expected a stream message, got %T", got)
	assert.Equal(t, sdk.MessageTypeWelcome, stream.msg.Type)

	close(events)
	got = m.waitForEvent()()
	assert.IsType(t, streamClosedMsg{}, got)
}

func TestWatchModelView(t *testing.T) {
	m := newTestModel(nil)

	assert.Equal(t, "Loading...", m.View())

	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m.Update(matchStartEvent(t))

	view := m.View()
	assert.Contains(t, view, "seatsforbots watch")
	assert.Contains(t, view, "alpha")
	assert.Contains(t, view, "duel")

	m.Update(event(t, sdk.MessageTypeMatchEnd, sdk.MatchEndData{
		MatchID: "duel",
		Rounds:  10,
		Returns: []float64{120, -40},
		Standings: []sdk.StandingInfo{
			{Seat: 0, Name: "alpha", Bought: 20, Sold: 18, Pnl: 120},
			{Seat: 1, Name: "beta", Bought: 10, Sold: 4, Pnl: -40},
		},
	}))

	view = m.View()
	assert.Contains(t, view, "Final standings")
}
