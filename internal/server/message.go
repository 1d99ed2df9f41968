package server

import (
	"sort"

	"github.com/lox/seatsforbots/sdk"
	"github.com/lox/seatsforbots/seats"
)

// Converters from engine state to wire payloads. The envelope and payload
// types live in the sdk package so external bots share them; everything
// here enforces the information model: a seat sees its own inventory and
// running total plus the public price and sales history, never a rival's
// inventory or the demand draw.

// viewFor renders the state from one seat's perspective.
func viewFor(st *seats.State, seat int) sdk.ViewData {
	players := st.Game().NumPlayers()
	prices := make([][]int, players)
	sold := make([][]int, players)
	for i := 0; i < players; i++ {
		prices[i] = append([]int(nil), st.Prices(i)...)
		sold[i] = append([]int(nil), st.Sold(i)...)
	}

	return sdk.ViewData{
		Round:      st.Round(),
		Phase:      st.CurrentPhase().String(),
		Bought:     st.BoughtSeats(seat),
		Prices:     prices,
		Sold:       sold,
		RunningPnl: st.RunningPnl(st.Round())[seat],
	}
}

// menuFor labels the legal actions for the acting phase.
func menuFor(st *seats.State) []sdk.ActionInfo {
	legal := st.LegalActions()
	menu := make([]sdk.ActionInfo, 0, len(legal))
	for _, action := range legal {
		info := sdk.ActionInfo{ID: int(action), Label: st.ActionString(action)}
		if qty, ok := action.Quantity(); ok && st.CurrentPhase() == seats.SeatBuying {
			info.Quantity = qty
		}
		if price, ok := action.Price(); ok {
			info.Price = price
		}
		menu = append(menu, info)
	}
	return menu
}

func actionRequestData(matchID string, st *seats.State, seat, timeoutSeconds int) sdk.ActionRequestData {
	legal := st.LegalActions()
	ids := make([]int, len(legal))
	for i, action := range legal {
		ids[i] = int(action)
	}

	return sdk.ActionRequestData{
		MatchID:       matchID,
		Seat:          seat,
		Phase:         st.CurrentPhase().String(),
		Round:         st.Round(),
		LegalActions:  ids,
		Menu:          menuFor(st),
		View:          viewFor(st, seat),
		TimeRemaining: timeoutSeconds,
	}
}

func matchStartData(matchID string, names []string, yourSeat int) sdk.MatchStartData {
	players := make([]sdk.SeatInfo, len(names))
	for seat, name := range names {
		players[seat] = sdk.SeatInfo{Seat: seat, Name: name}
	}

	return sdk.MatchStartData{
		MatchID:      matchID,
		YourSeat:     yourSeat,
		Players:      players,
		Rounds:       seats.MaxRounds,
		InitialPrice: seats.InitialPurchasePrice,
		LatePrice:    seats.LatePurchasePrice,
	}
}

// roundResultData reports the completed round (1-based).
func roundResultData(matchID string, st *seats.State, round int) sdk.RoundResultData {
	players := st.Game().NumPlayers()
	prices := make([]int, players)
	sold := make([]int, players)
	total := 0
	for i := 0; i < players; i++ {
		prices[i] = st.Prices(i)[round-1]
		sold[i] = st.Sold(i)[round-1]
		total += sold[i]
	}

	return sdk.RoundResultData{
		MatchID:   matchID,
		Round:     round,
		Prices:    prices,
		Sold:      sold,
		TotalSold: total,
	}
}

// matchEndData reveals inventories and sorts standings best first.
func matchEndData(matchID string, st *seats.State, names []string) sdk.MatchEndData {
	returns := st.Returns()
	standings := make([]sdk.StandingInfo, len(names))
	for seat, name := range names {
		totalSold := 0
		for _, n := range st.Sold(seat) {
			totalSold += n
		}
		standings[seat] = sdk.StandingInfo{
			Seat:   seat,
			Name:   name,
			Bought: st.BoughtSeats(seat),
			Sold:   totalSold,
			Pnl:    returns[seat],
		}
	}
	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].Pnl > standings[j].Pnl
	})

	return sdk.MatchEndData{
		MatchID:   matchID,
		Rounds:    st.Round(),
		Returns:   append([]float64(nil), returns...),
		Standings: standings,
	}
}

func stateData(matchID string, st *seats.State, seat int) sdk.StateData {
	return sdk.StateData{
		MatchID: matchID,
		State:   st.InformationStateString(seat),
	}
}
