package sdk

// Decision helpers shared by the example bots and the built-in strategy
// runner. They operate on wire types only, so external bots can use them
// without importing the engine.

// DefaultAction returns the action the server substitutes on a timeout or
// an illegal reply: the lowest legal id. Returns -1 for an empty menu.
func DefaultAction(legal []int) int {
	if len(legal) == 0 {
		return -1
	}
	min := legal[0]
	for _, id := range legal[1:] {
		if id < min {
			min = id
		}
	}
	return min
}

// BuyActionFor finds the menu entry buying the given seat quantity.
func BuyActionFor(menu []ActionInfo, quantity int) (int, bool) {
	for _, info := range menu {
		if info.Price == 0 && info.Quantity == quantity {
			return info.ID, true
		}
	}
	return 0, false
}

// PriceActionFor finds the menu entry setting the given price. The price is
// clamped to the menu's range first, so callers can pass a computed target.
func PriceActionFor(menu []ActionInfo, price int) (int, bool) {
	lo, hi, any := 0, 0, false
	for _, info := range menu {
		if info.Price == 0 {
			continue
		}
		if !any || info.Price < lo {
			lo = info.Price
		}
		if !any || info.Price > hi {
			hi = info.Price
		}
		any = true
	}
	if !any {
		return 0, false
	}
	if price < lo {
		price = lo
	}
	if price > hi {
		price = hi
	}

	best, bestID := -1, 0
	for _, info := range menu {
		if info.Price == 0 {
			continue
		}
		if info.Price <= price && info.Price > best {
			best, bestID = info.Price, info.ID
		}
	}
	if best < 0 {
		return 0, false
	}
	return bestID, true
}

// LowestRivalPrice returns the cheapest price any other seat charged in the
// given round (1-based). The bool is false when no rival priced that round.
func LowestRivalPrice(state *MatchState, round int) (int, bool) {
	low, found := 0, false
	for seat, prices := range state.Prices {
		if seat == state.Seat || round < 1 || round > len(prices) {
			continue
		}
		p := prices[round-1]
		if !found || p < low {
			low, found = p, true
		}
	}
	return low, found
}

// TotalSold sums a seat's sales over all completed rounds.
func TotalSold(state *MatchState, seat int) int {
	if seat < 0 || seat >= len(state.Sold) {
		return 0
	}
	total := 0
	for _, n := range state.Sold[seat] {
		total += n
	}
	return total
}
