// Package display renders seat-selling games as styled terminal tables, used
// by the replay command and the simulator's verbose mode.
package display

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/lox/seatsforbots/seats"
	"github.com/muesli/termenv"
)

// Renderer writes styled game output to a writer
type Renderer struct {
	w     io.Writer
	names []string
}

// New creates a renderer and pins the lipgloss color profile to what the
// environment supports, so piped output stays free of escape codes.
func New(w io.Writer) *Renderer {
	lipgloss.SetColorProfile(termenv.EnvColorProfile())
	return &Renderer{w: w}
}

// NewPlain creates a renderer that never emits color, for tests and logs.
func NewPlain(w io.Writer) *Renderer {
	lipgloss.SetColorProfile(termenv.Ascii)
	return &Renderer{w: w}
}

// SetNames assigns seller display names by seat index. Unset seats render as
// P0, P1, ...
func (r *Renderer) SetNames(names []string) {
	r.names = names
}

func (r *Renderer) name(seat int) string {
	if seat < len(r.names) && r.names[seat] != "" {
		return r.names[seat]
	}
	return fmt.Sprintf("P%d", seat)
}

// GameHeader prints the game banner
func (r *Renderer) GameHeader(matchID string, players int, seed int64) {
	fmt.Fprintf(r.w, "%s\n", headerStyle.Render(fmt.Sprintf("match %s", matchID)))
	fmt.Fprintf(r.w, "%s\n\n", infoStyle.Render(fmt.Sprintf("%d sellers, seed %d", players, seed)))
}

// SeatPurchases prints each seller's opening inventory
func (r *Renderer) SeatPurchases(st *seats.State) {
	players := st.Game().NumPlayers()
	w := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\n", headerStyle.Render("seller"), headerStyle.Render("seats"))
	for i := 0; i < players; i++ {
		fmt.Fprintf(w, "%s\t%d\n", sellerStyle.Render(r.name(i)), st.BoughtSeats(i))
	}
	w.Flush()
	fmt.Fprintln(r.w)
}

// Round prints one completed round: each seller's price, sales and running
// total. round must be a completed round index, i.e. round < st.Round().
func (r *Renderer) Round(st *seats.State, round int) {
	players := st.Game().NumPlayers()
	pnl := st.RunningPnl(round + 1)

	fmt.Fprintf(r.w, "%s\n", headerStyle.Render(fmt.Sprintf("round %d", round+1)))
	w := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
		headerStyle.Render("seller"),
		headerStyle.Render("price"),
		headerStyle.Render("sold"),
		headerStyle.Render("pnl"))
	for i := 0; i < players; i++ {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			sellerStyle.Render(r.name(i)),
			priceStyle.Render(fmt.Sprintf("$%d", st.Prices(i)[round])),
			st.Sold(i)[round],
			r.money(pnl[i]))
	}
	w.Flush()
	fmt.Fprintln(r.w)
}

// Standings prints the final table sorted by profit, best seller first
func (r *Renderer) Standings(st *seats.State) {
	players := st.Game().NumPlayers()
	returns := st.Returns()

	order := make([]int, players)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return returns[order[a]] > returns[order[b]]
	})

	fmt.Fprintf(r.w, "%s\n", headerStyle.Render("standings"))
	w := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
		headerStyle.Render("seller"),
		headerStyle.Render("seats"),
		headerStyle.Render("sold"),
		headerStyle.Render("pnl"),
		"")
	for rank, i := range order {
		totalSold := 0
		for _, units := range st.Sold(i) {
			totalSold += units
		}
		marker := ""
		if rank == 0 {
			marker = profitStyle.Render("winner")
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n",
			sellerStyle.Render(r.name(i)),
			st.BoughtSeats(i),
			totalSold,
			r.money(returns[i]),
			marker)
	}
	w.Flush()
}

func (r *Renderer) money(v float64) string {
	s := fmt.Sprintf("$%.0f", v)
	if v < 0 {
		return lossStyle.Render(s)
	}
	return profitStyle.Render(s)
}
