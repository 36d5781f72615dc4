// Package display renders tables for terminal output.
package display

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/sanity-io/litter"

	"github.com/lox/chiptable/internal/game"
)

// Styles contains styling for table display
type Styles struct {
	Header    lipgloss.Style
	Pot       lipgloss.Style
	Border    lipgloss.Style
	Cell      lipgloss.Style
	Turn      lipgloss.Style
	Folded    lipgloss.Style
	Away      lipgloss.Style
	Showdown  lipgloss.Style
	Separator lipgloss.Style
}

// NewStyles creates the default set of display styles
func NewStyles() *Styles {
	return &Styles{
		Header: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 2).
			Bold(true),
		Pot: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700")).
			Bold(true),
		Border: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")),
		Cell: lipgloss.NewStyle().
			Padding(0, 1),
		Turn: lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("#04B575")).
			Bold(true),
		Folded: lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("#626262")),
		Away: lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("#FF6B6B")).
			Faint(true),
		Showdown: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700")).
			Bold(true),
		Separator: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")),
	}
}

// Renderer draws tables with a fixed set of styles
type Renderer struct {
	styles *Styles
}

// NewRenderer creates a renderer using the default styles
func NewRenderer() *Renderer {
	return &Renderer{styles: NewStyles()}
}

// Render draws the table header and one row per seat
func (r *Renderer) Render(t game.Table) string {
	var b strings.Builder
	b.WriteString(r.styles.Header.Render("Table " + t.ID))
	b.WriteString("\n")
	b.WriteString(r.summary(t))
	b.WriteString("\n")
	b.WriteString(r.seats(t))
	return b.String()
}

func (r *Renderer) summary(t game.Table) string {
	sep := r.styles.Separator.Render(" • ")
	parts := []string{
		fmt.Sprintf("v%d", t.Version),
		fmt.Sprintf("Blinds %d/%d", t.SmallBlind, t.BigBlind),
		r.styles.Pot.Render(fmt.Sprintf("Pot %d", t.Pot)),
	}

	switch {
	case !t.RoundActive:
		parts = append(parts, "Waiting for next round")
	case t.ShowdownPending():
		parts = append(parts, t.RoundStage.String(), r.styles.Showdown.Render("Awaiting winner"))
	default:
		parts = append(parts, t.RoundStage.String(), fmt.Sprintf("To call %d", t.CurrentBet))
	}
	return strings.Join(parts, sep)
}

func (r *Renderer) seats(t game.Table) string {
	rows := make([][]string, 0, len(t.Players))
	for i, p := range t.Players {
		rows = append(rows, []string{
			strconv.Itoa(i),
			p.Name,
			p.ID,
			strconv.Itoa(p.Chips),
			strconv.Itoa(p.CurrentBet),
			position(t, i),
			status(t, i),
		})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(r.styles.Border).
		Headers("Seat", "Player", "ID", "Chips", "Bet", "Pos", "Status").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow || row < 0 || row >= len(t.Players) {
				return r.styles.Cell.Bold(true)
			}
			p := t.Players[row]
			switch {
			case !p.Active:
				return r.styles.Away
			case p.Folded:
				return r.styles.Folded
			case t.RoundActive && row == t.CurrentTurn:
				return r.styles.Turn
			default:
				return r.styles.Cell
			}
		}).
		String()
}

func position(t game.Table, seat int) string {
	var marks []string
	if seat == t.DealerPosition {
		marks = append(marks, "BTN")
	}
	if t.RoundActive && seat == t.LastToAct {
		marks = append(marks, "closes")
	}
	return strings.Join(marks, " ")
}

func status(t game.Table, seat int) string {
	p := t.Players[seat]
	switch {
	case !p.Active:
		return "away"
	case p.Folded:
		return "folded"
	case t.RoundActive && seat == t.CurrentTurn:
		return "to act"
	case t.RoundActive:
		return "in hand"
	default:
		return "seated"
	}
}

// Render draws t with the default styles
func Render(t game.Table) string {
	return NewRenderer().Render(t)
}

// Dump returns a Go-syntax dump of the table, useful for debugging stored
// documents
func Dump(t game.Table) string {
	return litter.Options{
		HidePrivateFields: true,
		HomePackage:       "game",
	}.Sdump(t)
}
