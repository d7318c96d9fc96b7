// Package bookview prints an order book snapshot as a text ladder: asks
// from worst to best, the spread, then bids from best to worst.
package bookview

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"matchbook/domain/engine"
)

type Renderer struct {
	w      io.Writer
	orders bool

	ask    *color.Color
	bid    *color.Color
	header *color.Color
}

type Option func(*Renderer)

// WithOrders lists the resting orders of each level under it, oldest
// first.
func WithOrders(on bool) Option {
	return func(r *Renderer) { r.orders = on }
}

// WithColor forces colour on or off. By default it is on only when w is a
// terminal.
func WithColor(on bool) Option {
	return func(r *Renderer) { r.setColor(on) }
}

func New(w io.Writer, opts ...Option) *Renderer {
	r := &Renderer{
		w:      w,
		ask:    color.New(color.FgRed),
		bid:    color.New(color.FgGreen),
		header: color.New(color.Bold),
	}
	r.setColor(isTerminal(w))
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (r *Renderer) setColor(on bool) {
	for _, c := range []*color.Color{r.ask, r.bid, r.header} {
		if on {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
}

func (r *Renderer) Render(s engine.BookSnapshot) error {
	if _, err := r.header.Fprintf(r.w, "=== %s ===\n", s.Symbol); err != nil {
		return err
	}
	for i := len(s.Asks) - 1; i >= 0; i-- {
		if err := r.level(r.ask, "ASK", s.Asks[i]); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(r.w, spread(s)); err != nil {
		return err
	}
	for _, lvl := range s.Bids {
		if err := r.level(r.bid, "BID", lvl); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) level(c *color.Color, label string, lvl engine.Level) error {
	if _, err := c.Fprintf(r.w, "%s %12s %10d  (%d)\n", label, lvl.Price.String(), lvl.Volume, len(lvl.Orders)); err != nil {
		return err
	}
	if !r.orders {
		return nil
	}
	for _, o := range lvl.Orders {
		if _, err := fmt.Fprintf(r.w, "      %-12s %10d  %s\n", o.Owner, o.Volume, o.ID); err != nil {
			return err
		}
	}
	return nil
}

func spread(s engine.BookSnapshot) string {
	if len(s.Asks) == 0 || len(s.Bids) == 0 {
		return "---- spread: n/a ----"
	}
	return fmt.Sprintf("---- spread: %s ----", s.Asks[0].Price.Sub(s.Bids[0].Price).String())
}
