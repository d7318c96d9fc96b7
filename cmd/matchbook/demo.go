package main

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"matchbook/api/bookview"
	"matchbook/domain/orderbook"
)

type demoStep struct {
	owner  string
	price  int64
	volume int64
	side   orderbook.Side
	tif    orderbook.TimeInForce
	print  bool
}

// demoSteps is a session on one symbol that exercises resting, rejected
// fill-or-kill, partial fills and a GTC remainder.
var demoSteps = []demoStep{
	{"seller1", 700, 100, orderbook.Sell, orderbook.GoodTilCancel, false},
	{"seller2", 702, 300, orderbook.Sell, orderbook.FillOrKill, false},
	{"seller3", 698, 700, orderbook.Sell, orderbook.GoodTilCancel, false},
	{"seller4", 700, 300, orderbook.Sell, orderbook.GoodTilCancel, false},
	{"buyer", 695, 1000, orderbook.Buy, orderbook.GoodTilCancel, false},
	{"BUYER", 700, 250, orderbook.Buy, orderbook.FillOrKill, true},
	{"BUYER9", 700, 250, orderbook.Buy, orderbook.FillOrKill, true},
	{"BUYER10", 700, 250, orderbook.Buy, orderbook.GoodTilCancel, true},
}

const demoSymbol = "TSLA"

func init() {
	rootCmd.AddCommand(demoCmd)
	demoCmd.Flags().Bool("orders", false, "List resting orders under each level")
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a scripted trading session and print the book after key steps",
	RunE: func(cmd *cobra.Command, args []string) error {
		showOrders, err := cmd.Flags().GetBool("orders")
		if err != nil {
			return err
		}
		a, err := newAppFromFlags(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a.start(ctx)
		defer a.stop(context.Background())

		view := bookview.New(os.Stdout, bookview.WithOrders(showOrders))
		for _, st := range demoSteps {
			out, err := a.svc.PlaceOrder(st.owner, demoSymbol, decimal.NewFromInt(st.price), st.volume, st.side, st.tif)
			if err != nil {
				return err
			}
			fmt.Printf("%-8s %s %s %d @ %d -> %s (filled %d, resting %d)\n",
				st.owner, st.tif, st.side, st.volume, st.price, out.Status, out.FilledVolume(), out.Remaining)
			if st.print {
				if err := view.Render(a.svc.Snapshot(demoSymbol)); err != nil {
					return err
				}
			}
		}
		return nil
	},
}
