package main

import (
	"context"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"matchbook/api/bookview"
	"matchbook/domain/orderbook"
	"matchbook/service"
)

// orderFile is the input of the book command.
//
//	orders:
//	  - {owner: s1, symbol: TSLA, side: sell, price: "700", volume: 100, tif: gtc}
//	  - {owner: s1, cancel: 0}
//
// A cancel entry refers to an earlier entry by its index in the list.
type orderFile struct {
	Orders []orderEntry `yaml:"orders"`
}

type orderEntry struct {
	Owner  string `yaml:"owner"`
	Symbol string `yaml:"symbol"`
	Side   string `yaml:"side"`
	Price  string `yaml:"price"`
	Volume int64  `yaml:"volume"`
	TIF    string `yaml:"tif"`
	Cancel *int   `yaml:"cancel"`
}

func init() {
	rootCmd.AddCommand(bookCmd)
	bookCmd.Flags().StringP("file", "f", "", "YAML file of orders to submit (required)")
	bookCmd.Flags().Bool("orders", false, "List resting orders under each level")
	_ = bookCmd.MarkFlagRequired("file")
}

var bookCmd = &cobra.Command{
	Use:   "book",
	Short: "Submit orders from a file and print the resulting books",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := cmd.Flags().GetString("file")
		if err != nil {
			return err
		}
		showOrders, err := cmd.Flags().GetBool("orders")
		if err != nil {
			return err
		}
		entries, err := readOrderFile(path)
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

		if err := submit(a.svc, entries); err != nil {
			return err
		}

		view := bookview.New(os.Stdout, bookview.WithOrders(showOrders))
		for _, sym := range a.svc.Symbols() {
			if err := view.Render(a.svc.Snapshot(sym)); err != nil {
				return err
			}
		}
		return nil
	},
}

func readOrderFile(path string) ([]orderEntry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read order file")
	}
	var f orderFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, errors.Wrapf(err, "parse order file %s", path)
	}
	return f.Orders, nil
}

// submit plays entries against svc in file order. Invalid entries abort
// the run; rejected orders and unknown cancels do not.
func submit(svc *service.OrderService, entries []orderEntry) error {
	placed := make([]orderbook.View, len(entries))
	for i, e := range entries {
		if e.Cancel != nil {
			ref := *e.Cancel
			if ref < 0 || ref >= i {
				return errors.Errorf("entry %d: cancel refers to %d", i, ref)
			}
			svc.CancelOrder(placed[ref].ID)
			continue
		}

		side, err := parseSide(e.Side)
		if err != nil {
			return errors.Wrapf(err, "entry %d", i)
		}
		tif, err := parseTIF(e.TIF)
		if err != nil {
			return errors.Wrapf(err, "entry %d", i)
		}
		price, err := decimal.NewFromString(e.Price)
		if err != nil {
			return errors.Wrapf(err, "entry %d: price %q", i, e.Price)
		}

		out, err := svc.PlaceOrder(e.Owner, e.Symbol, price, e.Volume, side, tif)
		if err != nil {
			return errors.Wrapf(err, "entry %d", i)
		}
		placed[i] = out.Order
	}
	return nil
}

func parseSide(s string) (orderbook.Side, error) {
	switch strings.ToLower(s) {
	case "buy", "bid":
		return orderbook.Buy, nil
	case "sell", "ask":
		return orderbook.Sell, nil
	default:
		return 0, errors.Wrapf(orderbook.ErrInvalidSide, "%q", s)
	}
}

func parseTIF(s string) (orderbook.TimeInForce, error) {
	switch strings.ToLower(s) {
	case "", "gtc":
		return orderbook.GoodTilCancel, nil
	case "fok":
		return orderbook.FillOrKill, nil
	default:
		return 0, errors.Errorf("unknown time in force %q", s)
	}
}
