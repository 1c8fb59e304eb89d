package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nikolayk812/storefront-state/internal/app"
	"github.com/nikolayk812/storefront-state/internal/checkout"
	"github.com/nikolayk812/storefront-state/internal/domain"
	"github.com/spf13/cobra"
)

const addressAttempts = 3

func newCheckoutCmd(rt *runtime) *cobra.Command {
	var (
		method string
		yes    bool
	)

	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireSession(rt); err != nil {
				return err
			}
			pm, err := domain.ParsePaymentMethod(method)
			if err != nil {
				return err
			}
			if rt.tab.Cart().Count() == 0 {
				return errors.New(checkout.UserMessage(checkout.ErrEmptyCart))
			}

			co, err := rt.tab.NewCheckout()
			if err != nil {
				return fmt.Errorf("tab.NewCheckout: %w", err)
			}

			if err := collectAddress(rt, co); err != nil {
				return err
			}
			if err := co.SelectPayment(pm); err != nil {
				return errors.New(checkout.UserMessage(err))
			}

			printTotals(rt, co.Preview())
			if !yes {
				answer, err := rt.prompt("place order? [y/N] ")
				if err != nil {
					return err
				}
				if !strings.EqualFold(answer, "y") {
					rt.printf("order not placed\n")
					return nil
				}
			}

			conf, err := co.PlaceOrder(cmd.Context())
			if err != nil {
				if app.IsAuthError(err) {
					return describe(err)
				}
				return errors.New(checkout.UserMessage(err))
			}

			rt.printf("order %s placed, status %s\n", conf.OrderNumber, conf.Status)
			return nil
		},
	}
	cmd.Flags().StringVarP(&method, "method", "m", string(domain.PaymentGateway), "payment method: gateway or cod")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "place the order without asking")

	return cmd
}

// collectAddress prompts until the address validates or the attempts run out.
func collectAddress(rt *runtime, co *checkout.Orchestrator) error {
	s, _ := rt.tab.Session().Current()
	addr := domain.Address{Name: s.Name, Email: s.Email}

	for attempt := 1; ; attempt++ {
		fields := []struct {
			label string
			dst   *string
		}{
			{"name", &addr.Name},
			{"email", &addr.Email},
			{"phone", &addr.Phone},
			{"street", &addr.Street},
			{"city", &addr.City},
			{"state", &addr.State},
			{"pincode", &addr.Pincode},
		}
		for _, f := range fields {
			label := f.label + ": "
			if *f.dst != "" {
				label = fmt.Sprintf("%s [%s]: ", f.label, *f.dst)
			}
			v, err := rt.prompt(label)
			if err != nil {
				return err
			}
			if v != "" {
				*f.dst = v
			}
		}

		err := co.SubmitAddress(addr)
		if err == nil {
			return nil
		}

		rt.printf("%s\n", checkout.UserMessage(err))
		if attempt == addressAttempts {
			return fmt.Errorf("address not accepted after %d attempts", addressAttempts)
		}
	}
}

func printTotals(rt *runtime, t domain.Totals) {
	cur := rt.cfg.Currency
	rt.printf("subtotal  %s %s\n", cur, t.Subtotal.StringFixed(2))
	rt.printf("shipping  %s %s\n", cur, t.Shipping.StringFixed(2))
	rt.printf("tax       %s %s\n", cur, t.Tax.StringFixed(2))
	if t.CODFee.IsPositive() {
		rt.printf("cod fee   %s %s\n", cur, t.CODFee.StringFixed(2))
	}
	rt.printf("total     %s %s\n", cur, t.GrandTotal.StringFixed(2))
}
