package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCartCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show or change the cart",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return printCart(rt)
		},
	}

	var qty int
	add := &cobra.Command{
		Use:   "add PRODUCT_ID",
		Short: "Add a product, merging with an existing line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.tab.AddProduct(cmd.Context(), args[0], qty); err != nil {
				return describe(err)
			}
			return printCart(rt)
		},
	}
	add.Flags().IntVarP(&qty, "quantity", "q", 1, "quantity to add")

	remove := &cobra.Command{
		Use:   "remove PRODUCT_ID",
		Short: "Remove a line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.tab.Cart().RemoveItem(cmd.Context(), args[0]); err != nil {
				return err
			}
			return printCart(rt)
		},
	}

	set := &cobra.Command{
		Use:   "set PRODUCT_ID QUANTITY",
		Short: "Set the quantity of a line, zero removes it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("quantity[%s] is not a number", args[1])
			}
			if err := rt.tab.Cart().SetQuantity(cmd.Context(), args[0], n); err != nil {
				return err
			}
			return printCart(rt)
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.tab.Cart().Clear(cmd.Context())
		},
	}

	cmd.AddCommand(add, remove, set, clearCmd)
	return cmd
}

func printCart(rt *runtime) error {
	c := rt.tab.Cart()
	if c.Count() == 0 {
		rt.printf("cart is empty\n")
		return nil
	}

	w := tabwriter.NewWriter(rt.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tNAME\tQTY\tPRICE\tSUBTOTAL\n")
	for _, l := range c.Lines() {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", l.ID, l.Name, l.Quantity, l.Price.StringFixed(2), l.Subtotal().StringFixed(2))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	rt.printf("%d lines, total %s %s\n", c.Count(), rt.cfg.Currency, c.Total().StringFixed(2))
	return nil
}
