package main

import (
	"github.com/spf13/cobra"
)

func newWishlistCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wishlist",
		Short: "Show or change the wishlist",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			printWishlist(rt)
			return nil
		},
	}

	add := &cobra.Command{
		Use:   "add PRODUCT_ID",
		Short: "Save a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			added, err := rt.tab.SaveProduct(cmd.Context(), args[0])
			if err != nil {
				return describe(err)
			}
			if !added {
				rt.printf("%s is already saved\n", args[0])
				return nil
			}
			printWishlist(rt)
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "remove PRODUCT_ID",
		Short: "Forget a saved product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.tab.Wishlist().RemoveItem(cmd.Context(), args[0]); err != nil {
				return err
			}
			printWishlist(rt)
			return nil
		},
	}

	move := &cobra.Command{
		Use:   "move PRODUCT_ID",
		Short: "Move a saved product into the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.tab.Wishlist().MoveToCart(cmd.Context(), args[0], rt.tab.Cart()); err != nil {
				return err
			}
			return printCart(rt)
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Forget every saved product",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.tab.Wishlist().Clear(cmd.Context())
		},
	}

	cmd.AddCommand(add, remove, move, clearCmd)
	return cmd
}

func printWishlist(rt *runtime) {
	items := rt.tab.Wishlist().Items()
	if len(items) == 0 {
		rt.printf("wishlist is empty\n")
		return
	}

	for _, it := range items {
		rt.printf("%s\t%s\t%s\n", it.ID, it.Name, it.Price.StringFixed(2))
	}
}
