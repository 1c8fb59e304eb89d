package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/nikolayk812/storefront-state/internal/port"
	"github.com/spf13/cobra"
)

func newProductsCmd(rt *runtime) *cobra.Command {
	var q port.ProductQuery

	cmd := &cobra.Command{
		Use:   "products [SEARCH]",
		Short: "Search the catalog",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				q.Search = args[0]
			}

			page, err := rt.tab.API().SearchProducts(cmd.Context(), q)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(rt.out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "ID\tNAME\tPRICE\tSTOCK\tSAVED\n")
			for _, p := range page.Products {
				saved := ""
				if rt.tab.Wishlist().Contains(p.ID) {
					saved = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", p.ID, p.Name, p.Price.StringFixed(2), p.Stock, saved)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			rt.printf("page %d of %d, %d products\n", page.Page, page.Pages, page.Total)
			return nil
		},
	}
	cmd.Flags().StringVar(&q.Category, "category", "", "category slug")
	cmd.Flags().IntVar(&q.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&q.Limit, "limit", 20, "products per page")

	return cmd
}

func newCategoriesCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List catalog categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			categories, err := rt.tab.API().ListCategories(cmd.Context())
			if err != nil {
				return err
			}

			for _, c := range categories {
				rt.printf("%s\t%s\n", c.Slug, c.Name)
			}
			return nil
		},
	}
}
