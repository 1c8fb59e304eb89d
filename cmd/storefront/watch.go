package main

import (
	"github.com/nikolayk812/storefront-state/internal/event"
	"github.com/spf13/cobra"
)

func newWatchCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print session, cart and wishlist changes made in other tabs until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			events := make(chan event.Event, 64)

			unsubscribe := rt.tab.Bus().Subscribe(func(e event.Event) {
				select {
				case events <- e:
				case <-ctx.Done():
				}
			})
			defer unsubscribe()

			rt.printf("watching tab %s, ctrl-c to stop\n", rt.tab.Origin())
			for {
				select {
				case <-ctx.Done():
					return nil
				case e := <-events:
					printEvent(rt, e)
				}
			}
		},
	}
}

func printEvent(rt *runtime, e event.Event) {
	switch {
	case e.Session != nil:
		rt.printf("%-16s %s <%s>\n", e.Kind, e.Session.Name, e.Session.Email)
	case e.Cart != nil:
		rt.printf("%-16s %d lines, total %s\n", e.Kind, e.Cart.Count, e.Cart.Total.StringFixed(2))
	case e.Wishlist != nil:
		rt.printf("%-16s %d items\n", e.Kind, e.Wishlist.Count)
	default:
		rt.printf("%s\n", e.Kind)
	}
}
