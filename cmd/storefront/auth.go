package main

import (
	"fmt"

	"github.com/nikolayk812/storefront-state/internal/domain"
	"github.com/nikolayk812/storefront-state/internal/port"
	"github.com/spf13/cobra"
)

func newLoginCmd(rt *runtime) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login EMAIL",
		Short: "Sign in and share the session with every open tab",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				p, err := rt.prompt("password: ")
				if err != nil {
					return err
				}
				password = p
			}

			if err := rt.tab.SignIn(cmd.Context(), args[0], password); err != nil {
				return err
			}

			s, _ := rt.tab.Session().Current()
			rt.printf("signed in as %s <%s>\n", s.Name, s.Email)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "password, prompted when empty")

	return cmd
}

func newRegisterCmd(rt *runtime) *cobra.Command {
	var req port.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register EMAIL",
		Short: "Create an account and sign in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Email = args[0]
			if req.Password == "" {
				p, err := rt.prompt("password: ")
				if err != nil {
					return err
				}
				req.Password = p
			}

			if err := rt.tab.SignUp(cmd.Context(), req); err != nil {
				return err
			}

			rt.printf("account created for %s\n", req.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "display name")
	cmd.Flags().StringVar(&req.Phone, "phone", "", "phone number")
	cmd.Flags().StringVarP(&req.Password, "password", "p", "", "password, prompted when empty")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newLogoutCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out of every tab",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt.tab.Session().Logout(cmd.Context())
			rt.printf("signed out\n")
			return nil
		},
	}
}

func newWhoamiCmd(rt *runtime) *cobra.Command {
	var name, email string

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session, optionally updating the profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var patch domain.ProfilePatch
			if cmd.Flags().Changed("name") {
				patch.Name = &name
			}
			if cmd.Flags().Changed("email") {
				patch.Email = &email
			}
			if patch.Name != nil || patch.Email != nil {
				if err := rt.tab.Session().UpdateProfile(cmd.Context(), patch); err != nil {
					return err
				}
			}

			s, ok := rt.tab.Session().Current()
			if !ok {
				rt.printf("not signed in\n")
				return nil
			}

			rt.printf("%s <%s> role=%s id=%s\n", s.Name, s.Email, s.Role, s.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new display name")
	cmd.Flags().StringVar(&email, "email", "", "new email")

	return cmd
}

func requireSession(rt *runtime) error {
	if !rt.tab.Session().IsAuthenticated() {
		return fmt.Errorf("not signed in, run `storefront login` first")
	}
	return nil
}
