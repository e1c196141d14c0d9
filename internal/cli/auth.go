package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) loginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login [email]",
		Short: "Log in and save the session token",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := a.argOrPrompt(args, "Email: ")
			if err != nil {
				return err
			}
			password, err := a.password("Password: ")
			if err != nil {
				return err
			}

			res, err := a.anonymous().Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			if err := saveToken(a.tokenFile, res.Token); err != nil {
				return err
			}

			fmt.Fprintf(a.out, "Logged in as %s (%s).\n", res.User.Email, res.User.Role)
			if !res.User.Approved {
				fmt.Fprintln(a.out, "Your account is waiting for approval.")
			}
			return nil
		},
	}
}

func (a *app) signupCommand() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "signup [email]",
		Short: "Request a new account",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := a.argOrPrompt(args, "Email: ")
			if err != nil {
				return err
			}
			if name == "" {
				if name, err = a.prompt("Name: "); err != nil {
					return err
				}
			}
			password, err := a.password("Password: ")
			if err != nil {
				return err
			}

			u, err := a.anonymous().Signup(cmd.Context(), email, name, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Account %s created. An admin must approve it before you can record stock.\n", u.Email)
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "display name")
	return cmd
}

func (a *app) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.session()
			if err != nil {
				return err
			}
			if err := c.Logout(cmd.Context()); err != nil {
				return err
			}
			if err := removeToken(a.tokenFile); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Logged out.")
			return nil
		},
	}
}

func (a *app) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.session()
			if err != nil {
				return err
			}
			u, err := c.Me(cmd.Context())
			if err != nil {
				return err
			}
			status := "approved"
			if !u.Approved {
				status = "awaiting approval"
			}
			fmt.Fprintf(a.out, "%s <%s>, %s, %s\n", u.Name, u.Email, u.Role, status)
			return nil
		},
	}
}

func (a *app) passwdCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "passwd",
		Short: "Change your password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.session()
			if err != nil {
				return err
			}
			current, err := a.password("Current password: ")
			if err != nil {
				return err
			}
			next, err := a.password("New password: ")
			if err != nil {
				return err
			}
			if err := c.ChangePassword(cmd.Context(), current, next); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Password changed.")
			return nil
		},
	}
}

func (a *app) argOrPrompt(args []string, label string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return a.prompt(label)
}
