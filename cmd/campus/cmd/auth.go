package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/templui/campus/internal/model"
	"github.com/templui/campus/internal/service"
)

func AuthCmds() []*cobra.Command {
	return []*cobra.Command{signUpCmd(), confirmCmd(), resendCmd(), signInCmd(), signOutCmd(), whoAmICmd()}
}

func signUpCmd() *cobra.Command {
	var in service.SignUpInput

	c := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if in.ConfirmPassword == "" {
				in.ConfirmPassword = in.Password
			}
			result, _, err := application.SignUp(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Message)
			if result.NeedsEmailConfirmation {
				fmt.Fprintln(cmd.OutOrStdout(), "Then run: campus confirm '<link from the email>'")
			}
			return nil
		},
	}
	f := c.Flags()
	f.StringVar(&in.Email, "email", "", "email address")
	f.StringVar(&in.Password, "password", "", "password (6+ characters)")
	f.StringVar(&in.ConfirmPassword, "confirm-password", "", "repeat the password (defaults to --password)")
	f.StringVar(&in.Name, "name", "", "display name")
	f.StringVar(&in.Role, "role", model.RoleStudent, "student or lecturer")
	f.StringVar(&in.Department, "department", "", "department")
	f.StringVar(&in.Year, "year", "", "year of study")
	f.StringVar(&in.Bio, "bio", "", "short bio")
	f.StringVar(&in.Phone, "phone", "", "phone number")
	c.MarkFlagRequired("email")
	c.MarkFlagRequired("password")
	c.MarkFlagRequired("name")
	return c
}

func confirmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <callback-url>",
		Short: "Finish sign-up with the link from the confirmation email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := application.Confirm(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Email confirmed. Signed in as %s\n", s.Auth.Email)
			return nil
		},
	}
}

func resendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resend <email>",
		Short: "Send the confirmation email again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := application.AuthService.ResendConfirmation(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "If the account is waiting for confirmation, a new link is on its way.")
			return nil
		},
	}
}

func signInCmd() *cobra.Command {
	var email, password string

	c := &cobra.Command{
		Use:   "signin",
		Short: "Sign in with email and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := application.SignIn(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", s.Auth.Email)
			return nil
		},
	}
	c.Flags().StringVar(&email, "email", "", "email address")
	c.Flags().StringVar(&password, "password", "", "password")
	c.MarkFlagRequired("email")
	c.MarkFlagRequired("password")
	return c
}

func signOutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Sign out and forget the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := application.SignOut(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func whoAmICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := session(cmd.Context())
			if err != nil {
				return err
			}
			me, ok := s.Me()
			if !ok {
				return fmt.Errorf("profile for %s not found", s.UserID)
			}

			w := table(cmd)
			fmt.Fprintf(w, "Name\t%s\n", me.Name)
			fmt.Fprintf(w, "Email\t%s\n", me.Email)
			fmt.Fprintf(w, "Role\t%s\n", me.Role)
			fmt.Fprintf(w, "Department\t%s\n", deref(me.Department))
			fmt.Fprintf(w, "Year\t%s\n", deref(me.Year))
			fmt.Fprintf(w, "Bio\t%s\n", deref(me.Bio))
			fmt.Fprintf(w, "Phone\t%s\n", deref(me.Phone))
			fmt.Fprintf(w, "Session expires\t%s\n", s.Auth.ExpiresAt.Local().Format("2006-01-02 15:04"))
			return w.Flush()
		},
	}
}
