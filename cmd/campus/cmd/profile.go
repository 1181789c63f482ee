package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/templui/campus/internal/model"
	"github.com/templui/campus/internal/service"
)

func ProfileCmd() *cobra.Command {
	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "View and edit profiles",
	}
	profileCmd.AddCommand(profileShowCmd(), profileEditCmd())
	return profileCmd
}

func profileShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <user-id>",
		Short: "Show someone's profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := session(cmd.Context()); err != nil {
				return err
			}
			p, err := application.ProfileService.ByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := table(cmd)
			fmt.Fprintf(w, "Name\t%s\n", p.Name)
			fmt.Fprintf(w, "Role\t%s\n", p.Role)
			fmt.Fprintf(w, "Department\t%s\n", deref(p.Department))
			fmt.Fprintf(w, "Year\t%s\n", deref(p.Year))
			fmt.Fprintf(w, "Bio\t%s\n", deref(p.Bio))
			return w.Flush()
		},
	}
}

func profileEditCmd() *cobra.Command {
	var name, department, year, bio, phone string

	c := &cobra.Command{
		Use:   "edit",
		Short: "Edit your profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := session(cmd.Context())
			if err != nil {
				return err
			}

			var patch service.ProfilePatch
			set := func(flag string, v *string) *string {
				if cmd.Flags().Changed(flag) {
					return v
				}
				return nil
			}
			patch.Name = set("name", &name)
			patch.Department = set("department", &department)
			patch.Year = set("year", &year)
			patch.Bio = set("bio", &bio)
			patch.Phone = set("phone", &phone)

			_, err = s.Profile.Update(cmd.Context(), s.UserID, func(ctx context.Context) (model.Profile, error) {
				p, err := application.ProfileService.Update(ctx, s.UserID, patch, s.UserID)
				if err != nil {
					return model.Profile{}, err
				}
				return *p, nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Profile updated")
			return nil
		},
	}
	f := c.Flags()
	f.StringVar(&name, "name", "", "display name")
	f.StringVar(&department, "department", "", "department (empty clears)")
	f.StringVar(&year, "year", "", "year of study (empty clears)")
	f.StringVar(&bio, "bio", "", "short bio (empty clears)")
	f.StringVar(&phone, "phone", "", "phone number (empty clears)")
	return c
}
