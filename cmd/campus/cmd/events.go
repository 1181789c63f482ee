package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func EventsCmd() *cobra.Command {
	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "Track campus events you plan to attend",
	}

	var name string
	attendCmd := &cobra.Command{
		Use:   "attend <event-id>",
		Short: "Mark an event as attending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := session(cmd.Context())
			if err != nil {
				return err
			}
			if err := application.EventService.Attend(cmd.Context(), s.UserID, args[0], name); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Attending")
			return nil
		},
	}
	attendCmd.Flags().StringVar(&name, "name", "", "event name")

	leaveCmd := &cobra.Command{
		Use:   "leave <event-id>",
		Short: "Stop attending an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := session(cmd.Context())
			if err != nil {
				return err
			}
			if err := application.EventService.Leave(cmd.Context(), s.UserID, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "No longer attending")
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List events you are attending",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := session(cmd.Context())
			if err != nil {
				return err
			}
			attending, err := application.EventService.Attending(cmd.Context(), s.UserID)
			if err != nil {
				return err
			}
			w := table(cmd)
			fmt.Fprintln(w, "EVENT\tNAME\tSINCE")
			for _, a := range attending {
				fmt.Fprintf(w, "%s\t%s\t%s\n", a.EventID, a.EventName, a.CreatedAt.Local().Format("2006-01-02"))
			}
			return w.Flush()
		},
	}

	eventsCmd.AddCommand(attendCmd, leaveCmd, listCmd)
	return eventsCmd
}
