package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/templui/campus/internal/offline"
)

func OfflineCmd() *cobra.Command {
	offlineCmd := &cobra.Command{
		Use:   "offline",
		Short: "Manage files kept on this device",
	}
	offlineCmd.AddCommand(offlineListCmd(), offlineOpenCmd(), offlineDeleteCmd())
	return offlineCmd
}

// localEntry resolves a key or a file id to a downloaded blob.
func localEntry(local []offline.Entry, ref string) (offline.Entry, bool) {
	for _, e := range local {
		if e.Key == ref || (e.File != nil && e.File.ID == ref) {
			return e, true
		}
	}
	return offline.Entry{}, false
}

func offlineListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List downloaded files",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := session(cmd.Context())
			if err != nil {
				return err
			}
			local, err := application.Offline.Entries(s.Files.Items())
			if err != nil {
				return err
			}

			w := table(cmd)
			fmt.Fprintln(w, "KEY\tSIZE\tSAVED\tIN LIBRARY")
			for _, e := range local {
				linked := "removed"
				if e.File != nil {
					linked = e.File.Name
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Key, humanize.Bytes(uint64(e.Size)), humanize.Time(e.ModTime), linked)
			}
			return w.Flush()
		},
	}
}

func offlineOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <key-or-file-id>",
		Short: "Open a downloaded file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := session(cmd.Context())
			if err != nil {
				return err
			}
			local, err := application.Offline.Entries(s.Files.Items())
			if err != nil {
				return err
			}
			e, ok := localEntry(local, args[0])
			if !ok {
				return fmt.Errorf("%s is not downloaded", args[0])
			}
			return application.Offline.OpenLocal(cmd.Context(), e)
		},
	}
}

func offlineDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key-or-file-id>",
		Short: "Remove a downloaded copy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := session(cmd.Context())
			if err != nil {
				return err
			}
			catalog := s.Files.Items()
			local, err := application.Offline.Entries(catalog)
			if err != nil {
				return err
			}
			e, ok := localEntry(local, args[0])
			if !ok {
				return fmt.Errorf("%s is not downloaded", args[0])
			}
			if err := application.Offline.DeleteLocal(e); err != nil {
				return err
			}
			if err := application.Offline.Reconcile(catalog); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", e.Key)
			return nil
		},
	}
}
