package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/templui/campus/internal/cache"
	"github.com/templui/campus/internal/model"
)

func StatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show your activity counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := session(cmd.Context()); err != nil {
				return err
			}
			printStats(cmd, application.Stats.Current())
			return nil
		},
	}
}

func printStats(cmd *cobra.Command, s model.Stats) {
	w := table(cmd)
	fmt.Fprintf(w, "Posts created\t%d\n", s.PostsCreated)
	fmt.Fprintf(w, "Files uploaded\t%d\n", s.FilesUploaded)
	fmt.Fprintf(w, "Files downloaded\t%d\n", s.FilesDownloaded)
	fmt.Fprintf(w, "Events attended\t%d\n", s.EventsAttended)
	fmt.Fprintf(w, "Posts on campus\t%d\n", s.TotalPosts)
	fmt.Fprintf(w, "Files in library\t%d\n", s.TotalFiles)
	w.Flush()
}

// WatchCmd keeps the session open and prints changes as they arrive.
func WatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the feed and your stats until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := session(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			offStats := application.Stats.Subscribe(func(st model.Stats) {
				fmt.Fprintf(out, "stats: %d posts, %d uploads, %d downloads, %d events\n",
					st.PostsCreated, st.FilesUploaded, st.FilesDownloaded, st.EventsAttended)
			})
			defer offStats()

			seen := len(s.Posts.Items())
			offPosts := s.Posts.OnChange(func(snap cache.Snapshot[model.Post]) {
				if len(snap.Items) > seen && len(snap.Items) > 0 {
					p := snap.Items[0]
					fmt.Fprintf(out, "new post: %s\n", p.Title)
				}
				seen = len(snap.Items)
			})
			defer offPosts()

			// the files feed belongs to the session list
			known := make(map[string]bool)
			for _, f := range s.Files.Items() {
				known[f.ID] = true
			}
			offFiles := s.Files.OnChange(func(snap cache.Snapshot[model.File]) {
				if snap.State != cache.Ready {
					return
				}
				current := make(map[string]bool, len(snap.Items))
				for _, f := range snap.Items {
					current[f.ID] = true
					if !known[f.ID] {
						fmt.Fprintf(out, "library: added %s\n", f.Name)
					}
				}
				for id := range known {
					if !current[id] {
						fmt.Fprintf(out, "library: removed %s\n", id)
					}
				}
				known = current
			})
			defer offFiles()

			s.Refresh.Foreground()
			defer s.Refresh.Background()

			interrupt := make(chan os.Signal, 1)
			signal.Notify(interrupt, os.Interrupt)
			defer signal.Stop(interrupt)

			fmt.Fprintln(out, "Watching for changes, Ctrl-C to stop")
			select {
			case <-interrupt:
			case <-cmd.Context().Done():
			}
			return nil
		},
	}
}
