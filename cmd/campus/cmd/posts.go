package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/templui/campus/internal/model"
	"github.com/templui/campus/internal/service"
)

func PostsCmd() *cobra.Command {
	postsCmd := &cobra.Command{
		Use:   "posts",
		Short: "Read and write the campus feed",
	}
	postsCmd.AddCommand(postsListCmd(), postsCreateCmd(), postsEditCmd(), postsDeleteCmd())
	return postsCmd
}

func postsListCmd() *cobra.Command {
	var filter service.PostFilter

	c := &cobra.Command{
		Use:   "list",
		Short: "List posts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := session(cmd.Context())
			if err != nil {
				return err
			}

			posts := s.Posts.Items()
			if filter != (service.PostFilter{}) {
				found, err := application.PostService.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				posts = posts[:0]
				for _, p := range found {
					posts = append(posts, *p)
				}
			}

			w := table(cmd)
			fmt.Fprintln(w, "ID\tTYPE\tTITLE\tAUTHOR\tCREATED")
			for _, p := range posts {
				author := ""
				if p.Author != nil {
					author = p.Author.Name
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Type, p.Title, author, p.CreatedAt.Local().Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
	c.Flags().StringVar(&filter.Type, "type", "", "only this type ("+strings.Join(model.PostTypes, ", ")+")")
	c.Flags().StringVar(&filter.AuthorID, "author", "", "only posts by this author id")
	c.Flags().StringVarP(&filter.Query, "search", "q", "", "match title, content or author name")
	return c
}

func postsCreateCmd() *cobra.Command {
	var in service.PostInput

	c := &cobra.Command{
		Use:   "create",
		Short: "Publish a post",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := session(cmd.Context())
			if err != nil {
				return err
			}
			post, err := s.Posts.Create(cmd.Context(), func(ctx context.Context) (model.Post, error) {
				p, err := application.PostService.Create(ctx, in, s.UserID)
				if err != nil {
					return model.Post{}, err
				}
				return *p, nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Posted %s\n", post.ID)
			return nil
		},
	}
	c.Flags().StringVar(&in.Title, "title", "", "title")
	c.Flags().StringVar(&in.Content, "content", "", "body text")
	c.Flags().StringVar(&in.Type, "type", model.PostTypeDiscussion, "post type")
	return c
}

func postsEditCmd() *cobra.Command {
	var title, content, typ string

	c := &cobra.Command{
		Use:   "edit <post-id>",
		Short: "Edit one of your posts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := session(cmd.Context())
			if err != nil {
				return err
			}

			var patch service.PostPatch
			if cmd.Flags().Changed("title") {
				patch.Title = &title
			}
			if cmd.Flags().Changed("content") {
				patch.Content = &content
			}
			if cmd.Flags().Changed("type") {
				patch.Type = &typ
			}

			_, err = s.Posts.Update(cmd.Context(), args[0], func(ctx context.Context) (model.Post, error) {
				p, err := application.PostService.Update(ctx, args[0], patch, s.UserID)
				if err != nil {
					return model.Post{}, err
				}
				return *p, nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Post updated")
			return nil
		},
	}
	c.Flags().StringVar(&title, "title", "", "new title")
	c.Flags().StringVar(&content, "content", "", "new body text")
	c.Flags().StringVar(&typ, "type", "", "new post type")
	return c
}

func postsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <post-id>",
		Short: "Delete one of your posts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := session(cmd.Context())
			if err != nil {
				return err
			}
			err = s.Posts.Delete(cmd.Context(), args[0], func(ctx context.Context) error {
				return application.PostService.Delete(ctx, args[0], s.UserID)
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Post deleted")
			return nil
		},
	}
}
