package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/templui/campus/internal/model"
	"github.com/templui/campus/internal/offline"
	"github.com/templui/campus/internal/service"
)

func FilesCmd() *cobra.Command {
	filesCmd := &cobra.Command{
		Use:   "files",
		Short: "Browse and share the file library",
	}
	filesCmd.AddCommand(filesListCmd(), filesCategoriesCmd(), filesUploadCmd(), filesDeleteCmd(), filesDownloadCmd())
	return filesCmd
}

func filesListCmd() *cobra.Command {
	var filter service.FileFilter

	c := &cobra.Command{
		Use:   "list",
		Short: "List files, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := session(cmd.Context())
			if err != nil {
				return err
			}

			files := s.Files.Items()
			if filter != (service.FileFilter{}) {
				found, err := application.FileService.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				files = files[:0]
				for _, f := range found {
					files = append(files, *f)
				}
			}

			w := table(cmd)
			fmt.Fprintln(w, "ID\tNAME\tFORMAT\tSIZE\tCATEGORY\tUPLOADER\tOFFLINE")
			for _, f := range files {
				local := ""
				if application.Offline.Downloaded(f.ID) {
					local = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					f.ID, f.Name, f.Format(), humanize.Bytes(uint64(f.Size)), f.Category, f.UploaderName, local)
			}
			return w.Flush()
		},
	}
	c.Flags().StringVar(&filter.Category, "category", "", "only this category")
	c.Flags().StringVar(&filter.UploaderID, "uploader", "", "only files from this uploader id")
	c.Flags().StringVarP(&filter.Query, "search", "q", "", "match name or category")
	return c
}

func filesCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the categories in use",
		RunE: func(cmd *cobra.Command, args []string) error {
			categories, err := application.FileService.Categories(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range categories {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		},
	}
}

func filesUploadCmd() *cobra.Command {
	var category, name string

	c := &cobra.Command{
		Use:   "upload <path>",
		Short: "Share a file with the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := session(cmd.Context())
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil {
				return err
			}
			if name == "" {
				name = filepath.Base(args[0])
			}

			file, err := s.Files.Create(cmd.Context(), func(ctx context.Context) (model.File, error) {
				uploaded, err := application.FileService.Upload(ctx, s.UserID, service.UploadInput{
					Name:     name,
					Category: category,
					Size:     info.Size(),
					Body:     f,
				})
				if err != nil {
					return model.File{}, err
				}
				return *uploaded, nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s (%s)\n", file.Name, file.ID)
			return nil
		},
	}
	c.Flags().StringVar(&category, "category", service.DefaultCategory, "library category")
	c.Flags().StringVar(&name, "name", "", "display name (defaults to the file name)")
	return c
}

func filesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <file-id>",
		Short: "Remove one of your files from the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := session(cmd.Context())
			if err != nil {
				return err
			}
			err = s.Files.Delete(cmd.Context(), args[0], func(ctx context.Context) error {
				return application.FileService.Delete(ctx, args[0], s.UserID)
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "File deleted")
			return nil
		},
	}
}

func filesDownloadCmd() *cobra.Command {
	var open bool

	c := &cobra.Command{
		Use:   "download <file-id>",
		Short: "Keep a copy of a file for offline use",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := session(cmd.Context()); err != nil {
				return err
			}
			file, err := application.FileService.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out, err := application.Offline.Download(cmd.Context(), *file)
			if err != nil {
				return err
			}
			if out == offline.AlreadyDownloaded {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is already available offline\n", file.Name)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Downloaded %s\n", file.Name)
			}

			if open {
				return application.Offline.OpenLocal(cmd.Context(), offline.Entry{
					Key:  offline.Key(*file),
					Path: filepath.Join(application.Offline.Dir(), offline.Key(*file)),
					File: file,
				})
			}
			return nil
		},
	}
	c.Flags().BoolVar(&open, "open", false, "open the file afterwards")
	return c
}
