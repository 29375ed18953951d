package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cwygoda/grabber/internal/domain"
)

func newFetchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <listing-url> [folder]",
		Short: "Grab the images of one listing",
		Long: `Grab the images of one listing into <image-dir>/<folder>.

When folder is omitted, grabber reports how many images the listing has and
asks for the folder name on standard input.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			sink := printSink(out)
			g := a.grabber()

			urls := g.Extract(cmd.Context(), args[0], sink)
			if len(urls) == 0 {
				return domain.ErrNoImages
			}

			var folder string
			if len(args) == 2 {
				folder = args[1]
			} else {
				var err error
				folder, err = promptFolder(cmd.InOrStdin(), out, len(urls))
				if err != nil {
					return err
				}
			}
			folder = strings.TrimSpace(folder)
			if !domain.ValidFolder(folder) {
				return fmt.Errorf("%w: %q", domain.ErrInvalidFolder, folder)
			}

			_, err := g.Save(cmd.Context(), urls, folder, sink)
			return err
		},
	}
}

// printSink writes each status message as a line to w.
func printSink(w io.Writer) domain.StatusSink {
	return domain.StatusFunc(func(msg string) {
		fmt.Fprintln(w, msg)
	})
}

func promptFolder(in io.Reader, out io.Writer, n int) (string, error) {
	fmt.Fprintf(out, "Found %d images. Folder name to save them in: ", n)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read folder name: %w", err)
	}
	return strings.TrimSpace(line), nil
}
