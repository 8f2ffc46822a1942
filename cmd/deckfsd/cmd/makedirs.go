package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var makeDirsOpts struct {
	serial string
	pages  int
	rows   int
	cols   int
}

var makeDirsCmd = &cobra.Command{
	Use:   "make-dirs DECK_ROOT",
	Short: "Scaffold a new deck's PAGE_n/KEY_r,c directory skeleton",
	Args:  cobra.ExactArgs(1),
	RunE:  makeDirsE,
}

func init() {
	makeDirsCmd.Flags().StringVar(&makeDirsOpts.serial, "serial", "", "deck serial number directory name (defaults to the last path segment of DECK_ROOT)")
	makeDirsCmd.Flags().IntVar(&makeDirsOpts.pages, "pages", 1, "number of PAGE_n directories to create")
	makeDirsCmd.Flags().IntVar(&makeDirsOpts.rows, "rows", 3, "key grid rows per page")
	makeDirsCmd.Flags().IntVar(&makeDirsOpts.cols, "cols", 5, "key grid columns per page")
}

func makeDirsE(_ *cobra.Command, args []string) error {
	root := args[0]
	serial := makeDirsOpts.serial
	if serial == "" {
		serial = filepath.Base(root)
	}
	deckDir := filepath.Join(filepath.Dir(root), serial)
	if filepath.Base(root) == serial {
		deckDir = root
	}

	if err := os.MkdirAll(deckDir, 0o755); err != nil {
		return fmt.Errorf("make-dirs: %w", err)
	}

	for n := 1; n <= makeDirsOpts.pages; n++ {
		pageDir := filepath.Join(deckDir, fmt.Sprintf("PAGE_%d", n))
		for r := 0; r < makeDirsOpts.rows; r++ {
			for c := 0; c < makeDirsOpts.cols; c++ {
				keyDir := filepath.Join(pageDir, fmt.Sprintf("KEY_%d,%d", r, c))
				if err := os.MkdirAll(keyDir, 0o755); err != nil {
					return fmt.Errorf("make-dirs: %w", err)
				}
			}
		}
	}

	fmt.Printf("created %d page(s), %d key(s) each, under %s\n", makeDirsOpts.pages, makeDirsOpts.rows*makeDirsOpts.cols, deckDir)
	return nil
}
