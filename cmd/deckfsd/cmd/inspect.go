package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/deckfsd/deckfsd/internal/config"
	"github.com/deckfsd/deckfsd/internal/deckfs"
	"github.com/deckfsd/deckfsd/internal/grammar"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Scan the configured deck root and print the parsed page/key tree",
	RunE:  inspectE,
}

func inspectE(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	deck, err := deckfs.ScanDeck(cfg.DeckRoots[0], grammar.DefaultEscapes())
	if err != nil {
		return err
	}

	fmt.Printf("deck %s (%s)\n", deck.Serial, deck.Path)
	pageNums := make([]int, 0, len(deck.Pages))
	for n := range deck.Pages {
		pageNums = append(pageNums, n)
	}
	sort.Ints(pageNums)
	for _, n := range pageNums {
		page := deck.Pages[n]
		overlay := ""
		if page.Overlay() {
			overlay = " (overlay)"
		}
		fmt.Printf("  page %d%s\n", n, overlay)
		keys := make([][2]int, 0, len(page.Keys))
		for rc := range page.Keys {
			keys = append(keys, rc)
		}
		sort.Slice(keys, func(i, j int) bool {
			if keys[i][0] != keys[j][0] {
				return keys[i][0] < keys[j][0]
			}
			return keys[i][1] < keys[j][1]
		})
		for _, rc := range keys {
			k := page.Keys[rc]
			disabled := ""
			if k.IsDisabled() {
				disabled = " [disabled]"
			}
			fmt.Printf("    key (%d,%d)%s: %d image(s), %d text(s), %d event(s), %d var(s)\n",
				rc[0], rc[1], disabled, len(k.Images), len(k.Texts), len(k.Events), len(k.Vars))
		}
	}
	return nil
}
