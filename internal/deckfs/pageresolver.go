package deckfs

import (
	"fmt"
	"strconv"

	"github.com/deckfsd/deckfsd/internal/model"
)

// pageSequenceResolver answers pagectl's __first__/__next__/__previous__
// pseudo-tokens against one deck's page numbering, per spec.md §4.9.
type pageSequenceResolver struct {
	deck *model.Deck
}

func (r *pageSequenceResolver) resolve(token, current string) (string, error) {
	nums := sortedPageNumbers(r.deck)
	if len(nums) == 0 {
		return "", fmt.Errorf("deckfs: deck has no pages")
	}
	switch token {
	case "__first__":
		return strconv.Itoa(nums[0]), nil
	case "__next__", "__previous__":
		curN, _ := strconv.Atoi(current)
		idx := -1
		for i, n := range nums {
			if n == curN {
				idx = i
				break
			}
		}
		if idx == -1 {
			return strconv.Itoa(nums[0]), nil
		}
		if token == "__next__" {
			return strconv.Itoa(nums[(idx+1)%len(nums)]), nil
		}
		return strconv.Itoa(nums[(idx-1+len(nums))%len(nums)]), nil
	}
	return "", fmt.Errorf("deckfs: unknown pseudo-token %s", token)
}

// navigableFor returns a predicate reporting whether page exists in deck
// and model.Page.Navigable holds for it.
func navigableFor(deck *model.Deck) func(page string) bool {
	return func(page string) bool {
		n, err := strconv.Atoi(page)
		if err != nil {
			return false
		}
		p, ok := deck.Pages[n]
		return ok && p.Navigable()
	}
}
