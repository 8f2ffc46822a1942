package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/deckfsd/deckfsd/internal/config"
)

var pageCmd = &cobra.Command{
	Use:   "page [get|set] [target]",
	Short: "Read or set the running daemon's current page over its snapshot endpoint",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  pageE,
}

func pageE(_ *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if !cfg.Snapshot.Enabled {
		return fmt.Errorf("page: snapshot.enabled must be true for the daemon to expose this endpoint")
	}
	url := "http://" + cfg.Snapshot.Addr + "/page"

	switch args[0] {
	case "get":
		resp, err := http.Get(url)
		if err != nil {
			return fmt.Errorf("page: %w", err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("page: daemon returned %s: %s", resp.Status, body)
		}
		var out struct {
			Page string `json:"page"`
		}
		if err := json.Unmarshal(body, &out); err != nil {
			return fmt.Errorf("page: %w", err)
		}
		fmt.Println(out.Page)
		return nil
	case "set":
		if len(args) != 2 {
			return fmt.Errorf("page set requires a target argument (a page number or __first__/__next__/__previous__/__back__)")
		}
		body, _ := json.Marshal(struct {
			Page string `json:"page"`
		}{Page: args[1]})
		resp, err := http.Post(url, "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("page: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("page: daemon returned %s: %s", resp.Status, msg)
		}
		return nil
	default:
		return fmt.Errorf("page: unknown verb %q (want get or set)", args[0])
	}
}
