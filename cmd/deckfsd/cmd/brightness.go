package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/deckfsd/deckfsd/internal/config"
)

var brightnessCmd = &cobra.Command{
	Use:   "brightness [get|set] [percent]",
	Short: "Read or set the running daemon's backlight level over its snapshot endpoint",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  brightnessE,
}

func brightnessE(_ *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if !cfg.Snapshot.Enabled {
		return fmt.Errorf("brightness: snapshot.enabled must be true for the daemon to expose this endpoint")
	}
	url := "http://" + cfg.Snapshot.Addr + "/brightness"

	switch args[0] {
	case "get":
		resp, err := http.Get(url)
		if err != nil {
			return fmt.Errorf("brightness: %w", err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("brightness: daemon returned %s: %s", resp.Status, body)
		}
		var out struct {
			Percent int `json:"percent"`
		}
		if err := json.Unmarshal(body, &out); err != nil {
			return fmt.Errorf("brightness: %w", err)
		}
		fmt.Println(out.Percent)
		return nil
	case "set":
		if len(args) != 2 {
			return fmt.Errorf("brightness set requires a percent argument")
		}
		pct, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("brightness: invalid percent %q: %w", args[1], err)
		}
		body, _ := json.Marshal(struct {
			Percent int `json:"percent"`
		}{Percent: pct})
		resp, err := http.Post(url, "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("brightness: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("brightness: daemon returned %s: %s", resp.Status, msg)
		}
		return nil
	default:
		return fmt.Errorf("brightness: unknown verb %q (want get or set)", args[0])
	}
}
