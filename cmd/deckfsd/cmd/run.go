package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/deckfsd/deckfsd/internal/compositor"
	"github.com/deckfsd/deckfsd/internal/config"
	"github.com/deckfsd/deckfsd/internal/deckfs"
	"github.com/deckfsd/deckfsd/internal/httpsnapshot"
	"github.com/deckfsd/deckfsd/internal/hwfacade"
	"github.com/deckfsd/deckfsd/internal/logging"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daemon against the configured deck root until interrupted",
	RunE:  runE,
}

func runE(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	log := logging.New(os.Stdout)

	hw, err := buildFacade(cfg)
	if err != nil {
		return fmt.Errorf("building hardware facade: %w", err)
	}
	defer hw.Close()

	fonts := compositor.NewFontManager(cfg.Fonts)

	// deck_roots may list several candidate trees (e.g. a factory default
	// plus a user override); the first entry is the one actually driven,
	// since a single hardware facade can only be claimed by one daemon.
	root := cfg.DeckRoots[0]
	d, err := deckfs.New(log, root, hw, fonts)
	if err != nil {
		return fmt.Errorf("building daemon: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Snapshot.Enabled {
		srv := buildSnapshotServer(hw, d)
		if srv != nil {
			go func() {
				if err := srv.Listen(cfg.Snapshot.Addr); err != nil {
					log.Warn("snapshot server stopped", "err", err)
				}
			}()
			defer srv.Shutdown()
		}
	}

	log.Info("deckfsd starting", "root", root, "backend", cfg.Hardware.Backend)
	err = d.Run(ctx)
	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func buildFacade(cfg *config.Daemon) (hwfacade.Facade, error) {
	hw := cfg.Hardware
	switch hw.Backend {
	case "", "mock":
		return hwfacade.NewMock(hw.Rows, hw.Cols, hw.KeyWidthPx, hw.KeyHeightPx), nil
	case "periph":
		return hwfacade.NewPeriph(hwfacade.PeriphConfig{
			SPIPort:      hw.SPIPort,
			ResetPin:     hw.ResetPin,
			DataCmdPin:   hw.DataCmdPin,
			ChipSelect:   hw.ChipSelect,
			BacklightPin: hw.BacklightPin,
			InputDevice:  hw.InputDevice,
			Rows:         hw.Rows,
			Cols:         hw.Cols,
			KeyW:         hw.KeyWidthPx,
			KeyH:         hw.KeyHeightPx,
			OffDelay:     5 * time.Second,
		}, nil)
	default:
		return nil, fmt.Errorf("unknown hardware backend %q", hw.Backend)
	}
}

// buildSnapshotServer wires the debug HTTP endpoint; it only accepts
// synthetic presses when the facade is the in-memory mock, and wires
// ctl's brightness/page endpoints since the daemon is the only place
// that state lives (there is no other IPC surface).
func buildSnapshotServer(hw hwfacade.Facade, ctl *deckfs.Daemon) *httpsnapshot.Server {
	source, ok := hw.(httpsnapshot.Source)
	if !ok {
		return nil
	}
	inject, _ := hw.(httpsnapshot.Injector)
	return httpsnapshot.New(nil, source, inject, ctl)
}
