package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/saveblush/reraw-feed/pgk/cron"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Keep the follow list and profile cache warm until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		log := a.cctx.Log

		if err := a.follows.Refresh(cmd.Context()); err != nil {
			log.Warnf("load follow list error: %s", err)
		}

		// reload verification เมื่อไฟล์เปลี่ยน
		a.verification.Watch()

		// Cron
		cr := cron.NewService(a.cctx, a.follows)
		if err := cr.Start(); err != nil {
			return err
		}
		log.Info("Daemon started")

		// Shutdown app
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sigChan:
		case <-cmd.Context().Done():
		}

		// Close cron
		cr.Stop()
		log.Info("Cron closed")
		log.Info("Gracefully shutting down")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
