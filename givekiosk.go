package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var myBuild string

func main() {
	var cfgfile string

	rootCmd := &cobra.Command{
		Use:     "givekiosk",
		Short:   "Donation kiosk controller",
		Version: myBuild,
		// Running without a subcommand starts the kiosk.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKiosk(cfgfile)
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgfile, "cfg", "givekiosk.cfg", "Config file")

	rootCmd.AddCommand(runCmd(&cfgfile))
	rootCmd.AddCommand(donationsCmd(&cfgfile))
	rootCmd.AddCommand(subscriptionCmd(&cfgfile))
	rootCmd.AddCommand(settingsCmd(&cfgfile))
	rootCmd.AddCommand(signResetCmd(&cfgfile))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCmd(cfgfile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the kiosk",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKiosk(*cfgfile)
		},
	}
}

func runKiosk(cfgfile string) error {
	fmt.Printf("givekiosk build %s\n", myBuild)

	cfg, err := loadConfig(cfgfile)
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	app, err := newApp(cfg)
	if err != nil {
		log.Fatalf("Start: %v", err)
	}

	// Wait for shutdown signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	app.Run(ctx)

	fmt.Println("Shutting down...")
	app.Close()
	fmt.Println("Shutdown complete")
	return nil
}
