package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Dagmawialebachew/DigitalAttendanceSystem/internal/app"
	"github.com/Dagmawialebachew/DigitalAttendanceSystem/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "precache",
		Short:         "Pre-populate the iAttend static asset cache",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newInstallCommand(), newServeCommand())
	return root
}

func newInstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Run the install lifecycle once and print the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := loadApp()
			if err != nil {
				return err
			}
			defer application.Close()

			report, err := application.Install(cmd.Context())
			if err != nil {
				return fmt.Errorf("run install: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "cache %s: %d cached, %d failed\n", report.CacheName, len(report.Cached), len(report.Failed))
			for _, u := range report.Cached {
				fmt.Fprintf(out, "  ok    %s\n", u)
			}
			for _, f := range report.Failed {
				fmt.Fprintf(out, "  fail  %s: %v\n", f.URL, f.Err)
			}
			return nil
		},
	}
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Install, then serve the cache inspection API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := loadApp()
			if err != nil {
				return err
			}
			if err := application.Run(cmd.Context()); err != nil {
				return fmt.Errorf("run app: %w", err)
			}
			return nil
		},
	}
}

func loadApp() (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init app: %w", err)
	}
	return application, nil
}
