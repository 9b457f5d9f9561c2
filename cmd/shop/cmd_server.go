package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/farmshop/storefront/config"
	"github.com/farmshop/storefront/pkg/app"
)

var portFlag string

// shop serve
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"run"},
	Short:   "Start the HTTP and gRPC servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		if portFlag != "" {
			config.Set("APP_PORT", portFlag)
		}
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := app.Boot(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		return a.Serve(ctx)
	},
}

var byPathFlag bool

// shop route:list
var routeListCmd = &cobra.Command{
	Use:   "route:list",
	Short: "List all named routes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.RouteList(cmd.OutOrStdout(), byPathFlag)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&portFlag, "port", "p", "", "HTTP port (overrides APP_PORT)")
	routeListCmd.Flags().BoolVar(&byPathFlag, "by-path", false, "Sort by path instead of registration order")
}
