package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/storyflow/auth"
	"github.com/randalmurphal/storyflow/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serve the story endpoints over HTTP until interrupted. Requests must
carry an API key or a bearer token when server_api_key_hash or
server_jwt_secret is configured.`,
	Args: cobra.NoArgs,
	RunE: serve,
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "listen address (overrides server_addr)")
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ss := a.settings.Server
	authn := auth.Authenticator{APIKeyHash: ss.APIKeyHash}
	if ss.JWTSecret != "" {
		authn.JWT = &auth.JWTConfig{Secret: []byte(ss.JWTSecret)}
	}
	if !authn.Enabled() {
		a.logger.Warn("authentication disabled; set server_api_key_hash or server_jwt_secret")
	}

	srv := server.New(server.Config{
		Runner:      a.runner,
		Services:    a.services,
		Auth:        authn,
		FanOutLimit: a.settings.Subtasks,
		Logger:      a.logger,
	})

	addr := ss.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.ListenAndServe(ctx, addr)
}

