package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dasida/tutor/internal/patterns"
	"github.com/dasida/tutor/internal/server"
	"github.com/dasida/tutor/internal/turnlock"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildServices(cmd, "")
		if err != nil {
			return err
		}
		defer svc.Close()
		cfg := svc.cfg

		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		locker, err := newLocker(ctx, svc)
		if err != nil {
			return err
		}

		opts := server.Options{
			Mode:         cfg.Server.Mode,
			AllowOrigins: cfg.CORS.AllowOrigins,
			AuthIssuer:   cfg.Auth.Issuer,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
		if cfg.Auth.Enabled() {
			key, err := server.LoadPublicKey(cfg.Auth.PublicKeyFile, cfg.Auth.PublicKeyPEM)
			if err != nil {
				return err
			}
			opts.AuthKey = key
		} else {
			svc.log.Warn("auth disabled: no public key configured")
		}

		srv := server.New(server.Deps{
			Store:     svc.store,
			Tutor:     svc.tutor,
			Reports:   svc.reports,
			Locker:    locker,
			Extractor: patterns.NewExtractor(patterns.DefaultTable),
			Provider:  cfg.LLM.Provider,
			Model:     svc.provider.ModelID(),
			Log:       svc.log,
		}, opts)

		svc.log.Info("starting server",
			"addr", cfg.Server.Addr,
			"provider", cfg.LLM.Provider,
			"model", svc.provider.ModelID(),
			"auth", opts.AuthKey != nil,
		)
		return srv.Run(ctx, cfg.Server.Addr)
	},
}

// newLocker uses Redis when configured so turns serialize across replicas.
func newLocker(ctx context.Context, svc *services) (turnlock.Locker, error) {
	rc := svc.cfg.Redis
	if rc.Addr == "" {
		return turnlock.NewLocalWait(rc.LockWait), nil
	}
	rdb, err := turnlock.Dial(ctx, rc.Addr, rc.Password, rc.DB)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	opts := turnlock.DefaultRedisOptions()
	opts.TTL = rc.LockTTL
	if rc.LockWait > 0 {
		opts.Wait = rc.LockWait
	}
	return turnlock.NewRedis(rdb, opts, svc.log), nil
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
}
