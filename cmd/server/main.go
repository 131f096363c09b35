package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"openthink/internal/config"
	"openthink/internal/db"
	"openthink/internal/router"
	"openthink/internal/services"
	"openthink/internal/store"
	"openthink/internal/utils"

	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "openthink",
		Short:         "Openthink forum server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	serve := serveCmd()
	root.AddCommand(serve, setupDBCmd())
	// 不带子命令时直接启动服务
	root.RunE = serve.RunE
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			log, conn, err := open(cfg)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx := cmd.Context()
			if err := services.Bootstrap(ctx, store.New(conn), adminAccount(cfg), false, log); err != nil {
				return err
			}

			if !cfg.Debug {
				gin.SetMode(gin.ReleaseMode)
			}
			engine := router.New(router.Options{
				DB:           conn,
				Log:          log,
				SessionStore: cookie.NewStore([]byte(cfg.SessionSecret)),
				TemplatesDir: cfg.TemplatesDir,
				SiteURL:      cfg.SiteURL,
				Debug:        cfg.Debug,
			})
			engine.Static("/static", "./web/static")

			srv := &http.Server{
				Addr:              ":" + cfg.Port,
				Handler:           engine,
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				log.Info("Openthink server starting", zap.String("addr", srv.Addr))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
				log.Info("Shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}
}

func setupDBCmd() *cobra.Command {
	var drop bool
	c := &cobra.Command{
		Use:   "setup-db",
		Short: "Create the schema and seed the admin user and root post",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			log, conn, err := open(cfg)
			if err != nil {
				return err
			}
			defer log.Sync()

			if err := services.Bootstrap(cmd.Context(), store.New(conn), adminAccount(cfg), drop, log); err != nil {
				return err
			}
			log.Info("Database ready")
			return nil
		},
	}
	c.Flags().BoolVar(&drop, "drop", false, "Drop all tables before creating them")
	return c
}

func open(cfg *config.Config) (*zap.Logger, *gorm.DB, error) {
	log, err := utils.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}
	conn, err := db.Open(cfg.DatabaseURL, log)
	if err != nil {
		return nil, nil, err
	}
	return log, conn, nil
}

func adminAccount(cfg *config.Config) services.AdminAccount {
	return services.AdminAccount{
		Username: cfg.AdminUsername,
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
	}
}
