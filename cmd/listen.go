package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	reuseport "github.com/kavu/go_reuseport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/courage/client"
	"github.com/luma/courage/internal/env"
	"github.com/luma/courage/storage"
	"github.com/luma/courage/transport"
)

var (
	// Overrides COURAGE_DSN
	dsn string

	// Ask the service to replay retained events for every channel
	replay bool

	// Log every frame in hex
	trace bool
)

func init() {
	flags := ListenCmd.PersistentFlags()

	flags.StringVar(&dsn, "dsn", "", "The Courage DSN, defaults to $COURAGE_DSN")
	flags.BoolVarP(&replay, "replay", "r", false, "Request retained events for every channel")
	flags.BoolVar(&trace, "trace", false, "Log every frame in hex")
}

var ListenCmd = &cobra.Command{
	Use:   "listen [channel ids...]",
	Short: "Subscribe to channels and log their events",
	Long: `Subscribe to one or more channels and log every event delivered to them

Usage
	courage listen 3f8c1b9e-0b1a-4a43-9a9e-7d3c2f1e5b10 --replay

`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer signalStop()

		conf, err := env.LoadConfig(ctx)
		if err != nil {
			return err
		}

		if dsn != "" {
			conf.DSN = dsn
		}

		log, err := env.MakeLogger(conf.LogLevel)
		if err != nil {
			return err
		}
		defer log.Sync() //nolint:errcheck

		store, err := storage.OpenFileStore(conf.StateFile)
		if err != nil {
			return err
		}

		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		c, err := client.NewFromDSN(ctx, conf.DSN, conf.Secure, store, client.Options{
			Transport: transport.Options{
				WriteTimeout: conf.WriteTimeout,
				PingInterval: conf.PingInterval,
				Trace:        trace,
			},
			InitialBackoff: conf.InitialBackoff,
			MaxBackoff:     conf.MaxBackoff,
			Registry:       registry,
			Log:            log.Named("client"),
		})
		if err != nil {
			return multierr.Append(err, store.Close())
		}

		var s *http.Server
		if conf.MetricsAddr != "" {
			if s, err = serveMetrics(conf, registry, log.Named("http")); err != nil {
				return multierr.Combine(err, c.Close(), store.Close())
			}
		}

		for _, channelID := range args {
			channelID := channelID
			handler := func(payload []byte) {
				log.Info("Event", zap.String("channelId", channelID), zap.ByteString("payload", payload))
			}

			if err := c.Bind(channelID, handler, client.BindOptions{Replay: replay}); err != nil {
				return multierr.Combine(err, c.Close(), store.Close())
			}
		}

		log.Info("Listening",
			zap.Strings("channels", args),
			zap.Bool("replay", replay),
			zap.String("stateFile", conf.StateFile),
			zap.String("metricsAddr", conf.MetricsAddr))

		// Listen for the interrupt signal.
		<-ctx.Done()

		// Restore default behavior on the interrupt signal and notify user of shutdown.
		signalStop()
		log.Info("Shutting down gracefully, press Ctrl+C again to force")

		if s != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			s.SetKeepAlivesEnabled(false)
			if err := s.Shutdown(shutdownCtx); err != nil {
				log.Error("Http server forced to shutdown", zap.Error(err))
			}
		}

		err = multierr.Combine(c.Close(), store.Close())

		log.Info("Exiting")
		return err
	},
}

func serveMetrics(conf *env.Config, registry *prometheus.Registry, log *zap.Logger) (*http.Server, error) {
	router := setupRouter(conf.DebugHTTP, log)

	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	listener, err := reuseport.Listen("tcp", conf.MetricsAddr)
	if err != nil {
		return nil, err
	}

	s := &http.Server{Handler: router}

	go func() {
		if err := s.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Http server errored", zap.Error(err))
		}
	}()

	return s, nil
}

func setupRouter(debugHTTP bool, log *zap.Logger) *gin.Engine {
	gin.DisableConsoleColor()
	if !debugHTTP {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(ginzap.GinzapWithConfig(log, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/ping"},
	}))

	// Logs all panic to error log
	//   - stack means whether output the stack info.
	r.Use(ginzap.RecoveryWithZap(log, true))

	return r
}
