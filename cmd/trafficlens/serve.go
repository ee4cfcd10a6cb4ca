package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/trafficlens/trafficlens/internal/analysis"
	"github.com/trafficlens/trafficlens/internal/capture"
	"github.com/trafficlens/trafficlens/internal/logging"
	"github.com/trafficlens/trafficlens/internal/proxy"
	"github.com/trafficlens/trafficlens/internal/server"
	"github.com/trafficlens/trafficlens/internal/store"
)

const shutdownTimeout = 10 * time.Second

var serveFlags struct {
	proxyPort int
	apiPort   int
	dbPath    string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the capture proxy and query API",
	Long: `Start the forward proxy that captures HTTP exchanges and the query
API that serves listings, analysis, and exports over the captured
traffic. Point an HTTP client at the proxy port to record exchanges;
HTTPS connections are tunneled without interception.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVar(&serveFlags.proxyPort, "proxy-port", 0, "capture proxy port (default from config)")
	serveCmd.Flags().IntVar(&serveFlags.apiPort, "api-port", 0, "query API port (default from config)")
	serveCmd.Flags().StringVar(&serveFlags.dbPath, "db", "", "database path (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	proxyPort := serveFlags.proxyPort
	if proxyPort == 0 {
		proxyPort = cfg.ProxyPort
	}
	apiPort := serveFlags.apiPort
	if apiPort == 0 {
		apiPort = cfg.APIPort
	}
	dbPath := serveFlags.dbPath
	if dbPath == "" {
		dbPath = cfg.DBPath
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()
	logger.Info("database ready", logging.DBPath(dbPath))

	correlator := capture.New(st, logger.Named("capture"))
	proxySrv := &proxy.Server{
		Correlator: correlator,
		Logger:     logger.Named("proxy"),
	}

	proxyErrLog, _ := zap.NewStdLogAt(logger.Named("proxy"), zapcore.ErrorLevel)
	proxyServer := &http.Server{
		Addr:     fmt.Sprintf(":%d", proxyPort),
		Handler:  proxySrv,
		ErrorLog: proxyErrLog,
	}

	go func() {
		logger.Info("starting capture proxy", logging.Port(proxyPort))
		if err := proxyServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("proxy server error", zap.Error(err))
		}
	}()

	apiSrv := &server.APIServer{
		Store:  st,
		Engine: analysis.NewEngine(st, logger.Named("analysis")),
		Logger: logger.Named("api"),
	}

	apiErrLog, _ := zap.NewStdLogAt(logger.Named("api"), zapcore.ErrorLevel)
	apiServer := &http.Server{
		Addr:     fmt.Sprintf(":%d", apiPort),
		Handler:  apiSrv.Handler(),
		ErrorLog: apiErrLog,
	}

	go func() {
		logger.Info("starting api server", logging.Port(apiPort))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down", zap.Int("in_flight", correlator.InFlight()))

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	proxyServer.Shutdown(ctx)
	apiServer.Shutdown(ctx)

	return nil
}
