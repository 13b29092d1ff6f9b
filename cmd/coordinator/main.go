package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dreamware/ambry-coordinator/internal/blobid"
	"github.com/dreamware/ambry-coordinator/internal/config"
	"github.com/dreamware/ambry-coordinator/internal/connpool"
	"github.com/dreamware/ambry-coordinator/internal/coordinator"
	"github.com/dreamware/ambry-coordinator/internal/httpfrontend"
	"github.com/dreamware/ambry-coordinator/internal/logging"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "ambry-coordinator",
	Short: "Serves the quorum-based blob read path in front of a replica cluster",
	RunE:  run,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a coordinator config YAML file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath, cmd.Flags())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logging.New("info", "ambry-coordinator")

	clusterMap, err := blobid.LoadStaticClusterMap(cfg.Coordinator.ClusterMapPath)
	if err != nil {
		return fmt.Errorf("loading cluster map: %w", err)
	}

	pool := connpool.NewGRPCPool(8)

	coord := coordinator.NewCoordinator(clusterMap, pool, coordinator.Config{
		ClientID:         fmt.Sprintf("coordinator-%d", os.Getpid()),
		LocalDatacenter:  cfg.Coordinator.LocalDatacenter,
		Parallelism:      cfg.Coordinator.GetParallelism,
		SuccessTarget:    cfg.Coordinator.GetSuccessTarget,
		CheckoutTimeout:  time.Duration(cfg.Coordinator.CheckoutTimeoutMs) * time.Millisecond,
		OperationTimeout: time.Duration(cfg.Coordinator.OperationTimeoutMs) * time.Millisecond,
	}, log)

	front := httpfrontend.NewServer(coord, httpfrontend.Config{
		HTTPPort:           cfg.Server.HTTPPort,
		SOBacklog:          cfg.Server.SOBacklog,
		BossThreadCount:    cfg.Server.BossThreadCount,
		WorkerThreadCount:  cfg.Server.WorkerThreadCount,
		IdleTimeSeconds:    cfg.Server.IdleTimeSeconds,
		StartupWaitSeconds: cfg.Server.StartupWaitSeconds,
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go serveMetrics(cfg.Metrics.HTTPPort, log)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("received shutdown signal")
		cancel()
	}()

	if err := front.Start(ctx); err != nil {
		return fmt.Errorf("http frontend exited: %w", err)
	}
	return nil
}

func serveMetrics(port int, log *logrus.Entry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warnf("metrics server exited: %v", err)
	}
}
