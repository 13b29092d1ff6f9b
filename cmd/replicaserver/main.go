package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/dreamware/ambry-coordinator/internal/config"
	"github.com/dreamware/ambry-coordinator/internal/logging"
	"github.com/dreamware/ambry-coordinator/internal/replica"
	"github.com/dreamware/ambry-coordinator/internal/replicastore"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "ambry-replicaserver",
	Short: "Serves one replica's Get RPC over S3-backed payloads and DynamoDB-backed metadata",
	RunE:  run,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a replica server config YAML file")
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

	log := logging.New("info", "ambry-replicaserver")

	blobs, err := replicastore.NewS3BlobStore(cfg.Replica.AWSRegion, cfg.Replica.S3Bucket)
	if err != nil {
		return fmt.Errorf("creating s3 blob store: %w", err)
	}

	metadata, err := replicastore.NewDynamoDBMetadataStore(cfg.Replica.AWSRegion, cfg.Replica.DynamoDBTable)
	if err != nil {
		return fmt.Errorf("creating dynamodb metadata store: %w", err)
	}

	var cache replicastore.MetadataCache = replicastore.NoOpMetadataCache{}
	if cfg.Replica.RedisAddress != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		redisCache, err := replicastore.NewRedisMetadataCache(ctx, cfg.Replica.RedisAddress, cfg.Replica.RedisTTLSeconds)
		cancel()
		if err != nil {
			log.WithError(err).Warn("failed to connect to redis cache; continuing with no-op cache")
		} else {
			cache = redisCache
		}
	}

	srv := replicastore.NewServer(blobs, metadata, cache, log)

	gs := grpc.NewServer()
	replica.RegisterServer(gs, srv)
	reflection.Register(gs)

	addr := fmt.Sprintf(":%d", cfg.Replica.GRPCPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("received shutdown signal")
		gs.GracefulStop()
		if closer, ok := cache.(*replicastore.RedisMetadataCache); ok {
			closer.Close()
		}
	}()

	go serveMetrics(cfg.Metrics.HTTPPort, log)

	log.WithField("addr", addr).Info("replica server listening")
	return gs.Serve(lis)
}

func serveMetrics(port int, log *logrus.Entry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warnf("metrics server exited: %v", err)
	}
}
