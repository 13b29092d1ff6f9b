// Package config loads the coordinator and replica server configuration
// from a YAML file, the way aws/server's LoadConfig did, layered with
// environment-variable overrides and CLI flag binding via viper/pflag so
// the cmd/ entrypoints can override any key from the command line.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the full configuration surface for both binaries. A single
// struct is shared so a combined deployment (or a test harness wiring both
// sides through bufconn) can load one file.
type Config struct {
	Server struct {
		HTTPPort           int `yaml:"http_port" mapstructure:"http_port"`
		SOBacklog          int `yaml:"so_backlog" mapstructure:"so_backlog"`
		BossThreadCount    int `yaml:"boss_thread_count" mapstructure:"boss_thread_count"`
		WorkerThreadCount  int `yaml:"worker_thread_count" mapstructure:"worker_thread_count"`
		IdleTimeSeconds    int `yaml:"idle_time_seconds" mapstructure:"idle_time_seconds"`
		StartupWaitSeconds int `yaml:"startup_wait_seconds" mapstructure:"startup_wait_seconds"`
	} `yaml:"server" mapstructure:"server"`

	Coordinator struct {
		GetParallelism     int    `yaml:"get_parallelism" mapstructure:"get_parallelism"`
		GetSuccessTarget   int    `yaml:"get_success_target" mapstructure:"get_success_target"`
		OperationTimeoutMs int    `yaml:"operation_timeout_ms" mapstructure:"operation_timeout_ms"`
		CheckoutTimeoutMs  int    `yaml:"checkout_timeout_ms" mapstructure:"checkout_timeout_ms"`
		LocalDatacenter    string `yaml:"local_datacenter" mapstructure:"local_datacenter"`
		ClusterMapPath     string `yaml:"cluster_map_path" mapstructure:"cluster_map_path"`
	} `yaml:"coordinator" mapstructure:"coordinator"`

	Replica struct {
		GRPCPort        int    `yaml:"grpc_port" mapstructure:"grpc_port"`
		AWSRegion       string `yaml:"aws_region" mapstructure:"aws_region"`
		S3Bucket        string `yaml:"s3_bucket" mapstructure:"s3_bucket"`
		DynamoDBTable   string `yaml:"dynamodb_table" mapstructure:"dynamodb_table"`
		RedisAddress    string `yaml:"redis_address" mapstructure:"redis_address"`
		RedisTTLSeconds int    `yaml:"redis_ttl_seconds" mapstructure:"redis_ttl_seconds"`
	} `yaml:"replica" mapstructure:"replica"`

	Metrics struct {
		HTTPPort int `yaml:"http_port" mapstructure:"http_port"`
	} `yaml:"metrics" mapstructure:"metrics"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.so_backlog", 1024)
	v.SetDefault("server.boss_thread_count", 1)
	v.SetDefault("server.worker_thread_count", 16)
	v.SetDefault("server.idle_time_seconds", 60)
	v.SetDefault("server.startup_wait_seconds", 30)

	v.SetDefault("coordinator.get_parallelism", 2)
	v.SetDefault("coordinator.get_success_target", 1)
	v.SetDefault("coordinator.operation_timeout_ms", 5000)
	v.SetDefault("coordinator.checkout_timeout_ms", 2000)
	v.SetDefault("coordinator.local_datacenter", "dc1")

	v.SetDefault("replica.grpc_port", 9090)
	v.SetDefault("replica.aws_region", "us-west-2")
	v.SetDefault("replica.s3_bucket", "ambry-blobs")
	v.SetDefault("replica.dynamodb_table", "ambry-message-metadata")
	v.SetDefault("replica.redis_ttl_seconds", 3600)

	v.SetDefault("metrics.http_port", 9100)
}

// Load reads path (if non-empty; a missing or unreadable file is an
// error), applies AMBRY_-prefixed
// environment variable overrides, then binds flags so that any flag the
// caller registered on fs takes final precedence. fs may be nil when no
// flag overrides are wanted.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ambry")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("config: binding flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshalling: %w", err)
	}
	return &cfg, nil
}
