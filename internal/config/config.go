// Package config loads the values the reactor core is parameterized by.
//
// The core never reads a config file itself — per the specification the
// CLI/config layer that instantiates the server is an external
// collaborator. This package is that collaborator's one concrete
// implementation: it loads a *Config with github.com/spf13/viper, the
// config-loading library the retrieval corpus uses for this purpose, and
// hands the caller a plain struct the server constructor consumes.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config parameterizes a server.Server and its EventLoop.
type Config struct {
	// ListenAddr is the TCP address to bind, e.g. ":9092".
	ListenAddr string

	// IdleTimeout is the per-connection deadline reset on every
	// read-ready or write-ready dispatch (§5 Timeouts).
	IdleTimeout time.Duration

	// DefaultPollInterval bounds how long the loop blocks in Poller.Poll
	// when no timer is sooner (§4.4 step 1).
	DefaultPollInterval time.Duration

	// NumWorkers sizes the ants.Pool backing the WorkerPool collaborator.
	// Zero means "let ants pick its default".
	NumWorkers int

	// ReadBufferSize is loaded and kept on the Config, but the server does
	// not read it: tcpconn always reads into fixed 64 KiB pooled buffers.
	ReadBufferSize int

	// ReuseAddr/ReusePort map to SO_REUSEADDR/SO_REUSEPORT on the
	// listening socket (§4.6 On start).
	ReuseAddr bool
	ReusePort bool

	// AcceptBacklog is the backlog argument passed to listen(2).
	AcceptBacklog int
}

// Default returns the zero-config baseline used when no file is supplied.
func Default() *Config {
	return &Config{
		ListenAddr:          ":9092",
		IdleTimeout:         30 * time.Second,
		DefaultPollInterval: 10 * time.Second,
		NumWorkers:          0,
		ReadBufferSize:      64 * 1024,
		ReuseAddr:           true,
		ReusePort:           false,
		AcceptBacklog:       1024,
	}
}

// Load reads a YAML/TOML/JSON config file at path (format inferred from
// its extension by viper) and overlays it on Default().
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("listen_addr", cfg.ListenAddr)
	v.SetDefault("idle_timeout", cfg.IdleTimeout)
	v.SetDefault("default_poll_interval", cfg.DefaultPollInterval)
	v.SetDefault("num_workers", cfg.NumWorkers)
	v.SetDefault("read_buffer_size", cfg.ReadBufferSize)
	v.SetDefault("reuse_addr", cfg.ReuseAddr)
	v.SetDefault("reuse_port", cfg.ReusePort)
	v.SetDefault("accept_backlog", cfg.AcceptBacklog)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg.ListenAddr = v.GetString("listen_addr")
	cfg.IdleTimeout = v.GetDuration("idle_timeout")
	cfg.DefaultPollInterval = v.GetDuration("default_poll_interval")
	cfg.NumWorkers = v.GetInt("num_workers")
	cfg.ReadBufferSize = v.GetInt("read_buffer_size")
	cfg.ReuseAddr = v.GetBool("reuse_addr")
	cfg.ReusePort = v.GetBool("reuse_port")
	cfg.AcceptBacklog = v.GetInt("accept_backlog")
	return cfg, nil
}
