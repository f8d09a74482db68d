package config

import (
	"github.com/skiffhttp/skiff/pkg/metrics"
)

// MetricsResult contains the metrics components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// HTTP is the metrics collector for the content engine (never nil, a
	// no-op implementation when disabled)
	HTTP metrics.HTTPMetrics
}

// InitializeMetrics creates the metrics components based on configuration.
//
// When enabled, the global Prometheus registry is initialized, the metrics
// HTTP server is created and promauto-backed collectors are handed out. When
// disabled the result carries a nil server and zero-overhead no-op
// collectors.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{
			Server: nil,
			HTTP:   metrics.NewNoopHTTPMetrics(),
		}
	}

	metrics.InitRegistry()

	server := metrics.NewServer(metrics.ServerConfig{
		Port: cfg.Metrics.Port,
	})

	return &MetricsResult{
		Server: server,
		HTTP:   metrics.NewHTTPMetrics(),
	}
}
