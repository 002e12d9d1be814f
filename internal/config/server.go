package config

import "time"

const (
	defaultPort               = 5000
	defaultMetricsPort        = 9090
	defaultIdleTimeoutSeconds = 300
)

type ServerConfig struct {
	ListenPort         int   `yaml:"port"`
	MetricsListenPort  int   `yaml:"metrics-port"`
	IdleTimeoutSeconds int64 `yaml:"idle-timeout-seconds"`
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenPort:         defaultPort,
		MetricsListenPort:  defaultMetricsPort,
		IdleTimeoutSeconds: defaultIdleTimeoutSeconds,
	}
}

func (s *ServerConfig) Port() int {
	return s.ListenPort
}

func (s *ServerConfig) MetricsPort() int {
	return s.MetricsListenPort
}

func (s *ServerConfig) IdleTimeout() time.Duration {
	return time.Duration(s.IdleTimeoutSeconds) * time.Second
}
