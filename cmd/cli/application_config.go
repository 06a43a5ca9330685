package cli

import (
	_ "embed"
)

//go:embed config.yaml
var embeddedDefaultConfiguration []byte

// EmbeddedDefaultConfiguration returns the configuration content compiled
// into the binary together with its format.
func EmbeddedDefaultConfiguration() ([]byte, string) {
	return embeddedDefaultConfiguration, configurationTypeConstant
}

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common ApplicationCommonConfiguration `mapstructure:"common"`
	Server ApplicationServerConfiguration `mapstructure:"server"`
	Queue  ApplicationQueueConfiguration  `mapstructure:"queue"`
	Worker ApplicationWorkerConfiguration `mapstructure:"worker"`
}

// ApplicationCommonConfiguration stores logging defaults shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// ApplicationServerConfiguration stores HTTP API settings.
type ApplicationServerConfiguration struct {
	Address              string `mapstructure:"address"`
	ShutdownGraceSeconds int    `mapstructure:"shutdown_grace_seconds"`
}

// ApplicationQueueConfiguration stores durable queue settings.
type ApplicationQueueConfiguration struct {
	Driver    string `mapstructure:"driver"`
	BrokerURL string `mapstructure:"broker_url"`
}

// ApplicationWorkerConfiguration stores executor settings.
type ApplicationWorkerConfiguration struct {
	Count                 int `mapstructure:"count"`
	ExecutionDelaySeconds int `mapstructure:"execution_delay_seconds"`
}
