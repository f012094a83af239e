package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// OTelConfig holds OpenTelemetry log export settings.
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// ArchiveConfig holds pack-run archive database settings.
type ArchiveConfig struct {
	Enabled    bool
	SqlitePath string
}

// InfluxConfig holds run-metrics reporting settings.
type InfluxConfig struct {
	Enabled  bool
	Protocol string
	Host     string
	Port     string
	Token    string
	Org      string
	Bucket   string
}

// TelemetryConfig holds the telemetry log contract settings.
type TelemetryConfig struct {
	Tag             string
	TimestampColumn string
	TimestampFormat string
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./towpacklogs")

	viper.SetDefault("telemetry.tag", "TAG")
	viper.SetDefault("telemetry.timestampColumn", "FinalTime")
	viper.SetDefault("telemetry.timestampFormat", "2006-01-02 15:04:05.999999")

	viper.SetDefault("imagery.thumbnailMaxDim", 300)
	viper.SetDefault("imagery.overviewColumns", 10)

	viper.SetDefault("archive.enabled", true)
	viper.SetDefault("archive.sqlitePath", "./towpack_archive.db")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "towpack")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "towpack-metrics")
	viper.SetDefault("influx.bucket", "pack_runs")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "towpack")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetConfigName("towpack.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// run on defaults
			return nil
		}
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetArchiveConfig returns the pack-run archive settings.
func GetArchiveConfig() ArchiveConfig {
	return ArchiveConfig{
		Enabled:    viper.GetBool("archive.enabled"),
		SqlitePath: viper.GetString("archive.sqlitePath"),
	}
}

// GetInfluxConfig returns the run-metrics settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Protocol: viper.GetString("influx.protocol"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetTelemetryConfig returns the telemetry log contract settings.
func GetTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Tag:             viper.GetString("telemetry.tag"),
		TimestampColumn: viper.GetString("telemetry.timestampColumn"),
		TimestampFormat: viper.GetString("telemetry.timestampFormat"),
	}
}
