package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	cfg := `{
		"logLevel": "debug",
		"telemetry": { "tag": "NAV", "timestampColumn": "NavTime" },
		"db": { "host": "10.0.0.1", "port": "5433" }
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "towpack.cfg.json"), []byte(cfg), 0644))

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, "NAV", viper.GetString("telemetry.tag"))
	assert.Equal(t, "NavTime", viper.GetString("telemetry.timestampColumn"))
	assert.Equal(t, "10.0.0.1", viper.GetString("db.host"))
	assert.Equal(t, "5433", viper.GetString("db.port"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "towpack.cfg.json"), []byte(`{}`), 0644))

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./towpacklogs", viper.GetString("logsDir"))
	assert.Equal(t, "TAG", viper.GetString("telemetry.tag"))
	assert.Equal(t, "FinalTime", viper.GetString("telemetry.timestampColumn"))
	assert.Equal(t, "2006-01-02 15:04:05.999999", viper.GetString("telemetry.timestampFormat"))
	assert.Equal(t, 300, viper.GetInt("imagery.thumbnailMaxDim"))
	assert.Equal(t, 10, viper.GetInt("imagery.overviewColumns"))
	assert.Equal(t, true, viper.GetBool("archive.enabled"))
	assert.Equal(t, "./towpack_archive.db", viper.GetString("archive.sqlitePath"))
	assert.Equal(t, "localhost", viper.GetString("db.host"))
	assert.Equal(t, "5432", viper.GetString("db.port"))
	assert.Equal(t, "postgres", viper.GetString("db.username"))
	assert.Equal(t, "towpack", viper.GetString("db.database"))
	assert.Equal(t, false, viper.GetBool("influx.enabled"))
	assert.Equal(t, "pack_runs", viper.GetString("influx.bucket"))
	assert.Equal(t, false, viper.GetBool("otel.enabled"))
	assert.Equal(t, "towpack", viper.GetString("otel.serviceName"))
	assert.Equal(t, "5s", viper.GetString("otel.batchTimeout"))
}

func TestLoad_MissingFileRunsOnDefaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(t.TempDir()))
	assert.Equal(t, "info", viper.GetString("logLevel"))
}

func TestLoad_InvalidJSON(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "towpack.cfg.json"), []byte("{not json"), 0644))

	err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestGetOTelConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	cfg := `{"otel": {"enabled": true, "endpoint": "collector:4318", "batchTimeout": "10s"}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "towpack.cfg.json"), []byte(cfg), 0644))
	require.NoError(t, Load(dir))

	got := GetOTelConfig()
	assert.True(t, got.Enabled)
	assert.Equal(t, "towpack", got.ServiceName)
	assert.Equal(t, "collector:4318", got.Endpoint)
	assert.Equal(t, 10*time.Second, got.BatchTimeout)
	assert.True(t, got.Insecure)
}

func TestGetTelemetryConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "towpack.cfg.json"), []byte(`{}`), 0644))
	require.NoError(t, Load(dir))

	got := GetTelemetryConfig()
	assert.Equal(t, "TAG", got.Tag)
	assert.Equal(t, "FinalTime", got.TimestampColumn)
	assert.Equal(t, "2006-01-02 15:04:05.999999", got.TimestampFormat)
}

func TestGetString(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	assert.Equal(t, "testValue", GetString("testKey"))
}

func TestGetInt(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testInt", 42)
	assert.Equal(t, 42, GetInt("testInt"))
}

func TestGetInfluxConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	cfg := `{"influx": {"enabled": true, "host": "influx.local", "token": "secret"}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "towpack.cfg.json"), []byte(cfg), 0644))
	require.NoError(t, Load(dir))

	got := GetInfluxConfig()
	assert.True(t, got.Enabled)
	assert.Equal(t, "http", got.Protocol)
	assert.Equal(t, "influx.local", got.Host)
	assert.Equal(t, "8086", got.Port)
	assert.Equal(t, "secret", got.Token)
	assert.Equal(t, "towpack-metrics", got.Org)
	assert.Equal(t, "pack_runs", got.Bucket)
}
