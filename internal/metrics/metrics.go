// Package metrics reports pack-run summaries to InfluxDB, falling back
// to a gzip line-protocol backup file when the server is unreachable.
package metrics

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"

	"github.com/mritc-tools/towpack/internal/archive"
	"github.com/mritc-tools/towpack/internal/config"
)

const runMeasurement = "pack_run"

// Manager handles InfluxDB connections and writes.
type Manager struct {
	Client       influxdb2.Client
	Writers      map[string]influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	Logger       zerolog.Logger
	BackupPath   string
	Config       config.InfluxConfig
}

// NewManager creates a new run-metrics manager.
func NewManager(log zerolog.Logger, backupPath string, cfg config.InfluxConfig) *Manager {
	return &Manager{
		Writers:    make(map[string]influxdb2_api.WriteAPI),
		Logger:     log,
		BackupPath: backupPath,
		Config:     cfg,
	}
}

// Connect establishes a connection to InfluxDB. When the server cannot
// be reached, points are appended to the gzip backup file instead.
func (m *Manager) Connect() error {
	if !m.Config.Enabled {
		return errors.New("run-metrics reporting is disabled")
	}

	m.Client = influxdb2.NewClientWithOptions(
		fmt.Sprintf("%s://%s:%s", m.Config.Protocol, m.Config.Host, m.Config.Port),
		m.Config.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(100).
			SetFlushInterval(1000),
	)

	running, err := m.Client.Ping(context.Background())
	if err != nil || !running {
		m.IsValid = false
		if m.BackupWriter == nil {
			m.Logger.Info().Str("backupPath", m.BackupPath).
				Msg("Failed to initialize InfluxDB client, writing to backup file")

			file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				return fmt.Errorf("error creating backup file: %v", err)
			}
			m.BackupWriter = gzip.NewWriter(file)
		}
		m.Logger.Warn().Msg("InfluxDB client failed to initialize, using backup writer")
		return nil
	}

	m.IsValid = true
	if err := m.setupOrganizationAndBucket(); err != nil {
		return err
	}
	m.createWriter()
	m.Logger.Info().Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) setupOrganizationAndBucket() error {
	ctx := context.Background()
	orgName := m.Config.Org
	bucket := m.Config.Bucket

	influxOrg, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		influxOrg, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	if _, err = m.Client.BucketsAPI().FindBucketByName(ctx, bucket); err != nil {
		m.Logger.Info().Str("bucket", bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: 60 * 60 * 24 * 90, // 90 days
		})
		if err != nil {
			m.Logger.Error().Err(err).Str("bucket", bucket).Msg("Error creating bucket")
			return err
		}
	}
	return nil
}

func (m *Manager) createWriter() {
	orgName := m.Config.Org
	bucket := m.Config.Bucket

	m.Writers[bucket] = m.Client.WriteAPI(orgName, bucket)

	errorsCh := m.Writers[bucket].Errors()
	go func(bucketName string, errorsCh <-chan error) {
		for writeErr := range errorsCh {
			m.Logger.Error().Err(writeErr).Str("bucket", bucketName).
				Msg("Error sending data to InfluxDB")
		}
	}(bucket, errorsCh)
}

// RunPoint builds the measurement point for one completed pack run.
func RunPoint(run *archive.PackRun) *influxdb2_write.Point {
	return influxdb2_write.NewPointWithMeasurement(runMeasurement).
		AddTag("deployment", run.DeploymentID).
		AddTag("dryRun", fmt.Sprintf("%t", run.DryRun)).
		AddField("filesLinked", run.FilesLinked).
		AddField("filesSkipped", run.FilesSkipped).
		AddField("filesFailed", run.FilesFailed).
		AddField("assetsMatched", run.AssetsMatched).
		AddField("assetsUnmatched", run.AssetsUnmatched).
		AddField("durationSeconds", run.Duration.Seconds()).
		AddField("trackPoints", run.TrackPoints).
		SetTime(time.Now())
}

// ReportRun writes one run summary to InfluxDB or the backup file.
func (m *Manager) ReportRun(run *archive.PackRun) error {
	return m.WritePoint(m.Config.Bucket, RunPoint(run))
}

// WritePoint writes a point to InfluxDB or backup file.
func (m *Manager) WritePoint(bucket string, point *influxdb2_write.Point) error {
	if m.IsValid {
		writer, ok := m.Writers[bucket]
		if !ok {
			return fmt.Errorf("influxDB bucket '%s' not registered", bucket)
		}
		writer.WritePoint(point)
		return nil
	}

	if m.BackupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}
	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := m.BackupWriter.Write([]byte(lineProtocol)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Close flushes pending writes and the backup stream.
func (m *Manager) Close() error {
	for _, w := range m.Writers {
		w.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}
	if m.BackupWriter != nil {
		return m.BackupWriter.Close()
	}
	return nil
}
