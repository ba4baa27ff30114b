package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"data-audit/internal/domain"
	"data-audit/internal/metrics"
	"data-audit/internal/storage"
)

var (
	// ErrExportDisabled is returned when no bucket or storage backend is configured.
	ErrExportDisabled = errors.New("audit export is not configured")
	// ErrNotStarted is returned by Enqueue before Start or after Shutdown.
	ErrNotStarted = errors.New("export manager is not running")
)

// TrailSource provides the audit trail of a single user.
type TrailSource interface {
	AuditTrail(ctx context.Context, id int64) ([]domain.AuditRecord, error)
}

// Manager archives user audit trails to object storage in the background.
type Manager interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
	Enqueue(ctx context.Context, userID int64) (string, error)
}

type Config struct {
	Bucket        string
	KeyPrefix     string
	MaxConcurrent int
	Logger        *logrus.Logger
	Metrics       *metrics.Metrics
}

// Document is the JSON body written for one export.
type Document struct {
	UserID     int64                `json:"user_id"`
	ExportedAt time.Time            `json:"exported_at"`
	Records    []domain.AuditRecord `json:"records"`
}

type manager struct {
	cfg     Config
	trails  TrailSource
	storage storage.Service
	now     func() time.Time

	sem    chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

func NewManager(cfg Config, trails TrailSource, store storage.Service) Manager {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 2
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	cfg.KeyPrefix = strings.Trim(cfg.KeyPrefix, "/")
	return &manager{
		cfg:     cfg,
		trails:  trails,
		storage: store,
		now:     time.Now,
		sem:     make(chan struct{}, cfg.MaxConcurrent),
	}
}

func (m *manager) Start(ctx context.Context) error {
	if m.storage == nil || m.cfg.Bucket == "" {
		return ErrExportDisabled
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.cfg.Logger.Infof("export manager started, bucket: %s", m.cfg.Bucket)
	return nil
}

// Shutdown stops accepting exports and waits for running uploads to finish.
// When ctx expires first, the uploads still in flight are cancelled and
// ctx.Err() is returned.
func (m *manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	cancel := m.cancel
	m.ctx, m.cancel = nil, nil
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
		m.cfg.Logger.Warnf("export manager shutdown: %v, cancelling running uploads", err)
	}
	if cancel != nil {
		cancel()
	}
	m.cfg.Logger.Info("export manager stopped")
	return err
}

// Enqueue snapshots the user's trail and schedules its upload. It returns the
// object key the export will be written to.
func (m *manager) Enqueue(ctx context.Context, userID int64) (string, error) {
	if m.storage == nil || m.cfg.Bucket == "" {
		return "", ErrExportDisabled
	}
	m.mu.Lock()
	runCtx := m.ctx
	if runCtx != nil {
		m.wg.Add(1)
	}
	m.mu.Unlock()
	if runCtx == nil {
		return "", ErrNotStarted
	}

	records, err := m.trails.AuditTrail(ctx, userID)
	if err != nil {
		m.wg.Done()
		return "", err
	}

	now := m.now().UTC()
	doc := Document{UserID: userID, ExportedAt: now, Records: records}
	key := m.objectKey(userID, now)

	go func() {
		defer m.wg.Done()
		select {
		case <-runCtx.Done():
			m.cfg.Metrics.ObserveExport("cancelled", 0)
			return
		case m.sem <- struct{}{}:
			defer func() { <-m.sem }()
			m.upload(runCtx, key, doc)
		}
	}()
	return key, nil
}

func (m *manager) upload(ctx context.Context, key string, doc Document) {
	logger := m.cfg.Logger.WithFields(logrus.Fields{"user_id": doc.UserID, "key": key})
	start := time.Now()

	body, err := json.Marshal(doc)
	if err != nil {
		logger.Errorf("encode export: %v", err)
		m.cfg.Metrics.ObserveExport("failed", time.Since(start).Seconds())
		return
	}

	location, err := m.storage.PutObject(ctx, m.cfg.Bucket, key, bytes.NewReader(body), "application/json")
	if err != nil {
		logger.Errorf("upload export: %v", err)
		m.cfg.Metrics.ObserveExport("failed", time.Since(start).Seconds())
		return
	}
	logger.WithField("records", len(doc.Records)).Infof("audit trail exported to %s", location)
	m.cfg.Metrics.ObserveExport("succeeded", time.Since(start).Seconds())
}

func (m *manager) objectKey(userID int64, at time.Time) string {
	name := fmt.Sprintf("user-%d/%s-%s.json", userID, at.Format("20060102T150405Z"), uuid.NewString())
	if m.cfg.KeyPrefix == "" {
		return name
	}
	return m.cfg.KeyPrefix + "/" + name
}
