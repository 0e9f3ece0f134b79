// Package snapshots archives the stock reports published by the logistics
// center and mirrors the latest one onto the product catalog.
package snapshots

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/benefits-logistics/internal/logistics/messages"
	"github.com/angelmondragon/benefits-logistics/pkg/db/models"
	"github.com/angelmondragon/benefits-logistics/pkg/enums"
	pkgerrors "github.com/angelmondragon/benefits-logistics/pkg/errors"
	"github.com/angelmondragon/benefits-logistics/pkg/logger"
	"github.com/angelmondragon/benefits-logistics/pkg/outbox"
	"github.com/angelmondragon/benefits-logistics/pkg/outbox/payloads"
	"github.com/angelmondragon/benefits-logistics/pkg/storage/gcs"
)

const contentTypeXML = "application/xml"

type objectStore interface {
	CreateObject(ctx context.Context, bucket, name, contentType string, data []byte) error
	ObjectExists(ctx context.Context, bucket, name string) (bool, error)
	ReadObject(ctx context.Context, bucket, name string) ([]byte, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service stores and applies stock snapshots.
type Service interface {
	Store(ctx context.Context, snapshotPath string, at time.Time, body []byte) (bool, error)
	Process(ctx context.Context, snapshotPath string, at time.Time) (*models.StockSnapshot, error)
}

type ServiceParams struct {
	Repo    Repository
	Tx      txRunner
	Outbox  outboxEmitter
	Storage objectStore
	Bucket  string
	Prefix  string
	Center  enums.LogisticsCenter
	Logger  *logger.Logger
	Clock   func() time.Time
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxEmitter
	storage objectStore
	bucket  string
	prefix  string
	center  enums.LogisticsCenter
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("snapshot repository required")
	}
	if params.Tx == nil {
		return nil, errors.New("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox emitter required")
	}
	if params.Storage == nil {
		return nil, errors.New("object storage required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	center := params.Center
	if center == "" {
		center = enums.LogisticsCenterOrian
	}
	prefix := strings.Trim(params.Prefix, "/")
	if prefix == "" {
		prefix = center.String()
	}
	now := params.Clock
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		outbox:  params.Outbox,
		storage: params.Storage,
		bucket:  params.Bucket,
		prefix:  prefix,
		center:  center,
		logg:    params.Logger,
		now:     now,
	}, nil
}

// Store archives a snapshot file under the center prefix and queues it for
// processing. It reports false when the file was already archived.
func (s *service) Store(ctx context.Context, snapshotPath string, at time.Time, body []byte) (bool, error) {
	name, err := s.objectName(snapshotPath)
	if err != nil {
		return false, err
	}
	if at.IsZero() {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "snapshot time is required")
	}
	if len(body) == 0 {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "snapshot body is required")
	}
	ctx = s.logg.WithField(ctx, "snapshot_path", name)

	exists, err := s.storage.ObjectExists(ctx, s.bucket, name)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check snapshot object")
	}
	if exists {
		s.logg.Info(ctx, "snapshot already saved")
		return false, nil
	}
	if err := s.storage.CreateObject(ctx, s.bucket, name, contentTypeXML, body); err != nil {
		if errors.Is(err, gcs.ErrObjectExists) {
			s.logg.Info(ctx, "snapshot already saved")
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upload snapshot object")
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStockSnapshotStored,
			AggregateType: enums.AggregateStockSnapshot,
			AggregateID:   name,
			Data: payloads.StockSnapshotStoredEvent{
				Path:       strings.TrimPrefix(name, s.prefix+"/"),
				SnapshotAt: at.UTC(),
				Center:     s.center,
			},
		})
	}); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue snapshot processing")
	}

	s.logg.Info(ctx, "snapshot saved")
	return true, nil
}

// Process loads an archived snapshot, upserts it with its lines, then relinks
// every product to the latest snapshot, which may be an older file than the
// one just processed.
func (s *service) Process(ctx context.Context, snapshotPath string, at time.Time) (*models.StockSnapshot, error) {
	name, err := s.objectName(snapshotPath)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithField(ctx, "snapshot_path", name)
	s.logg.Info(ctx, "processing snapshot")

	data, err := s.storage.ReadObject(ctx, s.bucket, name)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "snapshot file not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read snapshot object")
	}
	lines, err := ParseLines(data)
	if err != nil {
		return nil, err
	}

	var snapshot *models.StockSnapshot
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		snapshot, err = repo.UpsertSnapshot(ctx, &models.StockSnapshot{
			Center:            s.center,
			SnapshotDateTime:  at,
			SnapshotFilePath:  strings.TrimPrefix(name, s.prefix+"/"),
			ProcessedDateTime: s.now().UTC(),
		})
		if err != nil {
			return err
		}
		for _, line := range lines {
			if err := repo.UpsertLine(ctx, &models.StockSnapshotLine{
				StockSnapshotID: snapshot.ID,
				SKU:             line.SKU,
				Quantity:        line.Quantity,
			}); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store snapshot")
	}
	s.logg.Info(s.logg.WithField(ctx, "line_count", len(lines)), "snapshot processed")

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		latest, err := repo.LatestSnapshot(ctx, s.center)
		if err != nil {
			return err
		}
		_, err = repo.LinkProductsToSnapshot(ctx, latest.ID)
		return err
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update product snapshot stock")
	}
	s.logg.Info(ctx, "product snapshot stock updated")
	return snapshot, nil
}

func (s *service) objectName(snapshotPath string) (string, error) {
	trimmed := strings.Trim(strings.TrimSpace(snapshotPath), "/")
	if trimmed == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "snapshot path is required")
	}
	cleaned := path.Clean(trimmed)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid snapshot path %q", snapshotPath))
	}
	if strings.HasPrefix(cleaned, s.prefix+"/") {
		return cleaned, nil
	}
	return s.prefix + "/" + cleaned, nil
}

// Line is one SKU quantity of a snapshot.
type Line struct {
	SKU      string
	Quantity int
}

type snapshotDocument struct {
	XMLName xml.Name      `xml:"DATACOLLECTION"`
	Data    []snapshotRow `xml:"DATA"`
}

type snapshotRow struct {
	SKU string `xml:"SKU"`
	QTY string `xml:"QTY"`
}

// ParseLines decodes a snapshot document. DATA may appear once or many times;
// quantities are truncated to whole units.
func ParseLines(data []byte) ([]Line, error) {
	var doc snapshotDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeMalformedMessage, err, "decode snapshot xml")
	}
	lines := make([]Line, 0, len(doc.Data))
	for _, row := range doc.Data {
		sku := strings.TrimSpace(row.SKU)
		if sku == "" {
			return nil, pkgerrors.New(pkgerrors.CodeMalformedMessage, "snapshot line without SKU")
		}
		qty, err := messages.Quantity(messages.Text(strings.TrimSpace(row.QTY)))
		if err != nil {
			return nil, err
		}
		lines = append(lines, Line{SKU: sku, Quantity: qty})
	}
	return lines, nil
}
