package persistence

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/IliaW/page-capture/internal"
	"github.com/IliaW/page-capture/internal/model"
)

type MetadataStorage interface {
	Save(*model.CaptureMetadata)
}

type MetadataRepository struct {
	db *sql.DB
}

func NewMetadataRepository(db *sql.DB) *MetadataRepository {
	return &MetadataRepository{db: db}
}

const upsertCaptureMetadata = `INSERT INTO page_capture.capture_metadata
    (url_hash, full_url, mode, s3_key, content_type, size_bytes, time_to_capture, timestamp, capture_worker_version)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (s3_key) DO UPDATE
	SET full_url = EXCLUDED.full_url,
	    content_type = EXCLUDED.content_type,
	    size_bytes = EXCLUDED.size_bytes,
	    time_to_capture = EXCLUDED.time_to_capture,
	    timestamp = EXCLUDED.timestamp,
		capture_worker_version = EXCLUDED.capture_worker_version;`

func (mr *MetadataRepository) Save(meta *model.CaptureMetadata) {
	_, err := mr.db.Exec(upsertCaptureMetadata,
		internal.HashURL(meta.FullURL),
		meta.FullURL,
		meta.Mode,
		meta.S3Key,
		meta.ContentType,
		meta.SizeBytes,
		meta.TimeToCapture,
		time.Now().UTC(),
		meta.CaptureWorkerVersion)
	if err != nil {
		slog.Error("failed to save capture metadata to database.", slog.String("err", err.Error()))
		return
	}
	slog.Debug("capture metadata saved to db.", slog.String("s3_key", meta.S3Key))
}

// NoopRepository is used when the database is disabled.
type NoopRepository struct{}

func (NoopRepository) Save(*model.CaptureMetadata) {}
