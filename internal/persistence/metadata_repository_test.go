package persistence

import (
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/IliaW/page-capture/internal"
	"github.com/IliaW/page-capture/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveUpsertsMetadata(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	meta := &model.CaptureMetadata{
		FullURL:              "https://example.com",
		Mode:                 "screenshot",
		S3Key:                "screenshots/" + internal.HashURL("https://example.com") + ".png",
		ContentType:          model.ContentTypePNG,
		SizeBytes:            42,
		TimeToCapture:        1200,
		CaptureWorkerVersion: "0.1.0",
	}
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO page_capture.capture_metadata")).
		WithArgs(internal.HashURL(meta.FullURL), meta.FullURL, meta.Mode, meta.S3Key, meta.ContentType,
			meta.SizeBytes, meta.TimeToCapture, sqlmock.AnyArg(), meta.CaptureWorkerVersion).
		WillReturnResult(sqlmock.NewResult(0, 1))

	NewMetadataRepository(db).Save(meta)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveSwallowsErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO page_capture.capture_metadata")).
		WillReturnError(errors.New("connection refused"))

	assert.NotPanics(t, func() {
		NewMetadataRepository(db).Save(&model.CaptureMetadata{FullURL: "https://example.com"})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}
