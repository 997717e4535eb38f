package broker

import (
	"errors"
	"testing"

	"github.com/IliaW/page-capture/internal/model"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventMessage(t *testing.T) {
	msg, err := eventMessage(&model.CaptureEvent{
		S3Bucket: "page-capture",
		S3Key:    "screenshots/abc.png",
		URL:      "https://example.com",
		Mode:     "screenshot",
	})
	require.NoError(t, err)

	assert.Equal(t, []byte("screenshots/abc.png"), msg.Key)
	assert.JSONEq(t, `{"s3_bucket":"page-capture","s3_key":"screenshots/abc.png",
		"url":"https://example.com","mode":"screenshot","force":false}`, string(msg.Value))
}

func TestNewDeadLetter(t *testing.T) {
	dl := newDeadLetter("page-capture", `{"url":"https://example.com"}`, errors.New("backend failure"))

	body, err := jsoniter.Marshal(dl)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, jsoniter.Unmarshal(body, &decoded))
	assert.Equal(t, "page-capture", decoded["service"])
	assert.Equal(t, "backend failure", decoded["error"])
	assert.Equal(t, `{"url":"https://example.com"}`, decoded["value"])
	assert.NotZero(t, decoded["timestamp"])

	assert.Empty(t, newDeadLetter("page-capture", "v", nil).Error)
}
