package model

import "strings"

type CaptureMode int

const (
	Screenshot CaptureMode = iota
	Content
	Snapshot
)

func (cm CaptureMode) String() string {
	switch cm {
	case Screenshot:
		return "screenshot"
	case Content:
		return "content"
	case Snapshot:
		return "snapshot"
	default:
		return "unknown"
	}
}

// ParseDownloadMode maps the `mode` query value of a page download. Unknown or
// empty values fall back to Content.
func ParseDownloadMode(s string) CaptureMode {
	if strings.ToLower(strings.TrimSpace(s)) == Snapshot.String() {
		return Snapshot
	}
	return Content
}

// ParseMode accepts every capture mode, defaulting to Screenshot.
func ParseMode(s string) CaptureMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case Content.String():
		return Content
	case Snapshot.String():
		return Snapshot
	default:
		return Screenshot
	}
}

const (
	ContentTypePNG   = "image/png"
	ContentTypeHTML  = "text/html; charset=utf-8"
	ContentTypeMHTML = "multipart/related"
)

type CaptureRequest struct {
	URL   string
	Mode  CaptureMode
	Ratio float64
	Force bool
}

type Artifact struct {
	Body        []byte
	ContentType string
}

type UploadResult struct {
	ETag      string `json:"ETag,omitempty"`
	VersionId string `json:"VersionId,omitempty"`
}

type CaptureResult struct {
	Message    string        `json:"message"`
	Path       string        `json:"path"`
	S3Response *UploadResult `json:"s3Response,omitempty"`
	URL        string        `json:"url,omitempty"`
	Skipped    bool          `json:"-"`
}

type CaptureTask struct {
	URL   string  `json:"url"`
	Mode  string  `json:"mode"`
	Ratio float64 `json:"ratio,omitempty"`
	Force bool    `json:"force"`
}

type CaptureEvent struct {
	S3Bucket string `json:"s3_bucket"`
	S3Key    string `json:"s3_key"`
	URL      string `json:"url"`
	Mode     string `json:"mode"`
	Force    bool   `json:"force"`
}

type CaptureMetadata struct {
	FullURL              string
	Mode                 string
	S3Key                string
	ContentType          string
	SizeBytes            int
	TimeToCapture        int64 // in milliseconds
	CaptureWorkerVersion string
}
