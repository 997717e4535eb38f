package capture

import (
	"fmt"

	"github.com/IliaW/page-capture/config"
	"github.com/IliaW/page-capture/internal"
	"github.com/IliaW/page-capture/internal/model"
)

// ArtifactKey derives the object key of url for mode:
//
//	screenshot: <screenshot_prefix>/<sha256>.png
//	content:    <download_prefix>/<sha256>/index.html
//	snapshot:   <download_prefix>/<sha256>/index.mhtml
func ArtifactKey(cfg *config.S3Config, mode model.CaptureMode, url string) string {
	hash := internal.HashURL(url)
	switch mode {
	case model.Screenshot:
		return fmt.Sprintf("%s/%s.png", prefixOr(cfg.ScreenshotPrefix, "screenshots"), hash)
	case model.Snapshot:
		return fmt.Sprintf("%s/%s/index.mhtml", prefixOr(cfg.DownloadPrefix, "downloads"), hash)
	default:
		return fmt.Sprintf("%s/%s/index.html", prefixOr(cfg.DownloadPrefix, "downloads"), hash)
	}
}

func prefixOr(prefix, def string) string {
	if prefix == "" {
		return def
	}
	return prefix
}
