package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/IliaW/page-capture/internal/aws_s3"
	"github.com/IliaW/page-capture/internal/browser"
	"github.com/IliaW/page-capture/internal/capture"
	"github.com/IliaW/page-capture/internal/model"
	"github.com/IliaW/page-capture/internal/telemetry"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
)

// newCaptureCmd runs a single capture through the same pipeline as the http
// handlers and prints the result as json.
func newCaptureCmd() *cobra.Command {
	var (
		url   string
		mode  string
		ratio float64
		force bool
	)
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture one url and store it on S3",
		Example: "  page-capture capture --url https://example.com\n" +
			"  page-capture capture --url https://example.com --mode snapshot --force",
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogger(os.Stderr)
			if ratio <= 0 {
				return &capture.InputError{Msg: capture.MsgInvalidRatio}
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			db, metadataRepo := setupDatabase()
			defer closeDatabase(db)
			cache := setupCache()
			defer cache.Close()
			pool := browser.NewPool(cfg.BrowserSettings)
			defer pool.Close()

			svc := &capture.CaptureService{
				Cfg:     cfg,
				S3:      aws_s3.NewS3BucketClient(cfg),
				Browser: pool,
				Cache:   cache,
				Db:      metadataRepo,
				Metrics: telemetry.NoopMetrics().AppMetrics,
			}
			res, err := svc.Capture(ctx, &model.CaptureRequest{
				URL:   url,
				Mode:  model.ParseMode(mode),
				Ratio: ratio,
				Force: force,
			})
			if err != nil {
				if errors.Is(err, capture.ErrInvalidInput) {
					return err
				}
				return fmt.Errorf("capture failed: %w", err)
			}

			out, err := jsoniter.MarshalIndent(res, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "target page url")
	cmd.Flags().StringVar(&mode, "mode", model.Screenshot.String(), "screenshot, content or snapshot")
	cmd.Flags().Float64Var(&ratio, "ratio", 1, "device pixel ratio of screenshots")
	cmd.Flags().BoolVar(&force, "force", false, "capture even if the artifact already exists")
	_ = cmd.MarkFlagRequired("url")

	return cmd
}
