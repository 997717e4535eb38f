package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/IliaW/page-capture/internal/broker"
	"github.com/IliaW/page-capture/internal/capture"
	"github.com/IliaW/page-capture/internal/model"
	jsoniter "github.com/json-iterator/go"
)

// CaptureWorker runs capture tasks read from kafka. Failed tasks are sent to
// the DLQ as is; the worker never retries.
type CaptureWorker struct {
	TaskChan <-chan []byte
	Service  capture.Service
	KafkaDLQ broker.DeadLetterQueue
	Wg       *sync.WaitGroup
}

// Run processes tasks until TaskChan is closed.
func (w *CaptureWorker) Run() {
	defer w.Wg.Done()
	slog.Debug("starting capture worker.")

	for value := range w.TaskChan {
		w.process(context.Background(), value)
	}
	slog.Debug("capture worker stopped.")
}

func (w *CaptureWorker) process(ctx context.Context, value []byte) {
	var task model.CaptureTask
	if err := jsoniter.Unmarshal(value, &task); err != nil {
		slog.Error("failed to unmarshal message.", slog.String("err", err.Error()))
		w.KafkaDLQ.SendUrlToDLQ(string(value), err)
		return
	}

	res, err := w.Service.Capture(ctx, &model.CaptureRequest{
		URL:   task.URL,
		Mode:  model.ParseMode(task.Mode),
		Ratio: task.Ratio,
		Force: task.Force,
	})
	if err != nil {
		slog.Error("capture failed.", slog.String("url", task.URL), slog.String("err", err.Error()))
		w.KafkaDLQ.SendUrlToDLQ(string(value), err)
		return
	}
	slog.Debug(res.Message, slog.String("url", task.URL), slog.String("path", res.Path))
}
