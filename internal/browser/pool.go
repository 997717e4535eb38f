// Package browser runs captures in a shared headless Chrome. Every capture gets
// its own tab; the number of open tabs is bounded by max_tabs.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IliaW/page-capture/config"
	"github.com/IliaW/page-capture/internal/model"
	"github.com/chromedp/chromedp"
	"golang.org/x/sync/semaphore"
)

// Readiness signals, as reported by Page.lifecycleEvent.
const (
	DOMContentLoaded = "DOMContentLoaded"
	NetworkIdle      = "networkIdle"
)

var ErrPoolClosed = errors.New("browser pool is closed")

type Capturer interface {
	Screenshot(ctx context.Context, url string, ratio float64) (*model.Artifact, error)
	Content(ctx context.Context, url string) (*model.Artifact, error)
	Snapshot(ctx context.Context, url string) (*model.Artifact, error)
}

type Pool struct {
	cfg  *config.BrowserConfig
	tabs *semaphore.Weighted

	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	closed        bool
}

func NewPool(cfg *config.BrowserConfig) *Pool {
	maxTabs := cfg.MaxTabs
	if maxTabs <= 0 {
		maxTabs = 1
	}
	return &Pool{
		cfg:  cfg,
		tabs: semaphore.NewWeighted(maxTabs),
	}
}

// Start launches Chrome (or attaches to browser.remote_url). Calling it is
// optional: the first capture starts the browser as well.
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.browserLocked()
	return err
}

func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	slog.Info("closing browser.")
	p.closed = true
	p.shutdownLocked()
}

// browserLocked returns the browser context, relaunching Chrome if it has not
// been started yet or has exited.
func (p *Pool) browserLocked() (context.Context, error) {
	if p.closed {
		return nil, ErrPoolClosed
	}
	if p.browserCtx != nil && p.browserCtx.Err() == nil {
		return p.browserCtx, nil
	}
	if p.browserCtx != nil {
		slog.Warn("browser exited. relaunching.")
		p.shutdownLocked()
	}

	var allocCtx context.Context
	if p.cfg.RemoteURL != "" {
		slog.Info("connecting to remote browser.", slog.String("url", p.cfg.RemoteURL))
		allocCtx, p.allocCancel = chromedp.NewRemoteAllocator(context.Background(), p.cfg.RemoteURL)
	} else {
		slog.Info("launching headless browser.")
		allocCtx, p.allocCancel = chromedp.NewExecAllocator(context.Background(), allocatorOptions(p.cfg)...)
	}
	p.browserCtx, p.browserCancel = chromedp.NewContext(allocCtx)

	// The first Run on a fresh context starts the browser.
	if err := chromedp.Run(p.browserCtx); err != nil {
		p.shutdownLocked()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	slog.Info("browser started.")

	return p.browserCtx, nil
}

func (p *Pool) shutdownLocked() {
	if p.browserCancel != nil {
		p.browserCancel()
	}
	if p.allocCancel != nil {
		p.allocCancel()
	}
	p.browserCtx, p.browserCancel, p.allocCancel = nil, nil, nil
}

// run executes actions in a new tab. The tab is closed when run returns.
func (p *Pool) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := p.tabs.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.tabs.Release(1)

	p.mu.Lock()
	browserCtx, err := p.browserLocked()
	p.mu.Unlock()
	if err != nil {
		return err
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	defer cancelTab()
	timeout := p.cfg.RequestTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	tCtx, cancel := context.WithTimeout(tabCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(tCtx, actions...)
}

func (p *Pool) Screenshot(ctx context.Context, url string, ratio float64) (*model.Artifact, error) {
	if ratio <= 0 {
		ratio = 1
	}
	var buf []byte
	err := p.run(ctx,
		enableLifeCycleEvents(),
		navigateAndWaitFor(url, DOMContentLoaded),
		chromedp.EmulateViewport(p.viewportWidth(), p.viewportHeight(), chromedp.EmulateScale(ratio)),
		chromedp.CaptureScreenshot(&buf),
	)
	if err != nil {
		return nil, err
	}
	slog.Debug("screenshot captured.", slog.String("url", url), slog.Int("size", len(buf)))

	return &model.Artifact{Body: buf, ContentType: model.ContentTypePNG}, nil
}

func (p *Pool) Content(ctx context.Context, url string) (*model.Artifact, error) {
	var html string
	err := p.run(ctx,
		enableLifeCycleEvents(),
		navigateAndWaitFor(url, NetworkIdle),
		outerHTML(&html),
	)
	if err != nil {
		return nil, err
	}
	slog.Debug("page downloaded.", slog.String("url", url), slog.Int("size", len(html)))

	return &model.Artifact{Body: []byte(html), ContentType: model.ContentTypeHTML}, nil
}

func (p *Pool) Snapshot(ctx context.Context, url string) (*model.Artifact, error) {
	var mhtml string
	err := p.run(ctx,
		enableLifeCycleEvents(),
		navigateAndWaitFor(url, NetworkIdle),
		captureMHTML(&mhtml),
	)
	if err != nil {
		return nil, err
	}
	slog.Debug("page snapshot captured.", slog.String("url", url), slog.Int("size", len(mhtml)))

	return &model.Artifact{Body: []byte(mhtml), ContentType: model.ContentTypeMHTML}, nil
}

func (p *Pool) viewportWidth() int64 {
	if p.cfg.ViewportWidth <= 0 {
		return 1000
	}
	return p.cfg.ViewportWidth
}

func (p *Pool) viewportHeight() int64 {
	if p.cfg.ViewportHeight <= 0 {
		return 600
	}
	return p.cfg.ViewportHeight
}

func allocatorOptions(cfg *config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("disable-web-security", true),
	)
	if cfg.TlsInsecureSkipVerify {
		opts = append(opts, chromedp.IgnoreCertErrors)
	}
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	return opts
}
