package browser

import (
	"context"
	"testing"
	"time"

	"github.com/IliaW/page-capture/config"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocatorOptions(t *testing.T) {
	base := len(chromedp.DefaultExecAllocatorOptions)

	opts := allocatorOptions(&config.BrowserConfig{})
	assert.Len(t, opts, base+2)

	opts = allocatorOptions(&config.BrowserConfig{
		TlsInsecureSkipVerify: true,
		NoSandbox:             true,
		ExecPath:              "/usr/bin/chromium",
		UserAgent:             "page-capture/1.0",
	})
	assert.Len(t, opts, base+6)
}

func TestMatchesNavigation(t *testing.T) {
	e := &page.EventLifecycleEvent{FrameID: "main", LoaderID: "l2", Name: NetworkIdle}

	assert.True(t, matchesNavigation(e, "main", "l2"))
	assert.True(t, matchesNavigation(e, "main", ""))
	assert.False(t, matchesNavigation(e, "main", "l1"))
	assert.False(t, matchesNavigation(e, "iframe", "l2"))
}

func TestClosedPoolRejectsCaptures(t *testing.T) {
	p := NewPool(&config.BrowserConfig{MaxTabs: 1})
	p.Close()

	_, err := p.Screenshot(context.Background(), "https://example.com", 1)
	require.ErrorIs(t, err, ErrPoolClosed)
	assert.ErrorIs(t, p.Start(), ErrPoolClosed)
}

func TestViewportDefaults(t *testing.T) {
	p := NewPool(&config.BrowserConfig{})
	assert.Equal(t, int64(1000), p.viewportWidth())
	assert.Equal(t, int64(600), p.viewportHeight())

	p = NewPool(&config.BrowserConfig{ViewportWidth: 1280, ViewportHeight: 720})
	assert.Equal(t, int64(1280), p.viewportWidth())
	assert.Equal(t, int64(720), p.viewportHeight())
}

func TestBusyPoolHonoursCallerContext(t *testing.T) {
	p := NewPool(&config.BrowserConfig{MaxTabs: 1})
	defer p.Close()
	require.NoError(t, p.tabs.Acquire(context.Background(), 1))
	defer p.tabs.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Screenshot(ctx, "https://example.com", 1)
	assert.ErrorIs(t, err, context.Canceled)

	ctx, cancel = context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Content(ctx, "https://example.com")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Nil(t, p.browserCtx)
}

func TestReleasedTabUnblocksWaitingCapture(t *testing.T) {
	p := NewPool(&config.BrowserConfig{MaxTabs: 1})
	require.NoError(t, p.tabs.Acquire(context.Background(), 1))
	// closed, so the waiting capture fails fast instead of launching chrome.
	p.Close()

	done := make(chan error, 1)
	go func() {
		_, err := p.Snapshot(context.Background(), "https://example.com")
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("capture ran while the only tab was taken: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	p.tabs.Release(1)
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrPoolClosed)
	case <-time.After(time.Second):
		t.Fatal("capture still waiting after the tab was released")
	}
}
