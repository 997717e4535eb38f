package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

func enableLifeCycleEvents() chromedp.ActionFunc {
	return func(ctx context.Context) error {
		err := page.Enable().Do(ctx)
		if err != nil {
			return err
		}
		err = page.SetLifecycleEventsEnabled(true).Do(ctx)
		if err != nil {
			return err
		}
		return nil
	}
}

// navigateAndWaitFor navigates to url and blocks until the main frame of the
// new document reports eventName. The listener is attached before navigating
// so fast pages can't fire the event early.
func navigateAndWaitFor(url string, eventName string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		lctx, cancel := context.WithCancel(ctx)
		defer cancel()

		events := make(chan *page.EventLifecycleEvent, 32)
		chromedp.ListenTarget(lctx, func(ev interface{}) {
			e, ok := ev.(*page.EventLifecycleEvent)
			if !ok || e.Name != eventName {
				return
			}
			select {
			case events <- e:
			default:
			}
		})

		frameID, loaderID, errorText, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		if errorText != "" {
			return fmt.Errorf("navigation to %s failed: %s", url, errorText)
		}

		for {
			select {
			case e := <-events:
				if matchesNavigation(e, frameID, loaderID) {
					return nil
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func matchesNavigation(e *page.EventLifecycleEvent, frameID cdp.FrameID, loaderID cdp.LoaderID) bool {
	if e.FrameID != frameID {
		return false
	}
	// same-document navigations have no loader.
	return loaderID == "" || e.LoaderID == loaderID
}

func outerHTML(html *string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		rootNode, err := dom.GetDocument().Do(ctx)
		if err != nil {
			return err
		}
		*html, err = dom.GetOuterHTML().WithNodeID(rootNode.NodeID).Do(ctx)
		return err
	}
}

func captureMHTML(data *string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		var err error
		*data, err = page.CaptureSnapshot().WithFormat(page.CaptureSnapshotFormatMhtml).Do(ctx)
		if err != nil {
			return err
		}
		if *data == "" {
			return errors.New("empty mhtml snapshot")
		}
		return nil
	}
}
