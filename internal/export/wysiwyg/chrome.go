package wysiwyg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"resucheck/internal/export"
	"resucheck/internal/export/layout"
	"resucheck/internal/shared/lazy"
)

const captureStyle = `* { transition: none !important; animation: none !important; }`

// ChromeCapturer snapshots elements with a headless Chrome started on first use.
type ChromeCapturer struct {
	execPath string
	timeout  time.Duration
	browser  *lazy.Value[context.Context]

	mu      sync.Mutex
	cancels []context.CancelFunc
}

// NewChromeCapturer returns a capturer using the Chrome at execPath, or the
// one chromedp finds when execPath is empty.
func NewChromeCapturer(execPath string, timeout time.Duration) *ChromeCapturer {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := &ChromeCapturer{execPath: strings.TrimSpace(execPath), timeout: timeout}
	c.browser = lazy.New(c.start)
	return c
}

func (c *ChromeCapturer) start(ctx context.Context) (context.Context, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if c.execPath != "" {
		opts = append(opts, chromedp.ExecPath(c.execPath))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	startCtx, cancelStart := context.WithTimeout(ctx, c.timeout)
	defer cancelStart()
	// Run with no actions launches the browser.
	errc := make(chan error, 1)
	go func() { errc <- chromedp.Run(browserCtx) }()
	select {
	case err := <-errc:
		if err != nil {
			cancelBrowser()
			cancelAlloc()
			return nil, fmt.Errorf("start chrome: %w", err)
		}
	case <-startCtx.Done():
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("start chrome: %w", startCtx.Err())
	}

	c.mu.Lock()
	c.cancels = append(c.cancels, cancelBrowser, cancelAlloc)
	c.mu.Unlock()
	return browserCtx, nil
}

// Close shuts the browser down if it was started.
func (c *ChromeCapturer) Close() {
	c.mu.Lock()
	cancels := c.cancels
	c.cancels = nil
	c.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

// Capture opens target in a new tab and screenshots its selector.
func (c *ChromeCapturer) Capture(ctx context.Context, target export.Target, opts layout.CaptureOptions) (image.Image, error) {
	browserCtx, err := c.browser.Get(ctx)
	if err != nil {
		return nil, err
	}
	bg, err := opts.BackgroundColor()
	if err != nil {
		return nil, err
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, c.timeout)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	sel, err := json.Marshal(target.Selector)
	if err != nil {
		return nil, err
	}

	var present bool
	err = chromedp.Run(tabCtx,
		chromedp.Navigate(target.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(fmt.Sprintf(`(() => { const el = document.querySelector(%s); return !!el && el.isConnected; })()`, sel), &present),
	)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", target.URL, err)
	}
	if !present {
		return nil, ErrNotFound
	}

	if err := chromedp.Run(tabCtx, chromedp.Evaluate(injectStyleJS, nil)); err != nil {
		return nil, fmt.Errorf("disable animations: %w", err)
	}
	defer func() {
		_ = chromedp.Run(tabCtx, chromedp.Evaluate(removeStyleJS, nil))
	}()

	var shot []byte
	err = chromedp.Run(tabCtx,
		chromedp.Evaluate(fmt.Sprintf(waitImagesJS, sel), nil, awaitPromise),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetDefaultBackgroundColorOverride().
				WithColor(&cdp.RGBA{R: int64(bg.R), G: int64(bg.G), B: int64(bg.B), A: 1}).
				Do(ctx)
		}),
		chromedp.ScreenshotScale(target.Selector, opts.Scale, &shot, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(shot))
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return img, nil
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

var injectStyleJS = fmt.Sprintf(`(() => {
	const style = document.createElement('style');
	style.setAttribute('data-pdf-capture', '');
	style.textContent = %q;
	document.head.appendChild(style);
	return true;
})()`, captureStyle)

const removeStyleJS = `(() => {
	document.querySelectorAll('style[data-pdf-capture]').forEach((s) => s.remove());
	return true;
})()`

// waitImagesJS resolves once every image under the selector has loaded or
// failed. The selector is substituted as a JSON string.
const waitImagesJS = `(() => {
	const root = document.querySelector(%s);
	if (!root) return Promise.resolve(true);
	const imgs = Array.from(root.querySelectorAll('img'));
	return Promise.all(imgs.map((img) => img.complete ? true : new Promise((resolve) => {
		img.addEventListener('load', () => resolve(true), { once: true });
		img.addEventListener('error', () => resolve(true), { once: true });
	}))).then(() => true);
})()`
