package render

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// DefaultTimeout bounds one article's fetch and print.
const DefaultTimeout = 2 * time.Minute

// PDFConfig configures a PDFRenderer.
type PDFConfig struct {
	Rules   Rules
	Timeout time.Duration
	// ExecPath overrides the Chrome binary chromedp would find on PATH.
	ExecPath string
	// Headful shows the browser window; useful when debugging clean-up rules.
	Headful bool
	Logger  *slog.Logger
}

// PDFRenderer prints articles with a headless Chrome. One browser is started
// lazily on the first Render and reused until it dies; each article gets its
// own tab, and tabs are used one at a time.
type PDFRenderer struct {
	src ArticleSource
	cfg PDFConfig

	// start launches a browser; replaced in tests.
	start func() (ctx context.Context, cancelBrowser, cancelAlloc context.CancelFunc, err error)

	mu            sync.Mutex
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
}

// NewPDFRenderer returns a renderer that reads article bodies from src.
func NewPDFRenderer(src ArticleSource, cfg PDFConfig) *PDFRenderer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := &PDFRenderer{src: src, cfg: cfg}
	r.start = r.startChrome
	return r
}

// Render implements Renderer.
func (r *PDFRenderer) Render(ctx context.Context, number, destDir string) (string, error) {
	path, err := Path(destDir, number)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	art, err := r.src.Get(ctx, number)
	if err != nil {
		return "", fmt.Errorf("fetch article %s: %w", number, err)
	}
	body, err := Clean(art.Text, r.cfg.Rules)
	if err != nil {
		return "", fmt.Errorf("clean article %s: %w", number, err)
	}
	html, err := Page(art, body)
	if err != nil {
		return "", err
	}

	pdf, err := r.print(ctx, html)
	if err != nil {
		return "", fmt.Errorf("print article %s: %w", number, err)
	}
	if err := writeAtomic(path, pdf); err != nil {
		return "", fmt.Errorf("write %s: %w", FileName(number), err)
	}
	r.cfg.Logger.DebugContext(ctx, "article printed", "number", number, "bytes", len(pdf))
	return path, nil
}

func (r *PDFRenderer) print(ctx context.Context, html string) ([]byte, error) {
	browserCtx, err := r.browser()
	if err != nil {
		return nil, err
	}
	tabCtx, closeTab := chromedp.NewContext(browserCtx)
	defer closeTab()

	// The tab lives under the browser context; stop it when the caller's
	// context ends.
	stop := context.AfterFunc(ctx, closeTab)
	defer stop()

	var pdf []byte
	err = chromedp.Run(tabCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPreferCSSPageSize(true).
				Do(ctx)
			pdf = data
			return err
		}),
	)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return pdf, err
}

// browser returns the running browser, starting a new one when there is none
// or the previous one has exited.
func (r *PDFRenderer) browser() (context.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browserCtx != nil {
		if r.browserCtx.Err() == nil {
			return r.browserCtx, nil
		}
		r.cfg.Logger.Warn("browser exited, starting a new one", "error", context.Cause(r.browserCtx))
		r.stopLocked()
	}

	browserCtx, cancelBrowser, cancelAlloc, err := r.start()
	if err != nil {
		return nil, err
	}
	r.browserCtx, r.cancelBrowser, r.cancelAlloc = browserCtx, cancelBrowser, cancelAlloc
	return browserCtx, nil
}

func (r *PDFRenderer) startChrome() (context.Context, context.CancelFunc, context.CancelFunc, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !r.cfg.Headful),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	if r.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.cfg.ExecPath))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	// Start the browser now so a missing Chrome fails the first article
	// with a clear error.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, nil, nil, fmt.Errorf("start browser: %w", err)
	}
	return browserCtx, cancelBrowser, cancelAlloc, nil
}

func (r *PDFRenderer) stopLocked() {
	if r.cancelBrowser != nil {
		r.cancelBrowser()
		r.cancelAlloc()
	}
	r.browserCtx, r.cancelBrowser, r.cancelAlloc = nil, nil, nil
}

// Close shuts the browser down. Safe to call when nothing was rendered.
func (r *PDFRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
	return nil
}
