package browser

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"cardrender/internal/pkg/errors"
)

type ChromeOptions struct {
	ExecPath          string
	NoSandbox         bool
	DeviceScaleFactor float64
	// Idle is the pause after fonts are ready, for late layout and images.
	Idle time.Duration
}

func (o ChromeOptions) allocator() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if o.NoSandbox {
		opts = append(opts, chromedp.NoSandbox, chromedp.Flag("disable-setuid-sandbox", true))
	}
	if o.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(o.ExecPath))
	}
	return opts
}

// Isolated starts a fresh browser process for every session.
type Isolated struct {
	opt ChromeOptions
}

func NewIsolated(opt ChromeOptions) *Isolated {
	return &Isolated{opt: opt}
}

func (l *Isolated) Launch(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The browser outlives ctx deadlines; Close tears it down.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), l.opt.allocator()...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	// The first Run starts the process and opens the tab.
	if err := start(ctx, tabCtx, cancelAlloc); err != nil {
		cancelTab()
		cancelAlloc()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.WrapWithCode(err, errors.CodeBrowserLaunch, "browser.launch", "start chrome")
	}

	return &chromeSession{
		tabCtx: tabCtx,
		opt:    l.opt,
		close: func() error {
			err := chromedp.Cancel(tabCtx)
			cancelTab()
			cancelAlloc()
			return err
		},
	}, nil
}

// start runs the first action on tabCtx, calling abort if ctx ends before it
// completes. A session aborted this way reports ctx.Err().
func start(ctx, tabCtx context.Context, abort context.CancelFunc) error {
	stop := context.AfterFunc(ctx, abort)
	err := chromedp.Run(tabCtx)
	if !stop() {
		return ctx.Err()
	}
	return err
}

// Shared keeps one browser process and opens a tab per session.
type Shared struct {
	opt         ChromeOptions
	browserCtx  context.Context
	cancelAlloc context.CancelFunc
	cancel      context.CancelFunc
	closeOnce   sync.Once
}

// NewShared starts the browser immediately so launch failures surface at startup.
func NewShared(opt ChromeOptions) (*Shared, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opt.allocator()...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		cancelAlloc()
		return nil, errors.WrapWithCode(err, errors.CodeBrowserLaunch, "browser.shared", "start chrome")
	}
	return &Shared{
		opt:         opt,
		browserCtx:  browserCtx,
		cancelAlloc: cancelAlloc,
		cancel:      cancel,
	}, nil
}

func (l *Shared) Launch(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := l.browserCtx.Err(); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeBrowserLaunch, "browser.launch", "shared browser is closed")
	}

	tabCtx, cancelTab := chromedp.NewContext(l.browserCtx)
	if err := start(ctx, tabCtx, cancelTab); err != nil {
		cancelTab()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.WrapWithCode(err, errors.CodeBrowserLaunch, "browser.launch", "open tab")
	}

	return &chromeSession{
		tabCtx: tabCtx,
		opt:    l.opt,
		close: func() error {
			err := chromedp.Cancel(tabCtx)
			cancelTab()
			return err
		},
	}, nil
}

// Close stops the shared browser.
func (l *Shared) Close() error {
	var err error
	l.closeOnce.Do(func() {
		err = chromedp.Cancel(l.browserCtx)
		l.cancel()
		l.cancelAlloc()
	})
	return err
}

type chromeSession struct {
	tabCtx context.Context
	opt    ChromeOptions
	close  func() error
	once   sync.Once
	err    error
}

// Capture loads html as the document of a blank page and screenshots the viewport.
func (s *chromeSession) Capture(ctx context.Context, html string, width, height int) ([]byte, error) {
	runCtx, cancel := context.WithCancel(s.tabCtx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	scale := s.opt.DeviceScaleFactor
	if scale <= 0 {
		scale = 1
	}

	var (
		png        []byte
		ready      bool
		fontsReady bool
	)
	err := chromedp.Run(runCtx,
		chromedp.EmulateViewport(int64(width), int64(height), chromedp.EmulateScale(scale)),
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Poll(`document.readyState === "complete"`, &ready, chromedp.WithPollingInterval(50*time.Millisecond)),
		chromedp.Evaluate(`document.fonts.ready.then(() => true)`, &fontsReady,
			func(p *runtime.EvaluateParams) *runtime.EvaluateParams { return p.WithAwaitPromise(true) },
		),
		chromedp.Sleep(s.opt.Idle),
		chromedp.CaptureScreenshot(&png),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return png, nil
}

func (s *chromeSession) Close() error {
	s.once.Do(func() { s.err = s.close() })
	return s.err
}
