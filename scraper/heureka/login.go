package heureka

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/go-resty/resty/v2"

	"heureka-stats/locale"
	"heureka-stats/models"
	"heureka-stats/session"
	"heureka-stats/utils"
)

// LoginOptions configures BrowserLogin.
type LoginOptions struct {
	ChromeBin string
	Headless  bool

	MaxAttempts int
	BaseDelay   time.Duration

	// StepTimeout bounds every browser wait except the consent banner.
	StepTimeout time.Duration
	// ConsentTimeout bounds the best-effort wait for the cookie banner.
	ConsentTimeout time.Duration

	// ArtifactsDir receives a screenshot when every attempt failed.
	ArtifactsDir string
	RunID        string
}

// BrowserLogin logs in through a headless Chrome and installs the resulting
// cookies on the shared HTTP client.
type BrowserLogin struct {
	loc     *locale.Locale
	creds   models.Credentials
	client  *resty.Client
	opts    LoginOptions
	retry   *utils.RetryPolicy
	logger  *utils.Logger
	metrics *utils.Metrics

	// run is one pass of the login flow; attempt unless replaced in tests.
	run func(context.Context) (session.Session, error)

	lastScreenshot []byte
}

// NewBrowserLogin creates a BrowserLogin for one country site.
func NewBrowserLogin(loc *locale.Locale, creds models.Credentials, client *resty.Client,
	opts LoginOptions, logger *utils.Logger, metrics *utils.Metrics) *BrowserLogin {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = 20 * time.Second
	}
	if opts.ConsentTimeout <= 0 {
		opts.ConsentTimeout = 5 * time.Second
	}
	b := &BrowserLogin{
		loc:    loc,
		creds:  creds,
		client: client,
		opts:   opts,
		retry: &utils.RetryPolicy{
			MaxAttempts: opts.MaxAttempts,
			BaseDelay:   opts.BaseDelay,
			Retryable:   func(err error) bool { return errors.Is(err, ErrLoginFailed) },
			Logger:      logger,
		},
		logger:  logger,
		metrics: metrics,
	}
	b.run = b.attempt
	return b
}

// Authenticate runs the whole login flow, retrying it from scratch with a
// new browser on every failure. When all attempts fail the last screenshot
// is saved and the error wraps ErrLoginExhausted.
func (b *BrowserLogin) Authenticate(ctx context.Context) error {
	if b.loc == nil || !locale.Supported(b.loc.Code) {
		return locale.ErrUnsupportedLocale
	}

	b.lastScreenshot = nil
	err := b.retry.Do(ctx, "login", func(attempt int) error {
		b.logger.Info("[login] %s: attempt %d/%d", b.loc.Code, attempt, b.opts.MaxAttempts)

		s, err := b.run(ctx)
		if err == nil {
			if err = session.Install(s, b.client); err != nil {
				err = &LoginError{Step: "install session", Err: err}
			}
		}
		if err != nil {
			b.metrics.IncLogin("failure")
			return err
		}

		b.metrics.IncLogin("success")
		b.logger.Info("[login] %s: logged in, %d cookies installed", b.loc.Code, len(s.Cookies))
		return nil
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return err
	}

	b.logger.Error("[login] giving up: %v", err)
	if path, saveErr := b.saveScreenshot(); saveErr != nil {
		b.logger.Warn("[login] could not save screenshot: %v", saveErr)
	} else if path != "" {
		b.logger.Info("[login] screenshot of the failed login saved to %s", path)
	}
	return fmt.Errorf("%w: %w", ErrLoginExhausted, err)
}

// attempt is one pass of the browser flow. The browser is closed on return.
func (b *BrowserLogin) attempt(ctx context.Context) (sess session.Session, err error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent(userAgent),
	)
	if bin := findChromeBinary(b.opts.ChromeBin); bin != "" {
		opts = append(opts, chromedp.ExecPath(bin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	idle := make(chan struct{}, 1)
	chromedp.ListenTarget(browserCtx, func(ev interface{}) {
		if e, ok := ev.(*page.EventLifecycleEvent); ok && e.Name == "networkIdle" {
			select {
			case idle <- struct{}{}:
			default:
			}
		}
	})

	// The first Run starts the browser; it must not carry a step timeout or
	// the browser would be torn down when that step ends. A timer bounds the
	// launch instead.
	if err := runWithin(b.opts.StepTimeout, cancelBrowser, func() error {
		return chromedp.Run(browserCtx, page.SetLifecycleEventsEnabled(true))
	}); err != nil {
		return sess, &LoginError{Step: "start browser", Err: err}
	}

	defer func() {
		if err != nil {
			b.captureScreenshot(browserCtx)
		}
	}()

	if err := b.step(browserCtx, "open start page", b.opts.StepTimeout,
		drain(idle),
		chromedp.Navigate(b.loc.BaseURL),
		waitNetworkIdle(idle),
	); err != nil {
		return sess, err
	}

	if err := b.step(browserCtx, "dismiss consent", b.opts.ConsentTimeout,
		chromedp.Click(byText("button", b.loc.ConsentLabel), chromedp.BySearch),
	); err != nil {
		b.logger.Debug("[login] no cookie consent banner: %v", err)
	}

	if err := b.step(browserCtx, "open administration", b.opts.StepTimeout,
		chromedp.Evaluate(`document.querySelectorAll('a[target]').forEach(a => a.removeAttribute('target'))`, nil),
		chromedp.Click(byText("a", b.loc.AdminLinkLabel), chromedp.BySearch),
	); err != nil {
		return sess, err
	}

	submit := byText("button", b.loc.SubmitLabel)
	if err := b.step(browserCtx, "wait for login form", b.opts.StepTimeout,
		chromedp.WaitVisible(submit, chromedp.BySearch),
	); err != nil {
		return sess, err
	}

	if err := b.step(browserCtx, "submit credentials", b.opts.StepTimeout,
		chromedp.SendKeys(`input[type="email"], input[name="email"]`, b.creds.Email, chromedp.ByQuery),
		chromedp.SendKeys(`input[type="password"]`, b.creds.Password, chromedp.ByQuery),
		drain(idle),
		chromedp.Click(submit, chromedp.BySearch),
		waitNetworkIdle(idle),
	); err != nil {
		return sess, err
	}

	var cookies []*network.Cookie
	if err := b.step(browserCtx, "read cookies", b.opts.StepTimeout,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = storage.GetCookies().Do(ctx)
			return err
		}),
	); err != nil {
		return sess, err
	}

	sess = sessionFromCookies(cookies)
	if len(sess.Cookies) == 0 {
		return sess, &LoginError{Step: "read cookies", Err: session.ErrNoCookies}
	}
	return sess, nil
}

// runWithin calls fn and fires cancel if fn has not returned after timeout.
func runWithin(timeout time.Duration, cancel context.CancelFunc, fn func() error) error {
	timer := time.AfterFunc(timeout, cancel)
	defer timer.Stop()
	return fn()
}

// step runs actions under their own timeout and tags failures with name.
func (b *BrowserLogin) step(ctx context.Context, name string, timeout time.Duration, actions ...chromedp.Action) error {
	b.logger.Debug("[login] %s", name)

	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := chromedp.Run(stepCtx, actions...); err != nil {
		return &LoginError{Step: name, Err: err}
	}
	return nil
}

func (b *BrowserLogin) captureScreenshot(ctx context.Context) {
	shotCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(shotCtx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		b.logger.Debug("[login] screenshot failed: %v", err)
		return
	}
	b.lastScreenshot = buf
}

// saveScreenshot writes the last captured screenshot to the artifacts
// directory and returns its path. It is a no-op without a screenshot or
// without a configured directory.
func (b *BrowserLogin) saveScreenshot() (string, error) {
	if len(b.lastScreenshot) == 0 || b.opts.ArtifactsDir == "" {
		return "", nil
	}
	if err := os.MkdirAll(b.opts.ArtifactsDir, 0755); err != nil {
		return "", fmt.Errorf("create artifacts dir: %w", err)
	}

	name := "login-failure.png"
	if b.opts.RunID != "" {
		name = "login-failure-" + b.opts.RunID + ".png"
	}
	path := filepath.Join(b.opts.ArtifactsDir, name)
	if err := os.WriteFile(path, b.lastScreenshot, 0644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	return path, nil
}

func sessionFromCookies(cookies []*network.Cookie) session.Session {
	s := session.Session{Cookies: make([]session.Cookie, 0, len(cookies))}
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		s.Cookies = append(s.Cookies, session.Cookie{Name: c.Name, Value: c.Value, Domain: c.Domain})
	}
	return s
}

// byText builds an XPath selecting the first tag element whose visible text
// contains label.
func byText(tag, label string) string {
	return fmt.Sprintf(`//%s[contains(normalize-space(.), %q)]`, tag, label)
}

func drain(idle chan struct{}) chromedp.ActionFunc {
	return func(context.Context) error {
		select {
		case <-idle:
		default:
		}
		return nil
	}
}

// waitNetworkIdle blocks until Chrome reports the page's network as quiet.
func waitNetworkIdle(idle <-chan struct{}) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		select {
		case <-idle:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("waiting for network idle: %w", ctx.Err())
		}
	}
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
