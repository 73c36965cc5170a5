// Package auth drives the Keycloak SSO sign-in flow with a headless browser,
// exchanging a one-time passcode from the local TOTP provider and persisting
// the resulting session artifacts.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/lukmanhidayah/siasn-sync/pkg/session"
	"github.com/lukmanhidayah/siasn-sync/pkg/totp"
	"github.com/lukmanhidayah/siasn-sync/pkg/tracing"
)

const (
	otpSelector       = "#otp"
	loginBtnSelector  = "#kc-login"
	otpTileSelector   = ".pf-c-tile__title"
	otpPageURLMarker  = "login-actions/authenticate"
	otpSubmitAttempts = 3
)

// Config holds sign-in parameters.
type Config struct {
	SSOURL           string
	RedirectURL      string
	Username         string
	Password         string
	UsernameSelector string
	PasswordSelector string
	LoginSelector    string
	WaitTimeout      time.Duration
	Headless         bool
	ScreenshotDir    string
}

// DefaultConfig returns the portal's selectors and a conservative wait.
func DefaultConfig() Config {
	return Config{
		UsernameSelector: "#username",
		PasswordSelector: "#password",
		LoginSelector:    loginBtnSelector,
		WaitTimeout:      30 * time.Second,
		Headless:         true,
	}
}

// Authenticator signs in through the browser and refreshes session state.
type Authenticator struct {
	cfg    Config
	store  *session.Store
	totp   *totp.Client
	logger ectologger.Logger
}

// New creates an Authenticator.
func New(cfg Config, store *session.Store, totpClient *totp.Client, logger ectologger.Logger) *Authenticator {
	if cfg.UsernameSelector == "" {
		cfg.UsernameSelector = DefaultConfig().UsernameSelector
	}
	if cfg.PasswordSelector == "" {
		cfg.PasswordSelector = DefaultConfig().PasswordSelector
	}
	if cfg.LoginSelector == "" {
		cfg.LoginSelector = loginBtnSelector
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = DefaultConfig().WaitTimeout
	}
	return &Authenticator{cfg: cfg, store: store, totp: totpClient, logger: logger}
}

// Login establishes an authenticated session. Persisted cookies and
// localStorage are restored first; if they still satisfy the redirect check
// the interactive flow is skipped entirely. On terminal failure a screenshot
// is written for diagnostics.
func (a *Authenticator) Login(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "auth.Authenticator.Login")
	defer span.End()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", a.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.WindowSize(1366, 768),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	if err := a.login(browserCtx); err != nil {
		a.captureScreenshot(browserCtx)
		return err
	}
	return nil
}

func (a *Authenticator) login(ctx context.Context) error {
	if err := chromedp.Run(ctx, chromedp.Navigate(a.cfg.SSOURL)); err != nil {
		return fmt.Errorf("failed to open sso page: %w", err)
	}

	if err := a.restoreSession(ctx); err != nil {
		a.logger.WithContext(ctx).WithError(err).Warn("failed to restore persisted session, continuing with fresh login")
	}

	// reload so restored cookies and storage take effect
	if err := chromedp.Run(ctx, chromedp.Navigate(a.cfg.SSOURL)); err != nil {
		return fmt.Errorf("failed to reload sso page: %w", err)
	}

	if a.waitForRedirect(ctx, 5*time.Second) == nil {
		a.logger.WithContext(ctx).Info("already signed in via persisted session")
		return a.snapshotSession(ctx)
	}

	err := chromedp.Run(ctx,
		chromedp.WaitVisible(a.cfg.UsernameSelector, chromedp.ByQuery),
		chromedp.SendKeys(a.cfg.UsernameSelector, a.cfg.Username, chromedp.ByQuery),
		chromedp.SendKeys(a.cfg.PasswordSelector, a.cfg.Password, chromedp.ByQuery),
		chromedp.Click(a.cfg.LoginSelector, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("failed to submit credentials: %w", err)
	}

	needsOTP, err := a.waitForRedirectOrOTP(ctx)
	if err != nil {
		return err
	}

	if needsOTP {
		if err := a.submitOTP(ctx); err != nil {
			return err
		}
	}

	a.logger.WithContext(ctx).Info("sso login successful")
	return a.snapshotSession(ctx)
}

func (a *Authenticator) submitOTP(ctx context.Context) error {
	// the provider may also report which credential tile to pick when the
	// account has multiple OTP devices registered
	if code, err := a.totp.Fetch(ctx); err != nil {
		a.logger.WithContext(ctx).WithError(err).Warn("failed to fetch totp for device selection")
	} else if code.Account != "" {
		a.selectCredentialTile(ctx, code.Account)
	}

	var lastErr error
	for attempt := 1; attempt <= otpSubmitAttempts; attempt++ {
		code, err := a.totp.Fetch(ctx)
		if err != nil {
			lastErr = err
			a.logger.WithContext(ctx).WithError(err).Warnf("totp fetch failed (attempt %d)", attempt)
			time.Sleep(time.Second)
			continue
		}

		err = chromedp.Run(ctx,
			chromedp.WaitVisible(otpSelector, chromedp.ByQuery),
			chromedp.SetValue(otpSelector, "", chromedp.ByQuery),
			chromedp.SendKeys(otpSelector, code.TOTP, chromedp.ByQuery),
			chromedp.Sleep(2*time.Second),
			chromedp.Click(loginBtnSelector, chromedp.ByQuery),
		)
		if err == nil {
			err = a.waitForRedirect(ctx, a.cfg.WaitTimeout)
		}
		if err == nil {
			return nil
		}

		lastErr = err
		a.logger.WithContext(ctx).WithError(err).Warnf("otp submit failed (attempt %d)", attempt)
		time.Sleep(time.Second)
	}

	return fmt.Errorf("otp submission failed after %d attempts: %w", otpSubmitAttempts, lastErr)
}

func (a *Authenticator) selectCredentialTile(ctx context.Context, account string) {
	js := fmt.Sprintf(`(() => {
		const tiles = document.querySelectorAll(%q);
		for (const t of tiles) {
			if (t.textContent && t.textContent.trim() === %q) {
				t.click();
				return true;
			}
		}
		return false;
	})()`, otpTileSelector, strings.TrimSpace(account))

	var clicked bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(js, &clicked)); err != nil {
		a.logger.WithContext(ctx).WithError(err).Warn("failed to evaluate credential tiles")
		return
	}
	if clicked {
		chromedp.Run(ctx, chromedp.Sleep(2*time.Second))
	}
}

// waitForRedirectOrOTP polls until the browser either lands on the redirect
// URL (no OTP required) or shows the OTP challenge.
func (a *Authenticator) waitForRedirectOrOTP(ctx context.Context) (bool, error) {
	deadline := time.Now().Add(a.cfg.WaitTimeout)
	for time.Now().Before(deadline) {
		var location string
		var hasOTP bool
		err := chromedp.Run(ctx,
			chromedp.Location(&location),
			chromedp.Evaluate(`document.querySelector('`+otpSelector+`') !== null`, &hasOTP),
		)
		if err != nil {
			return false, fmt.Errorf("failed to inspect login state: %w", err)
		}
		if strings.Contains(location, a.cfg.RedirectURL) {
			return false, nil
		}
		if hasOTP && strings.Contains(location, otpPageURLMarker) {
			return true, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return false, fmt.Errorf("timed out waiting for redirect or otp challenge")
}

func (a *Authenticator) waitForRedirect(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		var location string
		if err := chromedp.Run(ctx, chromedp.Location(&location)); err != nil {
			return fmt.Errorf("failed to read location: %w", err)
		}
		if strings.Contains(location, a.cfg.RedirectURL) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return fmt.Errorf("timed out waiting for redirect to %s", a.cfg.RedirectURL)
}

func (a *Authenticator) restoreSession(ctx context.Context) error {
	cookies, err := a.store.LoadCookies()
	if err != nil {
		return err
	}
	items, err := a.store.LoadLocalStorage()
	if err != nil {
		return err
	}
	if len(cookies) == 0 && len(items) == 0 {
		return nil
	}

	return chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			param := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithHTTPOnly(c.HTTPOnly).
				WithSecure(c.Secure)
			if c.Expires > 0 {
				expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
				param = param.WithExpires(&expires)
			}
			if err := param.Do(ctx); err != nil {
				a.logger.WithContext(ctx).WithError(err).Warnf("failed to restore cookie %s", c.Name)
			}
		}

		if len(items) > 0 {
			encoded, err := json.Marshal(items)
			if err != nil {
				return err
			}
			js := fmt.Sprintf(`(() => {
				const items = %s;
				for (const [k, v] of Object.entries(items)) {
					window.localStorage.setItem(k, v === null ? "" : v);
				}
				return true;
			})()`, encoded)
			var ok bool
			return chromedp.Evaluate(js, &ok).Do(ctx)
		}
		return nil
	}))
}

func (a *Authenticator) snapshotSession(ctx context.Context) error {
	var rawCookies []*network.Cookie
	var items map[string]string

	err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			rawCookies, err = network.GetCookies().Do(ctx)
			return err
		}),
		chromedp.Evaluate(`(() => {
			const out = {};
			for (let i = 0; i < window.localStorage.length; i++) {
				const k = window.localStorage.key(i);
				out[k] = window.localStorage.getItem(k);
			}
			return out;
		})()`, &items),
	)
	if err != nil {
		return fmt.Errorf("failed to snapshot session: %w", err)
	}

	cookies := make([]session.Cookie, 0, len(rawCookies))
	for _, c := range rawCookies {
		cookies = append(cookies, session.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		})
	}

	if err := a.store.SaveCookies(cookies); err != nil {
		return err
	}
	if err := a.store.SaveLocalStorage(items); err != nil {
		return err
	}

	a.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"cookies":      len(cookies),
		"storage_keys": len(items),
	}).Info("persisted session artifacts")
	return nil
}

func (a *Authenticator) captureScreenshot(ctx context.Context) {
	if a.cfg.ScreenshotDir == "" {
		return
	}
	var buf []byte
	if err := chromedp.Run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		a.logger.WithError(err).Warn("failed to capture failure screenshot")
		return
	}
	if err := os.MkdirAll(a.cfg.ScreenshotDir, 0o755); err != nil {
		a.logger.WithError(err).Warn("failed to create screenshot directory")
		return
	}
	path := filepath.Join(a.cfg.ScreenshotDir, "login_error.png")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		a.logger.WithError(err).Warn("failed to write failure screenshot")
		return
	}
	a.logger.Infof("wrote login failure screenshot to %s", path)
}
