package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/jonathan/jobhunt-pipeline/internal/workflow"
)

// captchaProbe detects the common captcha widgets without waiting on them.
const captchaProbe = `(function() {
	return document.querySelector('iframe[src*="recaptcha"]') !== null ||
		document.querySelector('iframe[src*="hcaptcha"]') !== null ||
		document.querySelector('.g-recaptcha') !== null ||
		document.querySelector('.h-captcha') !== null;
})()`

// session owns one headless browser for one workflow run. Sessions are never
// shared between runs; cookies and page state stay isolated.
type session struct {
	runID       string
	platform    Platform
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	filled      map[string]string
}

func newSession(runID string, verbose bool) *session {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	var ctx context.Context
	var cancel context.CancelFunc
	if verbose {
		ctx, cancel = chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
			fmt.Printf("[automation] "+format+"\n", args...)
		}))
	} else {
		ctx, cancel = chromedp.NewContext(allocCtx)
	}

	return &session{
		runID:       runID,
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		filled:      map[string]string{},
	}
}

func (s *session) close() {
	s.cancel()
	s.allocCancel()
}

// run executes chromedp actions against the session browser, honoring the
// caller's deadline.
func (s *session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx := s.ctx
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(s.ctx, deadline)
		defer cancel()
	}
	return chromedp.Run(runCtx, actions...)
}

func (s *session) navigate(ctx context.Context, url string) error {
	return s.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(2*time.Second), // let client-side rendering settle
	)
}

// present reports whether any element matches the selector right now.
func (s *session) present(ctx context.Context, selector string) (bool, error) {
	var found bool
	probe := fmt.Sprintf("document.querySelector(%q) !== null", selector)
	if err := s.run(ctx, chromedp.Evaluate(probe, &found)); err != nil {
		return false, err
	}
	return found, nil
}

func (s *session) click(ctx context.Context, selector string) error {
	return s.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
}

// fill types value into the first element matching selector and records it
// for the checkpoint.
func (s *session) fill(ctx context.Context, selector, value string) error {
	if err := s.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	); err != nil {
		return err
	}
	s.filled[selector] = value
	return nil
}

func (s *session) location(ctx context.Context) (string, error) {
	var url string
	if err := s.run(ctx, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

func (s *session) captchaPresent(ctx context.Context) (bool, error) {
	var found bool
	if err := s.run(ctx, chromedp.Evaluate(captchaProbe, &found)); err != nil {
		return false, err
	}
	return found, nil
}

// checkpoint snapshots cookies, page location and the fields filled so far,
// so a human can take over and the run can resume.
func (s *session) checkpoint(ctx context.Context) *workflow.Checkpoint {
	cp := &workflow.Checkpoint{
		FilledFields: map[string]string{},
		TakenAt:      time.Now().UTC(),
	}
	for k, v := range s.filled {
		cp.FilledFields[k] = v
	}
	if url, err := s.location(ctx); err == nil {
		cp.PageURL = url
	}
	if cookies, err := s.cookies(ctx); err == nil {
		cp.Cookies = cookies
	}
	return cp
}

// cookies snapshots the session's cookies over CDP. document.cookie would
// miss HttpOnly cookies, which is where platforms keep the auth session.
func (s *session) cookies(ctx context.Context) (map[string]string, error) {
	out := map[string]string{}
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, c := range cookies {
			out[c.Name] = c.Value
		}
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func setFileInput(selector, path string) chromedp.Action {
	return chromedp.SetUploadFiles(selector, []string{path}, chromedp.ByQuery)
}
