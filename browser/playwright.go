package browser

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

const forceSetScript = `(el, value) => {
	el.removeAttribute('readonly');
	el.value = value;
	el.dispatchEvent(new Event('change', { bubbles: true }));
	el.dispatchEvent(new Event('input', { bubbles: true }));
}`

type PlaywrightOptions struct {
	Headless      bool
	ActionTimeout time.Duration
	// PromptSelectors are in-page overlay buttons closed by DismissPrompt
	// when no native dialog is pending.
	PromptSelectors []string
}

type PlaywrightLauncher struct {
	opts PlaywrightOptions
}

func NewPlaywrightLauncher(opts PlaywrightOptions) *PlaywrightLauncher {
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 10 * time.Second
	}
	return &PlaywrightLauncher{opts: opts}
}

func (l *PlaywrightLauncher) Launch(ctx context.Context) (Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, NewError(KindSessionFatal, "launch", "", fmt.Errorf("failed to start playwright: %w", err))
	}

	b, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(l.opts.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--disable-extensions",
			"--disable-infobars",
			"--no-sandbox",
		},
	})
	if err != nil {
		pw.Stop()
		return nil, NewError(KindSessionFatal, "launch", "", fmt.Errorf("failed to launch browser: %w", err))
	}

	bctx, err := b.NewContext()
	if err != nil {
		b.Close()
		pw.Stop()
		return nil, NewError(KindSessionFatal, "launch", "", fmt.Errorf("failed to create context: %w", err))
	}

	s := &Playwright{
		opts:    l.opts,
		pw:      pw,
		browser: b,
		context: bctx,
	}

	page, err := bctx.NewPage()
	if err != nil {
		s.Close()
		return nil, NewError(KindSessionFatal, "launch", "", fmt.Errorf("failed to create page: %w", err))
	}
	s.current = s.register(page)
	return s, nil
}

type tab struct {
	handle string
	page   playwright.Page
}

// Playwright is a Client backed by one chromium browser context. Every page
// of the context is an execution context.
type Playwright struct {
	opts    PlaywrightOptions
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext

	mu      sync.Mutex
	tabs    []tab
	nextID  int
	current string
	dialogs map[string]playwright.Dialog
}

func (s *Playwright) register(page playwright.Page) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tabs {
		if t.page == page {
			return t.handle
		}
	}

	s.nextID++
	handle := fmt.Sprintf("tab-%d", s.nextID)
	s.tabs = append(s.tabs, tab{handle: handle, page: page})
	page.SetDefaultTimeout(float64(s.opts.ActionTimeout.Milliseconds()))
	page.OnDialog(func(d playwright.Dialog) {
		log.Printf("Dialog on %s: %s", handle, d.Message())
		s.mu.Lock()
		if s.dialogs == nil {
			s.dialogs = make(map[string]playwright.Dialog)
		}
		s.dialogs[handle] = d
		s.mu.Unlock()
	})
	return handle
}

func (s *Playwright) page() (playwright.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tabs {
		if t.handle == s.current {
			if t.page.IsClosed() {
				return nil, NewError(KindSessionFatal, "page", "", fmt.Errorf("current tab %s is closed", s.current))
			}
			return t.page, nil
		}
	}
	return nil, NewError(KindSessionFatal, "page", "", fmt.Errorf("no current tab"))
}

// blocked reports a native dialog pending on the current tab. While one is
// open the page does not respond and every call would end in a timeout.
func (s *Playwright) blocked(op, selector string) error {
	s.mu.Lock()
	d, ok := s.dialogs[s.current]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return NewError(KindUnexpectedPrompt, op, selector, fmt.Errorf("%s dialog open: %s", d.Type(), d.Message()))
}

// classify is Classify, except that a failure while a dialog is pending is
// reported as the prompt that caused it.
func (s *Playwright) classify(op, selector string, err error) error {
	if err == nil {
		return nil
	}
	if perr := s.blocked(op, selector); perr != nil {
		return perr
	}
	return Classify(op, selector, err)
}

func (s *Playwright) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.blocked("navigate", url); err != nil {
		return err
	}
	page, err := s.page()
	if err != nil {
		return err
	}
	_, err = page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(60000),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	return s.classify("navigate", url, err)
}

func (s *Playwright) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.blocked("reload", ""); err != nil {
		return err
	}
	page, err := s.page()
	if err != nil {
		return err
	}
	_, err = page.Reload(playwright.PageReloadOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	return s.classify("reload", "", err)
}

func (s *Playwright) Back(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.blocked("back", ""); err != nil {
		return err
	}
	page, err := s.page()
	if err != nil {
		return err
	}
	_, err = page.GoBack(playwright.PageGoBackOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	return s.classify("back", "", err)
}

func (s *Playwright) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.blocked("wait", selector); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	page, err := s.page()
	if err != nil {
		return err
	}
	err = page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	return s.classify("wait", selector, err)
}

func (s *Playwright) Find(selector string) (Element, error) {
	page, err := s.page()
	if err != nil {
		return nil, err
	}
	return s.first("find", page.Locator(selector), selector)
}

func (s *Playwright) FindAll(selector string) ([]Element, error) {
	page, err := s.page()
	if err != nil {
		return nil, err
	}
	return s.all(page.Locator(selector), selector)
}

func (s *Playwright) Content() (string, error) {
	page, err := s.page()
	if err != nil {
		return "", err
	}
	html, err := page.Content()
	return html, s.classify("content", "", err)
}

func (s *Playwright) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Contexts lists open tabs in opening order, registering popups the page
// opened since the last call.
func (s *Playwright) Contexts() ([]string, error) {
	for _, p := range s.context.Pages() {
		if !p.IsClosed() {
			s.register(p)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var handles []string
	open := s.tabs[:0]
	for _, t := range s.tabs {
		if t.page.IsClosed() {
			continue
		}
		open = append(open, t)
		handles = append(handles, t.handle)
	}
	s.tabs = open
	return handles, nil
}

func (s *Playwright) SwitchTo(handle string) error {
	s.mu.Lock()
	var target playwright.Page
	for _, t := range s.tabs {
		if t.handle == handle {
			target = t.page
			break
		}
	}
	if target == nil {
		s.mu.Unlock()
		return NotFound("switch", handle)
	}
	s.current = handle
	s.mu.Unlock()

	return s.classify("switch", handle, target.BringToFront())
}

func (s *Playwright) CloseContext(handle string) error {
	s.mu.Lock()
	var target playwright.Page
	for _, t := range s.tabs {
		if t.handle == handle {
			target = t.page
			break
		}
	}
	delete(s.dialogs, handle)
	s.mu.Unlock()

	if target == nil {
		return NotFound("close", handle)
	}
	if err := target.Close(); err != nil {
		return s.classify("close", handle, err)
	}
	_, err := s.Contexts()
	return err
}

// DismissPrompt dismisses a native dialog on the current tab, falling back to
// closing in-page overlays.
func (s *Playwright) DismissPrompt() (bool, error) {
	s.mu.Lock()
	d, ok := s.dialogs[s.current]
	delete(s.dialogs, s.current)
	s.mu.Unlock()

	if ok {
		if err := d.Dismiss(); err != nil {
			return false, Classify("dismiss", "", err)
		}
		log.Printf("Dismissed dialog: %s", d.Message())
		return true, nil
	}

	page, err := s.page()
	if err != nil {
		return false, err
	}
	for _, selector := range s.opts.PromptSelectors {
		btn := page.Locator(selector).First()
		if visible, _ := btn.IsVisible(); visible {
			log.Printf("Closing overlay: %s", selector)
			if err := btn.Click(); err != nil {
				return false, Classify("dismiss", selector, err)
			}
			return true, nil
		}
	}
	return false, nil
}

func (s *Playwright) Close() error {
	var errs []string
	if s.context != nil {
		if err := s.context.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if s.pw != nil {
		if err := s.pw.Stop(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close session: %s", strings.Join(errs, "; "))
	}
	return nil
}

type locatorElement struct {
	s        *Playwright
	loc      playwright.Locator
	selector string
}

func (s *Playwright) first(op string, loc playwright.Locator, selector string) (Element, error) {
	loc = loc.First()
	n, err := loc.Count()
	if err != nil {
		return nil, s.classify(op, selector, err)
	}
	if n == 0 {
		return nil, NotFound(op, selector)
	}
	return &locatorElement{s: s, loc: loc, selector: selector}, nil
}

func (s *Playwright) all(loc playwright.Locator, selector string) ([]Element, error) {
	n, err := loc.Count()
	if err != nil {
		return nil, s.classify("find_all", selector, err)
	}
	elems := make([]Element, 0, n)
	for i := 0; i < n; i++ {
		elems = append(elems, &locatorElement{s: s, loc: loc.Nth(i), selector: selector})
	}
	return elems, nil
}

func (e *locatorElement) Text() (string, error) {
	text, err := e.loc.InnerText()
	return text, e.s.classify("text", e.selector, err)
}

func (e *locatorElement) Attribute(name string) (string, error) {
	val, err := e.loc.GetAttribute(name)
	return val, e.s.classify("attribute", e.selector, err)
}

func (e *locatorElement) Editable() (bool, error) {
	ok, err := e.loc.IsEditable()
	return ok, e.s.classify("editable", e.selector, err)
}

func (e *locatorElement) Click() error {
	e.loc.ScrollIntoViewIfNeeded()
	return e.s.classify("click", e.selector, e.loc.Click())
}

func (e *locatorElement) ClickProgrammatic() error {
	_, err := e.loc.Evaluate(`el => { el.scrollIntoView(true); el.click(); }`, nil)
	return e.s.classify("js_click", e.selector, err)
}

func (e *locatorElement) Fill(value string) error {
	return e.s.classify("fill", e.selector, e.loc.Fill(value))
}

func (e *locatorElement) ForceSet(value string) error {
	_, err := e.loc.Evaluate(forceSetScript, value)
	return e.s.classify("force_set", e.selector, err)
}

func (e *locatorElement) Press(key string) error {
	return e.s.classify("press", e.selector, e.loc.Press(key))
}

func (e *locatorElement) Find(selector string) (Element, error) {
	return e.s.first("find", e.loc.Locator(selector), e.selector+" "+selector)
}

func (e *locatorElement) FindAll(selector string) ([]Element, error) {
	return e.s.all(e.loc.Locator(selector), e.selector+" "+selector)
}
