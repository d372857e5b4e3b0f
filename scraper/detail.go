package scraper

import (
	"context"
	"fmt"
	"log"
	"time"

	"rera_crawler/browser"
	"rera_crawler/config"
	"rera_crawler/extract"
	"rera_crawler/models"
)

const contextPollStep = 100 * time.Millisecond

// RowResult is what processing one listing row produced. Outcome covers
// opening and extracting; Release covers the return to the listing, which
// runs on every path once the trigger was found.
type RowResult struct {
	Record  *models.ProjectRecord
	Outcome Outcome
	State   State
	Release Outcome
}

// DetailManager opens a row's detail view, extracts it and always returns
// the session to exactly one context: the listing.
type DetailManager struct {
	client   browser.Client
	nav      *Navigator
	reg      *config.RegistryConfig
	timeouts Timeouts
	now      func() time.Time
}

func NewDetailManager(nav *Navigator) *DetailManager {
	return &DetailManager{
		client:   nav.client,
		nav:      nav,
		reg:      nav.reg,
		timeouts: nav.timeouts,
		now:      time.Now,
	}
}

func (d *DetailManager) Process(ctx context.Context, term string, row ListingRow) (res RowResult) {
	sel := d.reg.Selectors
	original := d.client.Current()

	trigger, err := row.Row.Find(sel.DetailTrigger)
	if err != nil {
		return RowResult{Outcome: outcomeOf(err), State: StateListing, Release: OK()}
	}

	if err := d.nav.click(trigger); err != nil {
		res.Outcome = outcomeOf(err)
		res.State = StateListing
		res.Release = d.release(ctx, original, false)
		return res
	}
	d.nav.enter(StateDetailOpen)

	defer func() {
		if p := recover(); p != nil {
			d.release(ctx, original, true)
			panic(p)
		}
	}()

	res.Record, res.Outcome, res.State = d.extract(ctx, term, row, original)
	res.Release = d.release(ctx, original, true)
	return res
}

func (d *DetailManager) extract(ctx context.Context, term string, row ListingRow, original string) (*models.ProjectRecord, Outcome, State) {
	sel := d.reg.Selectors

	opened, err := d.awaitNewContext(ctx, original)
	if err != nil {
		return nil, outcomeOf(err), StateDetailOpen
	}
	if opened == "" {
		log.Printf("No new tab for %s, reading detail in place", row.Summary.RegNo)
	}

	if err := d.nav.waitFor(ctx, sel.DetailTab); err != nil {
		return nil, outcomeOf(err), StateDetailOpen
	}
	tab, err := d.client.Find(sel.DetailTab)
	if err != nil {
		return nil, outcomeOf(err), StateDetailOpen
	}
	if err := d.nav.click(tab); err != nil {
		return nil, outcomeOf(err), StateDetailOpen
	}
	if err := d.client.WaitFor(ctx, sel.DetailReady, d.timeouts.Inner); err != nil {
		return nil, outcomeOf(err), StateDetailOpen
	}

	d.nav.enter(StateExtracting)
	html, err := d.client.Content()
	if err != nil {
		return nil, outcomeOf(err), StateExtracting
	}
	detail, err := extract.ParseHTML(html, d.reg.Detail)
	if err != nil {
		return nil, Recoverable(err), StateExtracting
	}
	return Assemble(term, row.Summary, detail, d.now()), OK(), StateExtracting
}

// awaitNewContext polls for a context other than original and switches to
// it. An empty handle means the detail view replaced the listing in place.
func (d *DetailManager) awaitNewContext(ctx context.Context, original string) (string, error) {
	deadline := time.Now().Add(d.timeouts.ContextPoll)
	step := min(contextPollStep, d.timeouts.ContextPoll)
	for {
		handles, err := d.client.Contexts()
		if err != nil {
			return "", err
		}
		for _, h := range handles {
			if h != original {
				if err := d.client.SwitchTo(h); err != nil {
					return "", err
				}
				return h, nil
			}
		}
		if time.Now().After(deadline) {
			return "", nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(step):
		}
	}
}

// release closes every context except original, or navigates back when the
// detail replaced the listing, then checks that exactly one context is left.
// Failing that check is fatal: the session no longer matches what the rest
// of the run assumes.
func (d *DetailManager) release(ctx context.Context, original string, navigated bool) Outcome {
	if _, err := d.client.DismissPrompt(); err != nil && browser.IsFatal(err) {
		return Fatal(err)
	}

	handles, err := d.client.Contexts()
	if err != nil {
		return Fatal(browser.NewError(browser.KindSessionFatal, "release", "", err))
	}
	closed := 0
	for _, h := range handles {
		if h == original {
			continue
		}
		if err := d.nav.withPrompt(func() error { return d.client.CloseContext(h) }); err != nil {
			if browser.IsFatal(err) {
				return Fatal(err)
			}
			log.Printf("Closing context %s failed: %v", h, err)
			continue
		}
		closed++
	}

	if err := d.client.SwitchTo(original); err != nil {
		return Fatal(browser.NewError(browser.KindSessionFatal, "release", "", err))
	}
	if closed == 0 && navigated {
		if err := d.nav.withPrompt(func() error { return d.client.Back(ctx) }); err != nil {
			if browser.IsFatal(err) {
				return Fatal(err)
			}
			log.Printf("Navigating back failed: %v", err)
		}
	}

	handles, err = d.client.Contexts()
	if err != nil {
		return Fatal(browser.NewError(browser.KindSessionFatal, "release", "", err))
	}
	if len(handles) != 1 || handles[0] != original || d.client.Current() != original {
		return Fatal(browser.NewError(browser.KindSessionFatal, "release", "",
			fmt.Errorf("%d contexts open after row, want only %s", len(handles), original)))
	}

	if err := d.nav.waitFor(ctx, d.reg.Selectors.ListingTable); err != nil {
		return outcomeOf(fmt.Errorf("listing after detail: %w", err))
	}
	d.nav.enter(StateReturned)
	return OK()
}
