package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"rera_crawler/browser"
	"rera_crawler/config"
)

type Timeouts struct {
	Outer       time.Duration
	Inner       time.Duration
	ContextPoll time.Duration
}

func TimeoutsFrom(c config.CrawlConfig) Timeouts {
	return Timeouts{Outer: c.OuterTimeout, Inner: c.InnerTimeout, ContextPoll: c.ContextPoll}
}

// Navigator drives the listing page of one session: filter, search and the
// state bookkeeping shared with the detail manager.
type Navigator struct {
	client   browser.Client
	reg      *config.RegistryConfig
	timeouts Timeouts
	state    State
}

func NewNavigator(client browser.Client, reg *config.RegistryConfig, timeouts Timeouts) *Navigator {
	return &Navigator{client: client, reg: reg, timeouts: timeouts, state: StateInit}
}

func (n *Navigator) State() State { return n.state }

func (n *Navigator) enter(to State) {
	if !CanTransition(n.state, to) {
		log.Printf("Unexpected transition %s -> %s", n.state, to)
	}
	n.state = to
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// Open loads the registry page and applies the district filter.
func (n *Navigator) Open(ctx context.Context, district string) Outcome {
	if err := n.clearPrompt(); err != nil {
		return n.fail(outcomeOf(err))
	}
	n.state = StateInit
	if err := n.client.Navigate(ctx, n.reg.URL); err != nil {
		return n.fail(outcomeOf(err))
	}
	return n.ApplyFilter(ctx, district)
}

// ApplyFilter sets the district and submits. The input is read-only on the
// live site, so a rejected Fill falls back to ForceSet.
func (n *Navigator) ApplyFilter(ctx context.Context, district string) Outcome {
	sel := n.reg.Selectors
	if err := n.waitFor(ctx, sel.DistrictInput); err != nil {
		return n.fail(outcomeOf(err))
	}
	input, err := n.client.Find(sel.DistrictInput)
	if err != nil {
		return n.fail(outcomeOf(err))
	}
	if err := setValue(input, district); err != nil {
		return n.fail(outcomeOf(err))
	}

	submit, err := n.client.Find(sel.SubmitButton)
	if err != nil {
		return n.fail(outcomeOf(err))
	}
	if err := n.click(submit); err != nil {
		return n.fail(outcomeOf(err))
	}
	if err := n.waitFor(ctx, sel.ListingTable); err != nil {
		return n.fail(outcomeOf(err))
	}

	n.enter(StateFiltered)
	log.Printf("District filter set to %q", district)
	return OK()
}

// Reset returns a shared session to a freshly filtered listing between terms.
// The page is reloaded in place; a failed reload falls back to a full Open.
func (n *Navigator) Reset(ctx context.Context, district string) Outcome {
	if err := n.clearPrompt(); err != nil {
		return n.fail(outcomeOf(err))
	}
	n.state = StateInit
	if err := n.client.Reload(ctx); err != nil {
		if out := outcomeOf(err); out.IsFatal() {
			return n.fail(out)
		}
		log.Printf("Reload failed, reopening registry: %v", err)
		return n.Open(ctx, district)
	}
	return n.ApplyFilter(ctx, district)
}

// Search submits term to the live search box and waits for the listing.
func (n *Navigator) Search(ctx context.Context, term string) Outcome {
	sel := n.reg.Selectors
	if err := n.clearPrompt(); err != nil {
		return n.fail(outcomeOf(err))
	}
	if err := n.waitFor(ctx, sel.SearchBox); err != nil {
		return n.fail(outcomeOf(err))
	}
	box, err := n.client.Find(sel.SearchBox)
	if err != nil {
		return n.fail(outcomeOf(err))
	}
	if err := setValue(box, term); err != nil {
		return n.fail(outcomeOf(err))
	}
	if err := n.withPrompt(func() error { return box.Press("Enter") }); err != nil {
		return n.fail(outcomeOf(err))
	}
	if err := n.waitFor(ctx, sel.ListingTable); err != nil {
		return n.fail(outcomeOf(fmt.Errorf("results for %q: %w", term, err)))
	}

	n.enter(StateListing)
	return OK()
}

func (n *Navigator) fail(o Outcome) Outcome {
	if !o.IsOK() {
		n.state = StateFailed
	}
	return o
}

// click tries a real click and falls back to a scripted one when the target
// is covered.
func (n *Navigator) click(el browser.Element) error {
	return n.withPrompt(func() error {
		err := el.Click()
		if browser.KindOf(err) == browser.KindInteractionBlocked {
			log.Printf("Click intercepted, retrying from script: %v", err)
			err = el.ClickProgrammatic()
		}
		return err
	})
}

// waitFor waits for selector on the listing, getting a dialog that opened
// meanwhile out of the way.
func (n *Navigator) waitFor(ctx context.Context, selector string) error {
	return n.withPrompt(func() error {
		return n.client.WaitFor(ctx, selector, n.timeouts.Outer)
	})
}

// clearPrompt dismisses a dialog left over from earlier work. Only a fatal
// session error is returned.
func (n *Navigator) clearPrompt() error {
	dismissed, err := n.client.DismissPrompt()
	if browser.IsFatal(err) {
		return err
	}
	if dismissed {
		log.Printf("Dismissed leftover prompt")
	}
	return nil
}

// withPrompt runs op, dismissing a modal prompt and retrying once if it got
// in the way.
func (n *Navigator) withPrompt(op func() error) error {
	err := op()
	if browser.KindOf(err) != browser.KindUnexpectedPrompt {
		return err
	}
	if dismissed, derr := n.client.DismissPrompt(); derr != nil || !dismissed {
		return err
	}
	log.Printf("Dismissed unexpected prompt, retrying")
	return op()
}

func setValue(el browser.Element, value string) error {
	editable, err := el.Editable()
	if err == nil && editable {
		err = el.Fill(value)
		if browser.KindOf(err) != browser.KindInteractionBlocked {
			return err
		}
	} else if err != nil && browser.KindOf(err) != browser.KindInteractionBlocked {
		return err
	}
	return el.ForceSet(value)
}
