package scraper

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"rera_crawler/browser"
	"rera_crawler/config"
)

// rowBehavior is how a simulated result row reacts to its detail trigger.
type rowBehavior int

const (
	openTab rowBehavior = iota
	openInPlace
	openTwoTabs
	noTrigger
	blockedClick
	promptOnClick
	missingDetailTab
	detailTimeout
	sessionLost
)

type simRow struct {
	regNo    string
	ackNo    string
	taluk    string
	behavior rowBehavior
}

// simSite is the registry as seen by every session launched against it.
type simSite struct {
	reg        *config.RegistryConfig
	results    map[string][]simRow
	pages      [][]string
	failSearch map[string]bool
	failFilter bool
	// promptOnSearch opens a native dialog when the term is submitted.
	promptOnSearch map[string]bool
	// failReload makes Reload time out instead of resetting the page.
	failReload bool

	launches    int
	navigations int
	reloads     int
	dismissals  int
	searches    []string
	sessions    []*simPage
}

func newSimSite() *simSite {
	return &simSite{
		reg:        config.DefaultRegistry(),
		results:    map[string][]simRow{},
		failSearch:     map[string]bool{},
		promptOnSearch: map[string]bool{},
	}
}

func (s *simSite) Launch(ctx context.Context) (browser.Client, error) {
	s.launches++
	p := &simPage{site: s, tabs: []string{"main"}, current: "main", maxContexts: 1}
	s.sessions = append(s.sessions, p)
	return p, nil
}

// simPage is one browser session on the registry.
type simPage struct {
	site        *simSite
	tabs        []string
	current     string
	nextTab     int
	inPlace     bool
	detail      *simRow
	filtered    bool
	term        string
	page        int
	prompt      bool
	lost        bool
	closed      bool
	backs       int
	maxContexts int
}

func lostErr(op string) error {
	return browser.NewError(browser.KindSessionFatal, op, "", fmt.Errorf("browser has disconnected"))
}

// promptErr is what every page operation reports while a dialog blocks it.
func promptErr(op, sel string) error {
	return browser.NewError(browser.KindUnexpectedPrompt, op, sel, fmt.Errorf("dialog open"))
}

func timeoutErr(sel string) error {
	return browser.NewError(browser.KindTimeout, "wait", sel, context.DeadlineExceeded)
}

func (p *simPage) onListing() bool {
	return p.current == "main" && !p.inPlace && p.filtered
}

func (p *simPage) onDetail() bool {
	return p.detail != nil && (p.inPlace || (p.current != "main" && slices.Contains(p.tabs, p.current)))
}

func (p *simPage) openTab(r simRow) {
	p.nextTab++
	p.tabs = append(p.tabs, fmt.Sprintf("tab-%d", p.nextTab))
	p.detail = &r
	p.maxContexts = max(p.maxContexts, len(p.tabs))
}

func (p *simPage) Navigate(ctx context.Context, url string) error {
	if p.lost {
		return lostErr("navigate")
	}
	p.site.navigations++
	p.inPlace = false
	p.filtered = false
	p.detail = nil
	p.term = ""
	p.page = 0
	return nil
}

func (p *simPage) Reload(ctx context.Context) error {
	return p.Navigate(ctx, p.site.reg.URL)
}

func (p *simPage) Back(ctx context.Context) error {
	if p.lost {
		return lostErr("back")
	}
	p.backs++
	if p.inPlace {
		p.inPlace = false
		p.detail = nil
	}
	return nil
}

func (p *simPage) WaitFor(ctx context.Context, sel string, timeout time.Duration) error {
	if p.lost {
		return lostErr("wait")
	}
	if p.prompt {
		return promptErr("wait", sel)
	}
	s := p.site.reg.Selectors
	ok := false
	switch sel {
	case s.DistrictInput:
		ok = p.current == "main" && !p.inPlace
	case s.ListingTable:
		ok = p.onListing() && !p.site.failSearch[p.term]
	case s.SearchBox:
		ok = p.onListing()
	case s.DetailTab:
		ok = p.onDetail() && p.detail.behavior != missingDetailTab
	case s.DetailReady:
		ok = p.onDetail() && p.detail.behavior != detailTimeout
	}
	if !ok {
		return timeoutErr(sel)
	}
	return nil
}

func (p *simPage) Find(sel string) (browser.Element, error) {
	if p.lost {
		return nil, lostErr("find")
	}
	if p.prompt {
		return nil, promptErr("find", sel)
	}
	s := p.site.reg.Selectors
	switch sel {
	case s.DistrictInput:
		return &simElement{}, nil
	case s.SubmitButton:
		return &simElement{click: func(bool) error {
			p.filtered = !p.site.failFilter
			return nil
		}}, nil
	case s.SearchBox:
		if !p.onListing() {
			break
		}
		return &simElement{editable: true, press: func(key, value string) error {
			if key == "Enter" {
				p.term = value
				p.site.searches = append(p.site.searches, value)
				p.prompt = p.site.promptOnSearch[value]
			}
			return nil
		}}, nil
	case s.DetailTab:
		if p.onDetail() && p.detail.behavior != missingDetailTab {
			return &simElement{}, nil
		}
	case s.NextPage:
		if p.site.pages == nil {
			break
		}
		class := "paginate_button next"
		if p.page >= len(p.site.pages)-1 {
			class += " disabled"
		}
		return &simElement{attrs: map[string]string{"class": class}, click: func(bool) error {
			p.page++
			return nil
		}}, nil
	}
	return nil, browser.NotFound("find", sel)
}

func (p *simPage) FindAll(sel string) ([]browser.Element, error) {
	if p.lost {
		return nil, lostErr("find all")
	}
	if sel != p.site.reg.Selectors.ListingRows || !p.onListing() {
		return nil, nil
	}

	var rows []browser.Element
	if p.site.pages != nil {
		if p.page < len(p.site.pages) {
			for _, id := range p.site.pages[p.page] {
				rows = append(rows, p.rowElement(simRow{regNo: id}))
			}
		}
		return rows, nil
	}
	for _, r := range p.site.results[p.term] {
		rows = append(rows, p.rowElement(r))
	}
	return rows, nil
}

func (p *simPage) rowElement(r simRow) browser.Element {
	texts := make([]string, 19)
	texts[cellSNo] = "1"
	texts[cellAckNo] = "ACK/" + r.regNo
	if r.ackNo != "" {
		texts[cellAckNo] = r.ackNo
	}
	texts[cellRegNo] = r.regNo
	texts[cellPromoter] = "Promoter of " + r.regNo
	texts[cellProjectName] = "Project " + r.regNo
	texts[cellDistrict] = "Bengaluru Urban"
	texts[cellTaluk] = "Summary Taluk"

	cells := make([]browser.Element, len(texts))
	for i, t := range texts {
		cells[i] = &simElement{text: t}
	}
	children := map[string][]browser.Element{"td": cells}
	if r.behavior != noTrigger {
		children[p.site.reg.Selectors.DetailTrigger] = []browser.Element{p.trigger(r)}
	}
	return &simElement{children: children}
}

func (p *simPage) trigger(r simRow) browser.Element {
	prompted := false
	return &simElement{click: func(programmatic bool) error {
		if p.lost {
			return lostErr("click")
		}
		switch r.behavior {
		case blockedClick:
			if !programmatic {
				return browser.NewError(browser.KindInteractionBlocked, "click", "", fmt.Errorf("element intercepts pointer events"))
			}
		case promptOnClick:
			if !prompted {
				prompted = true
				p.prompt = true
				return browser.NewError(browser.KindUnexpectedPrompt, "click", "", fmt.Errorf("dialog open"))
			}
		case sessionLost:
			p.lost = true
			return lostErr("click")
		case openInPlace:
			p.inPlace = true
			p.detail = &r
			return nil
		case openTwoTabs:
			p.openTab(r)
		}
		p.openTab(r)
		return nil
	}}
}

func (p *simPage) Content() (string, error) {
	if p.lost {
		return "", lostErr("content")
	}
	if !p.onDetail() {
		return "<html><body></body></html>", nil
	}
	return detailHTML(*p.detail), nil
}

func detailHTML(r simRow) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="row">`)
	for _, pair := range [][2]string{
		{"Project Sub Type :", "Residential"},
		{"Taluk :", r.taluk},
	} {
		fmt.Fprintf(&b, `<div class="col-md-3 col-sm-6 col-xs-6"><p>%s</p></div>`, pair[0])
		fmt.Fprintf(&b, `<div class="col-md-3 col-sm-6 col-xs-6"><p>%s</p></div>`, pair[1])
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

func (p *simPage) Current() string { return p.current }

func (p *simPage) Contexts() ([]string, error) {
	if p.lost {
		return nil, lostErr("contexts")
	}
	return slices.Clone(p.tabs), nil
}

func (p *simPage) SwitchTo(h string) error {
	if p.lost {
		return lostErr("switch")
	}
	if !slices.Contains(p.tabs, h) {
		return browser.NotFound("switch", h)
	}
	p.current = h
	return nil
}

func (p *simPage) CloseContext(h string) error {
	if p.lost {
		return lostErr("close")
	}
	i := slices.Index(p.tabs, h)
	if i < 0 {
		return browser.NotFound("close", h)
	}
	p.tabs = slices.Delete(p.tabs, i, i+1)
	if p.current == h {
		p.current = ""
	}
	if len(p.tabs) == 1 && !p.inPlace {
		p.detail = nil
	}
	return nil
}

func (p *simPage) DismissPrompt() (bool, error) {
	if p.lost {
		return false, lostErr("dismiss")
	}
	if p.prompt {
		p.prompt = false
		p.site.dismissals++
		return true, nil
	}
	return false, nil
}

func (p *simPage) Close() error {
	p.closed = true
	return nil
}

// simElement is a node whose behavior is given by callbacks.
type simElement struct {
	text     string
	attrs    map[string]string
	editable bool
	value    string
	click    func(programmatic bool) error
	press    func(key, value string) error
	children map[string][]browser.Element
}

func (e *simElement) Text() (string, error) { return e.text, nil }

func (e *simElement) Attribute(name string) (string, error) { return e.attrs[name], nil }

func (e *simElement) Editable() (bool, error) { return e.editable, nil }

func (e *simElement) Click() error {
	if e.click == nil {
		return nil
	}
	return e.click(false)
}

func (e *simElement) ClickProgrammatic() error {
	if e.click == nil {
		return nil
	}
	return e.click(true)
}

func (e *simElement) Fill(v string) error {
	if !e.editable {
		return browser.NewError(browser.KindInteractionBlocked, "fill", "", fmt.Errorf("element is not editable"))
	}
	e.value = v
	return nil
}

func (e *simElement) ForceSet(v string) error {
	e.value = v
	return nil
}

func (e *simElement) Press(key string) error {
	if e.press == nil {
		return nil
	}
	return e.press(key, e.value)
}

func (e *simElement) Find(sel string) (browser.Element, error) {
	if els := e.children[sel]; len(els) > 0 {
		return els[0], nil
	}
	return nil, browser.NotFound("find", sel)
}

func (e *simElement) FindAll(sel string) ([]browser.Element, error) {
	return e.children[sel], nil
}
