package scraper

import (
	"context"
	"log"
	"strings"
	"time"

	"rera_crawler/browser"
	"rera_crawler/config"
)

// IDStore receives harvested registration ids and reports which were new.
type IDStore interface {
	Append(ids []string) ([]string, error)
}

type HarvestStats struct {
	Pages   int
	Seen    int
	New     int
	Skipped int
}

// Harvester walks every page of the current listing and appends the
// registration id cell of each row to an IDStore.
type Harvester struct {
	client    browser.Client
	nav       *Navigator
	reg       *config.RegistryConfig
	store     IDStore
	maxPages  int
	pageDelay time.Duration
}

func NewHarvester(nav *Navigator, store IDStore, maxPages int, pageDelay time.Duration) *Harvester {
	return &Harvester{
		client:    nav.client,
		nav:       nav,
		reg:       nav.reg,
		store:     store,
		maxPages:  maxPages,
		pageDelay: pageDelay,
	}
}

// Run harvests from the page the session is on. It stops on an empty page,
// a missing or disabled next control, or after maxPages when that is set.
func (h *Harvester) Run(ctx context.Context) (HarvestStats, Outcome) {
	var stats HarvestStats
	sel := h.reg.Selectors

	for {
		if err := ctx.Err(); err != nil {
			return stats, Fatal(err)
		}

		rows, err := h.client.FindAll(sel.ListingRows)
		if err != nil {
			return stats, outcomeOf(err)
		}
		if len(rows) == 0 {
			log.Printf("Page %d is empty, harvest done", stats.Pages+1)
			return stats, OK()
		}
		stats.Pages++

		keys := make([]string, 0, len(rows))
		for _, row := range rows {
			cells, err := cellTexts(row)
			if err != nil {
				if browser.IsFatal(err) {
					return stats, Fatal(err)
				}
				stats.Skipped++
				continue
			}
			key := cell(cells, h.reg.RegNoCell)
			if key == "" {
				stats.Skipped++
				continue
			}
			keys = append(keys, key)
		}
		stats.Seen += len(keys)

		added, err := h.store.Append(keys)
		if err != nil {
			return stats, Fatal(err)
		}
		stats.New += len(added)
		for _, id := range added {
			log.Printf("New registration id: %s", id)
		}

		if h.maxPages > 0 && stats.Pages >= h.maxPages {
			log.Printf("Reached page cap %d", h.maxPages)
			return stats, OK()
		}

		next, err := h.client.Find(sel.NextPage)
		if browser.KindOf(err) == browser.KindElementNotFound {
			return stats, OK()
		}
		if err != nil {
			return stats, outcomeOf(err)
		}
		class, err := next.Attribute("class")
		if err != nil {
			return stats, outcomeOf(err)
		}
		if strings.Contains(class, "disabled") {
			return stats, OK()
		}

		if err := h.nav.click(next); err != nil {
			return stats, outcomeOf(err)
		}
		select {
		case <-ctx.Done():
			return stats, Fatal(ctx.Err())
		case <-time.After(h.pageDelay):
		}
		if err := h.nav.waitFor(ctx, sel.ListingTable); err != nil {
			return stats, outcomeOf(err)
		}
	}
}
