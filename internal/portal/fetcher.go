package portal

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/messis/internal/common"
	"github.com/ternarybob/messis/internal/engine"
	"github.com/ternarybob/messis/internal/interfaces"
	"github.com/ternarybob/messis/internal/models"
)

const (
	partitionListboxID       = "HeiId_listbox"
	partitionTriggerSelector = `span[aria-controls="HeiId_listbox"]`
	gridSelector             = "div.k-grid"
	panelBarRootSelector     = "ul.k-panelbar"
)

// clickNextPageJS advances the Kendo pager. Scripted clicking sidesteps the
// sticky header overlaying the button at some viewport sizes.
const clickNextPageJS = `(() => {
	const btn = document.querySelector('a.k-pager-nav[aria-label="Go to the next page"]');
	if (!btn || btn.getAttribute('aria-disabled') === 'true') return false;
	btn.scrollIntoView({block: 'center'});
	btn.click();
	return true;
})()`

// expandPanelsJS opens every collapsed accordion panel so all sections are
// present in the DOM before the page snapshot.
const expandPanelsJS = `document.querySelectorAll('ul.k-panelbar > li').forEach(li => {
	if (li.getAttribute('aria-expanded') !== 'true') {
		const header = li.querySelector('a.k-link, span.k-link');
		if (header) header.click();
	}
})`

// Fetcher implements interfaces.PageFetcher over the shared browser
// session. Kendo listings paginate by clicking, not by URL, so the fetcher
// tracks where the browser is parked and replays navigation only when the
// requested page is not reachable with a forward click.
type Fetcher struct {
	browser *Browser
	config  *common.PortalConfig
	logger  arbor.ILogger

	category   models.Category
	partition  string
	page       int
	positioned bool
}

// NewFetcher creates a fetcher bound to a started browser session.
func NewFetcher(browser *Browser, config *common.PortalConfig, logger arbor.ILogger) interfaces.PageFetcher {
	return &Fetcher{
		browser: browser,
		config:  config,
		logger:  logger,
	}
}

func (f *Fetcher) listURL(desc CategoryDescriptor) string {
	return strings.TrimRight(f.config.BaseURL, "/") + desc.ListPath
}

// Partitions discovers the partition names for a category by opening the
// institutions dropdown on its listing page. Categories without partitions
// report a single unnamed partition.
func (f *Fetcher) Partitions(ctx context.Context, category models.Category) ([]string, error) {
	desc, err := Descriptor(category)
	if err != nil {
		return nil, err
	}
	if !desc.HasPartitions {
		return []string{""}, nil
	}

	if err := f.navigateList(ctx, desc); err != nil {
		return nil, err
	}

	var html string
	err = f.browser.Run(ctx,
		chromedp.Click(partitionTriggerSelector, chromedp.ByQuery),
		chromedp.WaitVisible("#"+partitionListboxID, chromedp.ByID),
		chromedp.OuterHTML("html", &html),
		chromedp.Evaluate(`document.body.click()`, nil),
		chromedp.Sleep(f.config.DropdownWait),
	)
	if err != nil {
		return nil, engine.Transient(fmt.Errorf("failed to open partition dropdown: %w", err))
	}

	// Dropdown interaction may leave the grid filtered; force repositioning.
	f.positioned = false

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse partition dropdown: %w", err)
	}
	partitions := parsePartitions(doc, partitionListboxID)
	if len(partitions) == 0 {
		return nil, fmt.Errorf("no partitions found for %s", category)
	}

	f.logger.Info().
		Str("category", string(category)).
		Int("count", len(partitions)).
		Msg("Partitions discovered")

	return partitions, nil
}

// FetchListPage renders one listing page and parses its rows. Page indices
// are zero-based; reaching a page earlier than the browser's current
// position restarts from the first page of the partition.
func (f *Fetcher) FetchListPage(ctx context.Context, category models.Category, partition string, pageIdx int) (*models.ListPage, error) {
	desc, err := Descriptor(category)
	if err != nil {
		return nil, err
	}

	if !f.positioned || f.category != category || f.partition != partition || pageIdx < f.page {
		if err := f.position(ctx, desc, category, partition); err != nil {
			return nil, err
		}
	}

	for f.page < pageIdx {
		if err := f.clickNext(ctx); err != nil {
			f.positioned = false
			return nil, err
		}
		f.page++
	}

	var html string
	if err := f.browser.Run(ctx, chromedp.OuterHTML("html", &html)); err != nil {
		f.positioned = false
		return nil, engine.Transient(fmt.Errorf("failed to capture listing page: %w", err))
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing page: %w", err)
	}

	page, err := parseListPage(doc, desc, f.config.BaseURL)
	if err != nil {
		return nil, err
	}

	f.logger.Debug().
		Str("category", string(category)).
		Str("partition", partition).
		Int("page", pageIdx).
		Int("rows", len(page.Rows)).
		Int("total", page.TotalItems).
		Msg("Listing page fetched")

	return page, nil
}

// FetchDetailPage renders one detail page with all accordion sections
// expanded and extracts every section independently.
func (f *Fetcher) FetchDetailPage(ctx context.Context, category models.Category, pageURL string) (map[string]models.SectionResult, error) {
	desc, err := Descriptor(category)
	if err != nil {
		return nil, err
	}

	// Leaving the listing invalidates the pagination position.
	f.positioned = false

	var html string
	err = f.browser.Run(ctx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(f.config.PageLoadWait),
		chromedp.WaitReady(panelBarRootSelector, chromedp.ByQuery),
		chromedp.Evaluate(expandPanelsJS, nil),
		chromedp.Sleep(f.config.AccordionWait),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return nil, engine.Transient(fmt.Errorf("failed to render detail page: %w", err))
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse detail page: %w", err)
	}

	return parseSections(doc, desc), nil
}

func (f *Fetcher) navigateList(ctx context.Context, desc CategoryDescriptor) error {
	err := f.browser.Run(ctx,
		chromedp.Navigate(f.listURL(desc)),
		chromedp.Sleep(f.config.PageLoadWait),
		chromedp.WaitReady(gridSelector, chromedp.ByQuery),
	)
	if err != nil {
		return engine.Transient(fmt.Errorf("failed to open %s listing: %w", desc.Category, err))
	}
	return nil
}

// position parks the browser on the first page of the requested partition.
func (f *Fetcher) position(ctx context.Context, desc CategoryDescriptor, category models.Category, partition string) error {
	if err := f.navigateList(ctx, desc); err != nil {
		return err
	}
	if desc.HasPartitions && partition != "" {
		if err := f.selectPartition(ctx, partition); err != nil {
			return err
		}
	}

	f.category = category
	f.partition = partition
	f.page = 0
	f.positioned = true
	return nil
}

func (f *Fetcher) selectPartition(ctx context.Context, partition string) error {
	selectJS := fmt.Sprintf(`(() => {
		const items = document.querySelectorAll('#%s li');
		for (const li of items) {
			if (li.textContent.trim() === %q) { li.click(); return true; }
		}
		return false;
	})()`, partitionListboxID, partition)

	var found bool
	err := f.browser.Run(ctx,
		chromedp.Click(partitionTriggerSelector, chromedp.ByQuery),
		chromedp.WaitVisible("#"+partitionListboxID, chromedp.ByID),
		chromedp.Evaluate(selectJS, &found),
		chromedp.Sleep(f.config.PaginationWait),
	)
	if err != nil {
		return engine.Transient(fmt.Errorf("failed to select partition %q: %w", partition, err))
	}
	if !found {
		return fmt.Errorf("partition %q not present in dropdown", partition)
	}
	return nil
}

func (f *Fetcher) clickNext(ctx context.Context) error {
	var clicked bool
	err := f.browser.Run(ctx,
		chromedp.Evaluate(clickNextPageJS, &clicked),
		chromedp.Sleep(f.config.PaginationWait),
	)
	if err != nil {
		return engine.Transient(fmt.Errorf("failed to advance pager: %w", err))
	}
	if !clicked {
		return fmt.Errorf("next page not available")
	}
	return nil
}
