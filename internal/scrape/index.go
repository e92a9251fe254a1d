package scrape

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/jurisprudence-archiver/internal/archive"
)

// ParseListing returns every case link on a listing page, in document order.
// Duplicates are kept.
func ParseListing(site archive.Site, body []byte) ([]archive.CaseLink, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	marker := site.DocumentPathMarker()
	var links []archive.CaseLink
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !strings.Contains(href, marker) {
			return
		}
		links = append(links, archive.CaseLink{
			DocumentID: href[strings.LastIndex(href, "/")+1:],
			URL:        site.Absolute(href),
		})
	})
	return links, nil
}

// IndexFetcher lists the cases published in one month.
type IndexFetcher struct {
	fetcher archive.Fetcher
	site    archive.Site
	logger  *zap.Logger
}

// NewIndexFetcher builds an IndexFetcher.
func NewIndexFetcher(fetcher archive.Fetcher, site archive.Site, logger *zap.Logger) *IndexFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IndexFetcher{fetcher: fetcher, site: site, logger: logger.Named("index")}
}

// Links fetches the listing page for period. A failed fetch is logged and
// reported as an empty month.
func (f *IndexFetcher) Links(ctx context.Context, period archive.Period) []archive.CaseLink {
	url := f.site.ListingURL(period)
	f.logger.Debug("visiting listing", zap.String("url", url), zap.Stringer("period", period))

	page, err := f.fetcher.Fetch(ctx, url)
	if err != nil {
		f.logger.Warn("listing fetch failed", zap.Stringer("period", period), zap.Error(err))
		return nil
	}
	links, err := ParseListing(f.site, page.Body)
	if err != nil {
		f.logger.Warn("listing parse failed", zap.Stringer("period", period), zap.Error(err))
		return nil
	}
	return links
}
