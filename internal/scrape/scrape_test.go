package scrape

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jurisprudence-archiver/internal/archive"
)

var testSite = archive.Site{BaseURL: "https://elibrary.example", Collection: 28}

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	errs  map[string]error
	urls  []string
	delay time.Duration
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (archive.Page, error) {
	f.mu.Lock()
	f.urls = append(f.urls, url)
	body, ok := f.pages[url]
	err := f.errs[url]
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return archive.Page{}, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if err != nil {
		return archive.Page{}, err
	}
	if !ok {
		return archive.Page{}, archive.ErrNotFound
	}
	return archive.Page{URL: url, StatusCode: 200, Body: []byte(body)}, nil
}

const listingHTML = `<html><body>
<a href="/thebookshelf/showdocs/28/1001">Case A</a>
<a href="https://mirror.example/thebookshelf/showdocs/28/1002">Case B</a>
<a href="/thebookshelf/showdocs/2/9999">Other collection</a>
<a href="/about">About</a>
<a>No href</a>
<a href="/thebookshelf/showdocs/28/1001">Case A again</a>
</body></html>`

func TestParseListing(t *testing.T) {
	t.Parallel()

	links, err := ParseListing(testSite, []byte(listingHTML))
	require.NoError(t, err)
	assert.Equal(t, []archive.CaseLink{
		{DocumentID: "1001", URL: "https://elibrary.example/thebookshelf/showdocs/28/1001"},
		{DocumentID: "1002", URL: "https://mirror.example/thebookshelf/showdocs/28/1002"},
		{DocumentID: "1001", URL: "https://elibrary.example/thebookshelf/showdocs/28/1001"},
	}, links)
}

func TestParseListingNoLinks(t *testing.T) {
	t.Parallel()

	links, err := ParseListing(testSite, []byte("<html><body><p>none</p></body></html>"))
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestIndexFetcherLinks(t *testing.T) {
	t.Parallel()

	jan := archive.Period{Year: 1990, Month: time.January}
	feb := archive.Period{Year: 1990, Month: time.February}
	f := &fakeFetcher{pages: map[string]string{testSite.ListingURL(jan): listingHTML}}
	idx := NewIndexFetcher(f, testSite, nil)

	assert.Len(t, idx.Links(context.Background(), jan), 3)
	assert.Empty(t, idx.Links(context.Background(), feb))
	assert.Equal(t, []string{
		"https://elibrary.example/thebookshelf/docmonth/Jan/1990/28",
		"https://elibrary.example/thebookshelf/docmonth/Feb/1990/28",
	}, f.urls)
}

func TestParseDetail(t *testing.T) {
	t.Parallel()

	body := `<html><body>
<p>Republic of the Philippines</p>
<h3>  G.R. No. 12345 - People v. Cruz </h3>
<div><p> January 5, 1990 </p></div>
<p>Second paragraph</p>
<div class="content">
  <p>First line</p>
  <p>   </p>
  <script>var x = 1;</script>
  <p>Second <b>bold</b> line</p>
</div>
<div class="content"><p>ignored</p></div>
</body></html>`

	link := archive.CaseLink{DocumentID: "1001", URL: "https://elibrary.example/thebookshelf/showdocs/28/1001"}
	rec, err := ParseDetail(link, []byte(body))
	require.NoError(t, err)
	assert.Equal(t, archive.CaseRecord{
		DocumentID: "1001",
		URL:        link.URL,
		Title:      "G.R. No. 12345 - People v. Cruz",
		Date:       "January 5, 1990",
		Excerpt:    "First line\nSecond\nbold\nline",
	}, rec)
}

func TestParseDetailDefaults(t *testing.T) {
	t.Parallel()

	rec, err := ParseDetail(archive.CaseLink{DocumentID: "7"}, []byte(`<html><body><p>orphan</p></body></html>`))
	require.NoError(t, err)
	assert.Equal(t, "Untitled", rec.Title)
	assert.Equal(t, "Unknown", rec.Date)
	assert.Equal(t, "", rec.Excerpt)

	rec, err = ParseDetail(archive.CaseLink{DocumentID: "8"}, []byte(`<p>before</p><h3>Only title</h3>`))
	require.NoError(t, err)
	assert.Equal(t, "Only title", rec.Title)
	assert.Equal(t, "Unknown", rec.Date)
}

func TestParseDetailJoinsNestedFragments(t *testing.T) {
	t.Parallel()

	body := `<h3>
  G.R. No. 555 <br> <em> People </em>v. <b>Reyes</b>
</h3>
<p> March <span> 3 </span>, 1991 </p>`
	rec, err := ParseDetail(archive.CaseLink{DocumentID: "9"}, []byte(body))
	require.NoError(t, err)
	assert.Equal(t, "G.R. No. 555Peoplev.Reyes", rec.Title)
	assert.Equal(t, "March3, 1991", rec.Date)
}

func TestParseDetailTruncatesByCharacter(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("ñ", archive.ExcerptLimit+50)
	rec, err := ParseDetail(archive.CaseLink{}, []byte(`<div class="content">`+long+`</div>`))
	require.NoError(t, err)
	assert.Equal(t, archive.ExcerptLimit, utf8.RuneCountInString(rec.Excerpt))
	assert.True(t, utf8.ValidString(rec.Excerpt))
}

func TestDetailExtractor(t *testing.T) {
	t.Parallel()

	ok := archive.CaseLink{DocumentID: "1", URL: "https://elibrary.example/thebookshelf/showdocs/28/1"}
	missing := archive.CaseLink{DocumentID: "2", URL: "https://elibrary.example/thebookshelf/showdocs/28/2"}
	broken := archive.CaseLink{DocumentID: "3", URL: "https://elibrary.example/thebookshelf/showdocs/28/3"}
	f := &fakeFetcher{
		pages: map[string]string{ok.URL: `<h3>T</h3><p>D</p>`},
		errs:  map[string]error{broken.URL: errors.New("connection reset")},
	}
	e := NewDetailExtractor(f, time.Second)

	r := e.Extract(context.Background(), ok)
	require.NoError(t, r.Err)
	require.NotNil(t, r.Record)
	assert.Equal(t, "T", r.Record.Title)
	assert.Equal(t, "D", r.Record.Date)

	r = e.Extract(context.Background(), missing)
	assert.Nil(t, r.Record)
	require.ErrorIs(t, r.Err, archive.ErrNotFound)

	r = e.Extract(context.Background(), broken)
	assert.Nil(t, r.Record)
	require.ErrorContains(t, r.Err, "case 3")
}

func TestDetailExtractorTimeout(t *testing.T) {
	t.Parallel()

	link := archive.CaseLink{DocumentID: "slow", URL: "https://elibrary.example/slow"}
	f := &fakeFetcher{pages: map[string]string{link.URL: "<h3>T</h3>"}, delay: time.Second}
	r := NewDetailExtractor(f, 20*time.Millisecond).Extract(context.Background(), link)
	assert.Nil(t, r.Record)
	require.ErrorIs(t, r.Err, context.DeadlineExceeded)
}
