package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jurisprudence-archiver/internal/archive"
	"github.com/JakeFAU/jurisprudence-archiver/internal/storage/memory"
)

func links(ids ...string) []archive.CaseLink {
	out := make([]archive.CaseLink, 0, len(ids))
	for _, id := range ids {
		out = append(out, archive.CaseLink{DocumentID: id, URL: testSite.Absolute("/thebookshelf/showdocs/28/" + id)})
	}
	return out
}

func TestScrapeMonthWritesExtractedRecords(t *testing.T) {
	t.Parallel()

	jan := archive.Period{Year: 1990, Month: time.January}
	store := memory.NewBlobStore()
	catalog := &fakeCatalog{}
	s := NewScraper(
		fakeLister{links: map[archive.Period][]archive.CaseLink{jan: links("1", "2", "3")}},
		fakeDetails{failing: map[string]bool{"2": true}},
		store, catalog, 2, nil,
	)

	res := s.ScrapeMonth(context.Background(), jan)
	require.NoError(t, res.Err)
	assert.Equal(t, StatusSaved, res.Status)
	assert.Equal(t, 3, res.Links)
	assert.Equal(t, 2, res.Records)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, "memory://jurisprudence_1990_Jan.json", res.URI)

	data, contentType, ok := store.Get("jurisprudence_1990_Jan.json")
	require.True(t, ok)
	assert.Equal(t, archive.ContentTypeJSON, contentType)
	records, err := DecodeRecords(data)
	require.NoError(t, err)
	ids := []string{records[0].DocumentID, records[1].DocumentID}
	assert.ElementsMatch(t, []string{"1", "3"}, ids)

	assert.Equal(t, []archive.Period{jan}, catalog.periods)
	assert.Len(t, catalog.records, 2)
}

func TestScrapeMonthWithoutRecordsWritesNothing(t *testing.T) {
	t.Parallel()

	feb := archive.Period{Year: 1990, Month: time.February}
	mar := archive.Period{Year: 1990, Month: time.March}
	store := memory.NewBlobStore()
	catalog := &fakeCatalog{}
	s := NewScraper(
		fakeLister{links: map[archive.Period][]archive.CaseLink{mar: links("9")}},
		fakeDetails{failing: map[string]bool{"9": true}},
		store, catalog, 4, nil,
	)

	empty := s.ScrapeMonth(context.Background(), feb)
	assert.Equal(t, StatusEmpty, empty.Status)
	assert.Zero(t, empty.Links)

	allFailed := s.ScrapeMonth(context.Background(), mar)
	assert.Equal(t, StatusEmpty, allFailed.Status)
	assert.Equal(t, 1, allFailed.Failed)

	assert.Empty(t, store.Keys())
	assert.Empty(t, catalog.periods)
}

func TestScrapeMonthCatalogFailureKeepsFile(t *testing.T) {
	t.Parallel()

	jan := archive.Period{Year: 2001, Month: time.January}
	store := memory.NewBlobStore()
	s := NewScraper(
		fakeLister{links: map[archive.Period][]archive.CaseLink{jan: links("7")}},
		fakeDetails{}, store, &fakeCatalog{err: errors.New("db down")}, 1, nil,
	)

	res := s.ScrapeMonth(context.Background(), jan)
	assert.Equal(t, StatusSaved, res.Status)
	assert.Equal(t, []string{"jurisprudence_2001_Jan.json"}, store.Keys())
}

func TestScraperRun(t *testing.T) {
	t.Parallel()

	jan := archive.Period{Year: 1990, Month: time.January}
	feb := jan.Next()
	store := memory.NewBlobStore()
	s := NewScraper(
		fakeLister{links: map[archive.Period][]archive.CaseLink{jan: links("1"), feb: nil}},
		fakeDetails{}, store, nil, 3, nil,
	)

	report := s.Run(context.Background(), []archive.Period{jan, feb})
	assert.Equal(t, StageScrape, report.Stage)
	assert.Equal(t, 1, report.Saved)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 2, report.Total())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report = s.Run(ctx, []archive.Period{jan, feb})
	assert.Zero(t, report.Total())
}

func TestEncodeRecords(t *testing.T) {
	t.Parallel()

	data, err := EncodeRecords([]archive.CaseRecord{{
		DocumentID: "1",
		URL:        "https://e/?a=1&b=2",
		Title:      "People <v.> Dela Peña",
		Date:       "Unknown",
	}})
	require.NoError(t, err)

	text := string(data)
	assert.True(t, strings.HasPrefix(text, "[\n  {\n    \"link_number\": \"1\","), text)
	assert.Contains(t, text, `"url": "https://e/?a=1&b=2"`)
	assert.Contains(t, text, `"title": "People <v.> Dela Peña"`)
	assert.Contains(t, text, `"full_text": ""`)
	assert.False(t, strings.HasSuffix(text, "\n"))
}

func TestPeriodRange(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)

	all, err := PeriodRange(2023, 0, "", now)
	require.NoError(t, err)
	require.Len(t, all, 15)
	assert.Equal(t, archive.Period{Year: 2023, Month: time.January}, all[0])
	assert.Equal(t, archive.Period{Year: 2024, Month: time.March}, all[14])

	capped, err := PeriodRange(2024, 2030, "", now)
	require.NoError(t, err)
	assert.Len(t, capped, 3)

	aprils, err := PeriodRange(2020, 2024, "Apr", now)
	require.NoError(t, err)
	require.Len(t, aprils, 4)
	assert.Equal(t, 2023, aprils[3].Year)

	_, err = PeriodRange(2025, 2024, "", now)
	assert.Error(t, err)

	_, err = PeriodRange(2020, 2024, "April", now)
	assert.ErrorIs(t, err, archive.ErrMalformedPath)
}
