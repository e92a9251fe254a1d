// Package pipeline orchestrates the three archiver stages.
//
// Scraper lists each month on the E-Library and writes the month's case
// records as one JSON file. Downloader renders every recorded case to a raw
// PDF, skipping documents already on disk. Cleaner sanitizes the raw PDFs,
// renames them after the citation found on page one and writes them to the
// cleaned store.
//
// Every stage fans out through pool.Run. A task never fails its batch: the
// outcome of each document is a typed result that the stage's collecting
// goroutine logs, counts into a Report and, for the cleaner, turns into the
// untitled log.
package pipeline
