// Package scrape discovers case links on monthly listing pages and extracts
// case metadata from detail pages.
package scrape
