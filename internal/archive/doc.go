// Package archive defines the core types, capability interfaces, and on-disk
// layout shared by the scrape, download, and clean stages of the jurisprudence
// archiver.
package archive
