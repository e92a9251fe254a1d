// The main package for the archiver executable.
//
// The archiver runs three stages over the Supreme Court E-Library:
//   - scrape: lists every month from scrape.from_year to now, extracts each
//     case's title, date and excerpt and writes one JSON collection per month
//     under paths.detailed, optionally upserting the rows into Postgres.
//   - download: renders each case's print-friendly view to a PDF under
//     paths.downloads/<year>/<Mon>/<link_number>.pdf using headless Chrome or
//     wkhtmltopdf. Existing files are never rendered twice.
//   - clean: strips images and the E-Library watermark lines from every raw
//     PDF and saves it under paths.cleaned/<year>/<Mon>/<citation>.pdf, or a
//     GCS bucket, optionally announcing each document on Pub/Sub.
//
// Configuration comes from an optional YAML file (--config) and ARCHIVER_*
// environment variables. Prometheus metrics are served on metrics.addr when set.
package main

import (
	"github.com/JakeFAU/jurisprudence-archiver/cmd"
)

func main() {
	cmd.Execute()
}
