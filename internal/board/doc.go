// Package board defines the catalog records, collaborator interfaces and error
// taxonomy shared by the discovery, scrape and application pipelines.
package board
