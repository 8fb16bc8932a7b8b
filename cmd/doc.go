// Package cmd defines the harvester CLI.
//
// Architecture overview:
//   - Discovery: footprint searches ask the search engine for pages on each known ATS
//     domain and turn the result links into companies; the crawl strategy searches for
//     hiring pages, visits each candidate through the proxy and keeps those that embed
//     or link to a known board. Both feed one deduplicated company upsert per run.
//   - Scrape: every stored company's board page is fetched through the proxy, parsed by
//     the platform's extractor and merged into one job upsert per run. A company that
//     fails is logged and skipped; one whose platform has no extractor is never fetched.
//   - Applications: the HTTP API records an application and debits one profile credit.
//     A debit that fails after the insert is reported, never rolled back.
//   - Plumbing: viper config with HARVESTER_ env overrides, zap logging, Prometheus
//     metrics on /metrics, Postgres or in-memory catalog, optional Redis visit cache,
//     optional GCS/local snapshots of empty pages and Pub/Sub run summaries.
//
// Quick checklist:
//   - Set HARVESTER_PROXY_API_KEY (required) and HARVESTER_DB_DSN for persistence.
//   - harvester migrate applies the schema; harvester discover and harvester scrape run
//     one stage and exit non-zero on failure; harvester serve exposes the HTTP API.
//   - harvester credits <user> <n|unlimited> seeds a profile balance in Postgres.
package cmd
