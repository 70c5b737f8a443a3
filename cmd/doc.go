// Package cmd defines and implements the CLI commands for the sitescope executable.
//
// Architecture overview:
//   - crawl: one depth-first crawler per configured seed, bounded by the seed's
//     origin and max depth, fanned out on an errgroup. Each site's Document Set
//     (URL to extracted text) is persisted under its origin in the configured
//     store (local JSON files, memory, GCS or SQLite) and optionally announced
//     on Pub/Sub.
//   - analyze: every stored site is filtered, concatenated, truncated to the
//     token budget and summarized through the OpenAI chat API. Results fan out
//     to the raw, CSV, Markdown, Postgres and Pub/Sub sinks.
//   - run: crawl followed by analyze.
//   - serve: a read-only chi API over the stores plus /metrics.
//   - init: writes a starter YAML configuration.
//
// Configuration is resolved from --config, ./sitescope.yaml or the XDG config
// directory, with SITESCOPE_* environment overrides on top.
package cmd
