// Package crawler implements the origin-scoped, depth-bounded site crawler and
// the orchestrator that runs one crawler per seed and persists the extracted
// document sets.
package crawler
