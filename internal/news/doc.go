// Package news defines the core types and ports shared by the ingestion
// pipeline: articles, per-source run results, the combined feed, the fetch
// session abstraction, and the error taxonomy used to contain failures at the
// smallest scope that still lets a run make progress.
package news
