// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source implements the upstream full-text source adapters. Each
// adapter owns one external service contract: bulk identifier resolution,
// bulk document fetch, and the service's retry, backoff, and rate-limit
// behavior. Parsing of fetched XML is delegated to the jats package.
package source

import (
	"context"

	"github.com/pdiddy/fulltext-engine/internal/batch"
	"github.com/pdiddy/fulltext-engine/internal/jats"
)

// Source is one upstream full-text service. Per-item failures are data, not
// errors: both batch methods account for every requested item in either the
// returned map or the failure list.
type Source interface {
	// Name identifies the source in records and summaries (e.g. "pmc").
	Name() string

	// ResolveBatch maps normalized DOIs to the source's canonical IDs with
	// a single bulk call. DOIs the source cannot resolve fail with reason
	// "no canonical id".
	ResolveBatch(ctx context.Context, dois []string) (map[string]string, []batch.Failure)

	// FetchBatch retrieves and parses article documents for canonical IDs
	// with a single bulk call. IDs absent from the response fail with
	// reason "not found in batch response"; documents with no extractable
	// content fail rather than succeed degenerately.
	FetchBatch(ctx context.Context, ids []string) (map[string]*jats.Document, []batch.Failure)

	// FetchSingle retrieves one document through the source's alternate
	// endpoints, in fixed priority order, stopping at the first success.
	// Used as the orchestrator's optional per-item fallback.
	FetchSingle(ctx context.Context, id string) (*jats.Document, error)
}

const reasonNoCanonicalID = "no canonical id"

const reasonNotInBatch = "not found in batch response"

const reasonNoContent = "no sections or usable text"
