// Package search implements the SEARCH executor (spec §4.4.5):
// SEARCH_FILES, SEARCH_EMAILS, SEARCH_DATASETS over host-supplied
// record sources, with deterministic ordering, truncation, and
// snippet extraction.
package search

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ssbking/personal-digital-authority/pkg/executor"
	"github.com/ssbking/personal-digital-authority/pkg/invariant"
	"github.com/ssbking/personal-digital-authority/pkg/kernelerrors"
	"github.com/ssbking/personal-digital-authority/pkg/lease"
	"github.com/ssbking/personal-digital-authority/pkg/manifest"
)

// Record is one candidate match: a filename, an email, or a dataset
// row, reduced to the fields the matching/sorting/snippet rules need.
type Record struct {
	// Key is the sort key: filename (files), empty (emails, sorted by
	// Timestamp instead), or primary key (datasets).
	Key string
	// Timestamp is received_timestamp for emails; zero and unused
	// otherwise. HasTimestamp distinguishes "zero" from "absent" —
	// records lacking a timestamp are excluded (spec §4.4.5).
	Timestamp    int64
	HasTimestamp bool
	// Body is the text searched for a literal, case-sensitive
	// substring match and snippet extraction.
	Body string
}

// Source resolves a scope to its deterministic, unfiltered record set.
// Execute checks the scope allowlist before calling List.
type Source interface {
	// List returns every record in scope, in source order; the
	// executor performs matching, sorting, and truncation.
	List(ctx context.Context, scope string) ([]Record, *kernelerrors.Error)
}

// Executor is the SEARCH capability family. One Source per capability,
// since files/emails/datasets are distinct record universes.
type Executor struct {
	gate         executor.Gate
	cache        executor.IdempotencyCache
	signer       executor.Signer
	sourceByCap  map[string]Source
	allowedScope map[string]bool
}

// New constructs a SEARCH executor. sources must have an entry for
// each of SEARCH_FILES, SEARCH_EMAILS, SEARCH_DATASETS the deployment
// supports; a missing entry makes that capability unsupported.
func New(leaseVerify func(lease.Token) bool, cache executor.IdempotencyCache, signer executor.Signer, sources map[string]Source, allowedScopes []string) *Executor {
	invariant.NotNil(cache, "cache")
	invariant.NotNil(signer, "signer")
	invariant.Precondition(len(sources) > 0, "at least one search source is required")

	supported := make(map[string]bool, len(sources))
	for capID := range sources {
		supported[capID] = true
	}

	allowed := make(map[string]bool, len(allowedScopes))
	for _, s := range allowedScopes {
		allowed[s] = true
	}

	return &Executor{
		gate: executor.Gate{
			LeaseVerifier:         leaseVerify,
			SupportedCapabilities: supported,
		},
		cache:        cache,
		signer:       signer,
		sourceByCap:  sources,
		allowedScope: allowed,
	}
}

// SupportedCapabilities implements executor.Executor.
func (e *Executor) SupportedCapabilities() []string {
	out := make([]string, 0, len(e.sourceByCap))
	for capID := range e.sourceByCap {
		out = append(out, capID)
	}
	sort.Strings(out)
	return out
}

// Execute implements executor.Executor.
func (e *Executor) Execute(ctx context.Context, man manifest.TaskManifest, tok lease.Token) executor.Result {
	if cached, ok := e.cache.Get(man.TaskID); ok {
		return cached
	}

	now := time.Now()
	if gateErr := e.gate.Check(man, tok, now); gateErr != nil {
		return e.fail(man, gateErr.Code, gateErr.Message)
	}

	result := e.search(ctx, man)
	if result.Status == executor.StatusSuccess {
		e.cache.Put(man.TaskID, result)
	}
	return result
}

func (e *Executor) search(ctx context.Context, man manifest.TaskManifest) executor.Result {
	query := man.Inputs["query"]
	if query == "" || !utf8.ValidString(query) || utf8.RuneCountInString(query) > 4096 {
		return e.fail(man, kernelerrors.InvalidQuery, "query must be 1-4096 valid Unicode code points")
	}
	if strings.TrimSpace(query) != query {
		return e.fail(man, kernelerrors.InvalidQuery, "query must be trimmed")
	}

	scope := man.Inputs["target_scope"]
	if !e.allowedScope[scope] {
		return e.fail(man, kernelerrors.ScopeNotAllowed, "scope is not on the allowlist")
	}

	maxResults, err := strconv.Atoi(man.Inputs["max_results"])
	if err != nil || maxResults < 1 || maxResults > 1000 {
		return e.fail(man, kernelerrors.InvalidQuery, "max_results must be an integer in [1, 1000]")
	}

	source := e.sourceByCap[man.CapabilityID]
	if source == nil {
		return e.fail(man, kernelerrors.UnsupportedCapability, "capability not handled by SEARCH executor")
	}

	records, recErr := source.List(ctx, scope)
	if recErr != nil {
		if recErr.Code == kernelerrors.ScopeUnavailable {
			return e.fail(man, kernelerrors.ScopeUnavailable, recErr.Message)
		}
		return e.fail(man, kernelerrors.ExecutionFailed, recErr.Message)
	}

	matches := make([]Record, 0, len(records))
	for _, r := range records {
		if man.CapabilityID == "SEARCH_EMAILS" && !r.HasTimestamp {
			continue
		}
		if strings.Contains(r.Body, query) {
			matches = append(matches, r)
		}
	}

	sortMatches(man.CapabilityID, matches)

	total := len(matches)
	if maxResults < total {
		matches = matches[:maxResults]
	}

	results := make([]map[string]interface{}, 0, len(matches))
	for _, m := range matches {
		results = append(results, map[string]interface{}{
			"key":     m.Key,
			"snippet": snippet(m.Body, query),
		})
	}

	return e.succeed(man, map[string]interface{}{
		"results":   results,
		"count":     total,
		"truncated": total > maxResults,
	})
}

// sortMatches applies spec §4.4.5's capability-specific deterministic
// order: files by code-point order of filename, emails by
// received_timestamp ascending, datasets by primary key ascending.
func sortMatches(capabilityID string, records []Record) {
	switch capabilityID {
	case "SEARCH_EMAILS":
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].Timestamp < records[j].Timestamp
		})
	default:
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].Key < records[j].Key
		})
	}
}

// snippet extracts up to 100 code points before and after the first
// occurrence of query in body, trimmed to at most 200 code points
// total, preserving line breaks.
func snippet(body, query string) string {
	idx := strings.Index(body, query)
	if idx < 0 {
		return ""
	}

	runes := []rune(body)
	matchStartRune := utf8.RuneCountInString(body[:idx])
	matchLenRune := utf8.RuneCountInString(query)
	matchEndRune := matchStartRune + matchLenRune

	start := matchStartRune - 100
	if start < 0 {
		start = 0
	}
	end := matchEndRune + 100
	if end > len(runes) {
		end = len(runes)
	}

	out := runes[start:end]
	if len(out) > 200 {
		out = out[:200]
	}
	return string(out)
}

func (e *Executor) fail(man manifest.TaskManifest, code kernelerrors.Code, message string) executor.Result {
	r, err := executor.Failure(e.signer, man.TaskID, man.CapabilityID, code, message)
	invariant.ExpectNoError(err, "signing a FAILURE result must not fail")
	return r
}

func (e *Executor) succeed(man manifest.TaskManifest, output map[string]interface{}) executor.Result {
	r, err := executor.Success(e.signer, man.TaskID, man.CapabilityID, output)
	invariant.ExpectNoError(err, "signing a SUCCESS result must not fail")
	return r
}
