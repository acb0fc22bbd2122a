// Package bucket defines the domain model for platform storage buckets:
// the bucket record itself, the scope that identifies which backend and
// tenant a listing belongs to, and the presentation ordering applied to
// every listing served from the cache.
package bucket

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Type classifies a bucket for presentation grouping.
type Type string

const (
	// TypeUser is a bucket created by an operator.
	TypeUser Type = "user"

	// TypeSystem is a bucket provisioned by the platform itself.
	TypeSystem Type = "system"

	// TypeSample is a fixed demo dataset appended locally, never returned
	// by the platform API.
	TypeSample Type = "sample"
)

// Bucket is a named storage container record exposed by the platform.
type Bucket struct {
	ID    string `json:"id"`
	OrgID string `json:"orgID"`
	Type  Type   `json:"type"`
	Name  string `json:"name"`
}

// Errors returned by scope validation.
var (
	// ErrMissingEndpoint is returned when a scope has no region endpoint.
	ErrMissingEndpoint = errors.New("scope endpoint is required")

	// ErrMissingOrg is returned when a scope has no organization id.
	ErrMissingOrg = errors.New("scope organization id is required")
)

// Scope identifies the isolation domain a bucket listing belongs to:
// a region endpoint, an organization id, and an optional auth token.
//
// A Scope is immutable per request; a different endpoint or org produces
// a different cache key.
type Scope struct {
	// Endpoint is the region base URL, e.g. "https://us-east.cloud.example.com".
	Endpoint string

	// Org is the organization id.
	Org string

	// Token is the API token. Empty means unauthenticated requests.
	Token string
}

// Validate checks that the scope can address the platform API.
func (s Scope) Validate() error {
	if strings.TrimSpace(s.Endpoint) == "" {
		return ErrMissingEndpoint
	}
	if strings.TrimSpace(s.Org) == "" {
		return ErrMissingOrg
	}
	return nil
}

// CacheKey returns the cache key for this scope. The token is deliberately
// excluded: rotating a token must not orphan the cached listing.
func (s Scope) CacheKey() string {
	return fmt.Sprintf("%s;;%s", s.Endpoint, s.Org)
}

// Organize shapes a server payload into the presentation order served to
// consumers: user buckets, then system buckets, then the fixed sample set,
// each group sorted case-insensitively by name. The groups never interleave.
//
// Sample buckets are always appended regardless of what the server returned;
// any sample-typed records in the payload are ignored in favor of the fixed
// set.
func Organize(buckets []Bucket) []Bucket {
	var user, system []Bucket
	for _, b := range buckets {
		switch b.Type {
		case TypeSystem:
			system = append(system, b)
		case TypeSample:
			// fixed set wins
		default:
			user = append(user, b)
		}
	}

	samples := Samples()

	sortByName(user)
	sortByName(system)
	sortByName(samples)

	out := make([]Bucket, 0, len(user)+len(system)+len(samples))
	out = append(out, user...)
	out = append(out, system...)
	out = append(out, samples...)
	return out
}

func sortByName(buckets []Bucket) {
	sort.SliceStable(buckets, func(i, j int) bool {
		return strings.ToLower(buckets[i].Name) < strings.ToLower(buckets[j].Name)
	})
}
