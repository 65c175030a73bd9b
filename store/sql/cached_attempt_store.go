package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/goliatone/go-faceverify/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const attemptPageCacheKeyPrefix = "go-faceverify::attempt_page::v1"

type attemptBackend interface {
	core.AttemptRecorder
	core.AttemptReader
}

// CachedAttemptStore serves attempt history pages from cache. Every Record
// moves the store to a new key generation so earlier pages are never read
// again and expire by TTL.
type CachedAttemptStore struct {
	base       attemptBackend
	cache      repositorycache.CacheService
	generation atomic.Uint64
}

func NewCachedAttemptStore(base attemptBackend, cacheService repositorycache.CacheService) (*CachedAttemptStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base attempt store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: attempt cache service is required")
	}
	return &CachedAttemptStore{base: base, cache: cacheService}, nil
}

// AttemptPageCacheKey returns
// go-faceverify::attempt_page::v1::<generation>::<user_id>::<outcome>::<page>::<per_page>
// with user and outcome URL-path escaped.
func AttemptPageCacheKey(generation uint64, filter core.AttemptFilter) string {
	page, perPage := normalizePaging(filter.Page, filter.PerPage)
	segments := []string{
		strconv.FormatUint(generation, 10),
		url.PathEscape(core.NormalizeUserID(filter.UserID)),
		url.PathEscape(strings.TrimSpace(string(filter.Outcome))),
		strconv.Itoa(page),
		strconv.Itoa(perPage),
	}
	return strings.Join(append([]string{attemptPageCacheKeyPrefix}, segments...), "::")
}

func (s *CachedAttemptStore) Record(ctx context.Context, entry core.AttemptRecord) error {
	if s == nil || s.base == nil {
		return fmt.Errorf("sqlstore: cached attempt store is not configured")
	}
	if err := s.base.Record(ctx, entry); err != nil {
		return err
	}
	s.generation.Add(1)
	return nil
}

func (s *CachedAttemptStore) List(ctx context.Context, filter core.AttemptFilter) (core.AttemptPage, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.AttemptPage{}, fmt.Errorf("sqlstore: cached attempt store is not configured")
	}
	key := AttemptPageCacheKey(s.generation.Load(), filter)
	page, err := repositorycache.GetOrFetch(ctx, s.cache, key, func(ctx context.Context) (core.AttemptPage, error) {
		return s.base.List(ctx, filter)
	})
	if err != nil {
		return core.AttemptPage{}, err
	}
	return cloneAttemptPage(page), nil
}

func cloneAttemptPage(page core.AttemptPage) core.AttemptPage {
	cloned := page
	cloned.Items = append([]core.AttemptRecord(nil), page.Items...)
	return cloned
}
