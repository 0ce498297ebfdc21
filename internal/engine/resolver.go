package engine

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"outlet-sync/internal/observability"
	"outlet-sync/internal/outlet"
)

const DefaultRegionMaxPages = 15

// RegionQuery is what the catalog knows about a store's location.
// RegionID 0 means unknown.
type RegionQuery struct {
	City       string
	RegionName string
	RegionID   int
}

// Resolver maps a store's city onto the partner's locality id. Answers are
// cached until Reset so a run asks the partner once per distinct query.
type Resolver struct {
	partner  RegionSearcher
	pacer    *Pacer
	maxPages int
	log      zerolog.Logger

	mu    sync.Mutex
	cache map[RegionQuery]int
}

func NewResolver(p RegionSearcher, pacer *Pacer, maxPages int, logger zerolog.Logger) *Resolver {
	if maxPages <= 0 {
		maxPages = DefaultRegionMaxPages
	}
	return &Resolver{
		partner:  p,
		pacer:    pacer,
		maxPages: maxPages,
		log:      logger.With().Str("component", "resolver").Logger(),
		cache:    make(map[RegionQuery]int),
	}
}

// Reset drops cached answers.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.cache = make(map[RegionQuery]int)
	r.mu.Unlock()
}

// Resolve never fails: when the search errors, comes back empty or finds no
// match, q.RegionID is returned unchanged.
func (r *Resolver) Resolve(ctx context.Context, q RegionQuery) int {
	r.mu.Lock()
	id, ok := r.cache[q]
	r.mu.Unlock()
	if ok {
		observability.RegionLookups.WithLabelValues("cached").Inc()
		return id
	}

	id, outcome := r.search(ctx, q)
	observability.RegionLookups.WithLabelValues(outcome).Inc()

	r.mu.Lock()
	r.cache[q] = id
	r.mu.Unlock()
	return id
}

func (r *Resolver) search(ctx context.Context, q RegionQuery) (int, string) {
	l := r.log.With().Str("city", q.City).Int("region_id", q.RegionID).Logger()

	for page := 1; page <= r.maxPages; page++ {
		if err := r.pacer.Wait(ctx); err != nil {
			l.Warn().Err(err).Msg("region search interrupted")
			return q.RegionID, "error"
		}

		candidates, err := r.partner.SearchRegions(ctx, q.City, page)
		if err != nil {
			l.Warn().Err(err).Int("page", page).Msg("region search failed, keeping known region")
			return q.RegionID, "error"
		}
		if len(candidates) == 0 {
			l.Debug().Int("page", page).Msg("region search exhausted")
			return q.RegionID, "fallback"
		}

		if id, ok := match(candidates, q); ok {
			l.Debug().Int("page", page).Int("city_id", id).Msg("region resolved")
			return id, "matched"
		}
	}

	l.Debug().Int("pages", r.maxPages).Msg("no region matched, keeping known region")
	return q.RegionID, "fallback"
}

// match accepts the first candidate that is the known region itself, or whose
// ancestors contain the known region id or the store's region name.
func match(candidates []outlet.RegionNode, q RegionQuery) (int, bool) {
	for _, c := range candidates {
		if q.RegionID != 0 && c.ID == q.RegionID {
			return c.ID, true
		}
		if c.Parent == nil {
			continue
		}
		for _, a := range c.Ancestors() {
			if (q.RegionID != 0 && a.ID == q.RegionID) || (q.RegionName != "" && a.Name == q.RegionName) {
				return c.ID, true
			}
		}
	}
	return 0, false
}
