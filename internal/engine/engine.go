package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"outlet-sync/internal/apperrors"
	"outlet-sync/internal/observability"
	"outlet-sync/internal/outlet"
)

// Options wires an Engine. Zero sizes fall back to package defaults.
type Options struct {
	Partner   Partner
	Directory Directory
	Catalog   Catalog
	Publisher Publisher
	Logger    zerolog.Logger

	ManagedSpaces  []string
	PageSize       int
	MaxOutletPages int
	RegionMaxPages int
	Pause          time.Duration
}

// Engine runs the campaign by campaign sync. It is sequential; callers must
// not run two syncs at once (see runner).
type Engine struct {
	dir        Directory
	catalog    Catalog
	reader     *Reader
	resolver   *Resolver
	reconciler *Reconciler
	managed    map[string]struct{}
	log        zerolog.Logger
}

func NewEngine(o Options) *Engine {
	pacer := NewPacer(o.Pause)
	managed := make(map[string]struct{}, len(o.ManagedSpaces))
	for _, s := range o.ManagedSpaces {
		if s = strings.TrimSpace(s); s != "" {
			managed[s] = struct{}{}
		}
	}
	return &Engine{
		dir:        o.Directory,
		catalog:    o.Catalog,
		reader:     NewReader(o.Partner, o.PageSize, o.MaxOutletPages, o.Logger),
		resolver:   NewResolver(o.Partner, pacer, o.RegionMaxPages, o.Logger),
		reconciler: NewReconciler(o.Partner, pacer, o.Publisher, o.Logger),
		managed:    managed,
		log:        o.Logger.With().Str("component", "engine").Logger(),
	}
}

// Run performs one full sync. It only fails when the campaign directory or
// the store catalog fails; partner errors are confined to their campaign or
// outlet and show up in the report.
func (e *Engine) Run(ctx context.Context, trigger Trigger) (Report, error) {
	rep := Report{RunID: uuid.NewString(), Trigger: trigger, StartedAt: time.Now().UTC()}
	ctx = withRunID(ctx, rep.RunID)
	l := e.log.With().Str("run_id", rep.RunID).Str("trigger", string(trigger)).Logger()
	e.resolver.Reset()

	err := e.run(ctx, l, &rep)

	rep.FinishedAt = time.Now().UTC()
	result := "ok"
	if err != nil {
		rep.Error = err.Error()
		result = "aborted"
		l.Error().Err(err).Msg("sync run aborted")
	} else {
		l.Info().Int("campaigns", len(rep.Campaigns)).Dur("took", rep.FinishedAt.Sub(rep.StartedAt)).Msg("sync run finished")
	}
	observability.SyncRuns.WithLabelValues(string(trigger), result).Inc()
	observability.SyncDuration.Observe(rep.FinishedAt.Sub(rep.StartedAt).Seconds())
	observability.LastSyncTimestamp.Set(float64(rep.FinishedAt.Unix()))
	return rep, err
}

func (e *Engine) run(ctx context.Context, l zerolog.Logger, rep *Report) error {
	l.Info().Msg("sync run started")

	campaigns, err := e.dir.ListCampaigns(ctx)
	if err != nil {
		return fmt.Errorf("list campaigns: %w", err)
	}
	if len(campaigns) == 0 {
		l.Warn().Msg("no campaigns configured")
		return nil
	}
	if len(e.managed) == 0 {
		l.Warn().Msg("managed spaces list is empty, nothing to sync")
		return nil
	}

	for _, c := range campaigns {
		if _, ok := e.managed[c.SpaceID]; !ok {
			l.Debug().Int("campaign_id", c.CampaignID).Str("space_id", c.SpaceID).Msg("space not managed, skipping campaign")
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		cr, err := e.syncCampaign(ctx, l.With().Int("campaign_id", c.CampaignID).Str("space_id", c.SpaceID).Logger(), c)
		rep.Campaigns = append(rep.Campaigns, cr)
		if err != nil {
			return err
		}
	}
	return nil
}

// syncCampaign returns an error only for catalog failures.
func (e *Engine) syncCampaign(ctx context.Context, l zerolog.Logger, c outlet.Campaign) (CampaignReport, error) {
	cr := CampaignReport{CampaignID: c.CampaignID, Domain: c.Domain, SpaceID: c.SpaceID}
	l.Info().Str("domain", c.Domain).Msg("syncing campaign")

	remote, err := e.reader.FetchAll(ctx, c.CampaignID)
	if err != nil {
		cr.Aborted = err.Error()
		l.Error().Err(err).Bool("not_found", errors.Is(err, apperrors.ErrNotFound)).Msg("remote outlets unavailable, skipping campaign")
		observability.RequestErrors.WithLabelValues("remote_listing").Inc()
		return cr, nil
	}
	cr.Remote = len(remote)

	local, err := e.localOutlets(ctx, l, c.SpaceID, &cr)
	if err != nil {
		cr.Aborted = err.Error()
		return cr, err
	}
	if len(local) == 0 {
		l.Info().Msg("no local stores for space, skipping campaign")
		cr.Aborted = AbortNoLocalStores
		return cr, nil
	}
	cr.Local = len(local)

	cr.Result = e.reconciler.Reconcile(ctx, c.CampaignID, local, remote)
	l.Info().
		Int("created", cr.Created).
		Int("updated", cr.Updated).
		Int("deleted", cr.Deleted).
		Int("failed", cr.Failed).
		Msg("campaign synced")
	return cr, nil
}

// localOutlets builds the local set for a space. Stores without a region
// hint or failing validation are skipped; stores without a city id get one
// resolved and written back, or are excluded when nothing usable comes out.
func (e *Engine) localOutlets(ctx context.Context, l zerolog.Logger, spaceID string, cr *CampaignReport) (map[string]outlet.Outlet, error) {
	hints, err := e.catalog.ListStoreRegionHints(ctx, spaceID)
	if err != nil {
		return nil, fmt.Errorf("store region hints for %s: %w", spaceID, err)
	}
	stores, err := e.catalog.ListActiveStores(ctx, spaceID)
	if err != nil {
		return nil, fmt.Errorf("active stores for %s: %w", spaceID, err)
	}

	slices.SortFunc(stores, func(a, b outlet.Store) int { return strings.Compare(a.ID, b.ID) })

	out := make(map[string]outlet.Outlet, len(stores))
	for _, s := range stores {
		code := strings.ToLower(s.ID)
		hint, ok := hints[code]
		if !ok {
			l.Debug().Str("code", code).Msg("store has no region data, skipping")
			cr.Invalid++
			continue
		}

		o, err := outlet.FromLocalStore(s)
		if err != nil {
			l.Warn().Err(err).Str("code", code).Msg("store cannot be synced, skipping")
			cr.Invalid++
			continue
		}
		o.Address.RegionID = hint.RegionID
		o.Address.CityID = hint.CityID

		if o.Address.CityID == nil {
			known := 0
			if hint.RegionID != nil {
				known = *hint.RegionID
			}
			cityID := e.resolver.Resolve(ctx, RegionQuery{City: o.Address.City, RegionName: hint.RegionName, RegionID: known})
			if cityID == 0 {
				l.Error().Str("code", code).Str("city", o.Address.City).Msg("city could not be resolved, excluding store")
				cr.Excluded++
				continue
			}
			o.Address.CityID = &cityID
			if err := e.catalog.PersistResolvedCityID(ctx, code, cityID); err != nil {
				l.Warn().Err(err).Str("code", code).Int("city_id", cityID).Msg("persist resolved city id")
			}
		}

		out[code] = o
	}
	return out, nil
}
