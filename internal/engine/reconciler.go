package engine

import (
	"context"
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"outlet-sync/internal/apperrors"
	"outlet-sync/internal/observability"
	"outlet-sync/internal/outlet"
)

// Reconciler converges the partner registry of one campaign onto the local set.
type Reconciler struct {
	partner OutletWriter
	pacer   *Pacer
	pub     Publisher
	log     zerolog.Logger
}

func NewReconciler(p OutletWriter, pacer *Pacer, pub Publisher, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		partner: p,
		pacer:   pacer,
		pub:     pub,
		log:     logger.With().Str("component", "reconciler").Logger(),
	}
}

// Reconcile creates local outlets the partner lacks, updates every matched
// outlet and deletes remote outlets without a local counterpart. A failed call
// is logged and counted; the rest of the set is still processed. remote is
// not modified.
func (r *Reconciler) Reconcile(ctx context.Context, campaignID int, local, remote map[string]outlet.Outlet) Result {
	var res Result
	working := maps.Clone(remote)
	if working == nil {
		working = map[string]outlet.Outlet{}
	}

	for _, code := range sortedKeys(local) {
		if ctx.Err() != nil {
			r.log.Warn().Err(ctx.Err()).Int("campaign_id", campaignID).Msg("reconciliation interrupted")
			return res
		}

		o := local[code]
		rem, matched := working[code]
		if !matched {
			if r.apply(ctx, ActionCreate, campaignID, code, nil, func(ctx context.Context) (outlet.ServiceResult, error) {
				return r.partner.CreateOutlet(ctx, campaignID, outlet.ToRemotePayload(o))
			}) {
				res.Created++
			} else {
				res.Failed++
			}
			continue
		}

		delete(working, code)
		if rem.RemoteID == nil {
			r.log.Warn().Int("campaign_id", campaignID).Str("code", code).Msg("matched outlet has no remote id, skipping update")
			res.Skipped++
			continue
		}
		id := *rem.RemoteID
		if r.apply(ctx, ActionUpdate, campaignID, code, &id, func(ctx context.Context) (outlet.ServiceResult, error) {
			return r.partner.UpdateOutlet(ctx, campaignID, id, outlet.ToRemotePayload(o))
		}) {
			res.Updated++
		} else {
			res.Failed++
		}
	}

	if len(working) == 0 {
		return res
	}

	res.Orphans = sortedKeys(working)
	r.log.Info().Int("campaign_id", campaignID).Strs("codes", res.Orphans).Msg("remote outlets without local match")

	for _, code := range res.Orphans {
		if ctx.Err() != nil {
			r.log.Warn().Err(ctx.Err()).Int("campaign_id", campaignID).Msg("reconciliation interrupted")
			return res
		}

		rem := working[code]
		if rem.RemoteID == nil {
			res.Skipped++
			continue
		}
		id := *rem.RemoteID
		if r.apply(ctx, ActionDelete, campaignID, code, &id, func(ctx context.Context) (outlet.ServiceResult, error) {
			return r.partner.DeleteOutlet(ctx, campaignID, id)
		}) {
			res.Deleted++
		} else {
			res.Failed++
		}
	}

	r.log.Info().Int("campaign_id", campaignID).Int("deleted", res.Deleted).Msg("unmatched outlets removed")
	return res
}

// apply runs one paced mutation and reports whether it succeeded.
func (r *Reconciler) apply(ctx context.Context, action Action, campaignID int, code string, remoteID *int,
	call func(context.Context) (outlet.ServiceResult, error)) bool {
	err := r.pacer.Do(ctx, func(ctx context.Context) error {
		sr, err := call(ctx)
		if err != nil {
			return err
		}
		return sr.Err(string(action) + " outlet")
	})

	ev := Event{
		RunID:      runIDFrom(ctx),
		CampaignID: campaignID,
		Code:       code,
		RemoteID:   remoteID,
		Action:     action,
		OK:         err == nil,
		At:         time.Now().UTC(),
	}

	if err != nil {
		ev.Error = err.Error()
		e := r.log.Error().Err(err).Int("campaign_id", campaignID).Str("code", code).Str("action", string(action))
		if remoteID != nil {
			e = e.Int("remote_id", *remoteID)
		}
		var se *apperrors.ServiceError
		if errors.As(err, &se) {
			e = e.Strs("partner_codes", se.Codes())
		}
		e.Msg("outlet sync failed")
		observability.OutletOps.WithLabelValues(string(action), "failed").Inc()
	} else {
		r.log.Debug().Int("campaign_id", campaignID).Str("code", code).Str("action", string(action)).Msg("outlet synced")
		observability.OutletOps.WithLabelValues(string(action), "ok").Inc()
	}

	if r.pub != nil {
		if perr := r.pub.Publish(ctx, ev); perr != nil {
			r.log.Warn().Err(perr).Str("code", code).Msg("publish outlet event")
		}
	}
	return err == nil
}

// sortedKeys returns the keys of m in ascending order.
func sortedKeys(m map[string]outlet.Outlet) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
