package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"outlet-sync/internal/apperrors"
	"outlet-sync/internal/outlet"
)

const (
	DefaultPageSize       = 50
	DefaultMaxOutletPages = 1000
)

// Reader fetches the full outlet registry of a campaign.
type Reader struct {
	partner  OutletLister
	pageSize int
	maxPages int
	log      zerolog.Logger
}

func NewReader(p OutletLister, pageSize, maxPages int, logger zerolog.Logger) *Reader {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if maxPages <= 0 {
		maxPages = DefaultMaxOutletPages
	}
	return &Reader{
		partner:  p,
		pageSize: pageSize,
		maxPages: maxPages,
		log:      logger.With().Str("component", "reader").Logger(),
	}
}

// FetchAll walks pages from 1 until a page reports pageSize 0. Items of that
// last page are kept. Duplicate codes across pages resolve to the later page.
func (r *Reader) FetchAll(ctx context.Context, campaignID int) (map[string]outlet.Outlet, error) {
	out := make(map[string]outlet.Outlet)
	for page := 1; ; page++ {
		if page > r.maxPages {
			return nil, fmt.Errorf("campaign %d: possible infinite pagination after %d pages", campaignID, r.maxPages)
		}

		resp, err := r.partner.ListOutlets(ctx, campaignID, page, r.pageSize)
		if err != nil {
			return nil, fmt.Errorf("campaign %d page %d: %w", campaignID, page, err)
		}
		if resp.Pager == nil {
			return nil, &apperrors.NotFoundError{Resource: "campaign outlets", ID: strconv.Itoa(campaignID)}
		}

		for _, raw := range resp.Outlets {
			o, err := outlet.FromRemotePayload(raw)
			if err != nil {
				return nil, fmt.Errorf("campaign %d page %d: %w", campaignID, page, err)
			}
			if prev, dup := out[o.Code]; dup {
				r.log.Debug().Int("campaign_id", campaignID).Str("code", o.Code).
					Interface("replaced_remote_id", prev.RemoteID).Msg("duplicate outlet code, keeping later page")
			}
			out[o.Code] = o
		}

		if resp.Pager.PageSize == 0 {
			r.log.Debug().Int("campaign_id", campaignID).Int("pages", page).Int("outlets", len(out)).Msg("remote outlets fetched")
			return out, nil
		}
	}
}
