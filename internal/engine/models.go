package engine

import (
	"context"
	"time"

	"outlet-sync/internal/outlet"
)

// OutletLister reads the partner's outlet registry page by page.
type OutletLister interface {
	ListOutlets(ctx context.Context, campaignID, page, pageSize int) (outlet.OutletsPage, error)
}

// RegionSearcher queries the partner's region index.
type RegionSearcher interface {
	SearchRegions(ctx context.Context, name string, page int) ([]outlet.RegionNode, error)
}

// OutletWriter mutates the partner's outlet registry.
type OutletWriter interface {
	CreateOutlet(ctx context.Context, campaignID int, o outlet.RemotePayload) (outlet.ServiceResult, error)
	UpdateOutlet(ctx context.Context, campaignID, outletID int, o outlet.RemotePayload) (outlet.ServiceResult, error)
	DeleteOutlet(ctx context.Context, campaignID, outletID int) (outlet.ServiceResult, error)
}

// Partner is the whole partner API surface the engine drives.
type Partner interface {
	OutletLister
	RegionSearcher
	OutletWriter
}

// Directory lists the campaigns to sync.
type Directory interface {
	ListCampaigns(ctx context.Context) ([]outlet.Campaign, error)
}

// Catalog reads local stores and takes resolved city ids back.
type Catalog interface {
	ListStoreRegionHints(ctx context.Context, spaceID string) (map[string]outlet.RegionHint, error)
	ListActiveStores(ctx context.Context, spaceID string) ([]outlet.Store, error)
	PersistResolvedCityID(ctx context.Context, code string, cityID int) error
}

// Publisher receives one event per outlet action.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Event describes the outcome of one create, update or delete call.
type Event struct {
	RunID      string    `json:"runId"`
	CampaignID int       `json:"campaignId"`
	Code       string    `json:"code"`
	RemoteID   *int      `json:"remoteId,omitempty"`
	Action     Action    `json:"action"`
	OK         bool      `json:"ok"`
	Error      string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}

type Trigger string

const (
	TriggerManual   Trigger = "manual"
	TriggerAPI      Trigger = "api"
	TriggerSchedule Trigger = "schedule"
	TriggerCatalog  Trigger = "catalog_change"
)

// Result counts what one reconciliation pass did.
type Result struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Deleted int      `json:"deleted"`
	Failed  int      `json:"failed"`
	Skipped int      `json:"skipped"`
	Orphans []string `json:"orphans,omitempty"`
}

// AbortNoLocalStores marks a campaign skipped because its space has no
// syncable stores. It is not a failure.
const AbortNoLocalStores = "no local stores"

type CampaignReport struct {
	CampaignID int    `json:"campaignId"`
	Domain     string `json:"domain"`
	SpaceID    string `json:"spaceId"`
	Remote     int    `json:"remote"`
	Local      int    `json:"local"`
	Invalid    int    `json:"invalid"`
	Excluded   int    `json:"excluded"`
	Result
	Aborted string `json:"aborted,omitempty"`
}

// Report summarizes one sync run.
type Report struct {
	RunID      string           `json:"runId"`
	Trigger    Trigger          `json:"trigger"`
	StartedAt  time.Time        `json:"startedAt"`
	FinishedAt time.Time        `json:"finishedAt"`
	Campaigns  []CampaignReport `json:"campaigns"`
	Error      string           `json:"error,omitempty"`
}

type runIDKey struct{}

func withRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

func runIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
