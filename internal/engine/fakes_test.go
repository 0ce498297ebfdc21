package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"outlet-sync/internal/apperrors"
	"outlet-sync/internal/outlet"
)

type call struct {
	Op         string
	CampaignID int
	OutletID   int
	Code       string
	At         time.Time
}

// fakePartner serves canned pages and region answers and records mutations.
type fakePartner struct {
	mu sync.Mutex

	pages     map[int][]outlet.OutletsPage // campaign -> pages, index 0 is page 1
	listErr   map[int]error
	listCalls int

	regions     [][]outlet.RegionNode // index 0 is page 1
	regionErr   error
	regionCalls int
	regionTimes []time.Time

	failCodes map[string]error
	calls     []call
}

func newFakePartner() *fakePartner {
	return &fakePartner{
		pages:     map[int][]outlet.OutletsPage{},
		listErr:   map[int]error{},
		failCodes: map[string]error{},
	}
}

func (f *fakePartner) ListOutlets(_ context.Context, campaignID, page, _ int) (outlet.OutletsPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if err := f.listErr[campaignID]; err != nil {
		return outlet.OutletsPage{}, err
	}
	pages := f.pages[campaignID]
	if page-1 < len(pages) {
		return pages[page-1], nil
	}
	return outlet.OutletsPage{Pager: &outlet.Pager{PageSize: 0}}, nil
}

func (f *fakePartner) SearchRegions(_ context.Context, _ string, page int) ([]outlet.RegionNode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regionCalls++
	f.regionTimes = append(f.regionTimes, time.Now())
	if f.regionErr != nil {
		return nil, f.regionErr
	}
	if page-1 < len(f.regions) {
		return f.regions[page-1], nil
	}
	return nil, nil
}

func (f *fakePartner) record(c call) (outlet.ServiceResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.At = time.Now()
	f.calls = append(f.calls, c)
	if err, ok := f.failCodes[c.Code]; ok {
		if err == nil {
			return outlet.ServiceResult{
				Status: outlet.StatusError,
				Errors: []apperrors.PartnerError{{Code: "BAD_OUTLET", Message: "rejected"}},
			}, nil
		}
		return outlet.ServiceResult{}, err
	}
	return outlet.ServiceResult{Status: outlet.StatusOK}, nil
}

func (f *fakePartner) CreateOutlet(_ context.Context, campaignID int, o outlet.RemotePayload) (outlet.ServiceResult, error) {
	return f.record(call{Op: "create", CampaignID: campaignID, Code: o.ShopOutletCode})
}

func (f *fakePartner) UpdateOutlet(_ context.Context, campaignID, outletID int, o outlet.RemotePayload) (outlet.ServiceResult, error) {
	return f.record(call{Op: "update", CampaignID: campaignID, OutletID: outletID, Code: o.ShopOutletCode})
}

func (f *fakePartner) DeleteOutlet(_ context.Context, campaignID, outletID int) (outlet.ServiceResult, error) {
	return f.record(call{Op: "delete", CampaignID: campaignID, OutletID: outletID, Code: fmt.Sprintf("#%d", outletID)})
}

// ops returns recorded mutations without their timestamps.
func (f *fakePartner) ops() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]call, len(f.calls))
	for i, c := range f.calls {
		c.At = time.Time{}
		out[i] = c
	}
	return out
}

func (f *fakePartner) mutationTimes() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Time, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.At
	}
	return out
}

// assertSpaced checks that successive calls are at least min apart. A small
// slack absorbs timer granularity.
func assertSpaced(t *testing.T, times []time.Time, min time.Duration) {
	t.Helper()
	const slack = 2 * time.Millisecond
	for i := 1; i < len(times); i++ {
		gap := times[i].Sub(times[i-1])
		assert.GreaterOrEqualf(t, gap, min-slack, "calls %d and %d only %s apart", i-1, i, gap)
	}
}

type fakeDirectory struct {
	campaigns []outlet.Campaign
	err       error
}

func (d *fakeDirectory) ListCampaigns(context.Context) ([]outlet.Campaign, error) {
	return d.campaigns, d.err
}

type fakeCatalog struct {
	hints     map[string]map[string]outlet.RegionHint
	stores    map[string][]outlet.Store
	storesErr error
	persisted map[string]int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		hints:     map[string]map[string]outlet.RegionHint{},
		stores:    map[string][]outlet.Store{},
		persisted: map[string]int{},
	}
}

func (c *fakeCatalog) ListStoreRegionHints(_ context.Context, spaceID string) (map[string]outlet.RegionHint, error) {
	return c.hints[spaceID], nil
}

func (c *fakeCatalog) ListActiveStores(_ context.Context, spaceID string) ([]outlet.Store, error) {
	if c.storesErr != nil {
		return nil, c.storesErr
	}
	return c.stores[spaceID], nil
}

func (c *fakeCatalog) PersistResolvedCityID(_ context.Context, code string, cityID int) error {
	c.persisted[code] = cityID
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *fakePublisher) Publish(_ context.Context, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func intPtr(v int) *int { return &v }

func rawOutlet(code string, id int) json.RawMessage {
	b, _ := json.Marshal(map[string]any{"id": id, "shopOutletCode": code, "type": "DEPOT", "visibility": "VISIBLE"})
	return b
}

func page(size int, items ...json.RawMessage) outlet.OutletsPage {
	return outlet.OutletsPage{Outlets: items, Pager: &outlet.Pager{PageSize: size}}
}

func remoteOutlet(code string, id *int) outlet.Outlet {
	return outlet.Outlet{Code: code, RemoteID: id, Type: outlet.TypeDepot, Visibility: outlet.Visible}
}

func localOutlet(code string) outlet.Outlet {
	return outlet.Outlet{Code: code, Name: "Store " + code, Type: outlet.TypeDepot, Visibility: outlet.Visible}
}
