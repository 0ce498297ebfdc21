package outlet

import (
	"encoding/json"

	"outlet-sync/internal/apperrors"
)

// Campaign is one partner storefront bound to an internal space.
type Campaign struct {
	CampaignID int    `json:"campaignId"`
	Domain     string `json:"domain"`
	SpaceID    string `json:"spaceId"`
}

// Address of an outlet. CityID is the partner's locality id and must be
// known before the outlet is pushed.
type Address struct {
	RegionID   *int
	Region     string
	CityID     *int
	City       string
	Street     string
	Number     string
	Building   string
	Estate     string
	Block      string
	Additional string
	Km         *int
}

type ScheduleItem struct {
	StartDay  Weekday
	EndDay    Weekday
	StartTime string // HH:MM
	EndTime   string // HH:MM
}

type Schedule struct {
	WorksOnHolidays bool
	Items           []ScheduleItem
}

type DeliveryRules struct {
	MinDeliveryDays   int
	MaxDeliveryDays   int
	OrderBefore       int
	Cost              float64
	PriceFreePickup   float64
	DeliveryServiceID int
}

// Outlet is one point of sale. Code is the only key used to correlate
// local and remote records; RemoteID is nil until the partner assigns one.
type Outlet struct {
	RemoteID      *int
	Code          string
	Name          string
	Type          Type
	Visibility    Visibility
	Coords        string // "lon,lat"
	IsMain        bool
	Address       Address
	Phones        []string
	Schedule      Schedule
	DeliveryRules DeliveryRules
	Emails        []string
}

// RegionNode is a partner region with its ancestor chain.
type RegionNode struct {
	ID     int
	Name   string
	Type   string
	Parent *RegionNode
}

// Ancestors walks the parent chain from the closest ancestor up to the root.
func (n RegionNode) Ancestors() []RegionNode {
	var out []RegionNode
	for p := n.Parent; p != nil; p = p.Parent {
		out = append(out, RegionNode{ID: p.ID, Name: p.Name, Type: p.Type})
	}
	return out
}

// Pager is the page window returned alongside paginated partner responses.
// PageSize == 0 means there are no more results.
type Pager struct {
	CurrentPage int `json:"currentPage"`
	From        int `json:"from"`
	PageSize    int `json:"pageSize"`
	To          int `json:"to"`
}

// OutletsPage is one raw page of the partner outlet listing. Pager is nil when
// the partner omitted it.
type OutletsPage struct {
	Outlets []json.RawMessage
	Pager   *Pager
}

type Status string

const (
	StatusOK    Status = "OK"
	StatusError Status = "ERROR"
)

// ParseStatus treats anything but OK as ERROR.
func ParseStatus(s string) Status {
	if Status(s) == StatusOK {
		return StatusOK
	}
	return StatusError
}

// ServiceResult is returned by every mutating partner call.
type ServiceResult struct {
	Status Status
	Errors []apperrors.PartnerError
}

// Err converts an ERROR result into a *apperrors.ServiceError.
func (r ServiceResult) Err(op string) error {
	if r.Status == StatusOK {
		return nil
	}
	return &apperrors.ServiceError{Op: op, Errors: r.Errors}
}

// RegionHint is the catalog's region bookkeeping for one store.
type RegionHint struct {
	RegionID   *int
	RegionName string
	CityID     *int
}

// Store is the internal catalog record an outlet is built from.
type Store struct {
	ID            string
	Name          string
	IsMain        bool
	Blocked       bool
	CoordX        float64
	CoordY        float64
	Phones        []string
	Address       StoreAddress
	WorkDays      []WorkDay
	DeliveryPrice float64
}

type StoreAddress struct {
	Region     string
	City       string
	Street     string
	House      string
	Building   string
	Possession string
	HouseBlock string
	Note       string
	Km         *int
}

type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

type WorkDay struct {
	Day   Weekday   `json:"day"`
	Open  TimeOfDay `json:"open"`
	Close TimeOfDay `json:"close"`
}
