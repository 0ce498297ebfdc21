package outlet

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"outlet-sync/internal/apperrors"
)

// RemotePayload is the outlet body sent to the partner on create and update.
type RemotePayload struct {
	Name            string                 `json:"name"`
	Type            Type                   `json:"type"`
	Coords          string                 `json:"coords"`
	IsMain          bool                   `json:"isMain"`
	ShopOutletCode  string                 `json:"shopOutletCode"`
	Visibility      Visibility             `json:"visibility"`
	Address         AddressPayload         `json:"address"`
	Phones          []string               `json:"phones"`
	WorkingSchedule SchedulePayload        `json:"workingSchedule"`
	DeliveryRules   []DeliveryRulesPayload `json:"deliveryRules"`
	Emails          []string               `json:"emails"`
}

// AddressPayload carries only non-empty parts. The partner calls the
// locality id regionId.
type AddressPayload struct {
	RegionID   *int   `json:"regionId"`
	Street     string `json:"street,omitempty"`
	Number     string `json:"number,omitempty"`
	Building   string `json:"building,omitempty"`
	Estate     string `json:"estate,omitempty"`
	Block      string `json:"block,omitempty"`
	Additional string `json:"additional,omitempty"`
	Km         *int   `json:"km,omitempty"`
}

type SchedulePayload struct {
	WorkInHoliday bool                  `json:"workInHoliday"`
	ScheduleItems []ScheduleItemPayload `json:"scheduleItems"`
}

type ScheduleItemPayload struct {
	StartDay  string `json:"startDay"`
	EndDay    string `json:"endDay"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

type DeliveryRulesPayload struct {
	Cost              float64 `json:"cost"`
	MinDeliveryDays   int     `json:"minDeliveryDays"`
	MaxDeliveryDays   int     `json:"maxDeliveryDays"`
	DeliveryServiceID int     `json:"deliveryServiceId"`
	OrderBefore       int     `json:"orderBefore"`
	PriceFreePickup   float64 `json:"priceFreePickup"`
}

// ToRemotePayload renders an outlet the way the partner expects it.
func ToRemotePayload(o Outlet) RemotePayload {
	items := make([]ScheduleItemPayload, 0, len(o.Schedule.Items))
	for _, it := range o.Schedule.Items {
		items = append(items, ScheduleItemPayload{
			StartDay:  it.StartDay.String(),
			EndDay:    it.EndDay.String(),
			StartTime: it.StartTime,
			EndTime:   it.EndTime,
		})
	}

	phones := FormatPhones(o.Phones)
	if phones == nil {
		phones = []string{}
	}
	emails := o.Emails
	if emails == nil {
		emails = []string{}
	}

	return RemotePayload{
		Name:           o.Name,
		Type:           o.Type,
		Coords:         o.Coords,
		IsMain:         o.IsMain,
		ShopOutletCode: o.Code,
		Visibility:     o.Visibility,
		Address: AddressPayload{
			RegionID:   o.Address.CityID,
			Street:     o.Address.Street,
			Number:     o.Address.Number,
			Building:   o.Address.Building,
			Estate:     o.Address.Estate,
			Block:      o.Address.Block,
			Additional: o.Address.Additional,
			Km:         o.Address.Km,
		},
		Phones: phones,
		WorkingSchedule: SchedulePayload{
			WorkInHoliday: o.Schedule.WorksOnHolidays,
			ScheduleItems: items,
		},
		DeliveryRules: []DeliveryRulesPayload{{
			Cost:              o.DeliveryRules.Cost,
			MinDeliveryDays:   o.DeliveryRules.MinDeliveryDays,
			MaxDeliveryDays:   o.DeliveryRules.MaxDeliveryDays,
			DeliveryServiceID: o.DeliveryRules.DeliveryServiceID,
			OrderBefore:       o.DeliveryRules.OrderBefore,
			PriceFreePickup:   o.DeliveryRules.PriceFreePickup,
		}},
		Emails: emails,
	}
}

type remoteOutlet struct {
	ID             *flexNum `json:"id"`
	Name           string   `json:"name"`
	Type           enumText `json:"type"`
	Coords         string   `json:"coords"`
	IsMain         flexBool `json:"isMain"`
	ShopOutletCode string   `json:"shopOutletCode"`
	Visibility     enumText `json:"visibility"`
	Address        *struct {
		RegionID   *flexNum `json:"regionId"`
		Street     string   `json:"street"`
		Number     string   `json:"number"`
		Building   string   `json:"building"`
		Estate     string   `json:"estate"`
		Block      string   `json:"block"`
		Additional string   `json:"additional"`
		Km         *flexNum `json:"km"`
	} `json:"address"`
	Phones          []string `json:"phones"`
	Emails          []string `json:"emails"`
	WorkingSchedule struct {
		WorkInHoliday flexBool `json:"workInHoliday"`
		ScheduleItems []struct {
			StartDay  string `json:"startDay"`
			EndDay    string `json:"endDay"`
			StartTime string `json:"startTime"`
			EndTime   string `json:"endTime"`
		} `json:"scheduleItems"`
	} `json:"workingSchedule"`
	DeliveryRules []struct {
		MinDeliveryDays   *flexNum `json:"minDeliveryDays"`
		MaxDeliveryDays   *flexNum `json:"maxDeliveryDays"`
		Cost              *flexNum `json:"cost"`
		DeliveryServiceID *flexNum `json:"deliveryServiceId"`
		OrderBefore       *flexNum `json:"orderBefore"`
		PriceFreePickup   *flexNum `json:"priceFreePickup"`
	} `json:"deliveryRules"`
}

// FromRemotePayload decodes one outlet of the partner listing. Unknown type
// and visibility values degrade to DEPOT and HIDDEN instead of failing.
func FromRemotePayload(raw []byte) (Outlet, error) {
	var r remoteOutlet
	if err := json.Unmarshal(raw, &r); err != nil {
		return Outlet{}, &apperrors.DeserializationError{Op: "decode outlet", Err: err}
	}

	o := Outlet{
		RemoteID:   r.ID.intPtr(),
		Code:       strings.ToLower(r.ShopOutletCode),
		Name:       r.Name,
		Type:       ParseType(string(r.Type)),
		Visibility: ParseVisibility(string(r.Visibility)),
		Coords:     r.Coords,
		IsMain:     bool(r.IsMain),
		Phones:     r.Phones,
		Emails:     r.Emails,
		Schedule:   Schedule{WorksOnHolidays: bool(r.WorkingSchedule.WorkInHoliday)},
		DeliveryRules: DeliveryRules{
			MinDeliveryDays: 1,
		},
	}
	if o.Phones == nil {
		o.Phones = []string{}
	}
	if o.Emails == nil {
		o.Emails = []string{}
	}

	if a := r.Address; a != nil {
		o.Address = Address{
			CityID:     a.RegionID.intPtr(),
			Street:     a.Street,
			Number:     a.Number,
			Building:   a.Building,
			Estate:     a.Estate,
			Block:      a.Block,
			Additional: strings.ReplaceAll(a.Additional, `"`, `'`),
			Km:         a.Km.intPtr(),
		}
	}

	for _, it := range r.WorkingSchedule.ScheduleItems {
		o.Schedule.Items = append(o.Schedule.Items, ScheduleItem{
			StartDay:  ParseWeekday(it.StartDay),
			EndDay:    ParseWeekday(it.EndDay),
			StartTime: it.StartTime,
			EndTime:   it.EndTime,
		})
	}

	if len(r.DeliveryRules) > 0 {
		d := r.DeliveryRules[0]
		if d.MinDeliveryDays != nil {
			o.DeliveryRules.MinDeliveryDays = int(*d.MinDeliveryDays)
		}
		o.DeliveryRules.MaxDeliveryDays = d.MaxDeliveryDays.int()
		o.DeliveryRules.Cost = d.Cost.float()
		o.DeliveryRules.DeliveryServiceID = d.DeliveryServiceID.int()
		o.DeliveryRules.OrderBefore = d.OrderBefore.int()
		o.DeliveryRules.PriceFreePickup = d.PriceFreePickup.float()
	}

	return o, nil
}

// flexNum accepts JSON numbers, numeric strings and null.
type flexNum float64

func (n *flexNum) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*n = flexNum(v)
	return nil
}

func (n *flexNum) intPtr() *int {
	if n == nil {
		return nil
	}
	v := int(*n)
	return &v
}

func (n *flexNum) int() int {
	if n == nil {
		return 0
	}
	return int(*n)
}

func (n *flexNum) float() float64 {
	if n == nil {
		return 0
	}
	return float64(*n)
}

// flexBool accepts JSON booleans and their quoted forms.
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	switch strings.ToLower(strings.Trim(string(bytes.TrimSpace(b)), `"`)) {
	case "true", "1":
		*f = true
	default:
		*f = false
	}
	return nil
}

// enumText keeps a JSON string as is and turns any other value into "" so
// the enum parsers fall back to their defaults.
type enumText string

func (e *enumText) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*e = ""
		return nil
	}
	*e = enumText(s)
	return nil
}
