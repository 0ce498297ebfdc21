package outlet

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"outlet-sync/internal/apperrors"
)

// Delivery terms pushed for every local store.
const (
	DefaultDeliveryServiceID = 99
	DefaultMaxDeliveryDays   = 2
	DefaultOrderBefore       = 24
	DefaultPriceFreePickup   = 0
)

// FromLocalStore builds the partner view of a catalog store. It fails with a
// *apperrors.ValidationError when the store has no city or no working period.
func FromLocalStore(s Store) (Outlet, error) {
	addr, err := addressFromStore(s.Address)
	if err != nil {
		return Outlet{}, err
	}

	items := CompressWorkDays(s.WorkDays)
	if len(items) == 0 {
		return Outlet{}, &apperrors.ValidationError{Field: "workingSchedule", Message: "store has no working period"}
	}

	o := Outlet{
		Code:       strings.ToLower(s.ID),
		Name:       s.Name,
		Type:       TypeDepot,
		Visibility: Visible,
		Coords:     formatCoord(s.CoordX) + "," + formatCoord(s.CoordY),
		IsMain:     s.IsMain,
		Address:    addr,
		Phones:     s.Phones,
		Schedule:   Schedule{WorksOnHolidays: s.IsMain, Items: items},
		DeliveryRules: DeliveryRules{
			MinDeliveryDays:   0,
			MaxDeliveryDays:   DefaultMaxDeliveryDays,
			OrderBefore:       DefaultOrderBefore,
			Cost:              s.DeliveryPrice,
			PriceFreePickup:   DefaultPriceFreePickup,
			DeliveryServiceID: DefaultDeliveryServiceID,
		},
		Emails: []string{},
	}
	if s.IsMain {
		o.Type = TypeMixed
		o.DeliveryRules.MinDeliveryDays = 1
	}
	if s.Blocked {
		o.Visibility = Hidden
	}
	return o, nil
}

func addressFromStore(a StoreAddress) (Address, error) {
	if strings.TrimSpace(a.City) == "" {
		return Address{}, &apperrors.ValidationError{Field: "address.city", Message: "city is empty"}
	}
	return Address{
		Region:     a.Region,
		City:       a.City,
		Street:     a.Street,
		Number:     a.House,
		Building:   a.Building,
		Estate:     a.Possession,
		Block:      a.HouseBlock,
		Additional: strings.ReplaceAll(a.Note, `"`, `'`),
		Km:         a.Km,
	}, nil
}

// CompressWorkDays run-length encodes per-day opening hours in week order:
// a day joins the previous item when it directly follows it and has the same
// hours, otherwise it opens a new item. Unknown and repeated days are ignored.
func CompressWorkDays(days []WorkDay) []ScheduleItem {
	sorted := make([]WorkDay, 0, len(days))
	for _, d := range days {
		if d.Day.Valid() {
			sorted = append(sorted, d)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Day < sorted[j].Day })

	var items []ScheduleItem
	for _, d := range sorted {
		start, end := formatTime(d.Open), formatTime(d.Close)
		if n := len(items); n > 0 {
			last := &items[n-1]
			if d.Day <= last.EndDay {
				continue
			}
			if d.Day == last.EndDay+1 && last.StartTime == start && last.EndTime == end {
				last.EndDay = d.Day
				continue
			}
		}
		items = append(items, ScheduleItem{StartDay: d.Day, EndDay: d.Day, StartTime: start, EndTime: end})
	}
	return items
}

func formatTime(t TimeOfDay) string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
