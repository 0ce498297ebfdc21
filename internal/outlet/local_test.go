package outlet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outlet-sync/internal/apperrors"
)

func day(d Weekday, oh, om, ch, cm int) WorkDay {
	return WorkDay{Day: d, Open: TimeOfDay{Hour: oh, Minute: om}, Close: TimeOfDay{Hour: ch, Minute: cm}}
}

func TestCompressWorkDays(t *testing.T) {
	tests := []struct {
		name string
		days []WorkDay
		want []ScheduleItem
	}{
		{
			name: "adjacent equal hours merge",
			days: []WorkDay{day(Monday, 9, 0, 18, 0), day(Tuesday, 9, 0, 18, 0), day(Wednesday, 10, 0, 19, 0)},
			want: []ScheduleItem{
				{StartDay: Monday, EndDay: Tuesday, StartTime: "09:00", EndTime: "18:00"},
				{StartDay: Wednesday, EndDay: Wednesday, StartTime: "10:00", EndTime: "19:00"},
			},
		},
		{
			name: "gap breaks run",
			days: []WorkDay{day(Monday, 9, 0, 18, 0), day(Wednesday, 9, 0, 18, 0)},
			want: []ScheduleItem{
				{StartDay: Monday, EndDay: Monday, StartTime: "09:00", EndTime: "18:00"},
				{StartDay: Wednesday, EndDay: Wednesday, StartTime: "09:00", EndTime: "18:00"},
			},
		},
		{
			name: "unsorted input and duplicates",
			days: []WorkDay{day(Sunday, 10, 30, 16, 0), day(Saturday, 10, 30, 16, 0), day(Saturday, 8, 0, 9, 0)},
			want: []ScheduleItem{
				{StartDay: Saturday, EndDay: Sunday, StartTime: "10:30", EndTime: "16:00"},
			},
		},
		{
			name: "invalid days ignored",
			days: []WorkDay{day(0, 9, 0, 18, 0), day(8, 9, 0, 18, 0)},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CompressWorkDays(tt.days))
		})
	}
}

func sampleStore() Store {
	km := 12
	return Store{
		ID:      "MSK-01",
		Name:    "Central",
		IsMain:  true,
		CoordX:  37.6173,
		CoordY:  55.7558,
		Phones:  []string{"+7 916 123 45 67"},
		Address: StoreAddress{Region: "Moscow", City: "Moscow", Street: "Tverskaya", House: "1", Note: `near "Gate"`, Km: &km},
		WorkDays: []WorkDay{
			day(Monday, 9, 0, 21, 0),
			day(Tuesday, 9, 0, 21, 0),
		},
		DeliveryPrice: 150,
	}
}

func TestFromLocalStore(t *testing.T) {
	o, err := FromLocalStore(sampleStore())
	require.NoError(t, err)

	assert.Equal(t, "msk-01", o.Code)
	assert.Equal(t, TypeMixed, o.Type)
	assert.Equal(t, Visible, o.Visibility)
	assert.Equal(t, "37.6173,55.7558", o.Coords)
	assert.True(t, o.Schedule.WorksOnHolidays)
	assert.Len(t, o.Schedule.Items, 1)
	assert.Equal(t, "near 'Gate'", o.Address.Additional)
	assert.Equal(t, "1", o.Address.Number)
	assert.Equal(t, DeliveryRules{
		MinDeliveryDays:   1,
		MaxDeliveryDays:   DefaultMaxDeliveryDays,
		OrderBefore:       DefaultOrderBefore,
		Cost:              150,
		PriceFreePickup:   DefaultPriceFreePickup,
		DeliveryServiceID: DefaultDeliveryServiceID,
	}, o.DeliveryRules)
	assert.NotNil(t, o.Emails)
	assert.Nil(t, o.RemoteID)
}

func TestFromLocalStore_SecondaryBlocked(t *testing.T) {
	s := sampleStore()
	s.IsMain = false
	s.Blocked = true

	o, err := FromLocalStore(s)
	require.NoError(t, err)
	assert.Equal(t, TypeDepot, o.Type)
	assert.Equal(t, Hidden, o.Visibility)
	assert.False(t, o.Schedule.WorksOnHolidays)
	assert.Equal(t, 0, o.DeliveryRules.MinDeliveryDays)
}

func TestFromLocalStore_Invalid(t *testing.T) {
	noCity := sampleStore()
	noCity.Address.City = " "
	noHours := sampleStore()
	noHours.WorkDays = nil

	tests := []struct {
		name  string
		store Store
		field string
	}{
		{"no city", noCity, "address.city"},
		{"no schedule", noHours, "workingSchedule"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromLocalStore(tt.store)
			require.ErrorIs(t, err, apperrors.ErrValidation)
			var verr *apperrors.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}
