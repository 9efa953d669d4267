package builtin

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatrelay-dev/chatrelay/pkg/funcs"
)

func newRegistry(t *testing.T) *funcs.Registry {
	t.Helper()
	reg := funcs.NewRegistry()
	fixed := time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC) // a Monday
	require.NoError(t, Register(reg, func() time.Time { return fixed }))
	return reg
}

func TestRegisterInstallsAll(t *testing.T) {
	reg := newRegistry(t)
	for _, name := range []string{
		"getPlanPrices",
		"getBusinessHours",
		"loadUserInformation",
		"verifyMeetingAvailability",
		"bookSalesMeeting",
		"currentDateAndTime",
	} {
		assert.True(t, reg.Has(name), "missing builtin %s", name)
	}
}

func TestVerifyMeetingAvailability(t *testing.T) {
	reg := newRegistry(t)
	resolver := funcs.NewResolver(reg, nil)

	tests := []struct {
		name string
		date string
		want string
	}{
		{name: "weekday working hours", date: "2025-06-02T10:00:00Z", want: "Available"},
		{name: "weekend", date: "2025-06-07T10:00:00Z", want: "Not available on weekends"},
		{name: "too early", date: "2025-06-02T07:00:00Z", want: "Not available outside business hours: 9 am to 5 pm"},
		{name: "too late", date: "2025-06-02T20:00:00Z", want: "Not available outside business hours: 9 am to 5 pm"},
		{name: "garbage date", date: "next tuesday", want: "Invalid date format provided"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := json.Marshal(map[string]string{"date": tt.date})
			require.NoError(t, err)
			got, err := resolver.Resolve(context.Background(), "verifyMeetingAvailability", args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBookSalesMeetingChecksAvailability(t *testing.T) {
	reg := newRegistry(t)
	resolver := funcs.NewResolver(reg, nil)

	got, err := resolver.Resolve(context.Background(), "bookSalesMeeting",
		json.RawMessage(`{"date":"2025-06-07T10:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, "Not available on weekends", got)

	got, err = resolver.Resolve(context.Background(), "bookSalesMeeting",
		json.RawMessage(`{"date":"2025-06-02T10:00:00Z"}`))
	require.NoError(t, err)
	assert.Contains(t, got, "Meeting booked successfully")
}

func TestCurrentDateAndTimeUsesInjectedClock(t *testing.T) {
	reg := newRegistry(t)
	resolver := funcs.NewResolver(reg, nil)

	got, err := resolver.Resolve(context.Background(), "currentDateAndTime", nil)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-02 10:30:00 UTC", got)
}
