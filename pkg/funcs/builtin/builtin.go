// Package builtin registers the stock business functions the model can
// call: plan pricing, business hours, meeting availability and booking,
// and the current date/time.
package builtin

import (
	"context"
	"fmt"
	"time"

	"github.com/chatrelay-dev/chatrelay/pkg/funcs"
)

const planPrices = `*Service Plans and Pricing*

- Basic Plan: Includes core messaging features
- Professional Plan: Advanced features and higher limits
- Enterprise Plan: Unlimited features and priority support

Please contact us for detailed pricing information.`

var businessHours = []struct {
	day   string
	hours string
}{
	{"Monday", "9:00 AM - 6:00 PM"},
	{"Tuesday", "9:00 AM - 6:00 PM"},
	{"Wednesday", "9:00 AM - 6:00 PM"},
	{"Thursday", "9:00 AM - 6:00 PM"},
	{"Friday", "9:00 AM - 6:00 PM"},
	{"Saturday", "Closed"},
	{"Sunday", "Closed"},
}

// Register installs the builtin functions into reg. The clock is
// injected so tests can pin availability checks to a known date.
func Register(reg *funcs.Registry, now func() time.Time) error {
	if now == nil {
		now = time.Now
	}

	fns := []funcs.Function{
		{
			Name:        "getPlanPrices",
			Description: "Get available plans and prices information",
			Schema:      funcs.Schema{},
			Handler: func(context.Context, funcs.Args) (string, error) {
				return planPrices, nil
			},
		},
		{
			Name:        "getBusinessHours",
			Description: "Get the business opening hours for each day of the week",
			Schema:      funcs.Schema{},
			Handler: func(context.Context, funcs.Args) (string, error) {
				out := ""
				for _, d := range businessHours {
					out += fmt.Sprintf("%s: %s\n", d.day, d.hours)
				}
				return out, nil
			},
		},
		{
			Name:        "loadUserInformation",
			Description: "Find user name and email from the CRM",
			Schema:      funcs.Schema{},
			Handler: func(context.Context, funcs.Args) (string, error) {
				return "I am sorry, I am not able to access the CRM at the moment. Please try again later.", nil
			},
		},
		{
			Name:        "verifyMeetingAvailability",
			Description: "Verify if a given date and time is available for a meeting before booking it",
			Schema: funcs.Schema{
				"date": {
					Type:        "string",
					Format:      "date-time",
					Description: "Date of the meeting",
					Required:    true,
				},
			},
			Handler: func(_ context.Context, args funcs.Args) (string, error) {
				return verifyAvailability(args.String("date")), nil
			},
		},
		{
			Name:        "bookSalesMeeting",
			Description: "Book a sales or demo meeting with the customer on a specific date and time",
			Schema: funcs.Schema{
				"date": {
					Type:        "string",
					Format:      "date-time",
					Description: "Date of the meeting",
					Required:    true,
				},
			},
			Handler: func(_ context.Context, args funcs.Args) (string, error) {
				if msg := verifyAvailability(args.String("date")); msg != "Available" {
					return msg, nil
				}
				return "Meeting booked successfully. You will receive a confirmation email shortly.", nil
			},
		},
		{
			Name:        "currentDateAndTime",
			Description: "What is the current date and time",
			Schema:      funcs.Schema{},
			Handler: func(context.Context, funcs.Args) (string, error) {
				return now().Format("2006-01-02 15:04:05 MST"), nil
			},
		},
	}

	for _, fn := range fns {
		if err := reg.Register(fn); err != nil {
			return err
		}
	}
	return nil
}

// verifyAvailability checks a proposed meeting slot against weekday
// business hours (9:00-17:59).
func verifyAvailability(raw string) string {
	date, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return "Invalid date format provided"
	}
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return "Not available on weekends"
	}
	if h := date.Hour(); h < 9 || h > 17 {
		return "Not available outside business hours: 9 am to 5 pm"
	}
	return "Available"
}
