package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/finclass/bank-sim/internal/models"
)

func TestValidateScheduled(t *testing.T) {
	cases := []struct {
		name  string
		input ScheduledInput
		ok    bool
	}{
		{"weekly bill", ScheduledInput{Kind: models.KindBill, Amount: -50, Name: "Rent", Interval: models.IntervalWeekly}, true},
		{"monthly payment", ScheduledInput{Kind: models.KindPayment, Amount: 900, Name: "Salary", Interval: models.IntervalMonthly}, true},
		{"once gift", ScheduledInput{Kind: models.KindPayment, Amount: 100, Name: "Gift", Interval: models.IntervalOnce}, true},
		{"interest with derived amount", ScheduledInput{Kind: models.KindPayment, Amount: 0, Name: "Interest", Category: models.CategoryInterest, Interval: models.IntervalMonthly}, true},
		{"positive bill", ScheduledInput{Kind: models.KindBill, Amount: 50, Name: "Rent", Interval: models.IntervalWeekly}, false},
		{"negative payment", ScheduledInput{Kind: models.KindPayment, Amount: -900, Name: "Salary", Interval: models.IntervalMonthly}, false},
		{"zero non-interest payment", ScheduledInput{Kind: models.KindPayment, Amount: 0, Name: "Salary", Interval: models.IntervalMonthly}, false},
		{"bad interval", ScheduledInput{Kind: models.KindBill, Amount: -50, Name: "Rent", Interval: "daily"}, false},
		{"bad kind", ScheduledInput{Kind: "transfer", Amount: 50, Name: "X", Interval: models.IntervalWeekly}, false},
		{"missing name", ScheduledInput{Kind: models.KindBill, Amount: -50, Interval: models.IntervalWeekly}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateScheduled(tc.input)
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}
