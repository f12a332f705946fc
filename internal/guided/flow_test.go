package guided

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"stabletrade/internal/store"
)

func statuses(steps []Step) []StepStatus {
	out := make([]StepStatus, len(steps))
	for i, s := range steps {
		out[i] = s.Status
	}
	return out
}

func ok(a store.Action) store.Record {
	return store.Record{Action: a, Status: store.StatusSuccess}
}

func TestDerive(t *testing.T) {
	positive := decimal.RequireFromString("12.50")

	cases := []struct {
		name    string
		balance decimal.Decimal
		history []store.Record
		want    []StepStatus
		current StepKey
	}{
		{"fresh wallet", decimal.Zero, nil, []StepStatus{StatusPending, StatusLocked, StatusLocked}, StepBuy},
		{"funded wallet", positive, nil, []StepStatus{StatusCurrent, StatusLocked, StatusLocked}, StepBuy},
		{"bought", positive, []store.Record{ok(store.ActionBuy)}, []StepStatus{StatusDone, StatusCurrent, StatusLocked}, StepSell},
		{"bought and sold", decimal.Zero, []store.Record{ok(store.ActionSell), ok(store.ActionBuy)}, []StepStatus{StatusDone, StatusDone, StatusCurrent}, StepClaim},
		{"all done", decimal.Zero, []store.Record{ok(store.ActionClaim), ok(store.ActionSell), ok(store.ActionBuy)}, []StepStatus{StatusDone, StatusDone, StatusDone}, StepBuy},
		{"sold without buy", decimal.Zero, []store.Record{ok(store.ActionSell)}, []StepStatus{StatusPending, StatusDone, StatusCurrent}, StepClaim},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			steps := Derive(tc.balance, tc.history)
			assert.Equal(t, tc.want, statuses(steps))
			assert.Equal(t, tc.current, CurrentStep(steps))
		})
	}
}

func TestDeriveIgnoresFailedAndOtherActions(t *testing.T) {
	history := []store.Record{
		{Action: store.ActionBuy, Status: store.StatusError},
		{Action: store.ActionMint, Status: store.StatusSuccess},
		{Action: store.ActionBurn, Status: store.StatusSuccess},
	}
	steps := Derive(decimal.Zero, history)
	assert.Equal(t, []StepStatus{StatusPending, StatusLocked, StatusLocked}, statuses(steps))
}

func TestDeriveNegativeBalanceIsNotFunded(t *testing.T) {
	steps := Derive(decimal.NewFromInt(-1), nil)
	assert.Equal(t, StatusPending, steps[0].Status)
}

func TestReasons(t *testing.T) {
	steps := Derive(decimal.Zero, nil)
	assert.NotEmpty(t, steps[0].Reason)
	assert.Equal(t, "Complete Buy first", steps[1].Reason)
	assert.Equal(t, "Complete Sell first", steps[2].Reason)

	steps = Derive(decimal.Zero, []store.Record{ok(store.ActionBuy), ok(store.ActionSell), ok(store.ActionClaim)})
	for _, s := range steps {
		assert.Empty(t, s.Reason, s.Key)
	}
}

func TestCanGoTo(t *testing.T) {
	steps := Derive(decimal.Zero, []store.Record{ok(store.ActionBuy)})
	assert.True(t, CanGoTo(steps, StepBuy))
	assert.True(t, CanGoTo(steps, StepSell))
	assert.False(t, CanGoTo(steps, StepClaim))
	assert.False(t, CanGoTo(steps, "stake"))
}
