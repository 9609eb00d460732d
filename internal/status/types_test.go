package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunState_Escalate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		current RunState
		next    RunState
		want    RunState
	}{
		{name: "unknown to success", current: RunStateUnknown, next: RunStateSuccess, want: RunStateSuccess},
		{name: "success to processing", current: RunStateSuccess, next: RunStateProcessing, want: RunStateProcessing},
		{name: "processing to error", current: RunStateProcessing, next: RunStateError, want: RunStateError},
		{name: "error is never downgraded", current: RunStateError, next: RunStateSuccess, want: RunStateError},
		{name: "processing is not downgraded to success", current: RunStateProcessing, next: RunStateSuccess, want: RunStateProcessing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.current.Escalate(tt.next))
		})
	}
}

func TestParseRunState(t *testing.T) {
	t.Parallel()

	assert.Equal(t, RunStateError, ParseRunState("error"))
	assert.Equal(t, RunStateUnknown, ParseRunState(""))
	assert.Equal(t, RunStateUnknown, ParseRunState("complete"))
}

func TestRunStatus_Clone(t *testing.T) {
	t.Parallel()

	finished := time.Now()
	orig := &RunStatus{
		ID:             "a",
		FinishedAt:     &finished,
		StoreErrors:    map[string]string{"1": "boom"},
		PendingUploads: map[string][]string{"2": {"u1"}},
		Stores:         []string{"1", "2"},
	}

	c := orig.Clone()
	c.StoreErrors["1"] = "changed"
	c.PendingUploads["2"][0] = "changed"
	c.Stores[0] = "changed"
	*c.FinishedAt = finished.Add(time.Hour)

	assert.Equal(t, "boom", orig.StoreErrors["1"])
	assert.Equal(t, "u1", orig.PendingUploads["2"][0])
	assert.Equal(t, "1", orig.Stores[0])
	assert.Equal(t, finished, *orig.FinishedAt)
	assert.Nil(t, (*RunStatus)(nil).Clone())
}
