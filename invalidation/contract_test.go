package invalidation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mohitkumar/txflow/model"
	"github.com/stretchr/testify/require"
)

type recordingInvalidator struct {
	mu       sync.Mutex
	patterns []string
	fail     map[string]error
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, pattern string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.fail[pattern]; ok {
		return err
	}
	r.patterns = append(r.patterns, pattern)
	return nil
}

func TestPatterns(t *testing.T) {
	c := NewContract(&recordingInvalidator{}, nil)
	for scenario, tc := range map[string]struct {
		kind     model.OperationKind
		params   map[string]string
		expected []string
	}{
		"all placeholders resolved": {
			kind:     model.KIND_CHECK_IN,
			params:   map[string]string{"eventId": "12", "address": "0x01"},
			expected: []string{"event-detail:12", "events-list", "user-profile:0x01", "event-passes:0x01"},
		},
		"missing param widens to wildcard": {
			kind:     model.KIND_REGISTER_EVENT,
			params:   map[string]string{"address": "0x01"},
			expected: []string{"event-detail:*", "events-list", "user-events:0x01"},
		},
		"empty param widens to wildcard": {
			kind:     model.KIND_REVEAL_PACK,
			params:   map[string]string{"address": ""},
			expected: []string{"inventory:*", "accessories:*", "gacha-receipt:*"},
		},
		"pseudo step has no patterns": {
			kind:     model.KIND_UPLOAD_ASSET,
			expected: []string{},
		},
	} {
		t.Run(scenario, func(t *testing.T) {
			require.Equal(t, tc.expected, c.Patterns(tc.kind, tc.params))
		})
	}
}

func TestPatternsAreDeduplicated(t *testing.T) {
	c := NewContract(&recordingInvalidator{}, map[model.OperationKind][]string{
		"custom": {"moments:{address}", "moments:{owner}", "listings"},
	})
	require.Equal(t, []string{"moments:*", "listings"}, c.Patterns("custom", nil))
}

func TestOnOutcome(t *testing.T) {
	params := map[string]string{"address": "0x01"}
	for scenario, tc := range map[string]struct {
		outcome  model.Outcome
		expected []string
	}{
		"success invalidates every pattern once": {
			outcome:  model.Success(nil),
			expected: []string{"inventory:0x01", "accessories:0x01", "gacha-receipt:0x01"},
		},
		"failure invalidates nothing": {
			outcome: model.Failure("insufficient balance"),
		},
		"expired invalidates nothing": {
			outcome: model.Expired(),
		},
	} {
		t.Run(scenario, func(t *testing.T) {
			inv := &recordingInvalidator{}
			c := NewContract(inv, nil)
			require.NoError(t, c.OnOutcome(context.Background(), model.KIND_REVEAL_PACK, tc.outcome, params))
			require.Equal(t, tc.expected, inv.patterns)
		})
	}
}

func TestOnOutcomeKeepsGoingAfterError(t *testing.T) {
	boom := errors.New("redis down")
	inv := &recordingInvalidator{fail: map[string]error{"inventory:0x01": boom}}
	c := NewContract(inv, nil)
	err := c.OnOutcome(context.Background(), model.KIND_REVEAL_PACK, model.Success(nil), map[string]string{"address": "0x01"})
	require.ErrorIs(t, err, boom)
	require.Equal(t, []string{"accessories:0x01", "gacha-receipt:0x01"}, inv.patterns)
}
