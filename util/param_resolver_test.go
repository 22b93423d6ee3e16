package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func flowData() map[string]any {
	return map[string]any{
		"input": map[string]any{
			"address": "0x01cf0e2f2f715450",
			"eventId": float64(12),
		},
		"steps": map[string]any{
			"upload": map[string]any{"url": "https://ipfs.example/ipfs/Qm1"},
		},
	}
}

func TestResolveValue(t *testing.T) {
	for scenario, tc := range map[string]struct {
		value    any
		expected any
	}{
		"single token keeps type": {
			value:    "{$.input.eventId}",
			expected: float64(12),
		},
		"embedded token is formatted": {
			value:    "event-{$.input.eventId}",
			expected: "event-12",
		},
		"step output reference": {
			value:    "{$.steps.upload.url}",
			expected: "https://ipfs.example/ipfs/Qm1",
		},
		"plain string untouched": {
			value:    "hello {world}",
			expected: "hello {world}",
		},
		"nested map": {
			value:    map[string]any{"owner": "{$.input.address}"},
			expected: map[string]any{"owner": "0x01cf0e2f2f715450"},
		},
		"list": {
			value:    []any{"{$.input.eventId}", nil},
			expected: []any{float64(12), nil},
		},
		"non string untouched": {
			value:    uint64(7),
			expected: uint64(7),
		},
	} {
		t.Run(scenario, func(t *testing.T) {
			res, err := ResolveValue(flowData(), tc.value)
			require.NoError(t, err)
			require.Equal(t, tc.expected, res)
		})
	}
}

func TestResolveValueMissingPath(t *testing.T) {
	_, err := ResolveValue(flowData(), "{$.input.bio}")
	require.Error(t, err)
}

func TestResolveParams(t *testing.T) {
	res := ResolveParams(flowData(), map[string]string{
		"address": "{$.input.address}",
		"eventId": "{$.input.eventId}",
		"missing": "{$.input.nope}",
		"static":  "listings",
	})
	require.Equal(t, map[string]string{
		"address": "0x01cf0e2f2f715450",
		"eventId": "12",
		"missing": "",
		"static":  "listings",
	}, res)
}

func TestDedup(t *testing.T) {
	require.Equal(t, []string{"a", "b", "c"}, Dedup([]string{"a", "b", "a", "c", "b"}))
}
