package schemas

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlatform(t *testing.T) {
	t.Parallel()

	for _, p := range AllPlatforms {
		got, err := ParsePlatform(string(p))
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	// Case and whitespace are normalized away.
	got, err := ParsePlatform("  Discord ")
	require.NoError(t, err)
	assert.Equal(t, PlatformDiscord, got)

	_, err = ParsePlatform("myspace")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")
}

func TestPredicateLabel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "has verified discord id", PlatformDiscord.PredicateLabel())
	assert.Equal(t, "has verified twitch id", PlatformTwitch.PredicateLabel())

	// Every platform must map to a distinct predicate.
	seen := map[string]Platform{}
	for _, p := range AllPlatforms {
		label := p.PredicateLabel()
		prev, dup := seen[label]
		assert.False(t, dup, "platforms %s and %s share predicate %q", prev, p, label)
		seen[label] = p
	}
}

func TestErrorTaxonomy(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("gateway timeout")
	cases := []struct {
		name string
		err  error
	}{
		{"input", &InputError{Field: "wallet", Reason: "is required"}},
		{"verification", &VerificationError{Platform: PlatformDiscord, Detail: "status 401"}},
		{"pin", &PinError{Label: "42", Err: cause}},
		{"node", &NodeCreationError{Atom: "predicate", TxHash: "0xabc", Err: cause}},
		{"edge", &EdgeCreationError{TxHash: "0xdef", Err: cause}},
		{"already linked", &AlreadyLinkedError{TripleID: "0x123"}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.NotEmpty(t, tc.err.Error())
		})
	}

	// The wrapping types expose their cause to errors.Is.
	assert.ErrorIs(t, &PinError{Err: cause}, cause)
	assert.ErrorIs(t, &NodeCreationError{Err: cause}, cause)
	assert.ErrorIs(t, &EdgeCreationError{Err: cause}, cause)

	// Typed matching picks the right member out of a wrapped chain.
	wrapped := fmt.Errorf("pipeline: %w", &NodeCreationError{Atom: "subject", Created: CreatedFlags{Wallet: true}, Err: cause})
	var nerr *NodeCreationError
	require.True(t, errors.As(wrapped, &nerr))
	assert.Equal(t, "subject", nerr.Atom)
	assert.True(t, nerr.Created.Wallet)
}

func TestCreatedFlagsAny(t *testing.T) {
	t.Parallel()

	assert.False(t, CreatedFlags{}.Any())
	assert.True(t, CreatedFlags{Predicate: true}.Any())
}

func TestLinkResultJSON(t *testing.T) {
	t.Parallel()

	result := LinkResult{
		InvocationID: "inv-1",
		Wallet:       "0xabc",
		Platform:     PlatformDiscord,
		Success:      false,
		Err:          fmt.Errorf("internal detail"),
		ErrorDetail:  "discord verification failed: status 401",
	}
	out, err := json.Marshal(result)
	require.NoError(t, err)

	// The raw error never serializes; only the prepared detail string does.
	assert.NotContains(t, string(out), "internal detail")
	assert.Contains(t, string(out), "discord verification failed")
}
