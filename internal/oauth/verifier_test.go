package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Wieedze/Sofia-Attestor-Template/api/schemas"
	"github.com/Wieedze/Sofia-Attestor-Template/internal/network"
)

// newTestVerifier builds a verifier whose endpoint for the given platform is
// redirected at a test server.
func newTestVerifier(t *testing.T, platform schemas.Platform, handler http.HandlerFunc) (*Verifier, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	v := New(network.NewClient(nil), map[schemas.Platform]string{
		schemas.PlatformTwitch: "test-client-id",
	}, zap.NewNop())
	v.endpoints[platform] = server.URL
	return v, server
}

func TestVerify_SuccessShapes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		platform     schemas.Platform
		body         string
		wantID       string
		wantUsername string
	}{
		{schemas.PlatformDiscord, `{"id":"80351110224678912","username":"nelly"}`, "80351110224678912", "nelly"},
		{schemas.PlatformYouTube, `{"items":[{"id":"UC_x5XG1OV2P6uZZ5FSM9Ttw","snippet":{"title":"Google Developers"}}]}`, "UC_x5XG1OV2P6uZZ5FSM9Ttw", "Google Developers"},
		{schemas.PlatformSpotify, `{"id":"wizzler","display_name":"Wizzler"}`, "wizzler", "Wizzler"},
		{schemas.PlatformTwitch, `{"data":[{"id":"141981764","login":"twitchdev"}]}`, "141981764", "twitchdev"},
		{schemas.PlatformTwitter, `{"data":{"id":"2244994945","username":"TwitterDev"}}`, "2244994945", "TwitterDev"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(string(tc.platform), func(t *testing.T) {
			t.Parallel()
			v, _ := newTestVerifier(t, tc.platform, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "Bearer valid-token", r.Header.Get("Authorization"))
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tc.body))
			})

			res := v.Verify(context.Background(), tc.platform, "valid-token")
			require.True(t, res.Valid, "expected valid result, got error: %s", res.Error)
			assert.Equal(t, tc.wantID, res.UserID)
			assert.Equal(t, tc.wantUsername, res.Username)
			assert.Equal(t, tc.platform, res.Platform)
		})
	}
}

func TestVerify_StableAcrossCalls(t *testing.T) {
	t.Parallel()
	v, _ := newTestVerifier(t, schemas.PlatformDiscord, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"42","username":"someone"}`))
	})

	first := v.Verify(context.Background(), schemas.PlatformDiscord, "tok")
	second := v.Verify(context.Background(), schemas.PlatformDiscord, "tok")
	require.True(t, first.Valid)
	require.True(t, second.Valid)
	assert.Equal(t, first.UserID, second.UserID)
}

func TestVerify_ProviderFailures(t *testing.T) {
	t.Parallel()

	statuses := []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusInternalServerError}
	for _, status := range statuses {
		status := status
		t.Run(http.StatusText(status), func(t *testing.T) {
			t.Parallel()
			v, _ := newTestVerifier(t, schemas.PlatformDiscord, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			})

			res := v.Verify(context.Background(), schemas.PlatformDiscord, "bad-token")
			assert.False(t, res.Valid)
			assert.Contains(t, res.Error, "status")
		})
	}

	t.Run("network failure", func(t *testing.T) {
		t.Parallel()
		v, server := newTestVerifier(t, schemas.PlatformDiscord, func(w http.ResponseWriter, r *http.Request) {})
		server.Close() // Kill the server so the dial fails.

		res := v.Verify(context.Background(), schemas.PlatformDiscord, "tok")
		assert.False(t, res.Valid)
		assert.NotEmpty(t, res.Error)
	})
}

func TestVerify_ExtractionFailures(t *testing.T) {
	t.Parallel()

	t.Run("missing id field", func(t *testing.T) {
		t.Parallel()
		v, _ := newTestVerifier(t, schemas.PlatformDiscord, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"username":"no-id-here"}`))
		})
		res := v.Verify(context.Background(), schemas.PlatformDiscord, "tok")
		assert.False(t, res.Valid)
		assert.Contains(t, res.Error, "could not extract id")
	})

	t.Run("empty items list", func(t *testing.T) {
		t.Parallel()
		v, _ := newTestVerifier(t, schemas.PlatformYouTube, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"items":[]}`))
		})
		res := v.Verify(context.Background(), schemas.PlatformYouTube, "tok")
		assert.False(t, res.Valid)
	})

	t.Run("malformed json", func(t *testing.T) {
		t.Parallel()
		v, _ := newTestVerifier(t, schemas.PlatformSpotify, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not-json`))
		})
		res := v.Verify(context.Background(), schemas.PlatformSpotify, "tok")
		assert.False(t, res.Valid)
	})
}

func TestVerify_InputGuards(t *testing.T) {
	t.Parallel()
	v := New(nil, nil, nil)

	t.Run("empty token", func(t *testing.T) {
		t.Parallel()
		res := v.Verify(context.Background(), schemas.PlatformDiscord, "")
		assert.False(t, res.Valid)
		assert.Contains(t, res.Error, "empty")
	})

	t.Run("unknown platform", func(t *testing.T) {
		t.Parallel()
		res := v.Verify(context.Background(), schemas.Platform("myspace"), "tok")
		assert.False(t, res.Valid)
		assert.Contains(t, res.Error, "unsupported")
	})

	t.Run("twitch without client id", func(t *testing.T) {
		t.Parallel()
		res := v.Verify(context.Background(), schemas.PlatformTwitch, "tok")
		assert.False(t, res.Valid)
		assert.Contains(t, res.Error, "client id")
	})
}

func TestVerify_TwitchClientIDHeader(t *testing.T) {
	t.Parallel()
	v, _ := newTestVerifier(t, schemas.PlatformTwitch, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-client-id", r.Header.Get("Client-Id"))
		_, _ = w.Write([]byte(`{"data":[{"id":"1","login":"x"}]}`))
	})

	res := v.Verify(context.Background(), schemas.PlatformTwitch, "tok")
	require.True(t, res.Valid)
}
