// Token verification against the providers' "who am I" endpoints. One
// authenticated GET per call, no retries; the caller decides whether to retry
// the whole pipeline.
package oauth

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/Wieedze/Sofia-Attestor-Template/api/schemas"
	"github.com/Wieedze/Sofia-Attestor-Template/internal/network"
	"go.uber.org/zap"
)

// Limit on provider response bodies. The "who am I" payloads are tiny; a
// multi-megabyte answer is a misbehaving endpoint, not a user profile.
const maxBodyBytes = 1 << 20

// Verifier validates OAuth access tokens and extracts stable user ids.
// It holds no state beyond its HTTP client and credentials.
type Verifier struct {
	http      *network.Client
	clientIDs map[schemas.Platform]string
	endpoints map[schemas.Platform]string // overridable in tests
	log       *zap.Logger
}

// New creates a Verifier. clientIDs carries auxiliary credentials for the
// platforms that need one (twitch); it may be nil.
func New(client *network.Client, clientIDs map[schemas.Platform]string, logger *zap.Logger) *Verifier {
	if client == nil {
		client = network.NewClient(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	endpoints := make(map[schemas.Platform]string, len(platforms))
	for p, spec := range platforms {
		endpoints[p] = spec.endpoint
	}
	return &Verifier{
		http:      client,
		clientIDs: clientIDs,
		endpoints: endpoints,
		log:       logger.Named("oauth"),
	}
}

// invalid builds a failed result. Provider-side failures never escape as Go
// errors; the caller branches on Valid.
func invalid(platform schemas.Platform, format string, args ...any) schemas.VerificationResult {
	return schemas.VerificationResult{
		Valid:    false,
		Platform: platform,
		Error:    fmt.Sprintf(format, args...),
	}
}

// Verify issues one authenticated GET to the platform's identity endpoint and
// extracts the stable user id from the response.
func (v *Verifier) Verify(ctx context.Context, platform schemas.Platform, token string) schemas.VerificationResult {
	if token == "" {
		return invalid(platform, "token is empty")
	}
	spec, ok := platforms[platform]
	if !ok {
		return invalid(platform, "unsupported platform '%s'", platform)
	}

	clientID := v.clientIDs[platform]
	if spec.requiresClientID && clientID == "" {
		return invalid(platform, "%s verification requires a configured client id", platform)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.endpoints[platform], nil)
	if err != nil {
		return invalid(platform, "building request: %v", err)
	}
	spec.setHeaders(req.Header, token, clientID)
	req.Header.Set("Accept", "application/json")

	resp, err := v.http.Do(req)
	if err != nil {
		v.log.Warn("Provider request failed", zap.String("platform", string(platform)), zap.Error(err))
		return invalid(platform, "request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return invalid(platform, "reading response: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		v.log.Debug("Provider rejected token",
			zap.String("platform", string(platform)),
			zap.Int("status", resp.StatusCode))
		return invalid(platform, "provider returned status %d", resp.StatusCode)
	}

	id, name, err := spec.extract(body)
	if err != nil {
		return invalid(platform, "%v", err)
	}

	return schemas.VerificationResult{
		Valid:    true,
		Platform: platform,
		UserID:   id,
		Username: name,
	}
}
