package pipeline

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Wieedze/Sofia-Attestor-Template/api/schemas"
)

// AllowedTokens filters tokens down to the configured platform allowlist. An
// empty allowlist permits every platform.
func AllowedTokens(tokens map[schemas.Platform]string, allowed []string) map[schemas.Platform]string {
	if len(allowed) == 0 {
		return tokens
	}
	out := make(map[schemas.Platform]string, len(tokens))
	for _, name := range allowed {
		platform, err := schemas.ParsePlatform(name)
		if err != nil {
			continue
		}
		if token, ok := tokens[platform]; ok {
			out[platform] = token
		}
	}
	return out
}

// ThresholdOutcome reports a joint multi-platform verification.
type ThresholdOutcome struct {
	Met       bool
	Verified  int
	Threshold int
	Results   []schemas.VerificationResult
}

// VerifyThreshold verifies the supplied tokens concurrently and reports
// whether at least threshold platforms verified. Verification only; nothing
// is pinned or written to the ledger.
func (p *Pipeline) VerifyThreshold(ctx context.Context, tokens map[schemas.Platform]string, threshold int) ThresholdOutcome {
	if threshold < 1 {
		threshold = 1
	}

	results := make([]schemas.VerificationResult, 0, len(tokens))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for platform, token := range tokens {
		wg.Add(1)
		go func(platform schemas.Platform, token string) {
			defer wg.Done()
			res := p.verifier.Verify(ctx, platform, token)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}(platform, token)
	}
	wg.Wait()

	verified := 0
	for _, res := range results {
		if res.Valid {
			verified++
		}
	}

	outcome := ThresholdOutcome{
		Met:       verified >= threshold,
		Verified:  verified,
		Threshold: threshold,
		Results:   results,
	}
	p.log.Info("Threshold verification finished",
		zap.Int("verified", verified),
		zap.Int("threshold", threshold),
		zap.Bool("met", outcome.Met))
	return outcome
}
