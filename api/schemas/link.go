package schemas

import (
	"fmt"
	"strings"
	"time"
)

// -- Core Link Models --
// These types represent the entities the attestor computes and submits. All
// durable state lives on-chain (or, optionally, in the link store); everything
// here is ephemeral per invocation.

// Platform identifies a supported OAuth provider.
type Platform string

const (
	PlatformDiscord Platform = "discord"
	PlatformYouTube Platform = "youtube"
	PlatformSpotify Platform = "spotify"
	PlatformTwitch  Platform = "twitch"
	PlatformTwitter Platform = "twitter"
)

// AllPlatforms lists every platform the verifier knows how to talk to.
var AllPlatforms = []Platform{
	PlatformDiscord,
	PlatformYouTube,
	PlatformSpotify,
	PlatformTwitch,
	PlatformTwitter,
}

// ParsePlatform normalizes a user-supplied platform name.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllPlatforms {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unsupported platform '%s'", s)
}

// PredicateLabel is the fixed claim text for a platform. Every user of a
// platform shares the same predicate atom, so this string must never vary
// per user.
func (p Platform) PredicateLabel() string {
	return fmt.Sprintf("has verified %s id", p)
}

// VerificationResult is the outcome of a single token verification.
// Provider-side failures (bad token, provider outage) are reported through
// Valid/Error, never as a Go error.
type VerificationResult struct {
	Valid    bool     `json:"valid"`
	Platform Platform `json:"platform"`
	UserID   string   `json:"userId,omitempty"`
	Username string   `json:"username,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// TxReceipt is the terminal status of a submitted ledger write.
type TxReceipt struct {
	Success     bool
	BlockNumber uint64
}

// CreatedFlags records which of the three atoms were created by this
// invocation. Callers use it to avoid double-charging on retry.
type CreatedFlags struct {
	Wallet    bool `json:"walletAtomCreated"`
	Predicate bool `json:"predicateAtomCreated"`
	Subject   bool `json:"socialAtomCreated"`
}

// Any reports whether this invocation created at least one atom.
func (f CreatedFlags) Any() bool {
	return f.Wallet || f.Predicate || f.Subject
}

// LinkResult is the full outcome of one claim-pipeline invocation.
type LinkResult struct {
	InvocationID  string       `json:"invocationId"`
	Wallet        string       `json:"wallet"`
	Platform      Platform     `json:"platform"`
	Success       bool         `json:"success"`
	AlreadyLinked bool         `json:"alreadyLinked,omitempty"`
	Created       CreatedFlags `json:"created"`
	TxHash        string       `json:"txHash,omitempty"`
	BlockNumber   uint64       `json:"blockNumber,omitempty"`
	UserID        string       `json:"userId,omitempty"`
	Username      string       `json:"username,omitempty"`
	Err           error        `json:"-"`
	ErrorDetail   string       `json:"error,omitempty"`
}

// LinkRecord is the client-side persisted layout for a completed link.
type LinkRecord struct {
	Wallet   string    `json:"walletAddress"`
	Platform Platform  `json:"platform"`
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
	TxHash   string    `json:"txRef"`
	LinkedAt time.Time `json:"linkedAt"`
}
