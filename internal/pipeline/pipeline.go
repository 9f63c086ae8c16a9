// The claim pipeline: one invocation turns (wallet, platform, oauthToken)
// into a confirmed on-chain triple (wallet)-[has verified {platform} id]->
// (pinned identity). Invocations are independent and hold no state; every
// run re-verifies, re-queries, and re-checks existence.
package pipeline

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Wieedze/Sofia-Attestor-Template/api/schemas"
	"github.com/Wieedze/Sofia-Attestor-Template/internal/ledger"
)

// -- Interfaces for Dependency Inversion --

// Verifier validates an OAuth token and extracts a stable user id.
type Verifier interface {
	Verify(ctx context.Context, platform schemas.Platform, token string) schemas.VerificationResult
}

// Pinner publishes a human-readable label and returns its content URI.
type Pinner interface {
	Pin(ctx context.Context, label, description string) (string, error)
}

// Ledger is the graph-client surface the pipeline drives.
type Ledger interface {
	AtomID(payload []byte) common.Hash
	TripleID(subject, predicate, object common.Hash) common.Hash
	Exists(ctx context.Context, id common.Hash) (bool, error)
	AtomCost(ctx context.Context) (*big.Int, error)
	TripleCost(ctx context.Context) (*big.Int, error)
	CreateAtoms(ctx context.Context, payloads [][]byte, deposits []*big.Int) (common.Hash, error)
	CreateTriples(ctx context.Context, subjects, predicates, objects []common.Hash, deposits []*big.Int) (common.Hash, error)
	WaitMined(ctx context.Context, txHash common.Hash) (schemas.TxReceipt, error)
}

// LinkStore persists completed links and caches pin URIs per (platform,
// userId) so repeat runs reuse the same subject atom. Implementations may be
// no-ops; the pipeline treats every store failure as non-fatal.
type LinkStore interface {
	CachedPinURI(ctx context.Context, platform schemas.Platform, userID string) (string, error)
	SavePinURI(ctx context.Context, platform schemas.Platform, userID, uri string) error
	SaveLink(ctx context.Context, rec schemas.LinkRecord) error
}

// Config carries the fixed deposit policy. These are configuration, not
// computed: they must cover the ledger's dynamic pricing headroom at
// submission time or the write reverts.
type Config struct {
	AtomDeposit     *big.Int
	TripleSurcharge *big.Int
}

// Pipeline orchestrates verification, pinning, and the ledger writes.
type Pipeline struct {
	verifier Verifier
	pinner   Pinner
	ledger   Ledger
	store    LinkStore
	cfg      Config
	log      *zap.Logger
}

// New wires a pipeline. store may be nil when no persistence is configured.
func New(verifier Verifier, pinner Pinner, graph Ledger, store LinkStore, cfg Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.AtomDeposit == nil {
		cfg.AtomDeposit = new(big.Int)
	}
	if cfg.TripleSurcharge == nil {
		cfg.TripleSurcharge = new(big.Int)
	}
	return &Pipeline{
		verifier: verifier,
		pinner:   pinner,
		ledger:   graph,
		store:    store,
		cfg:      cfg,
		log:      logger.Named("pipeline"),
	}
}

// Link runs the full claim pipeline. Failures come back inside the result,
// typed per the error taxonomy, never as a panic or a bare error.
func (p *Pipeline) Link(ctx context.Context, wallet string, platform schemas.Platform, token string) schemas.LinkResult {
	// Normalize the platform up front so the predicate label and the derived
	// atom ids never vary with caller casing.
	parsed, platformErr := schemas.ParsePlatform(string(platform))
	if platformErr == nil {
		platform = parsed
	}

	result := schemas.LinkResult{
		InvocationID: uuid.NewString(),
		Wallet:       wallet,
		Platform:     platform,
	}
	log := p.log.With(zap.String("invocation_id", result.InvocationID), zap.String("platform", string(platform)))

	fail := func(err error) schemas.LinkResult {
		result.Success = false
		result.Err = err
		result.ErrorDetail = err.Error()
		log.Warn("Link pipeline failed", zap.Error(err))
		return result
	}

	// Input checks fail fast, before any network call.
	if wallet == "" {
		return fail(&schemas.InputError{Field: "wallet", Reason: "is required"})
	}
	if !common.IsHexAddress(wallet) {
		return fail(&schemas.InputError{Field: "wallet", Reason: "is not a valid address"})
	}
	if platformErr != nil {
		return fail(&schemas.InputError{Field: "platform", Reason: platformErr.Error()})
	}
	if token == "" {
		return fail(&schemas.InputError{Field: "token", Reason: "is required"})
	}

	// VERIFY_TOKEN
	verification := p.verifier.Verify(ctx, platform, token)
	if !verification.Valid {
		return fail(&schemas.VerificationError{Platform: platform, Detail: verification.Error})
	}
	result.UserID = verification.UserID
	result.Username = verification.Username
	log.Info("Token verified", zap.String("user_id", verification.UserID))

	// RESOLVE_LABEL
	uri, err := p.resolveLabel(ctx, platform, verification)
	if err != nil {
		return fail(err)
	}

	// COMPUTE_NODE_IDS
	walletPayload := []byte(wallet)
	predicatePayload := []byte(platform.PredicateLabel())
	subjectPayload := []byte(uri)

	walletID := p.ledger.AtomID(walletPayload)
	predicateID := p.ledger.AtomID(predicatePayload)
	subjectID := p.ledger.AtomID(subjectPayload)
	tripleID := p.ledger.TripleID(walletID, predicateID, subjectID)

	// CHECK_EXISTENCE + FETCH_COSTS, issued as one concurrent batch. The
	// triple pre-check rides along so an already-linked pair never submits
	// a doomed write.
	var (
		walletExists, predicateExists, subjectExists, tripleExists bool
		atomCost, tripleCost                                       *big.Int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { walletExists, err = p.ledger.Exists(gctx, walletID); return })
	g.Go(func() (err error) { predicateExists, err = p.ledger.Exists(gctx, predicateID); return })
	g.Go(func() (err error) { subjectExists, err = p.ledger.Exists(gctx, subjectID); return })
	g.Go(func() (err error) { tripleExists, err = p.ledger.Exists(gctx, tripleID); return })
	g.Go(func() (err error) { atomCost, err = p.ledger.AtomCost(gctx); return })
	g.Go(func() (err error) { tripleCost, err = p.ledger.TripleCost(gctx); return })
	if err := g.Wait(); err != nil {
		return fail(fmt.Errorf("ledger read batch failed: %w", err))
	}

	if tripleExists {
		log.Info("Claim triple already exists, nothing to write", zap.String("triple_id", tripleID.Hex()))
		return alreadyLinked(result, tripleID)
	}

	// CREATE_MISSING_NODES, strictly sequential: each write blocks on its
	// receipt before the next is submitted so the shared sender never has
	// more than one atom creation in flight.
	atomDeposit := new(big.Int).Add(atomCost, p.cfg.AtomDeposit)
	atoms := []struct {
		name    string
		payload []byte
		exists  bool
		created *bool
	}{
		{"wallet", walletPayload, walletExists, &result.Created.Wallet},
		{"predicate", predicatePayload, predicateExists, &result.Created.Predicate},
		{"subject", subjectPayload, subjectExists, &result.Created.Subject},
	}
	for _, atom := range atoms {
		if atom.exists {
			continue
		}
		txHash, err := p.ledger.CreateAtoms(ctx, [][]byte{atom.payload}, []*big.Int{atomDeposit})
		if err != nil {
			if ledger.IsAlreadyExists(err) {
				// Lost a race to another writer; the atom is there, which is
				// all the triple needs.
				log.Debug("Atom created concurrently elsewhere", zap.String("atom", atom.name))
				continue
			}
			return fail(&schemas.NodeCreationError{Atom: atom.name, Created: result.Created, Err: err})
		}
		receipt, err := p.ledger.WaitMined(ctx, txHash)
		if err != nil {
			return fail(&schemas.NodeCreationError{Atom: atom.name, TxHash: txHash.Hex(), Created: result.Created, Err: err})
		}
		if !receipt.Success {
			return fail(&schemas.NodeCreationError{
				Atom: atom.name, TxHash: txHash.Hex(), Created: result.Created,
				Err: fmt.Errorf("transaction reverted"),
			})
		}
		*atom.created = true
		log.Info("Atom created", zap.String("atom", atom.name), zap.String("tx", txHash.Hex()))
	}

	// CREATE_EDGE
	tripleDeposit := new(big.Int).Add(tripleCost, p.cfg.TripleSurcharge)
	txHash, err := p.ledger.CreateTriples(ctx,
		[]common.Hash{walletID}, []common.Hash{predicateID}, []common.Hash{subjectID},
		[]*big.Int{tripleDeposit})
	if err != nil {
		if ledger.IsAlreadyExists(err) {
			log.Info("Claim edge already existed at submission", zap.String("triple_id", tripleID.Hex()))
			return alreadyLinked(result, tripleID)
		}
		return fail(&schemas.EdgeCreationError{Created: result.Created, Err: err})
	}
	result.TxHash = txHash.Hex()

	receipt, err := p.ledger.WaitMined(ctx, txHash)
	if err != nil {
		return fail(&schemas.EdgeCreationError{TxHash: result.TxHash, Created: result.Created, Err: err})
	}
	if !receipt.Success {
		return fail(&schemas.EdgeCreationError{
			TxHash: result.TxHash, Created: result.Created,
			Err: fmt.Errorf("transaction reverted"),
		})
	}

	// SUCCEED
	result.Success = true
	result.BlockNumber = receipt.BlockNumber
	log.Info("Claim triple created",
		zap.String("tx", result.TxHash),
		zap.Uint64("block", receipt.BlockNumber),
		zap.Bool("wallet_created", result.Created.Wallet),
		zap.Bool("predicate_created", result.Created.Predicate),
		zap.Bool("subject_created", result.Created.Subject))

	p.persistLink(ctx, result)
	return result
}

// alreadyLinked finalizes a success-equivalent outcome. The typed error rides
// along so programmatic callers can tell it apart from a fresh link by type,
// while Success stays true.
func alreadyLinked(result schemas.LinkResult, tripleID common.Hash) schemas.LinkResult {
	result.Success = true
	result.AlreadyLinked = true
	result.Err = &schemas.AlreadyLinkedError{TripleID: tripleID.Hex()}
	return result
}

// resolveLabel returns the pinned URI for the verified identity, reusing a
// cached URI when the store has one. Without the cache, repinning the same
// label yields a fresh URI and therefore a fresh subject atom; the cache is
// what keeps the subject atom stable across runs.
func (p *Pipeline) resolveLabel(ctx context.Context, platform schemas.Platform, verification schemas.VerificationResult) (string, error) {
	if p.store != nil {
		uri, err := p.store.CachedPinURI(ctx, platform, verification.UserID)
		if err != nil {
			p.log.Warn("Pin URI cache lookup failed, repinning", zap.Error(err))
		} else if uri != "" {
			p.log.Debug("Reusing cached pin URI", zap.String("uri", uri))
			return uri, nil
		}
	}

	description := fmt.Sprintf("Verified %s account %s", platform, verification.Username)
	uri, err := p.pinner.Pin(ctx, verification.UserID, description)
	if err != nil {
		if _, ok := err.(*schemas.PinError); ok {
			return "", err
		}
		return "", &schemas.PinError{Label: verification.UserID, Err: err}
	}

	if p.store != nil {
		if err := p.store.SavePinURI(ctx, platform, verification.UserID, uri); err != nil {
			p.log.Warn("Failed to cache pin URI", zap.Error(err))
		}
	}
	return uri, nil
}

// persistLink records the completed link. Best effort: the on-chain triple is
// the source of truth and a store failure must not fail the invocation.
func (p *Pipeline) persistLink(ctx context.Context, result schemas.LinkResult) {
	if p.store == nil {
		return
	}
	rec := schemas.LinkRecord{
		Wallet:   result.Wallet,
		Platform: result.Platform,
		UserID:   result.UserID,
		Username: result.Username,
		TxHash:   result.TxHash,
	}
	if err := p.store.SaveLink(ctx, rec); err != nil {
		p.log.Warn("Failed to persist link record", zap.Error(err))
	}
}
