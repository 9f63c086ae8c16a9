// Thin wrapper over the multivault contract: id derivation, existence and
// cost reads, payable create calls, and receipt polling. No caching; every
// pipeline run re-queries the ledger.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/Wieedze/Sofia-Attestor-Template/api/schemas"
)

// Backend abstracts the used subset of ethclient.Client so the ledger logic
// can be exercised against a mock in tests.
type Backend interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

var _ Backend = (*ethclient.Client)(nil)

const defaultPollInterval = 2 * time.Second

// Config carries the static parameters of one ledger connection.
type Config struct {
	Multivault   common.Address
	Route        WriteRoute
	Signer       Signer
	ChainID      int64
	PollInterval time.Duration
}

// Client is the graph client. Reads are plain eth_calls; writes are signed by
// the configured Signer and serialized so concurrent pipeline invocations
// sharing one signing account never race on the nonce.
type Client struct {
	backend      Backend
	contract     common.Address
	route        WriteRoute
	signer       Signer
	chainID      *big.Int
	pollInterval time.Duration
	log          *zap.Logger

	// Guards the nonce-read/sign/send window for the shared signing account.
	writeMu sync.Mutex
}

// NewClient builds a ledger client. The route defaults to direct when nil.
func NewClient(backend Backend, cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	route := cfg.Route
	if route == nil {
		route = DirectRoute{Multivault: cfg.Multivault}
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return &Client{
		backend:      backend,
		contract:     cfg.Multivault,
		route:        route,
		signer:       cfg.Signer,
		chainID:      big.NewInt(cfg.ChainID),
		pollInterval: poll,
		log:          logger.Named("ledger"),
	}
}

// AtomID derives the atom id for a payload. This is the same keccak256 the
// contract's calculateAtomId applies, so id derivation never needs an RPC
// round trip. Identical payload, identical id.
func (c *Client) AtomID(payload []byte) common.Hash {
	return crypto.Keccak256Hash(payload)
}

// TripleID derives the triple id from its three endpoint ids, mirroring the
// contract's calculateTripleId (keccak256 of the packed endpoints).
func (c *Client) TripleID(subject, predicate, object common.Hash) common.Hash {
	return crypto.Keccak256Hash(subject[:], predicate[:], object[:])
}

// call packs a read method, executes it as an eth_call, and unpacks the
// single return value.
func (c *Client) call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := multivaultABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("packing %s: %w", method, err)
	}
	raw, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", method, err)
	}
	out, err := multivaultABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpacking %s result: %w", method, err)
	}
	return out, nil
}

// Exists reports whether a term (atom or triple) with the given id has been
// created on the ledger.
func (c *Client) Exists(ctx context.Context, id common.Hash) (bool, error) {
	out, err := c.call(ctx, "isTermCreated", id)
	if err != nil {
		return false, err
	}
	return out[0].(bool), nil
}

// IsAtom reports whether the given term id identifies an atom.
func (c *Client) IsAtom(ctx context.Context, id common.Hash) (bool, error) {
	out, err := c.call(ctx, "isAtom", id)
	if err != nil {
		return false, err
	}
	return out[0].(bool), nil
}

// AtomCost returns the ledger's current atom creation cost in wei.
func (c *Client) AtomCost(ctx context.Context) (*big.Int, error) {
	out, err := c.call(ctx, "getAtomCost")
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// TripleCost returns the ledger's current triple creation cost in wei.
func (c *Client) TripleCost(ctx context.Context) (*big.Int, error) {
	out, err := c.call(ctx, "getTripleCost")
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// CreateAtoms submits a batch atom creation. The transaction value is the sum
// of the per-atom deposits, adjusted by the write route.
func (c *Client) CreateAtoms(ctx context.Context, payloads [][]byte, deposits []*big.Int) (common.Hash, error) {
	if len(payloads) == 0 || len(payloads) != len(deposits) {
		return common.Hash{}, fmt.Errorf("createAtoms: %d payloads vs %d deposits", len(payloads), len(deposits))
	}
	data, err := multivaultABI.Pack("createAtoms", payloads, deposits)
	if err != nil {
		return common.Hash{}, fmt.Errorf("packing createAtoms: %w", err)
	}
	return c.submit(ctx, data, sum(deposits))
}

// CreateTriples submits a batch triple creation. All three endpoint atoms
// must already exist on the ledger or the call reverts.
func (c *Client) CreateTriples(ctx context.Context, subjects, predicates, objects []common.Hash, deposits []*big.Int) (common.Hash, error) {
	n := len(subjects)
	if n == 0 || len(predicates) != n || len(objects) != n || len(deposits) != n {
		return common.Hash{}, fmt.Errorf("createTriples: mismatched argument lengths")
	}
	data, err := multivaultABI.Pack("createTriples", subjects, predicates, objects, deposits)
	if err != nil {
		return common.Hash{}, fmt.Errorf("packing createTriples: %w", err)
	}
	return c.submit(ctx, data, sum(deposits))
}

// submit signs and sends one write. The whole nonce-read/estimate/sign/send
// window runs under writeMu: the signing account is shared across concurrent
// invocations and out-of-order nonces would wedge the account.
func (c *Client) submit(ctx context.Context, data []byte, deposit *big.Int) (common.Hash, error) {
	if c.signer == nil {
		return common.Hash{}, fmt.Errorf("no signer configured")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	from := c.signer.Address()
	to := c.route.Destination()
	value := c.route.Value(deposit)

	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("fetching nonce: %w", err)
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("fetching gas price: %w", err)
	}

	// Estimation doubles as simulation: an insufficient deposit or an
	// already-existing term reverts here, before anything is broadcast.
	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:     from,
		To:       &to,
		Value:    value,
		GasPrice: gasPrice,
		Data:     data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("simulating write: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas + gas/5, // headroom over the estimate
		To:       &to,
		Value:    value,
		Data:     data,
	})
	signed, err := c.signer.SignTx(tx, c.chainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("signing transaction: %w", err)
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("sending transaction: %w", err)
	}

	c.log.Info("Ledger write submitted",
		zap.String("tx", signed.Hash().Hex()),
		zap.String("to", to.Hex()),
		zap.String("value_wei", value.String()),
		zap.Uint64("nonce", nonce))
	return signed.Hash(), nil
}

// WaitMined polls for the receipt of a submitted write. A write is final only
// once the receipt reports success; a failed receipt is a hard failure with
// no automatic resubmission. Bounded only by ctx.
func (c *Client) WaitMined(ctx context.Context, txHash common.Hash) (schemas.TxReceipt, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, txHash)
		if err == nil {
			return schemas.TxReceipt{
				Success:     receipt.Status == types.ReceiptStatusSuccessful,
				BlockNumber: receipt.BlockNumber.Uint64(),
			}, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return schemas.TxReceipt{}, fmt.Errorf("fetching receipt for %s: %w", txHash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			// Indeterminate: the write may still land after we stop waiting.
			return schemas.TxReceipt{}, fmt.Errorf("waiting for %s: %w", txHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// IsAlreadyExists classifies a revert as "term already created". Used only as
// a fallback when the pre-submission existence check raced another writer.
func IsAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "alreadyexists") ||
		strings.Contains(msg, "already exists") ||
		strings.Contains(msg, "atomexists") ||
		strings.Contains(msg, "tripleexists")
}

func sum(amounts []*big.Int) *big.Int {
	total := new(big.Int)
	for _, a := range amounts {
		total.Add(total, a)
	}
	return total
}
