package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Hardhat's first well-known development key. Never funded on any network
// anyone cares about.
const testKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var testMultivault = common.HexToAddress("0x1A6950807E33d5bC9975067e6D6b5Ea4cD661665")

// -- Backend Mock --

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	args := m.Called(ctx, call, blockNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}

func (m *mockBackend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	args := m.Called(ctx, call)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return m.Called(ctx, tx).Error(0)
}

func (m *mockBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	args := m.Called(ctx, txHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Receipt), args.Error(1)
}

func newTestClient(t *testing.T, backend Backend) *Client {
	t.Helper()
	signer, err := NewKeySigner(testKeyHex)
	require.NoError(t, err)
	return NewClient(backend, Config{
		Multivault:   testMultivault,
		Signer:       signer,
		ChainID:      84532,
		PollInterval: 5 * time.Millisecond,
	}, nil)
}

// packOutput ABI-encodes a method's return value the way the node would.
func packOutput(t *testing.T, method string, values ...any) []byte {
	t.Helper()
	out, err := multivaultABI.Methods[method].Outputs.Pack(values...)
	require.NoError(t, err)
	return out
}

// -- Id Derivation --

func TestAtomID(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, &mockBackend{})

	t.Run("deterministic", func(t *testing.T) {
		t.Parallel()
		payload := []byte("0x742d35Cc6634C0532925a3b844Bc454e4438f44e")
		assert.Equal(t, c.AtomID(payload), c.AtomID(payload))
	})

	t.Run("known vector", func(t *testing.T) {
		t.Parallel()
		// keccak256 of the empty byte string.
		assert.Equal(t,
			"0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
			c.AtomID(nil).Hex())
	})

	t.Run("distinct payloads yield distinct ids", func(t *testing.T) {
		t.Parallel()
		assert.NotEqual(t, c.AtomID([]byte("a")), c.AtomID([]byte("b")))
	})
}

func TestTripleID(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, &mockBackend{})

	s := c.AtomID([]byte("subject"))
	p := c.AtomID([]byte("predicate"))
	o := c.AtomID([]byte("object"))

	// Must match keccak256 of the packed endpoint ids.
	want := crypto.Keccak256Hash(s[:], p[:], o[:])
	assert.Equal(t, want, c.TripleID(s, p, o))

	// Order matters: (s,p,o) is not (o,p,s).
	assert.NotEqual(t, c.TripleID(s, p, o), c.TripleID(o, p, s))
}

// -- Routes --

func TestWriteRoutes(t *testing.T) {
	t.Parallel()
	deposit := big.NewInt(1000)

	t.Run("direct passes the deposit through", func(t *testing.T) {
		t.Parallel()
		route := DirectRoute{Multivault: testMultivault}
		assert.Equal(t, testMultivault, route.Destination())
		assert.Equal(t, big.NewInt(1000), route.Value(deposit))
	})

	t.Run("proxied adds the fee", func(t *testing.T) {
		t.Parallel()
		proxy := common.HexToAddress("0x000000000000000000000000000000000000dEaD")
		route := ProxiedRoute{Proxy: proxy, Fee: big.NewInt(25)}
		assert.Equal(t, proxy, route.Destination())
		assert.Equal(t, big.NewInt(1025), route.Value(deposit))
	})

	t.Run("routes never mutate the caller's deposit", func(t *testing.T) {
		t.Parallel()
		route := ProxiedRoute{Proxy: testMultivault, Fee: big.NewInt(1)}
		_ = route.Value(deposit)
		assert.Equal(t, big.NewInt(1000), deposit)
	})
}

// -- Reads --

func TestReads(t *testing.T) {
	t.Parallel()

	t.Run("Exists unpacks the bool", func(t *testing.T) {
		t.Parallel()
		backend := &mockBackend{}
		c := newTestClient(t, backend)
		backend.On("CallContract", mock.Anything, mock.Anything, mock.Anything).
			Return(packOutput(t, "isTermCreated", true), nil).Once()

		exists, err := c.Exists(context.Background(), c.AtomID([]byte("x")))
		require.NoError(t, err)
		assert.True(t, exists)
		backend.AssertExpectations(t)
	})

	t.Run("IsAtom unpacks the bool", func(t *testing.T) {
		t.Parallel()
		backend := &mockBackend{}
		c := newTestClient(t, backend)
		backend.On("CallContract", mock.Anything, mock.Anything, mock.Anything).
			Return(packOutput(t, "isAtom", true), nil).Once()

		isAtom, err := c.IsAtom(context.Background(), c.AtomID([]byte("x")))
		require.NoError(t, err)
		assert.True(t, isAtom)
		backend.AssertExpectations(t)
	})

	t.Run("AtomCost unpacks the amount", func(t *testing.T) {
		t.Parallel()
		backend := &mockBackend{}
		c := newTestClient(t, backend)
		backend.On("CallContract", mock.Anything, mock.Anything, mock.Anything).
			Return(packOutput(t, "getAtomCost", big.NewInt(300)), nil).Once()

		cost, err := c.AtomCost(context.Background())
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(300), cost)
	})

	t.Run("read errors propagate", func(t *testing.T) {
		t.Parallel()
		backend := &mockBackend{}
		c := newTestClient(t, backend)
		backend.On("CallContract", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("rpc down")).Once()

		_, err := c.TripleCost(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "getTripleCost")
	})
}

// -- Writes --

func TestCreateAtoms(t *testing.T) {
	t.Parallel()

	t.Run("signs and sends with the summed deposit", func(t *testing.T) {
		t.Parallel()
		backend := &mockBackend{}
		c := newTestClient(t, backend)

		backend.On("PendingNonceAt", mock.Anything, c.signer.Address()).Return(uint64(7), nil).Once()
		backend.On("SuggestGasPrice", mock.Anything).Return(big.NewInt(1_000_000_000), nil).Once()
		backend.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(100_000), nil).Once()

		var sent *types.Transaction
		backend.On("SendTransaction", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { sent = args.Get(1).(*types.Transaction) }).
			Return(nil).Once()

		txHash, err := c.CreateAtoms(context.Background(),
			[][]byte{[]byte("a"), []byte("b")},
			[]*big.Int{big.NewInt(100), big.NewInt(150)})
		require.NoError(t, err)

		require.NotNil(t, sent)
		assert.Equal(t, txHash, sent.Hash())
		assert.Equal(t, uint64(7), sent.Nonce())
		assert.Equal(t, testMultivault, *sent.To())
		assert.Equal(t, big.NewInt(250), sent.Value())
		assert.Equal(t, uint64(120_000), sent.Gas(), "expected headroom over the estimate")
		backend.AssertExpectations(t)
	})

	t.Run("mismatched lengths rejected before any rpc", func(t *testing.T) {
		t.Parallel()
		backend := &mockBackend{}
		c := newTestClient(t, backend)

		_, err := c.CreateAtoms(context.Background(), [][]byte{[]byte("a")}, nil)
		require.Error(t, err)
		backend.AssertNotCalled(t, "PendingNonceAt", mock.Anything, mock.Anything)
	})

	t.Run("simulation revert surfaces without broadcasting", func(t *testing.T) {
		t.Parallel()
		backend := &mockBackend{}
		c := newTestClient(t, backend)

		backend.On("PendingNonceAt", mock.Anything, mock.Anything).Return(uint64(0), nil).Once()
		backend.On("SuggestGasPrice", mock.Anything).Return(big.NewInt(1), nil).Once()
		backend.On("EstimateGas", mock.Anything, mock.Anything).
			Return(uint64(0), fmt.Errorf("execution reverted: EthMultiVault_AtomExists")).Once()

		_, err := c.CreateAtoms(context.Background(), [][]byte{[]byte("a")}, []*big.Int{big.NewInt(1)})
		require.Error(t, err)
		assert.True(t, IsAlreadyExists(err))
		backend.AssertNotCalled(t, "SendTransaction", mock.Anything, mock.Anything)
	})
}

func TestCreateTriples_ProxiedValue(t *testing.T) {
	t.Parallel()
	backend := &mockBackend{}
	signer, err := NewKeySigner(testKeyHex)
	require.NoError(t, err)
	proxy := common.HexToAddress("0x000000000000000000000000000000000000bEEF")
	c := NewClient(backend, Config{
		Multivault: testMultivault,
		Route:      ProxiedRoute{Proxy: proxy, Fee: big.NewInt(10)},
		Signer:     signer,
		ChainID:    84532,
	}, nil)

	backend.On("PendingNonceAt", mock.Anything, mock.Anything).Return(uint64(0), nil).Once()
	backend.On("SuggestGasPrice", mock.Anything).Return(big.NewInt(1), nil).Once()
	backend.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(50_000), nil).Once()

	var sent *types.Transaction
	backend.On("SendTransaction", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).(*types.Transaction) }).
		Return(nil).Once()

	id := c.AtomID([]byte("x"))
	_, err = c.CreateTriples(context.Background(),
		[]common.Hash{id}, []common.Hash{id}, []common.Hash{id},
		[]*big.Int{big.NewInt(500)})
	require.NoError(t, err)

	require.NotNil(t, sent)
	assert.Equal(t, proxy, *sent.To())
	assert.Equal(t, big.NewInt(510), sent.Value(), "deposit plus the proxy fee")
}

// -- Confirmation --

func TestWaitMined(t *testing.T) {
	t.Parallel()
	txHash := common.HexToHash("0xabc")

	t.Run("polls until the receipt lands", func(t *testing.T) {
		t.Parallel()
		backend := &mockBackend{}
		c := newTestClient(t, backend)

		backend.On("TransactionReceipt", mock.Anything, txHash).
			Return(nil, ethereum.NotFound).Twice()
		backend.On("TransactionReceipt", mock.Anything, txHash).
			Return(&types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(1234)}, nil).Once()

		receipt, err := c.WaitMined(context.Background(), txHash)
		require.NoError(t, err)
		assert.True(t, receipt.Success)
		assert.Equal(t, uint64(1234), receipt.BlockNumber)
		backend.AssertExpectations(t)
	})

	t.Run("reverted receipt reports failure, not error", func(t *testing.T) {
		t.Parallel()
		backend := &mockBackend{}
		c := newTestClient(t, backend)

		backend.On("TransactionReceipt", mock.Anything, txHash).
			Return(&types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(9)}, nil).Once()

		receipt, err := c.WaitMined(context.Background(), txHash)
		require.NoError(t, err)
		assert.False(t, receipt.Success)
	})

	t.Run("context expiry is an indeterminate outcome", func(t *testing.T) {
		t.Parallel()
		backend := &mockBackend{}
		c := newTestClient(t, backend)

		backend.On("TransactionReceipt", mock.Anything, txHash).Return(nil, ethereum.NotFound)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := c.WaitMined(ctx, txHash)
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})
}

func TestIsAlreadyExists(t *testing.T) {
	t.Parallel()
	assert.True(t, IsAlreadyExists(fmt.Errorf("execution reverted: EthMultiVault_TripleExists")))
	assert.True(t, IsAlreadyExists(fmt.Errorf("term already exists")))
	assert.False(t, IsAlreadyExists(fmt.Errorf("insufficient funds")))
	assert.False(t, IsAlreadyExists(nil))
}
