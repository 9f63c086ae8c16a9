package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// WriteRoute decides where a ledger write is sent and how much value rides
// along. The direct route calls the multivault itself; the proxied route goes
// through a fee-collecting forwarder that adds a fixed fee on top of the
// deposit.
type WriteRoute interface {
	Destination() common.Address
	Value(deposit *big.Int) *big.Int
}

// DirectRoute sends writes straight to the multivault contract.
type DirectRoute struct {
	Multivault common.Address
}

func (r DirectRoute) Destination() common.Address { return r.Multivault }

func (r DirectRoute) Value(deposit *big.Int) *big.Int {
	return new(big.Int).Set(deposit)
}

// ProxiedRoute sends writes through a forwarder contract, topping up the
// value with the forwarder's fixed fee.
type ProxiedRoute struct {
	Proxy common.Address
	Fee   *big.Int
}

func (r ProxiedRoute) Destination() common.Address { return r.Proxy }

func (r ProxiedRoute) Value(deposit *big.Int) *big.Int {
	total := new(big.Int).Set(deposit)
	if r.Fee != nil {
		total.Add(total, r.Fee)
	}
	return total
}
