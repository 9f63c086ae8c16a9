package ledger

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// The subset of the multivault contract surface this client touches. Ids are
// bytes32, costs are uint256 wei, and both create calls are payable batch
// operations.
const multivaultABIJSON = `[
  {"type":"function","name":"calculateAtomId","stateMutability":"pure",
   "inputs":[{"name":"atomData","type":"bytes"}],
   "outputs":[{"name":"","type":"bytes32"}]},
  {"type":"function","name":"calculateTripleId","stateMutability":"pure",
   "inputs":[{"name":"subjectId","type":"bytes32"},{"name":"predicateId","type":"bytes32"},{"name":"objectId","type":"bytes32"}],
   "outputs":[{"name":"","type":"bytes32"}]},
  {"type":"function","name":"isTermCreated","stateMutability":"view",
   "inputs":[{"name":"termId","type":"bytes32"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"isAtom","stateMutability":"view",
   "inputs":[{"name":"termId","type":"bytes32"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"getAtomCost","stateMutability":"view",
   "inputs":[],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getTripleCost","stateMutability":"view",
   "inputs":[],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"createAtoms","stateMutability":"payable",
   "inputs":[{"name":"atomDatas","type":"bytes[]"},{"name":"assets","type":"uint256[]"}],
   "outputs":[{"name":"","type":"bytes32[]"}]},
  {"type":"function","name":"createTriples","stateMutability":"payable",
   "inputs":[{"name":"subjectIds","type":"bytes32[]"},{"name":"predicateIds","type":"bytes32[]"},{"name":"objectIds","type":"bytes32[]"},{"name":"assets","type":"uint256[]"}],
   "outputs":[{"name":"","type":"bytes32[]"}]}
]`

var multivaultABI = mustParseABI(multivaultABIJSON)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("ledger: invalid embedded ABI: " + err.Error())
	}
	return parsed
}
