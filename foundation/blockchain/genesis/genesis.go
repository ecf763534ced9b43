// Package genesis maintains the fixed parameters every node on the chain
// must agree on.
package genesis

// Difficulty is the number of leading hex zeros a block hash must have.
const Difficulty = 4

// MiningReward is the value paid by every coinbase transaction.
const MiningReward uint64 = 100

// CoinbaseData is the free form data placed in the genesis coinbase input.
const CoinbaseData = "The Times 03/Jan/2009 Chancellor on brink of second bailout for banks"

// ProtocolVersion is the version sent during the version handshake.
const ProtocolVersion int32 = 1

// =============================================================================

// Genesis represents the chain parameters as a value for reporting.
type Genesis struct {
	Difficulty      int    `json:"difficulty"`       // How difficult it needs to be to solve the work problem.
	MiningReward    uint64 `json:"mining_reward"`    // Reward for mining a block.
	CoinbaseData    string `json:"coinbase_data"`    // Data embedded into the genesis block.
	ProtocolVersion int32  `json:"protocol_version"` // Version of the gossip protocol.
}

// Load returns the parameters compiled into this binary.
func Load() Genesis {
	return Genesis{
		Difficulty:      Difficulty,
		MiningReward:    MiningReward,
		CoinbaseData:    CoinbaseData,
		ProtocolVersion: ProtocolVersion,
	}
}
