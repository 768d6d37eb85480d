package ledger

import (
	"errors"

	"shielded-ledger/crypto"
	"shielded-ledger/utxo"
	"shielded-ledger/value"
)

// PostBlockUpdate rolls the state forward at time t (spec §4.8 step 3):
// collapses old Merkle ranges in the zswap state (see zswap's
// PostBlockUpdate) and prunes replay-set entries whose TTL has elapsed.
func PostBlockUpdate(state *State, t int64) *State {
	next := state.clone()
	next.Zswap = state.Zswap.PostBlockUpdate(t)

	pruned := make(map[[32]byte]replayEntry, len(state.replaySet))
	for hash, entry := range state.replaySet {
		if entry.ttl >= t {
			pruned[hash] = entry
		}
	}
	next.replaySet = pruned

	logger.WithField("prunedReplayEntries", len(state.replaySet)-len(pruned)).Debug("postBlockUpdate pruned replay set")
	return next
}

// ApplySystemTx is the reduced apply path for system transactions (spec
// §4.8 step 4): it does not decrement fee balances and does not require
// Pedersen binding, used by ClaimRewardsTransaction.fromRewards.
func ApplySystemTx(state *State, claim *ClaimRewardsTransaction, t int64) (*State, []Event, error) {
	if !claim.Verify() {
		return state, nil, ErrRewardSignature
	}

	next := state.clone()
	v, _ := claim.Value.Uint64()

	switch claim.Kind {
	case RewardKindReward:
		pool, _ := next.BlockRewardPool.Uint64()
		if pool < v {
			return state, nil, errInsufficientRewardPool
		}
		next.BlockRewardPool = value.Uint128FromUint64(pool - v)
	case RewardKindCardanoBridge:
		pool, _ := next.ReservePool.Uint64()
		if pool < v {
			return state, nil, errInsufficientRewardPool
		}
		next.ReservePool = value.Uint128FromUint64(pool - v)
	}

	ownerHash := crypto.HashBytes(claim.Owner.Bytes())
	intentHash := crypto.HashBytes([]byte("claim-rewards"), claim.Nonce[:])
	rewardToken := value.UnshieldedToken([34]byte{}) // the network's native token id; a zero id denotes the canonical reward-pool token

	updatedUtxo, err := utxo.Apply(next.Utxo, 0, intentHash[:], utxo.Offer{
		Outputs: []utxo.OutputSpec{{Value: claim.Value, Owner: ownerHash, Type: rewardToken}},
	}, t)
	if err != nil {
		return state, nil, err
	}
	next.Utxo = updatedUtxo

	newUtxos, _ := utxo.Delta(state.Utxo, updatedUtxo, nil)
	return next, []Event{{NewUtxos: newUtxos}}, nil
}

var errInsufficientRewardPool = errors.New("ledger: reward pool has insufficient balance")
