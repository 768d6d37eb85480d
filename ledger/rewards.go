package ledger

import (
	"errors"

	"shielded-ledger/crypto"
	"shielded-ledger/value"
)

// RewardKind distinguishes a block-reward claim from a bridge-originated one
// (spec §4.8).
type RewardKind int

const (
	RewardKindReward RewardKind = iota
	RewardKindCardanoBridge
)

// ClaimRewardsTransaction is the reduced system transaction that credits a
// reward-pool payout to an owner's unshielded balance (spec §4.7, §4.8).
type ClaimRewardsTransaction struct {
	NetworkID string
	Value     value.Uint128
	Owner     crypto.VerifyingKey
	Nonce     [32]byte
	Signature value.Signature
	Kind      RewardKind
}

var ErrRewardSignature = errors.New("ledger: claim-rewards signature verification failed")

// DataToSign recovers the canonical bytes a reward claim's owner signs.
func (c *ClaimRewardsTransaction) DataToSign() []byte {
	var kindByte byte
	if c.Kind == RewardKindCardanoBridge {
		kindByte = 1
	}
	v, _ := c.Value.Uint64()
	var vBuf [8]byte
	for i := 0; i < 8; i++ {
		vBuf[i] = byte(v >> (8 * i))
	}
	h := crypto.HashBytes([]byte(c.NetworkID), vBuf[:], c.Owner.Bytes(), c.Nonce[:], []byte{kindByte})
	return h[:]
}

// AddSignature returns a copy of c with Signature set to sig.
func (c ClaimRewardsTransaction) AddSignature(sig value.Signature) ClaimRewardsTransaction {
	c.Signature = sig
	return c
}

// Verify checks c.Signature against DataToSign().
func (c *ClaimRewardsTransaction) Verify() bool {
	return crypto.VerifySignature(c.Owner, c.DataToSign(), c.Signature)
}
