package ledger

import (
	"shielded-ledger/dust"
	"shielded-ledger/vm"
)

// Parameters mirrors LedgerParameters.initialParameters() (spec §6.4):
// compile-time-known constants governing TTL bounds, dust generation, fee
// coefficients, and gas pricing.
type Parameters struct {
	GlobalTTLSeconds int64
	Dust             dust.Params

	InputFeeOverhead  uint64
	OutputFeeOverhead uint64

	CostModel vm.CostModel
}

// InitialParameters returns the canonical parameter set used by genesis
// ledgers and by every test scenario in spec.md §8 unless a scenario
// overrides one explicitly.
func InitialParameters() Parameters {
	return Parameters{
		GlobalTTLSeconds:  3600,
		Dust:              dust.DefaultParams(),
		InputFeeOverhead:  gasToFeeBase,
		OutputFeeOverhead: gasToFeeBase,
		CostModel:         vm.InitialCostModel(),
	}
}

const gasToFeeBase = 1000
