// Package config loads LedgerParameters from a YAML file plus .env overrides,
// the way walletserver/config.Load loads a ServerConfig from godotenv, scaled
// up to yaml.v3 for the richer parameter set this ledger needs.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"shielded-ledger/ledger"
)

// FileParameters is the YAML-serializable projection of ledger.Parameters.
// Gas costs are intentionally left out of the file format; they come from
// vm.InitialCostModel() and are not meant to be operator-tunable.
type FileParameters struct {
	GlobalTTLSeconds  int64   `yaml:"global_ttl_seconds"`
	NightDustRatio    float64 `yaml:"night_dust_ratio"`
	GenerationDecay   float64 `yaml:"generation_decay_rate"`
	GracePeriodSecs   int64   `yaml:"dust_grace_period_seconds"`
	InputFeeOverhead  uint64  `yaml:"input_fee_overhead"`
	OutputFeeOverhead uint64  `yaml:"output_fee_overhead"`
}

// AppConfig holds the process-wide loaded parameters, mirroring
// walletserver/config.AppConfig's package-level singleton.
var AppConfig ledger.Parameters

// Load reads a YAML parameters file, then applies any LEDGER_* environment
// overrides found in a .env file at envPath (a missing file is skipped: the
// not-exist error from godotenv.Load is ignored, matching
// walletserver/config's deployment story where .env is optional in dev).
func Load(yamlPath, envPath string) (ledger.Parameters, error) {
	params := ledger.InitialParameters()

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			return params, fmt.Errorf("config: reading %s: %w", yamlPath, err)
		}
		var fp FileParameters
		if err := yaml.Unmarshal(data, &fp); err != nil {
			return params, fmt.Errorf("config: parsing %s: %w", yamlPath, err)
		}
		applyFile(&params, fp)
	}

	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
			return params, fmt.Errorf("config: loading %s: %w", envPath, err)
		}
		applyEnvOverrides(&params)
	}

	AppConfig = params
	return params, nil
}

func applyFile(params *ledger.Parameters, fp FileParameters) {
	if fp.GlobalTTLSeconds != 0 {
		params.GlobalTTLSeconds = fp.GlobalTTLSeconds
	}
	if fp.NightDustRatio != 0 {
		params.Dust.NightDustRatio = fp.NightDustRatio
	}
	if fp.GenerationDecay != 0 {
		params.Dust.GenerationDecayRate = fp.GenerationDecay
	}
	if fp.GracePeriodSecs != 0 {
		params.Dust.GracePeriodSeconds = fp.GracePeriodSecs
	}
	if fp.InputFeeOverhead != 0 {
		params.InputFeeOverhead = fp.InputFeeOverhead
	}
	if fp.OutputFeeOverhead != 0 {
		params.OutputFeeOverhead = fp.OutputFeeOverhead
	}
}

func applyEnvOverrides(params *ledger.Parameters) {
	if v := os.Getenv("LEDGER_GLOBAL_TTL_SECONDS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			params.GlobalTTLSeconds = n
		}
	}
	if v := os.Getenv("LEDGER_NIGHT_DUST_RATIO"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			params.Dust.NightDustRatio = f
		}
	}
	if v := os.Getenv("LEDGER_DUST_GRACE_PERIOD_SECONDS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			params.Dust.GracePeriodSeconds = n
		}
	}
}
