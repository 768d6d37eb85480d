package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"shielded-ledger/config"
	"shielded-ledger/contract"
	"shielded-ledger/crypto"
	"shielded-ledger/dust"
	"shielded-ledger/ledger"
	"shielded-ledger/value"
)

var (
	paramsPath string
	envPath    string
	params     ledger.Parameters
	state      *ledger.State
)

func rootInit(cmd *cobra.Command, _ []string) error {
	var err error
	params, err = config.Load(paramsPath, envPath)
	if err != nil {
		return err
	}
	state = ledger.Blank("ledgerctl-dev")
	return nil
}

func main() {
	rootCmd := &cobra.Command{Use: "ledgerctl", PersistentPreRunE: rootInit}
	rootCmd.PersistentFlags().StringVar(&paramsPath, "params", "", "path to a YAML ledger parameters file")
	rootCmd.PersistentFlags().StringVar(&envPath, "env", ".env", "path to a .env overrides file")
	rootCmd.AddCommand(deployCmd())
	rootCmd.AddCommand(dustBalanceCmd())
	rootCmd.AddCommand(replayDemoCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func deployCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "deploy a blank contract and print its address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			randomness := crypto.HashBytes([]byte(fmt.Sprintf("%d", time.Now().UnixNano())))
			initial := contract.NewState(contract.MaintenanceAuthority{})
			reg, addr, err := contract.Deploy(state.Contracts, initial, randomness)
			if err != nil {
				return err
			}
			state.Contracts = reg
			fmt.Printf("deployed contract %x\n", addr)
			return nil
		},
	}
}

func dustBalanceCmd() *cobra.Command {
	var nightAmount uint64
	var ctime int64
	var asOf int64
	cmd := &cobra.Command{
		Use:   "dust-balance",
		Short: "show the accrued dust value for a synthetic night-backed output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := dust.Output{
				InitialValue: value.Uint128FromUint64(0),
				Ctime:        ctime,
				Gen:          dust.GenInfo{NightAmount: nightAmount},
			}
			if asOf == 0 {
				asOf = time.Now().Unix()
			}
			fmt.Printf("accrued dust: %d\n", dust.UpdatedValue(out, asOf, params.Dust))
			return nil
		},
	}
	cmd.Flags().Uint64Var(&nightAmount, "night", 0, "backing NIGHT amount")
	cmd.Flags().Int64Var(&ctime, "ctime", 0, "output creation time (unix seconds)")
	cmd.Flags().Int64Var(&asOf, "as-of", 0, "evaluation time (unix seconds, default now)")
	return cmd
}

func replayDemoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay-demo",
		Short: "apply a one-empty-intent transaction twice and show replay protection reject the second",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			intent := ledger.NewIntent(time.Now().Unix() + 60)
			tx, err := ledger.FromParts("ledgerctl-dev", nil, nil, map[uint16]*ledger.Intent{0: intent})
			if err != nil {
				return err
			}

			ctx := ledger.BlockContext{SecondsSinceEpoch: time.Now().Unix()}
			vtx, err := ledger.WellFormed(state, tx, ledger.WellFormedStrictness{}, params, ctx)
			if err != nil {
				return err
			}
			next, res := ledger.Apply(state, vtx, ctx, params)
			fmt.Printf("first apply: type=%v error=%q\n", res.Type, res.Error)

			_, res2 := ledger.Apply(next, vtx, ctx, params)
			fmt.Printf("second apply: type=%v error=%q\n", res2.Type, res2.Error)
			return nil
		},
	}
}
