package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/jam-duna/rvmop/log"
	"github.com/jam-duna/rvmop/rverrors"
	"github.com/jam-duna/rvmop/rvm/asm"
	"github.com/jam-duna/rvmop/rvm/decoder"
	"github.com/jam-duna/rvmop/rvm/disasm"
	. "github.com/jam-duna/rvmop/rvm/instruction"
	"github.com/jam-duna/rvmop/rvm/machine"
	"github.com/jam-duna/rvmop/rvm/stats"
	"github.com/spf13/cobra"
)

func newDisasmCmd(cfg *config) *cobra.Command {
	var noGNU bool
	cmd := &cobra.Command{
		Use:   "disasm <image>",
		Short: "List the image as the fusing decoder sees it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := cfg.load(args[0])
			if err != nil {
				return err
			}
			lines, err := disasm.Listing(img.mem, img.base, img.end(), cfg.decoder())
			if err != nil {
				return err
			}
			return disasm.WriteListing(cmd.OutOrStdout(), lines, !noGNU)
		},
	}
	cmd.Flags().BoolVar(&noGNU, "no-gnu", false, "Omit the GNU syntax column")
	return cmd
}

func newStatsCmd(cfg *config) *cobra.Command {
	var (
		chart   string
		asJSON  bool
		compare bool
	)
	cmd := &cobra.Command{
		Use:   "stats <image>",
		Short: "Count fused pairs and opcodes in the image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := cfg.load(args[0])
			if err != nil {
				return err
			}
			report, err := stats.Analyze(img.mem, img.base, img.end(), cfg.decoder())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case compare:
				plain, err := stats.Analyze(img.mem, img.base, img.end(), decoder.NewRawDecoderForISA(cfg.isa()))
				if err != nil {
					return err
				}
				diff, err := stats.Diff(plain, report)
				if err != nil {
					return err
				}
				fmt.Fprint(out, diff)
			case asJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			default:
				fmt.Fprintf(out, "%s blake2b:%x\n", args[0], img.digest)
				fmt.Fprint(out, report.Tree().String())
			}
			if chart == "" {
				return nil
			}
			f, err := os.Create(chart)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := report.RenderChart(f); err != nil {
				return err
			}
			log.Info(log.CliMonitoring, "chart written", "path", chart)
			return nil
		},
	}
	cmd.Flags().StringVar(&chart, "chart", "", "Write an HTML chart to this path")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	cmd.Flags().BoolVar(&compare, "compare", false, "Print the difference between unfused and fused decoding")
	return cmd
}

func newRunCmd(cfg *config) *cobra.Command {
	var maxCycles uint64
	cmd := &cobra.Command{
		Use:   "run <image>",
		Short: "Execute the image until it exits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := cfg.load(args[0])
			if err != nil {
				return err
			}
			m := cfg.machine(img)
			code, err := m.Run(maxCycles)
			if err != nil {
				if errors.Is(err, rverrors.ErrCyclesExceeded) {
					log.Warn(log.CliMonitoring, "cycle limit reached", "cycles", m.Cycles(), "pc", m.PC())
				}
				return fmt.Errorf("%s: %w", rverrors.GetErrorCodeWithName(err), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exit %d after %d cycles\n", code, m.Cycles())
			return nil
		},
	}
	cmd.Flags().Uint64Var(&maxCycles, "max-cycles", 1_000_000, "Abort after this many steps")
	return cmd
}

func newDemoCmd(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "demo <out>",
		Short: "Write a small image that exercises every fusion idiom (run it with the same --base)",
		Long: `Write a small image that exercises every fusion idiom.

The absolute far call targets --base + offset, so the image only runs
correctly when loaded at the --base it was written with.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := demoProgram(cfg.base)
			log.Info(log.CliMonitoring, "demo written", "path", args[0], "bytes", p.PC())
			return os.WriteFile(args[0], p.Bytes(), 0o644)
		},
	}
}

// demoProgram folds the results of every fused idiom into a0 and exits with
// it. The leaf routine is called twice, once through each far jump form. The
// absolute call bakes in base.
func demoProgram(base uint64) *asm.Program {
	build := func(leaf int) (*asm.Program, int) {
		p := asm.New().
			Li32(A1, -0x12345678).
			Li64(A2, 0x0123456789abcdef).
			Mulh(A3, A1, A2).Mul(A4, A1, A2).
			Add(A0, A3, A4).
			Mulhu(A3, A1, A2).Mul(A4, A1, A2).
			Xor(A0, A0, A3).Xor(A0, A0, A4).
			Div(A3, A1, A2).Rem(A4, A1, A2).
			Add(A0, A0, A3).Add(A0, A0, A4).
			Divu(A3, A2, A1).Remu(A4, A2, A1).
			Xor(A0, A0, A3).Xor(A0, A0, A4)
		p.FarCallAbs(RA, int32(base)+int32(leaf))
		p.FarCallRel(RA, int32(leaf-p.PC()))
		p.Addi(A7, Zero, machine.SyscallExit).Ecall()
		at := p.PC()
		p.Addi(A0, A0, 1).Jalr(Zero, RA, 0)
		return p, at
	}
	_, leaf := build(0)
	p, _ := build(leaf)
	return p
}
