// mopdump inspects and runs RV64IMC images with and without macro-op fusion.
package main

import (
	"fmt"
	"os"

	"github.com/jam-duna/rvmop/log"
	"github.com/jam-duna/rvmop/rvm/decoder"
	"github.com/jam-duna/rvmop/rvm/instruction"
	"github.com/jam-duna/rvmop/rvm/machine"
	"github.com/jam-duna/rvmop/rvm/memory"
	"github.com/jam-duna/rvmop/rvm/mop"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/blake2b"
)

var (
	Version = "dev"
	Commit  = "none"
)

type config struct {
	mop        bool
	compressed bool
	base       uint64
	entry      uint64
	logLevel   string
	logModules string
}

func (c *config) isa() decoder.ISA {
	var isa decoder.ISA
	if c.compressed {
		isa |= machine.ISAIMC
	}
	if c.mop {
		isa |= machine.ISAMOP
	}
	return isa
}

func (c *config) decoder() decoder.Decoder {
	isa := c.isa()
	return mop.NewDecoderForISA(decoder.NewRawDecoderForISA(isa), isa)
}

// image is a flat binary mapped at base.
type image struct {
	mem    *memory.Sparse
	code   []byte
	base   uint64
	digest [32]byte
}

func (i *image) end() uint64 { return i.base + uint64(len(i.code)) }

func (c *config) load(path string) (*image, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%s: empty image", path)
	}
	mem := memory.NewSparse()
	mem.LoadSegment(c.base, code)
	digest := blake2b.Sum256(code)
	log.Debug(log.CliMonitoring, "image loaded", "path", path, "base", c.base, "bytes", len(code), "blake2b", fmt.Sprintf("%x", digest))
	return &image{mem: mem, code: code, base: c.base, digest: digest}, nil
}

// machine builds a runnable machine for img, starting at --entry when set.
func (c *config) machine(img *image) *machine.Machine {
	entry := c.entry
	if entry == 0 {
		entry = img.base
	}
	img.mem.Map(machine.StackTop-machine.StackSize, machine.StackSize)
	m := machine.NewWithDecoder(c.isa(), c.decoder(), img.mem, entry)
	m.SetRegister(instruction.SP, machine.StackTop)
	return m
}

func newRootCmd() *cobra.Command {
	cfg := &config{}
	rootCmd := &cobra.Command{
		Use:          "mopdump",
		Short:        "RV64IMC macro-op fusion inspector",
		Version:      fmt.Sprintf("%s (%s)", Version, Commit),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := log.InitLogger(cfg.logLevel); err != nil {
				return err
			}
			log.EnableModules(cfg.logModules)
			return nil
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&cfg.mop, "mop", true, "Enable macro-op fusion")
	flags.BoolVar(&cfg.compressed, "compressed", true, "Enable the C extension")
	flags.Uint64Var(&cfg.base, "base", machine.DefaultBase, "Load address of the image")
	flags.Uint64Var(&cfg.entry, "entry", 0, "Entry point (default: base)")
	flags.StringVar(&cfg.logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error, crit)")
	flags.StringVar(&cfg.logModules, "log-modules", "", "Comma separated log modules to enable, or all")

	rootCmd.AddCommand(
		newDisasmCmd(cfg),
		newStatsCmd(cfg),
		newRunCmd(cfg),
		newConsoleCmd(cfg),
		newDemoCmd(cfg),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
