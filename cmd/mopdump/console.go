package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/dop251/goja"
	"github.com/jam-duna/rvmop/rvm/decoder"
	"github.com/jam-duna/rvmop/rvm/disasm"
	"github.com/jam-duna/rvmop/rvm/instruction"
	"github.com/jam-duna/rvmop/rvm/machine"
	"github.com/spf13/cobra"
)

// newConsoleVM exposes m to JavaScript:
//
//	step()      executes one decoded word and returns its disassembly
//	run(n)      steps until exit, fault or n more cycles (n <= 0: no limit)
//	reg(i)      register value as hex
//	setreg(i,v) writes a register
//	pc()        program counter as hex
//	cycles()    steps executed so far
//	disasm(n)   lists n words from pc
func newConsoleVM(m *machine.Machine, out io.Writer) *goja.Runtime {
	vm := goja.New()
	hex := func(v uint64) string { return fmt.Sprintf("%#x", v) }

	vm.Set("step", func() (string, error) {
		pc := m.PC()
		inst, err := m.Decoder().Decode(m.Memory(), pc)
		if err != nil {
			return "", err
		}
		if err := m.Step(); err != nil {
			return "", err
		}
		return fmt.Sprintf("%#x: %s", pc, disasm.Format(pc, inst)), nil
	})
	vm.Set("run", func(n int64) (string, error) {
		var limit uint64
		if n > 0 {
			limit = m.Cycles() + uint64(n)
		}
		code, err := m.Run(limit)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("exit %d", code), nil
	})
	vm.Set("reg", func(i int) string {
		return hex(m.Register(instruction.Register(i)))
	})
	vm.Set("setreg", func(i int, v int64) {
		m.SetRegister(instruction.Register(i), uint64(v))
	})
	vm.Set("pc", func() string { return hex(m.PC()) })
	vm.Set("cycles", func() int64 { return int64(m.Cycles()) })
	vm.Set("disasm", func(n int) (string, error) {
		var sb strings.Builder
		pc := m.PC()
		for i := 0; i < n; i++ {
			inst, err := decoder.DecodeAt(m.Decoder(), m.Memory(), pc)
			if err != nil {
				fmt.Fprintf(&sb, "%#x: %v\n", pc, err)
				break
			}
			fmt.Fprintf(&sb, "%#x: %s\n", pc, disasm.Format(pc, inst))
			pc += uint64(instruction.Length(inst))
		}
		return sb.String(), nil
	})
	vm.Set("print", func(args ...goja.Value) {
		for _, arg := range args {
			fmt.Fprintln(out, arg.Export())
		}
	})
	return vm
}

func newConsoleCmd(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "console <image>",
		Short: "Step through the image from a JavaScript prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := cfg.load(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			vm := newConsoleVM(cfg.machine(img), out)

			rl, err := readline.NewEx(&readline.Config{
				Prompt:      "> ",
				HistoryFile: filepath.Join(os.TempDir(), "mopdump_history.txt"),
			})
			if err != nil {
				return err
			}
			defer rl.Close()

			fmt.Fprintln(out, "step(), run(n), reg(i), setreg(i, v), pc(), cycles(), disasm(n). Type 'exit' to quit.")
			for {
				line, err := rl.Readline()
				if err != nil {
					return nil
				}
				line = strings.TrimSpace(line)
				if line == "exit" {
					return nil
				}
				if line == "" {
					continue
				}
				value, err := vm.RunString(line)
				if err != nil {
					fmt.Fprintln(out, "error:", err)
					continue
				}
				if !goja.IsUndefined(value) {
					fmt.Fprintln(out, value)
				}
			}
		},
	}
}
