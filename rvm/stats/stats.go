// Package stats measures how much of a code range macro-op fusion covers.
package stats

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/jam-duna/rvmop/rverrors"
	"github.com/jam-duna/rvmop/rvm/decoder"
	"github.com/jam-duna/rvmop/rvm/instruction"
	"github.com/jam-duna/rvmop/rvm/memory"
	"github.com/jam-duna/rvmop/rvm/mop"
	"github.com/xlab/treeprint"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

type Report struct {
	Start, End uint64

	Words      int // decoded words, a fused pair counts once
	Bytes      uint64
	Invalid    int // undecodable halfwords skipped
	Ops        map[instruction.Opcode]int
	Fused      map[string]int // per pattern name
	FusedBytes uint64
}

var patternByOp = func() map[instruction.Opcode]string {
	m := make(map[instruction.Opcode]string)
	for _, p := range mop.Patterns() {
		m[p.Fused] = p.Name
	}
	return m
}()

// Analyze decodes [start, end) linearly with dec. Undecodable halfwords are
// counted and skipped; unmapped memory ends the analysis with an error.
func Analyze(mem memory.Memory, start, end uint64, dec decoder.Decoder) (*Report, error) {
	r := &Report{
		Start: start,
		End:   end,
		Ops:   make(map[instruction.Opcode]int),
		Fused: make(map[string]int),
	}
	for pc := start; pc < end; {
		inst, err := decoder.DecodeAt(dec, mem, pc)
		if errors.Is(err, rverrors.ErrMemOutOfBound) {
			return r, fmt.Errorf("analyze at %#x: %w", pc, err)
		}
		if err != nil {
			r.Invalid++
			pc += 2
			continue
		}
		n := uint64(instruction.Length(inst))
		op := instruction.ExtractOpcode(inst)
		r.Words++
		r.Bytes += n
		r.Ops[op]++
		if name, ok := patternByOp[op]; ok {
			r.Fused[name]++
			r.FusedBytes += n
		}
		pc += n
	}
	return r, nil
}

// FusedPairs is the number of fused words.
func (r *Report) FusedPairs() int {
	total := 0
	for _, n := range r.Fused {
		total += n
	}
	return total
}

// Instructions is the number of machine instructions decoded, counting both
// halves of every fused pair.
func (r *Report) Instructions() int {
	return r.Words + r.FusedPairs()
}

type opCount struct {
	name  string
	count int
}

func sorted[K comparable](m map[K]int, name func(K) string) []opCount {
	out := make([]opCount, 0, len(m))
	for k, n := range m {
		out = append(out, opCount{name(k), n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].name < out[j].name
	})
	return out
}

// Tree renders the report as an indented tree.
func (r *Report) Tree() treeprint.Tree {
	tree := treeprint.New()
	tree.SetValue(fmt.Sprintf("%#x..%#x", r.Start, r.End))
	tree.AddNode(fmt.Sprintf("instructions: %d in %d words, %d bytes", r.Instructions(), r.Words, r.Bytes))

	fused := tree.AddBranch(fmt.Sprintf("fused: %d pairs, %d bytes", r.FusedPairs(), r.FusedBytes))
	for _, c := range sorted(r.Fused, func(s string) string { return s }) {
		fused.AddNode(fmt.Sprintf("%s: %d", c.name, c.count))
	}

	ops := tree.AddBranch("opcodes")
	for _, c := range sorted(r.Ops, instruction.Opcode.String) {
		ops.AddNode(fmt.Sprintf("%s: %d", c.name, c.count))
	}
	if r.Invalid > 0 {
		tree.AddNode(fmt.Sprintf("invalid halfwords: %d", r.Invalid))
	}
	return tree
}

// RenderChart writes an HTML page with a bar chart of fused patterns and a
// pie chart of the opcode mix.
func (r *Report) RenderChart(w io.Writer) error {
	fusedCounts := sorted(r.Fused, func(s string) string { return s })
	names := make([]string, len(fusedCounts))
	bars := make([]opts.BarData, len(fusedCounts))
	for i, c := range fusedCounts {
		names[i] = c.name
		bars[i] = opts.BarData{Value: c.count}
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Macro-op fusion",
			Subtitle: fmt.Sprintf("%d of %d instructions fused", 2*r.FusedPairs(), r.Instructions()),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(names).AddSeries("pairs", bars)

	opCounts := sorted(r.Ops, instruction.Opcode.String)
	slices := make([]opts.PieData, len(opCounts))
	for i, c := range opCounts {
		slices[i] = opts.PieData{Name: c.name, Value: c.count}
	}
	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Opcode mix"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	pie.AddSeries("opcodes", slices)

	page := components.NewPage()
	page.AddCharts(bar, pie)
	return page.Render(w)
}

type reportJSON struct {
	Start        uint64         `json:"start"`
	End          uint64         `json:"end"`
	Instructions int            `json:"instructions"`
	Words        int            `json:"words"`
	Bytes        uint64         `json:"bytes"`
	Invalid      int            `json:"invalid"`
	Fused        map[string]int `json:"fused"`
	FusedBytes   uint64         `json:"fused_bytes"`
	Ops          map[string]int `json:"ops"`
}

// MarshalJSON keys opcodes by name.
func (r *Report) MarshalJSON() ([]byte, error) {
	ops := make(map[string]int, len(r.Ops))
	for op, n := range r.Ops {
		ops[op.String()] = n
	}
	return json.Marshal(reportJSON{
		Start:        r.Start,
		End:          r.End,
		Instructions: r.Instructions(),
		Words:        r.Words,
		Bytes:        r.Bytes,
		Invalid:      r.Invalid,
		Fused:        r.Fused,
		FusedBytes:   r.FusedBytes,
		Ops:          ops,
	})
}

// Diff renders the JSON difference between two reports, typically the same
// range decoded without and with fusion. Equal reports yield "".
func Diff(before, after *Report) (string, error) {
	left, err := json.Marshal(before)
	if err != nil {
		return "", err
	}
	right, err := json.Marshal(after)
	if err != nil {
		return "", err
	}
	delta, err := gojsondiff.New().Compare(left, right)
	if err != nil {
		return "", err
	}
	if !delta.Modified() {
		return "", nil
	}
	var leftObj map[string]interface{}
	if err := json.Unmarshal(left, &leftObj); err != nil {
		return "", err
	}
	return formatter.NewAsciiFormatter(leftObj, formatter.AsciiFormatterConfig{}).Format(delta)
}
