package knotgraph

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/urbanknots/pkg/core/linking"
)

// Output formats supported by [Render].
const (
	FormatDOT = "dot"
	FormatSVG = "svg"
	FormatPNG = "png"
)

// Options configures knot graph generation.
type Options struct {
	// Detailed adds levels to step labels.
	// When false, only the relation and reduction are shown.
	Detailed bool
	// LayerKinds labels physical layer nodes with their kind. Names used
	// by a scheme but missing here are drawn as abstract partners.
	LayerKinds map[string]string
}

// palette colors the steps of consecutive knots.
var palette = []string{"#1f77b4", "#d62728", "#2ca02c", "#9467bd", "#ff7f0e", "#17becf", "#8c564b"}

// ToDOT converts knot specs to Graphviz DOT. Layers, abstract partners and
// knots are nodes; every step of a linking scheme is an edge, and a dashed
// edge joins the last step's out layer to the knot it produces.
func ToDOT(specs []linking.Spec, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph knots {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [fontname=\"Helvetica\", fontsize=14];\n")
	buf.WriteString("  edge [fontname=\"Helvetica\", fontsize=11];\n")
	buf.WriteString("\n")

	var layers, partners []string
	addNode := func(name string, abstract bool) {
		if abstract && opts.LayerKinds[name] == "" {
			if !slices.Contains(partners, name) {
				partners = append(partners, name)
			}
		} else if !slices.Contains(layers, name) {
			layers = append(layers, name)
		}
	}
	for _, sp := range specs {
		if sp.KnotOp {
			continue
		}
		for _, st := range sp.Scheme {
			addNode(st.Out.Name, false)
			if st.In != nil {
				addNode(st.In.Name, st.Abstract)
			}
		}
	}
	for name := range opts.LayerKinds {
		addNode(name, false)
	}
	slices.Sort(layers)

	for _, name := range layers {
		label := name
		if kind := opts.LayerKinds[name]; kind != "" {
			label += "\n(" + kind + ")"
		}
		fmt.Fprintf(&buf, "  %q [label=%q, shape=box3d, style=filled, fillcolor=\"#e8f0fe\"];\n", layerNode(name), label)
	}
	for _, name := range partners {
		fmt.Fprintf(&buf, "  %q [label=%q, shape=note, style=dashed];\n", partnerNode(name), name)
	}
	for _, sp := range specs {
		attrs := []string{fmt.Sprintf("label=%q", sp.ID), "shape=box", "style=\"rounded,filled\""}
		if sp.KnotOp {
			attrs = append(attrs, "fillcolor=\"#fff4d6\"")
		} else {
			attrs = append(attrs, "fillcolor=white")
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", knotNode(sp.ID), strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for i, sp := range specs {
		color := palette[i%len(palette)]
		if sp.KnotOp {
			for _, ref := range sp.KnotRefs() {
				fmt.Fprintf(&buf, "  %q -> %q [color=%q];\n", knotNode(ref), knotNode(sp.ID), color)
			}
			if op := knotOpLabel(sp); op != "" {
				fmt.Fprintf(&buf, "  %q [xlabel=%q];\n", knotNode(sp.ID), op)
			}
			continue
		}
		for j, st := range sp.Scheme {
			if st.In == nil {
				continue
			}
			from := layerNode(st.In.Name)
			if st.Abstract && opts.LayerKinds[st.In.Name] == "" {
				from = partnerNode(st.In.Name)
			}
			fmt.Fprintf(&buf, "  %q -> %q [label=%q, color=%q, fontcolor=%q];\n",
				from, layerNode(st.Out.Name), stepLabel(j, st, opts.Detailed), color, color)
		}
		target := sp.Target()
		fmt.Fprintf(&buf, "  %q -> %q [style=dashed, color=%q];\n", layerNode(target.Name), knotNode(sp.ID), color)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func layerNode(name string) string   { return "layer:" + name }
func partnerNode(name string) string { return "data:" + name }
func knotNode(id string) string      { return "knot:" + id }

func stepLabel(i int, st linking.Step, detailed bool) string {
	parts := []string{strconv.Itoa(i + 1), st.Relation.String()}
	if st.Operation != linking.OpNone {
		parts = append(parts, st.Operation.String())
	}
	label := strings.Join(parts, " ")
	if detailed {
		label += fmt.Sprintf("\n%s → %s", st.In.Level, st.Out.Level)
	}
	return label
}

func knotOpLabel(sp linking.Spec) string {
	var ops []string
	for _, st := range sp.Scheme {
		if st.Op != "" {
			ops = append(ops, st.Op)
		}
	}
	return strings.Join(ops, "; ")
}

// Render lays out a DOT graph with Graphviz in format (svg or png). The dot
// format returns the source unchanged.
func Render(ctx context.Context, dot, format string) ([]byte, error) {
	var gvFormat graphviz.Format
	switch format {
	case FormatDOT:
		return []byte(dot), nil
	case FormatSVG:
		gvFormat = graphviz.SVG
	case FormatPNG:
		gvFormat = graphviz.PNG
	default:
		return nil, fmt.Errorf("unsupported knot graph format: %s", format)
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, gvFormat, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	if format == FormatSVG {
		return normalizeViewBox(buf.Bytes()), nil
	}
	return buf.Bytes(), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces the Graphviz svg header with one whose viewBox
// starts at the origin, so the graph scales cleanly when embedded.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	header := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(header))
}
