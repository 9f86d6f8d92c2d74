package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/urbanknots/pkg/pipeline"
	"github.com/matzehuels/urbanknots/pkg/project"
	"github.com/matzehuels/urbanknots/pkg/render/knotgraph"
)

// graphCommand creates the graph command.
func (c *CLI) graphCommand() *cobra.Command {
	var (
		output   string
		format   string
		detailed bool
	)

	cmd := &cobra.Command{
		Use:   "graph [project.toml]",
		Short: "Draw the knot graph of a project",
		Long: `Draw how the knots of a project move data between layers.

Layers and abstract datasets are nodes; every step of a linking scheme is an
edge labelled with its position, spatial relation and reduction. Operation
knots point back at the knots they combine. Nothing is resolved, so the graph
can be drawn before any geometry is available.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format == pipeline.FormatJSON {
				return fmt.Errorf("graph does not support json output")
			}
			if err := pipeline.ValidateFormat(format); err != nil {
				return err
			}
			return c.runGraph(cmd.Context(), projectArg(args), output, format, detailed)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: knots.<format> next to the project, - for stdout)")
	cmd.Flags().StringVarP(&format, "format", "f", pipeline.FormatSVG, "output format: svg (default), png, dot")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "show levels on edges")

	return cmd
}

func (c *CLI) runGraph(ctx context.Context, path, output, format string, detailed bool) error {
	p, err := project.Load(path)
	if err != nil {
		return err
	}
	specs, err := p.AllKnots()
	if err != nil {
		return err
	}

	kinds := make(map[string]string, len(p.Layers))
	for _, l := range p.Layers {
		kinds[l.ID] = string(l.Kind)
	}
	dot := knotgraph.ToDOT(specs, knotgraph.Options{Detailed: detailed, LayerKinds: kinds})
	c.Logger.Debug("knot graph", "knots", len(specs), "layers", len(kinds), "bytes", len(dot))

	data, err := knotgraph.Render(ctx, dot, format)
	if err != nil {
		return err
	}
	if output == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if output == "" {
		output = p.Path(pipeline.GraphArtifactName(format))
	}
	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	printSuccess("Drew %d knots across %d layers", len(specs), len(kinds))
	printFile(output)
	if !strings.HasSuffix(output, "."+format) {
		printWarning("%s does not end in .%s", filepath.Base(output), format)
	}
	return nil
}
