package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/urbanknots/pkg/core/layer"
	"github.com/matzehuels/urbanknots/pkg/pipeline"
)

// meshCommand creates the mesh command.
func (c *CLI) meshCommand() *cobra.Command {
	var noCache bool
	opts := pipeline.Options{}

	cmd := &cobra.Command{
		Use:   "mesh [project.toml]",
		Short: "Build the layers of a project and print their topology",
		Long: `Build the mesh of every layer and print its topology.

For each layer the table shows the components, vertices and triangles, the
boundary and non-manifold edges found while pairing half-edges, and how many
triangles were flipped to make every fan wind consistently.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runMesh(cmd.Context(), projectArg(args), opts, noCache)
		},
	}

	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().StringVar(&opts.NonManifold, "non-manifold", "", "non-manifold edges: reject (default) or tolerate")

	return cmd
}

func (c *CLI) runMesh(ctx context.Context, path string, opts pipeline.Options, noCache bool) error {
	_, bundle, err := loadBundle(path)
	if err != nil {
		return err
	}
	runner, err := c.newRunner(noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	opts.Logger = c.Logger
	opts.ApplyEngine(bundle.Engine)
	if err := bundle.Validate(); err != nil {
		return err
	}

	prog := newProgress(c.Logger)
	loaded, err := runner.Load(ctx, bundle, opts)
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Loaded %d layers", len(bundle.Layers)))

	fmt.Println(meshTable(loaded.Manager.Layers()))
	return nil
}

// meshTable renders one row of topology statistics per layer.
func meshTable(layers []layer.Layer) string {
	rows := make([][]string, 0, len(layers))
	for _, l := range layers {
		st := l.Mesh().Stats()
		rows = append(rows, []string{
			l.ID(),
			string(l.Kind()),
			strconv.Itoa(st.Components),
			strconv.Itoa(st.Vertices),
			strconv.Itoa(st.Triangles),
			strconv.Itoa(st.BoundaryEdges),
			strconv.Itoa(st.NonManifoldEdges),
			strconv.Itoa(st.FlippedTriangles),
			strconv.Itoa(st.Fans),
		})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Layer", "Kind", "Components", "Vertices", "Triangles", "Boundary", "Non-manifold", "Flipped", "Fans").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			style := cellStyle
			switch {
			case col == 0:
				style = style.Foreground(colorCyan)
			case col == 6 && rows[row][col] != "0":
				style = style.Foreground(colorYellow)
			case col >= 2:
				style = style.Align(lipgloss.Right)
			}
			return style
		})
	return t.Render()
}
