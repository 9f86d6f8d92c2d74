package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/matzehuels/urbanknots/internal/api"
	uio "github.com/matzehuels/urbanknots/pkg/io"
	"github.com/matzehuels/urbanknots/pkg/pipeline"
	"github.com/matzehuels/urbanknots/pkg/session"
)

// resolveFlags holds the flags of the resolve command.
type resolveFlags struct {
	formats string
	output  string
	noCache bool
	save    bool
	server  string
}

// resolveCommand creates the resolve command.
func (c *CLI) resolveCommand() *cobra.Command {
	var (
		flags   resolveFlags
		noMatch float64
	)
	opts := pipeline.Options{}

	cmd := &cobra.Command{
		Use:   "resolve [project.toml]",
		Short: "Resolve every knot of a project",
		Long: `Resolve every knot of a project and write the artifacts.

The project file lists layers (geometry plus join tables) and knots. Every
knot is resolved against the layers and the results are written to the
output directory:

  functions.json  the resolved array of every knot
  buffers.json    per-layer render buffers with the knot arrays attached
  knots.dot/svg/png  the knot graph, when requested with --format

Meshes and knot arrays are cached locally, so only knots whose inputs changed
are resolved again. With --server the project is resolved by a running
'urbanknots serve' instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Formats = parseFormats(flags.formats)
			if err := pipeline.ValidateFormats(opts.Formats); err != nil {
				return err
			}
			if cmd.Flags().Changed("no-match-value") {
				opts.NoMatchValue = &noMatch
			}
			return c.runResolve(cmd.Context(), projectArg(args), opts, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "output directory (default: out/ next to the project)")
	cmd.Flags().StringVarP(&flags.formats, "format", "f", "", "output format(s): json (default), dot, svg, png (comma-separated)")
	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&opts.Refresh, "refresh", false, "ignore cached meshes and knots")
	cmd.Flags().BoolVar(&flags.save, "save", false, "save the resolved document locally")
	cmd.Flags().StringVar(&flags.server, "server", os.Getenv("URBANKNOTS_SERVER"), "resolve on a remote server (URL)")

	cmd.Flags().BoolVar(&opts.Detailed, "detailed", false, "show levels on knot graph edges")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", 0, "knots resolved concurrently (default from project, then 4)")
	cmd.Flags().StringVar(&opts.NonManifold, "non-manifold", "", "non-manifold edges: reject (default) or tolerate")
	cmd.Flags().Float64Var(&noMatch, "no-match-value", pipeline.DefaultNoMatchValue, "value for elements without join partners")

	return cmd
}

func (c *CLI) runResolve(ctx context.Context, path string, opts pipeline.Options, flags resolveFlags) error {
	p, bundle, err := loadBundle(path)
	if err != nil {
		return err
	}
	outDir := flags.output
	if outDir == "" {
		outDir = p.Path(defaultOutputDir)
	}

	if flags.server != "" {
		return c.resolveRemote(ctx, flags.server, bundle, opts, outDir)
	}

	runner, err := c.newRunner(flags.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()
	opts.Logger = c.Logger

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Resolving %d knots...", len(bundle.Knots)))
	spinner.Start()
	result, err := runner.Execute(ctx, bundle, opts)
	if err != nil {
		spinner.StopWithError("Resolution failed")
		return err
	}
	spinner.Stop()

	printSuccess("Resolved %s", StyleHighlight.Render(nameOr(bundle.Name, path)))
	printStats(result.Stats.Layers, result.Stats.Vertices, result.Stats.Knots,
		result.CacheInfo.KnotHits == result.Stats.Knots && result.Stats.Knots > 0)

	if err := writeArtifacts(outDir, result.Artifacts); err != nil {
		return err
	}

	if flags.save {
		store, err := newDocumentStore()
		if err != nil {
			return err
		}
		defer store.Close()
		rec := result.Document.Snapshot(0)
		if err := store.Set(ctx, rec); err != nil {
			return fmt.Errorf("save document: %w", err)
		}
		printKeyValue("Document", rec.ID)
		printNextStep("Show it", appName+" document show "+rec.ID)
	}
	return nil
}

func (c *CLI) resolveRemote(ctx context.Context, server string, bundle *pipeline.Bundle, opts pipeline.Options, outDir string) error {
	spinner := newSpinnerWithContext(ctx, "Resolving on "+server+"...")
	spinner.Start()
	resp, err := api.NewClient(server).Resolve(ctx, bundle, opts)
	if err != nil {
		spinner.StopWithError("Remote resolution failed")
		return err
	}
	spinner.Stop()

	printSuccess("Resolved %s on %s", StyleHighlight.Render(nameOr(bundle.Name, "project")), server)
	printStats(resp.Stats.Layers, resp.Stats.Vertices, resp.Stats.Knots, resp.Cache.KnotHits == resp.Stats.Knots && resp.Stats.Knots > 0)

	artifacts := make(map[string][]byte, len(resp.Graphs)+2)
	for name, data := range resp.Graphs {
		artifacts[name] = data
	}
	for name, v := range map[string]any{pipeline.ArtifactFunctions: resp.Functions, pipeline.ArtifactBuffers: resp.Buffers} {
		data, err := marshalIndent(v)
		if err != nil {
			return err
		}
		artifacts[name] = data
	}
	if err := writeArtifacts(outDir, artifacts); err != nil {
		return err
	}
	printKeyValue("Document", resp.ID)
	return nil
}

// writeArtifacts writes every artifact into dir, in name order.
func writeArtifacts(dir string, artifacts map[string][]byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	names := make([]string, 0, len(artifacts))
	for name := range artifacts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, artifacts[name], 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		printFile(path)
	}
	return nil
}

func newDocumentStore() (session.Store, error) {
	dir, err := dataDir()
	if err != nil {
		return nil, err
	}
	return session.NewFileStore(dir)
}

func nameOr(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}

// marshalIndent encodes v the way the pipeline writes JSON artifacts.
func marshalIndent(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := uio.WriteJSON(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
