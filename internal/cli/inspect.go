package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/urbanknots/pkg/core/knot"
	"github.com/matzehuels/urbanknots/pkg/core/linking"
	"github.com/matzehuels/urbanknots/pkg/pipeline"
)

// List styles
var (
	listDimStyle    = lipgloss.NewStyle().Foreground(colorDim)
	listErrorStyle  = lipgloss.NewStyle().Foreground(colorRed)
	listHeaderStyle = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
)

// previewValues is how many values the detail pane shows.
const previewValues = 8

// inspectCommand creates the inspect command.
func (c *CLI) inspectCommand() *cobra.Command {
	var noCache bool
	opts := pipeline.Options{Formats: []string{pipeline.FormatJSON}}

	cmd := &cobra.Command{
		Use:   "inspect [project.toml]",
		Short: "Browse the resolved knots of a project",
		Long: `Resolve a project and browse its knots interactively.

The list shows every knot with its target, array length and value range; the
detail pane shows the selected knot's linking scheme and its first values.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInspect(cmd.Context(), projectArg(args), opts, noCache)
		},
	}

	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	return cmd
}

func (c *CLI) runInspect(ctx context.Context, path string, opts pipeline.Options, noCache bool) error {
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

	spinner := newSpinnerWithContext(ctx, "Resolving knots...")
	spinner.Start()
	result, err := runner.Execute(ctx, bundle, opts)
	spinner.Stop()
	if err != nil {
		return err
	}

	_, err = tea.NewProgram(NewKnotListModel(result.Document.Knots), tea.WithContext(ctx)).Run()
	return err
}

// =============================================================================
// KnotListModel - Interactive knot browser
// =============================================================================

// KnotListModel is the bubbletea model of the knot browser.
type KnotListModel struct {
	Set      *knot.Set
	Statuses []knot.Status
	Specs    map[string]linking.Spec
	Cursor   int
	Offset   int
	Height   int
}

// NewKnotListModel creates a browser over the knots of set.
func NewKnotListModel(set *knot.Set) KnotListModel {
	specs := make(map[string]linking.Spec)
	for _, sp := range set.Specs() {
		specs[sp.ID] = sp
	}
	return KnotListModel{
		Set:      set,
		Statuses: set.Statuses(),
		Specs:    specs,
		Height:   12,
	}
}

func (m KnotListModel) Init() tea.Cmd {
	return nil
}

func (m KnotListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Statuses)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "home", "g":
			m.Cursor, m.Offset = 0, 0
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-16, 3)
	}
	return m, nil
}

func (m KnotListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Knots"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  q quit"))
	b.WriteString("\n\n")

	if len(m.Statuses) == 0 {
		b.WriteString(listDimStyle.Render("  no knots"))
		b.WriteString("\n")
		return b.String()
	}

	end := min(m.Offset+m.Height, len(m.Statuses))
	rows := make([][]string, 0, end-m.Offset)
	for i := m.Offset; i < end; i++ {
		st := m.Statuses[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		rows = append(rows, []string{cursor, st.ID, st.Target.String(), strconv.Itoa(st.Len), formatRange(st), formatDuration(st.Duration)})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Knot", "Target", "Values", "Range", "Time").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return listHeaderStyle
			}
			st := m.Statuses[m.Offset+row]
			style := lipgloss.NewStyle()
			switch {
			case st.Err != nil:
				style = style.Foreground(colorRed)
			case st.KnotOp && col == 1:
				style = style.Foreground(colorYellow)
			}
			if m.Offset+row == m.Cursor {
				style = style.Bold(true)
				if st.Err == nil {
					style = style.Foreground(colorCyan)
				}
			}
			return style
		})

	b.WriteString(t.Render())
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Statuses))))
	b.WriteString("\n\n")
	b.WriteString(m.detail())
	return b.String()
}

// detail describes the knot under the cursor.
func (m KnotListModel) detail() string {
	st := m.Statuses[m.Cursor]
	var b strings.Builder

	b.WriteString(StyleHighlight.Render(st.ID))
	if st.KnotOp {
		b.WriteString(listDimStyle.Render("  (knotOp)"))
	}
	b.WriteString("\n")
	for i, step := range m.Specs[st.ID].Scheme {
		b.WriteString(listDimStyle.Render(fmt.Sprintf("  %d ", i+1)))
		b.WriteString(describeStep(step))
		b.WriteString("\n")
	}

	switch {
	case st.Err != nil:
		b.WriteString(listErrorStyle.Render("  " + st.Err.Error()))
	case st.Dirty:
		b.WriteString(listDimStyle.Render("  not resolved"))
	default:
		values, err := m.Set.KnotValues(st.ID)
		if err != nil {
			b.WriteString(listErrorStyle.Render("  " + err.Error()))
			break
		}
		b.WriteString("  " + StyleValue.Render(previewArray(values)))
	}
	b.WriteString("\n")
	return b.String()
}

func describeStep(st linking.Step) string {
	if st.Op != "" {
		return "op " + st.Op
	}
	if st.In == nil {
		return "geometry of " + st.Out.String()
	}
	parts := []string{st.In.String(), iconArrow, st.Out.String()}
	if st.Relation != linking.RelationUnspecified {
		parts = append(parts, st.Relation.String())
	}
	if st.Operation != linking.OpNone {
		parts = append(parts, st.Operation.String())
	}
	if st.Abstract {
		parts = append(parts, "abstract")
	}
	return strings.Join(parts, " ")
}

func previewArray(values []float64) string {
	if values == nil {
		return "geometry only"
	}
	n := min(len(values), previewValues)
	parts := make([]string, n)
	for i := range n {
		parts[i] = strconv.FormatFloat(values[i], 'g', 6, 64)
	}
	s := "[" + strings.Join(parts, ", ")
	if len(values) > n {
		s += fmt.Sprintf(", … %d more", len(values)-n)
	}
	return s + "]"
}

func formatRange(st knot.Status) string {
	if st.Len == 0 {
		return "—"
	}
	return fmt.Sprintf("%.4g … %.4g", st.Min, st.Max)
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "cached"
	}
	return d.Round(time.Microsecond).String()
}
