package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/DelicateHug/DMaker-sub000/internal/board"
	"github.com/DelicateHug/DMaker-sub000/internal/events"
	"github.com/DelicateHug/DMaker-sub000/internal/feature"
	"github.com/DelicateHug/DMaker-sub000/internal/reconciler"
)

// DisplayConfig controls board output formatting
type DisplayConfig struct {
	UseColor bool // Enable ANSI color codes
	Details  bool // Include dependencies and errors
}

// StatusSymbol is the glyph printed before a feature
type StatusSymbol string

const (
	SymbolComplete   StatusSymbol = "✓"
	SymbolInProgress StatusSymbol = "●"
	SymbolBacklog    StatusSymbol = "○"
	SymbolWaiting    StatusSymbol = "⏳"
	SymbolFailed     StatusSymbol = "✗"
	SymbolBlocked    StatusSymbol = "→"
)

// Styles contains the lipgloss styles for board output
type Styles struct {
	Title    lipgloss.Style
	Muted    lipgloss.Style
	Active   lipgloss.Style
	Complete lipgloss.Style
	Failed   lipgloss.Style
	Waiting  lipgloss.Style
	Name     lipgloss.Style
}

// DefaultStyles returns the default board styles
func DefaultStyles() Styles {
	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		Muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		Active:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Complete: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Failed:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Waiting:  lipgloss.NewStyle().Foreground(lipgloss.Color("141")),
		Name:     lipgloss.NewStyle().Bold(true),
	}
}

// Display renders board state as text
type Display struct {
	cfg    DisplayConfig
	styles Styles
}

// NewDisplay creates a display with the default styles
func NewDisplay(cfg DisplayConfig) *Display {
	return &Display{cfg: cfg, styles: DefaultStyles()}
}

// DetectColor reports whether w is a terminal that should get color
func DetectColor(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func (d *Display) paint(s lipgloss.Style, text string) string {
	if !d.cfg.UseColor {
		return text
	}
	return s.Render(text)
}

// GetStatusSymbol returns the symbol for a feature
func GetStatusSymbol(f feature.Feature) StatusSymbol {
	switch {
	case f.Status == feature.StatusCompleted:
		return SymbolComplete
	case f.Status.IsRunning():
		return SymbolInProgress
	case f.Status == feature.StatusWaitingApproval:
		return SymbolWaiting
	case f.Error != "":
		return SymbolFailed
	default:
		return SymbolBacklog
	}
}

func (d *Display) statusStyle(f feature.Feature) lipgloss.Style {
	switch {
	case f.Status == feature.StatusCompleted:
		return d.styles.Complete
	case f.Status.IsRunning():
		return d.styles.Active
	case f.Status == feature.StatusWaitingApproval:
		return d.styles.Waiting
	case f.Error != "":
		return d.styles.Failed
	default:
		return d.styles.Muted
	}
}

// RenderFeature renders one feature line
func (d *Display) RenderFeature(f feature.Feature) string {
	var sb strings.Builder
	sym := string(GetStatusSymbol(f))
	sb.WriteString(d.paint(d.statusStyle(f), sym))
	sb.WriteString(" ")
	sb.WriteString(d.paint(d.styles.Name, f.ID))
	if f.Title != "" {
		sb.WriteString("  ")
		sb.WriteString(f.Title)
	}
	sb.WriteString("  ")
	sb.WriteString(d.paint(d.styles.Muted, fmt.Sprintf("[%s]", f.Status)))
	if f.Priority != nil {
		sb.WriteString(d.paint(d.styles.Muted, fmt.Sprintf(" p%d", *f.Priority)))
	}
	if f.BranchRef != "" {
		sb.WriteString(d.paint(d.styles.Muted, " @"+f.BranchRef))
	}
	if f.ProjectRef != "" {
		sb.WriteString(d.paint(d.styles.Muted, " ("+f.ProjectRef+")"))
	}

	if d.cfg.Details {
		if len(f.DependsOn) > 0 {
			sb.WriteString("\n    ")
			sb.WriteString(d.paint(d.styles.Muted, fmt.Sprintf("%s depends on %s", SymbolBlocked, strings.Join(f.DependsOn, ", "))))
		}
		if f.Error != "" {
			sb.WriteString("\n    ")
			sb.WriteString(d.paint(d.styles.Failed, f.Error))
		}
	}
	return sb.String()
}

// RenderFeatures renders features grouped by status column
func (d *Display) RenderFeatures(features []feature.Feature) string {
	if len(features) == 0 {
		return d.paint(d.styles.Muted, "no features") + "\n"
	}

	groups := make(map[feature.Status][]feature.Feature)
	for _, f := range features {
		groups[f.Status] = append(groups[f.Status], f)
	}

	var sb strings.Builder
	for _, status := range columnOrder(groups) {
		items := groups[status]
		sort.SliceStable(items, func(i, j int) bool {
			pi, pj := items[i].EffectivePriority(), items[j].EffectivePriority()
			if pi != pj {
				return pi < pj
			}
			return items[i].ID < items[j].ID
		})
		sb.WriteString(d.paint(d.styles.Title, fmt.Sprintf("%s (%d)", status, len(items))))
		sb.WriteString("\n")
		for _, f := range items {
			sb.WriteString("  ")
			sb.WriteString(d.RenderFeature(f))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// columnOrder lists fixed columns first, then pipeline steps by name
func columnOrder(groups map[feature.Status][]feature.Feature) []feature.Status {
	fixed := []feature.Status{
		feature.StatusBacklog,
		feature.StatusInProgress,
	}
	var steps []feature.Status
	for s := range groups {
		if s.IsPipelineStep() {
			steps = append(steps, s)
		}
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i] < steps[j] })

	order := append(fixed, steps...)
	order = append(order, feature.StatusWaitingApproval, feature.StatusCompleted)

	var out []feature.Status
	for _, s := range order {
		if len(groups[s]) > 0 {
			out = append(out, s)
		}
	}
	return out
}

// RenderStatus renders the board summary header
func (d *Display) RenderStatus(st board.Status) string {
	auto := "off"
	if st.AutoMode {
		auto = "on"
	}
	line := fmt.Sprintf("%s  auto:%s  running %d/%d  pending %d  features %d",
		st.Scope, auto, st.Running, st.MaxConcurrency, len(st.Pending), st.Features)
	return d.paint(d.styles.Title, line) + "\n"
}

// RenderBacklog renders the backlog in dependency order
func (d *Display) RenderBacklog(v board.BacklogView) string {
	var sb strings.Builder
	sb.WriteString(d.paint(d.styles.Title, fmt.Sprintf("ready (%d)", len(v.Ready))))
	sb.WriteString("\n")
	for _, f := range v.Ready {
		sb.WriteString("  ")
		sb.WriteString(d.RenderFeature(f))
		sb.WriteString("\n")
	}

	if len(v.Blocked) > 0 {
		sb.WriteString(d.paint(d.styles.Title, fmt.Sprintf("blocked (%d)", len(v.Blocked))))
		sb.WriteString("\n")
		for _, b := range v.Blocked {
			sb.WriteString("  ")
			sb.WriteString(d.paint(d.styles.Muted, string(SymbolBlocked)))
			sb.WriteString(" ")
			sb.WriteString(d.paint(d.styles.Name, b.Feature.ID))
			sb.WriteString(d.paint(d.styles.Muted, " waiting on "+strings.Join(b.WaitingOn, ", ")))
			sb.WriteString("\n")
		}
	}

	for _, c := range v.Cycles {
		sb.WriteString(d.paint(d.styles.Failed, fmt.Sprintf("%s cycle: %s", SymbolFailed, strings.Join(c, " -> "))))
		sb.WriteString("\n")
	}
	return sb.String()
}

// RenderEvent renders one push event line
func (d *Display) RenderEvent(e events.Event) string {
	ts := e.Time.Format("15:04:05")
	style := d.styles.Muted
	switch e.Type {
	case events.Completed:
		style = d.styles.Complete
	case events.Failed:
		style = d.styles.Failed
	case events.StartConfirmed, events.PipelineStepStarted:
		style = d.styles.Active
	case events.PlanApprovalRequired:
		style = d.styles.Waiting
	}

	line := fmt.Sprintf("%s %s", d.paint(d.styles.Muted, ts), d.paint(style, e.String()))
	if e.Error != "" {
		line += " " + d.paint(d.styles.Failed, e.Error)
	}
	return line
}

// RenderNotification renders a user notification
func (d *Display) RenderNotification(n reconciler.Notification) string {
	style := d.styles.Active
	switch n.Kind {
	case reconciler.NotifyAuthError, reconciler.NotifyExecutionError:
		style = d.styles.Failed
	case reconciler.NotifyCompleted:
		style = d.styles.Complete
	case reconciler.NotifyPlanApproval:
		style = d.styles.Waiting
	}

	name := n.FeatureID
	if n.Title != "" {
		name = n.Title
	}
	return d.paint(style, fmt.Sprintf("! %s: %s", name, n.Message))
}
