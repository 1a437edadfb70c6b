package viewport

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/wordwrap"

	"client_go/internal/domain"
)

// TerminalMeasurer renders rows as terminal text and measures them in
// lines. LineHeight converts lines into the unit the List works in; 1 makes
// the list scroll in lines.
type TerminalMeasurer struct {
	LineHeight int
	Location   *time.Location
}

func NewTerminalMeasurer(lineHeight int) *TerminalMeasurer {
	if lineHeight <= 0 {
		lineHeight = 1
	}
	return &TerminalMeasurer{LineHeight: lineHeight, Location: time.Local}
}

var (
	separatorStyle = lipgloss.NewStyle().Faint(true).Align(lipgloss.Center)
	headerStyle    = lipgloss.NewStyle().Bold(true)
	metaStyle      = lipgloss.NewStyle().Faint(true)
	systemStyle    = lipgloss.NewStyle().Italic(true).Faint(true).Align(lipgloss.Center)
	deletedStyle   = lipgloss.NewStyle().Italic(true).Faint(true)
	cardStyle      = lipgloss.NewStyle().PaddingLeft(2)
)

func (m *TerminalMeasurer) Measure(r Row, width int) int {
	return lipgloss.Height(m.Render(r, width)) * m.LineHeight
}

// Render draws r at the given column width.
func (m *TerminalMeasurer) Render(r Row, width int) string {
	if width < 10 {
		width = 10
	}
	loc := m.Location
	if loc == nil {
		loc = time.Local
	}
	if r.Kind == RowSeparator {
		return separatorStyle.Width(width).Render("── " + r.Date.Format("Mon, Jan 2 2006") + " ──")
	}

	msg := r.Message
	bodyWidth := width - cardStyle.GetPaddingLeft()
	var body string
	if msg.IsDeleted() {
		body = deletedStyle.Render("message deleted")
	} else {
		v := &bodyRenderer{width: bodyWidth}
		msg.Body().Accept(v)
		if v.system {
			return systemStyle.Width(width).Render(v.out)
		}
		body = v.out
	}
	if msg.EditedAt != nil && !msg.IsDeleted() {
		body += " " + metaStyle.Render("(edited)")
	}

	lines := []string{}
	if !r.Grouped {
		name := fmt.Sprintf("user %d", msg.SenderID)
		if msg.Sender != nil {
			name = msg.Sender.DisplayName()
		}
		stamp := msg.CreatedAt.In(loc).Format("15:04")
		if msg.IsOptimistic() {
			stamp = "sending…"
		}
		lines = append(lines, headerStyle.Render(name)+" "+metaStyle.Render(stamp))
	}
	lines = append(lines, cardStyle.Width(width).Render(body))
	return strings.Join(lines, "\n")
}

type bodyRenderer struct {
	width  int
	out    string
	system bool
}

func (b *bodyRenderer) VisitText(t domain.TextBody) {
	b.out = wordwrap.String(t.Text, b.width)
}

func (b *bodyRenderer) VisitImage(img domain.ImageBody) {
	label := "[image]"
	if img.Width > 0 && img.Height > 0 {
		label = fmt.Sprintf("[image %dx%d]", img.Width, img.Height)
	}
	if img.Caption != "" {
		label += " " + img.Caption
	}
	b.out = wordwrap.String(label, b.width)
}

func (b *bodyRenderer) VisitFile(f domain.FileBody) {
	label := "[file] " + f.Name
	if f.Size > 0 {
		label += " (" + humanize.Bytes(uint64(f.Size)) + ")"
	}
	b.out = wordwrap.String(label, b.width)
}

func (b *bodyRenderer) VisitSystem(s domain.SystemBody) {
	b.system = true
	b.out = wordwrap.String(s.Text, b.width)
}
