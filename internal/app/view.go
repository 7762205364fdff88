package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/memoapp/memo/internal/quiz"
	"github.com/memoapp/memo/internal/ui"
)

func (m Model) contentHeight() int {
	if m.height == 0 {
		return 20
	}
	// Reserve: header(1) + status(1) + divider(2) + prompt(1) + error(1) + footer(1) + padding
	reserved := 8
	return max(5, m.height-reserved)
}

func (m Model) listPanelWidth() int {
	if m.width == 0 {
		return 30
	}
	return max(20, m.width*30/100)
}

func (m Model) detailPanelWidth() int {
	if m.width == 0 {
		return 60
	}
	return max(30, m.width-m.listPanelWidth()-3)
}

// detailText returns the title and body shown in the detail panel: the
// pending transcript while one awaits a name, otherwise the selected lecture.
func (m Model) detailText() (string, string) {
	if m.transcript != "" {
		title := "NEW TRANSCRIPT"
		if m.source == "pdf" {
			title = "IMPORTED PDF"
		}
		return title, m.transcript
	}
	if l := m.selectedLecture(); l != nil {
		return l.Name, l.Transcription
	}
	return "", ""
}

func (m Model) detailLines() []string {
	_, body := m.detailText()
	if body == "" {
		return nil
	}
	return wrapText(body, max(10, m.detailPanelWidth()-2))
}

func (m Model) maxDetailScroll() int {
	total := len(m.detailLines())
	visible := m.contentHeight() - 1
	if total <= visible {
		return 0
	}
	return total - visible
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sections []string

	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderStatusBar())
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))

	if m.mode == ModeQuiz && m.runner != nil {
		sections = append(sections, m.renderQuiz(m.width, m.contentHeight()))
	} else {
		sections = append(sections, m.renderMainContent())
	}

	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))

	if m.mode == ModeNamePrompt || m.mode == ModeImportPrompt {
		sections = append(sections, m.renderPrompt())
	}

	if m.errorMessage != "" {
		sections = append(sections, m.renderErrorBar())
	}

	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := ui.TitleStyle.Render("MEMO")
	count := ui.DimStyle.Render(fmt.Sprintf(" — %d lectures", len(m.lectures)))
	return title + count
}

func (m Model) renderStatusBar() string {
	var dot string
	switch m.state {
	case stateRecording:
		dot = ui.RecordingDotStyle.Render("● REC")
	case stateProcessing:
		dot = ui.ProcessingStyle.Render("⟳ TRANSCRIBING")
	case stateSucceeded:
		dot = ui.ReadyStyle.Render("✓ READY")
	case stateFailed:
		dot = ui.ErrorStyle.Render("✗ FAILED")
	default:
		dot = ui.IdleDotStyle.Render("○ IDLE")
	}

	var capture string
	if m.state == stateRecording || m.state == stateProcessing {
		capture = ui.StatusStyle.Render(fmt.Sprintf("  %d fragments · %s", m.fragments, humanize.Bytes(uint64(m.bytes))))
	}

	var quizBusy string
	if m.quizLoading {
		quizBusy = "  " + ui.SpinnerStyle.Render("⟳ QUIZ")
	}

	status := ui.StatusStyle.Render("  " + m.statusText)
	return dot + capture + quizBusy + status
}

func (m Model) renderMainContent() string {
	listW := m.listPanelWidth()
	detailW := m.detailPanelWidth()
	contentH := m.contentHeight()

	listLines := strings.Split(m.renderLecturePanel(listW, contentH), "\n")
	detailLines := strings.Split(m.renderDetailPanel(detailW, contentH), "\n")

	divider := ui.DividerStyle.Render("│")

	var rows []string
	for i := 0; i < contentH; i++ {
		l := strings.Repeat(" ", listW)
		if i < len(listLines) {
			l = listLines[i]
		}
		d := ""
		if i < len(detailLines) {
			d = detailLines[i]
		}
		rows = append(rows, l+divider+d)
	}

	return strings.Join(rows, "\n")
}

func (m Model) renderLecturePanel(width, height int) string {
	title := fmt.Sprintf("LECTURES (%d)", len(m.lectures))
	var header string
	if m.focusedPanel == FocusLectures {
		header = ui.PanelTitleActiveStyle.Render(title)
	} else {
		header = ui.PanelTitleStyle.Render(title)
	}

	lines := []string{header}

	if len(m.lectures) == 0 {
		lines = append(lines, ui.DimStyle.Render("  No lectures yet..."))
		lines = append(lines, ui.DimStyle.Render("  Record or import one"))
	} else {
		// Keep the selection visible.
		visible := height - 1
		start := 0
		if m.selected >= visible {
			start = m.selected - visible + 1
		}
		for i := start; i < len(m.lectures) && len(lines) < height; i++ {
			name := truncateToWidth(m.lectures[i].Name, max(1, width-2))
			var line string
			if i == m.selected && m.focusedPanel == FocusLectures {
				line = ui.SelectedStyle.Render("> " + name)
			} else if i == m.selected {
				line = "> " + name
			} else {
				line = "  " + name
			}
			lines = append(lines, line)
		}
	}

	for len(lines) < height {
		lines = append(lines, "")
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for i, l := range lines {
		lines[i] = padRight(l, width)
	}

	return strings.Join(lines, "\n")
}

func (m Model) renderDetailPanel(width, height int) string {
	title, _ := m.detailText()

	var header string
	label := "TRANSCRIPT"
	if title != "" {
		label = truncateToWidth(title, max(10, width-2))
	}
	if m.focusedPanel == FocusDetail {
		header = ui.PanelTitleActiveStyle.Render(label)
	} else {
		header = ui.PanelTitleStyle.Render(label)
	}

	lines := []string{header}

	switch {
	case !m.connected && m.reconnecting:
		lines = append(lines, "")
		lines = append(lines, ui.ErrorTextStyle.Render("  Daemon disconnected. Reconnecting..."))
		lines = append(lines, ui.DimStyle.Render("  Start with: memod"))
	case !m.connected:
		lines = append(lines, ui.DimStyle.Render("  Connecting to memod..."))
	case title == "":
		lines = append(lines, "")
		lines = append(lines, ui.DimStyle.Render("  Press Space to start recording"))
	default:
		body := m.detailLines()
		start := min(m.detailScroll, max(0, len(body)-1))
		end := min(len(body), start+height-1)
		for _, l := range body[start:end] {
			lines = append(lines, "  "+l)
		}
	}

	for len(lines) < height {
		lines = append(lines, "")
	}
	if len(lines) > height {
		lines = lines[:height]
	}

	return strings.Join(lines, "\n")
}

func (m Model) renderPrompt() string {
	label := "Lecture name: "
	if m.mode == ModeImportPrompt {
		label = "PDF path: "
	}
	return ui.PromptLabelStyle.Render(label) + ui.PromptInputStyle.Render(m.input+"▌")
}

func (m Model) renderQuiz(width, height int) string {
	r := m.runner
	q := r.Quiz()

	var lines []string
	lines = append(lines, ui.PanelTitleActiveStyle.Render(q.Name))

	switch {
	case !r.Started():
		lines = append(lines, "")
		for _, l := range wrapText(q.Description, max(10, width-4)) {
			lines = append(lines, "  "+l)
		}
		lines = append(lines, "")
		lines = append(lines, ui.DimStyle.Render(fmt.Sprintf("  %d questions. Press Enter to start.", r.Total())))

	case r.Submitted():
		pct := r.Percentage()
		lines = append(lines, "")
		lines = append(lines, ui.ReadyStyle.Render("  "+quiz.Message(pct)))
		lines = append(lines, fmt.Sprintf("  You scored %d out of %d (%d%%)", r.Score(), r.Total(), pct))
		lines = append(lines, "  "+renderProgress(pct, max(10, min(40, width-4))))
		lines = append(lines, "")
		lines = append(lines, ui.DimStyle.Render("  Press Enter to return"))

	default:
		cur := r.Current()
		lines = append(lines, ui.DimStyle.Render(fmt.Sprintf("  Question %d of %d", r.Index()+1, r.Total())))
		lines = append(lines, "  "+renderProgress(int(r.Progress()), max(10, min(40, width-4))))
		lines = append(lines, "")
		for _, l := range wrapText(cur.QuestionText, max(10, width-4)) {
			lines = append(lines, "  "+l)
		}
		lines = append(lines, "")

		sel, answered := r.Selected()
		for i, a := range cur.Answers {
			if i >= 9 {
				break
			}
			line := truncateToWidth(fmt.Sprintf("  %d. %s", i+1, a.AnswerText), max(10, width-3))
			switch {
			case answered && a.IsCorrect:
				line = ui.CorrectStyle.Render(line + "  ✓")
			case answered && i == sel:
				line = ui.WrongStyle.Render(line + "  ✗")
			}
			lines = append(lines, line)
		}

		if m.lastCorrect != nil {
			lines = append(lines, "")
			if *m.lastCorrect {
				lines = append(lines, ui.CorrectStyle.Render("  Correct!"))
			} else {
				lines = append(lines, ui.WrongStyle.Render("  Incorrect. The answer is "+cur.CorrectAnswer()))
			}
		}
	}

	for len(lines) < height {
		lines = append(lines, "")
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	return strings.Join(lines, "\n")
}

func renderProgress(pct, width int) string {
	filled := min(width, max(0, pct*width/100))
	return ui.ProgressFullStyle.Render(strings.Repeat("█", filled)) +
		ui.ProgressEmptyStyle.Render(strings.Repeat("░", width-filled))
}

func (m Model) renderErrorBar() string {
	return ui.ErrorStyle.Render("Error: ") + ui.ErrorTextStyle.Render(m.errorMessage)
}

func footerKey(key, desc string) string {
	return ui.FooterKeyStyle.Render(key) + ui.FooterDescStyle.Render(" "+desc)
}

func (m Model) renderFooter() string {
	var parts []string

	switch m.mode {
	case ModeNamePrompt:
		parts = append(parts, footerKey("Enter", "Save"), footerKey("Esc", "Discard"))
		return strings.Join(parts, "  ")
	case ModeImportPrompt:
		parts = append(parts, footerKey("Enter", "Import"), footerKey("Esc", "Cancel"))
		return strings.Join(parts, "  ")
	case ModeQuiz:
		parts = append(parts, footerKey("Enter", "Next"), footerKey("1-9", "Answer"), footerKey("Esc", "Exit"))
		return strings.Join(parts, "  ")
	}

	if m.connected {
		if m.state == stateRecording {
			parts = append(parts, footerKey("Space", "Stop"))
		} else {
			parts = append(parts, footerKey("Space", "Record"))
		}
		parts = append(parts, footerKey("o", "Import PDF"))
		if len(m.lectures) > 0 {
			parts = append(parts, footerKey("g", "Quiz"), footerKey("d", "Delete"))
		}
		if m.state == stateFailed || m.state == stateSucceeded {
			parts = append(parts, footerKey("x", "Dismiss"))
		}
		parts = append(parts, footerKey("Tab", "Focus"), footerKey("j/k", "Nav"))
	}

	parts = append(parts, footerKey("q", "Quit"))

	return strings.Join(parts, "  ")
}

// Helpers

func padRight(s string, width int) string {
	// Get visible length (ignoring ANSI codes)
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}

func truncateToWidth(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible <= width {
		return s
	}
	// Simple truncation for non-styled strings
	runes := []rune(s)
	if len(runes) > width-1 {
		return string(runes[:width-1]) + "…"
	}
	return s
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var current string
		for _, word := range strings.Fields(paragraph) {
			if current == "" {
				current = word
			} else if len(current)+1+len(word) <= width {
				current += " " + word
			} else {
				lines = append(lines, current)
				current = word
			}
		}
		lines = append(lines, current)
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}
