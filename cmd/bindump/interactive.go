package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/structwire/structwire/catalog"
	"github.com/structwire/structwire/schema"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	recordStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	offsetStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateSelectRecord modelState = iota
	stateViewRecord
	stateGotoRecord
)

type inspectorModel struct {
	err         error
	catalogFile string
	typeName    string
	inFile      string
	residual    bool

	rt      recordType
	records []parsedRecord
	warning string

	selected int
	state    modelState
	view     viewport.Model
	jump     textinput.Model
	width    int
	height   int
}

func newInspectorModel(catalogFile, typeName, inFile string, residual bool) *inspectorModel {
	return &inspectorModel{
		catalogFile: catalogFile,
		typeName:    typeName,
		inFile:      inFile,
		residual:    residual,
		state:       stateSelectRecord,
	}
}

type loadedMsg struct {
	err     error
	rt      recordType
	records []parsedRecord
	warning string
}

func (m *inspectorModel) Init() tea.Cmd {
	return m.loadInput
}

func (m *inspectorModel) loadInput() tea.Msg {
	cat, err := catalog.Load(m.catalogFile)
	if err != nil {
		return loadedMsg{err: err}
	}
	rt, err := resolveRecordType(cat, m.typeName)
	if err != nil {
		return loadedMsg{err: err}
	}
	data, err := os.ReadFile(m.inFile)
	if err != nil {
		return loadedMsg{err: err}
	}

	records, parseErr := parseAll(rt, data)
	msg := loadedMsg{rt: rt, records: records}
	if parseErr != nil {
		msg.warning = parseErr.Error()
	}
	if len(records) == 0 && parseErr == nil {
		msg.warning = "input is empty"
	}
	return msg
}

func (m *inspectorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.view.Width = msg.Width
		m.view.Height = msg.Height - 4

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.state == stateGotoRecord && msg.String() == "q" {
				break
			}
			return m, tea.Quit

		case "up", "k":
			if m.state == stateSelectRecord && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectRecord && m.selected < len(m.records)-1 {
				m.selected++
			}

		case "g":
			if m.state == stateSelectRecord && len(m.records) > 0 {
				m.jump = textinput.New()
				m.jump.Prompt = "record #: "
				m.jump.Width = 10
				m.jump.Focus()
				m.state = stateGotoRecord
				return m, nil
			}

		case "enter":
			switch m.state {
			case stateSelectRecord:
				if len(m.records) > 0 {
					m.openRecord()
					m.state = stateViewRecord
				}
			case stateGotoRecord:
				var n int
				if _, err := fmt.Sscanf(m.jump.Value(), "%d", &n); err == nil &&
					n >= 0 && n < len(m.records) {
					m.selected = n
				}
				m.state = stateSelectRecord

			case stateViewRecord:
				m.state = stateSelectRecord
			}

		case "esc":
			if m.state != stateSelectRecord {
				m.state = stateSelectRecord
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.rt = msg.rt
		m.records = msg.records
		m.warning = msg.warning
	}

	switch m.state {
	case stateViewRecord:
		var cmd tea.Cmd
		m.view, cmd = m.view.Update(msg)
		return m, cmd
	case stateGotoRecord:
		var cmd tea.Cmd
		m.jump, cmd = m.jump.Update(msg)
		return m, cmd
	}

	return m, nil
}

// openRecord fills the viewport with the selected record's dump, as
// indented JSON so nested layers stay readable.
func (m *inspectorModel) openRecord() {
	rec := m.records[m.selected]
	d := m.rt.Dump(rec.value, schema.DumpOptions{
		ToString:        true,
		IncludeResidual: m.residual,
		TypeTag:         schema.TypeTagFlat,
	})
	body, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		body = []byte(errorStyle.Render(err.Error()))
	}
	height := m.height - 4
	if height < 3 {
		height = 3
	}
	width := m.width
	if width < 20 {
		width = 80
	}
	m.view = viewport.New(width, height)
	m.view.SetContent(string(body))
}

func (m *inspectorModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if m.rt == nil {
		return "Loading input..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("bindump"))
	fmt.Fprintf(&b, " %s as %s\n\n", m.inFile, m.typeName)

	switch m.state {
	case stateSelectRecord, stateGotoRecord:
		for i, rec := range m.records {
			line := fmt.Sprintf("%s  %s  %s",
				recordStyle.Render(fmt.Sprintf("record %-4d", i)),
				offsetStyle.Render(fmt.Sprintf("offset 0x%06x", rec.offset)),
				fmt.Sprintf("%d bytes (%s)", rec.size, rec.value.TypeOf()))
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> ") + line)
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		if m.warning != "" {
			b.WriteString("\n")
			b.WriteString(errorStyle.Render(m.warning))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		if m.state == stateGotoRecord {
			b.WriteString(m.jump.View())
			b.WriteString("\n")
			b.WriteString(helpStyle.Render("enter jump • esc back"))
		} else {
			b.WriteString(helpStyle.Render("↑/↓ select • enter inspect • g goto • q quit"))
		}

	case stateViewRecord:
		rec := m.records[m.selected]
		fmt.Fprintf(&b, "%s at offset 0x%x:\n\n",
			recordStyle.Render(fmt.Sprintf("record %d", m.selected)), rec.offset)
		b.WriteString(m.view.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ scroll • enter/esc back • q quit"))
	}

	return b.String()
}

func runInteractive(catalogFile, typeName, inFile string, residual bool) error {
	p := tea.NewProgram(newInspectorModel(catalogFile, typeName, inFile, residual), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
