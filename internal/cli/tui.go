package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/modmarket/pkg/marketplace"
	"github.com/matzehuels/modmarket/pkg/version"
)

var listDimStyle = lipgloss.NewStyle().Foreground(colorDim)

// =============================================================================
// ModuleListModel - Interactive module selection
// =============================================================================

// ModuleAction is what the user chose to do with the selected module.
type ModuleAction int

const (
	ActionNone ModuleAction = iota
	ActionInstall
	ActionUpdate
)

// ModuleSelection holds the result of the module selection.
type ModuleSelection struct {
	Module marketplace.Module
	Action ModuleAction
}

// ModuleListModel is the bubbletea model for browsing the marketplace.
// Modules without a compatible release cannot be selected.
type ModuleListModel struct {
	Modules   []marketplace.Module
	Installed map[string]string
	Cursor    int
	Selected  *ModuleSelection
	Height    int
	Offset    int
}

// NewModuleListModel creates a new module list model.
func NewModuleListModel(mods []marketplace.Module, installed map[string]string) ModuleListModel {
	if installed == nil {
		installed = map[string]string{}
	}
	return ModuleListModel{
		Modules:   mods,
		Installed: installed,
		Height:    15,
	}
}

func (m ModuleListModel) Init() tea.Cmd {
	return nil
}

func (m ModuleListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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
			if m.Cursor < len(m.Modules)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter":
			if len(m.Modules) == 0 {
				return m, nil
			}
			mod := m.Modules[m.Cursor]
			action := m.actionFor(mod)
			if action == ActionNone {
				return m, nil
			}
			m.Selected = &ModuleSelection{Module: mod, Action: action}
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 6
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

// actionFor returns what enter does for mod: install when absent, update
// when a newer compatible release exists, nothing otherwise.
func (m ModuleListModel) actionFor(mod marketplace.Module) ModuleAction {
	compatible := mod.CompatibleVersion()
	if compatible == "" {
		return ActionNone
	}
	installed, ok := m.Installed[mod.ID]
	if !ok {
		return ActionInstall
	}
	if version.Newer(compatible, installed) {
		return ActionUpdate
	}
	return ActionNone
}

func (m ModuleListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Module Marketplace"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ install/update  q quit"))
	b.WriteString("\n\n")

	if len(m.Modules) == 0 {
		b.WriteString(listDimStyle.Render("  no modules"))
		b.WriteString("\n")
		return b.String()
	}

	end := m.Offset + m.Height
	if end > len(m.Modules) {
		end = len(m.Modules)
	}

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		mod := m.Modules[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		status := ""
		switch m.actionFor(mod) {
		case ActionInstall:
			status = "install"
		case ActionUpdate:
			status = "update"
		default:
			if _, ok := m.Installed[mod.ID]; ok {
				status = "current"
			}
		}
		rows = append(rows, []string{cursor, mod.ID, mod.Name, orNone(m.Installed[mod.ID]), orNone(mod.CompatibleVersion()), status})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "ID", "Name", "Installed", "Compatible", "").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleHeader
			}
			idx := m.Offset + row
			if idx >= len(m.Modules) {
				return lipgloss.NewStyle()
			}
			mod := m.Modules[idx]
			base := lipgloss.NewStyle()
			if idx == m.Cursor {
				base = base.Bold(true)
			}
			switch m.actionFor(mod) {
			case ActionInstall:
				return base.Foreground(colorGreen)
			case ActionUpdate:
				return base.Foreground(colorYellow)
			}
			if mod.CompatibleVersion() == "" {
				return base.Foreground(colorDim)
			}
			return base.Foreground(colorGray)
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Modules))))

	return b.String()
}
