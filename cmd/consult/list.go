package main

import (
	"github.com/alkime/consults/internal/catalog"
	"github.com/alkime/consults/internal/recording"
	"github.com/alkime/consults/internal/tui/style"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

const statusColumn = 2

var catalogHeaders = []string{"ID", "TITLE", "STATUS", "DURATION", "SIZE", "CREATED"}

// renderCatalog lays the catalog out as a table, colouring each status.
func renderCatalog(displays []catalog.Display) string {
	rows := make([][]string, 0, len(displays))
	for _, d := range displays {
		rows = append(rows, []string{d.ID, d.Title, string(d.Status), d.Duration, d.Size, d.Created})
	}

	cell := lipgloss.NewStyle().Padding(0, 1)

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(style.Muted).
		Headers(catalogHeaders...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return cell.Inherit(style.Label)
			case col != statusColumn:
				return cell
			case displays[row].Status == recording.StatusCompleted:
				return cell.Inherit(style.Success)
			default:
				return cell.Inherit(style.Warning)
			}
		}).
		Render()
}
