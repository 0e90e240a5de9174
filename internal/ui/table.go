package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/SK124/Swamp/internal/api"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

func newTable(headers []string, rows [][]string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})
}

// SwampTableView renders a page of swamps.
func SwampTableView(page api.SwampPage) string {
	if len(page.Swamps) == 0 {
		return MutedStyle.Render("No swamps")
	}

	rows := make([][]string, 0, len(page.Swamps))
	for _, s := range page.Swamps {
		topic := "-"
		if s.Topic != nil && s.Topic.Name != "" {
			topic = s.Topic.Name
		}
		start := "-"
		if !s.StartTime.IsZero() {
			start = s.StartTime.Local().Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{
			strconv.Itoa(s.ID),
			truncate(s.Title, 40),
			topic,
			start,
			fmt.Sprintf("%d min", s.Duration),
			strconv.Itoa(s.MaxParticipants),
		})
	}

	view := newTable([]string{"ID", "Title", "Topic", "Starts", "Duration", "Max"}, rows).Render()
	if page.Meta.TotalResults > 0 {
		view += "\n" + MutedStyle.Render(fmt.Sprintf("Page %d, %d of %d swamps",
			page.Meta.PageNumber, len(page.Swamps), page.Meta.TotalResults))
	}
	return view
}

// TopicTableView renders topics.
func TopicTableView(topics []api.Topic) string {
	if len(topics) == 0 {
		return MutedStyle.Render("No topics")
	}
	rows := make([][]string, 0, len(topics))
	for _, t := range topics {
		rows = append(rows, []string{strconv.FormatUint(uint64(t.ID), 10), t.Name})
	}
	return newTable([]string{"ID", "Name"}, rows).Render()
}

// RoomInfo is the box shown to a broadcaster with the links to share.
type RoomInfo struct {
	SwampID      string
	UUID         string
	RoomLink     string
	WatchCommand string
}

func (r RoomInfo) View() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s Swamp %s\n", IconRoom, BoldStyle.Foreground(Primary).Render(r.SwampID))
	if r.UUID != "" {
		fmt.Fprintf(&b, "\n%s Stream id:    %s", IconCopy, MutedStyle.Render(r.UUID))
	}
	if r.RoomLink != "" {
		fmt.Fprintf(&b, "\n%s Room link:    %s", IconWeb, MutedStyle.Render(r.RoomLink))
	}
	if r.WatchCommand != "" {
		fmt.Fprintf(&b, "\n%s Viewers run:  %s", IconWatch, MutedStyle.Render(r.WatchCommand))
	}
	return SuccessBoxStyle.Render(b.String())
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
