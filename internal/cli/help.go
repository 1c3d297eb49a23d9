package cli

import (
	"fmt"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
)

// Custom help styles - signal theme
var (
	helpTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(SignalCyan)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(SignalTeal).
			Italic(true)

	helpSectionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(SignalTeal)

	helpFlagStyle = lipgloss.NewStyle().
			Foreground(SignalCyan).
			Bold(true)

	helpArgStyle = lipgloss.NewStyle().
			Foreground(SignalBlue).
			Bold(true)

	helpDefaultStyle = lipgloss.NewStyle().
				Foreground(SlateGray).
				Italic(true)
)

// generalGroup collects flags declared without a group tag
const generalGroup = "General"

// StyledHelpPrinter renders help with flags in their kong groups, in
// declaration order, followed by the given usage examples
func StyledHelpPrinter(examples ...string) kong.HelpPrinter {
	return func(_ kong.HelpOptions, ctx *kong.Context) error {
		var sb strings.Builder
		node := ctx.Model.Node

		sb.WriteString(helpTitleStyle.Render("Framecast 📡"))
		sb.WriteString("\n")
		if ctx.Model.Help != "" {
			sb.WriteString(helpDescStyle.Render(ctx.Model.Help))
			sb.WriteString("\n")
		}

		var args []string
		for _, arg := range node.Positional {
			args = append(args, arg.Summary())
		}
		sb.WriteString("\n")
		sb.WriteString(helpSectionStyle.Render("Usage:"))
		sb.WriteString(fmt.Sprintf("\n  %s %s [flags]\n", ctx.Model.Name, strings.Join(args, " ")))

		if len(node.Positional) > 0 {
			rows := make([][2]string, 0, len(node.Positional))
			for _, arg := range node.Positional {
				rows = append(rows, [2]string{arg.Summary(), arg.Help})
			}
			writeSection(&sb, "Arguments:", rows, helpArgStyle)
		}

		for _, group := range groupFlags(node.Flags) {
			writeSection(&sb, group.title+":", group.rows, helpFlagStyle)
		}

		if len(examples) > 0 {
			sb.WriteString("\n")
			sb.WriteString(helpSectionStyle.Render("Examples:"))
			sb.WriteString("\n")
			for _, ex := range examples {
				sb.WriteString("  " + ex + "\n")
			}
		}

		sb.WriteString("\n")
		fmt.Fprint(ctx.Stdout, sb.String())
		return nil
	}
}

type flagGroup struct {
	title string
	rows  [][2]string
}

// groupFlags orders groups by the first flag declared in each. The help
// flag always opens the general group.
func groupFlags(flags []*kong.Flag) []flagGroup {
	groups := []flagGroup{{
		title: generalGroup,
		rows:  [][2]string{{"-h, --help", "Show context-sensitive help."}},
	}}
	index := map[string]int{generalGroup: 0}

	for _, f := range flags {
		if f.Name == "help" || f.Hidden {
			continue
		}

		title := generalGroup
		if f.Group != nil {
			title = f.Group.Title
			if title == "" {
				title = f.Group.Key
			}
		}
		i, ok := index[title]
		if !ok {
			i = len(groups)
			index[title] = i
			groups = append(groups, flagGroup{title: title})
		}
		groups[i].rows = append(groups[i].rows, [2]string{flagName(f), flagHelp(f)})
	}
	return groups
}

func flagName(f *kong.Flag) string {
	name := "--" + f.Name
	if f.Short != 0 {
		name = fmt.Sprintf("-%c, --%s", f.Short, f.Name)
	} else {
		name = "    " + name
	}
	if !f.IsBool() {
		placeholder := f.PlaceHolder
		if placeholder == "" {
			placeholder = f.Name
		}
		name += "=" + strings.ToUpper(placeholder)
	}
	return name
}

func flagHelp(f *kong.Flag) string {
	help := f.Help
	if f.HasDefault && !f.IsBool() && f.Default != "" && f.Default != "0" {
		help += " " + helpDefaultStyle.Render("(default: "+f.Default+")")
	}
	return help
}

// writeSection prints a titled two-column block with the left column padded
// to its widest entry
func writeSection(sb *strings.Builder, title string, rows [][2]string, style lipgloss.Style) {
	width := 0
	for _, row := range rows {
		width = max(width, len(row[0]))
	}

	sb.WriteString("\n")
	sb.WriteString(helpSectionStyle.Render(title))
	sb.WriteString("\n")
	for _, row := range rows {
		sb.WriteString("  ")
		sb.WriteString(style.Render(fmt.Sprintf("%-*s", width, row[0])))
		if row[1] != "" {
			sb.WriteString("  ")
			sb.WriteString(row[1])
		}
		sb.WriteString("\n")
	}
}
