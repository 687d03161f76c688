package command

import "sort"

// TerminalModeID is the sentinel command id that switches the operator into
// free-form terminal mode instead of executing anything.
const TerminalModeID = "terminal-mode"

// TerminalCommand is a predefined shell command reachable from the terminal
// menu. The registry is defined at startup and immutable.
type TerminalCommand struct {
	ID                string
	Category          string
	Label             string
	Template          string
	NeedsConfirmation bool
}

var terminalCommands = []TerminalCommand{
	{ID: "disk-usage", Category: "system", Label: "Disk usage", Template: "df -h"},
	{ID: "memory", Category: "system", Label: "Memory", Template: "free -m"},
	{ID: "uptime", Category: "system", Label: "Uptime", Template: "uptime"},
	{ID: "top-procs", Category: "system", Label: "Top processes", Template: "ps aux --sort=-%cpu | head -15"},
	{ID: "docker-ps", Category: "docker", Label: "Containers", Template: "docker ps --format '{{.Names}}\t{{.Status}}'"},
	{ID: "docker-df", Category: "docker", Label: "Docker disk", Template: "docker system df"},
	{ID: "docker-prune", Category: "docker", Label: "Prune unused", Template: "docker system prune -f", NeedsConfirmation: true},
	{ID: "net-conns", Category: "network", Label: "Connections", Template: "ss -tunap | head -20"},
	{ID: "net-ifaces", Category: "network", Label: "Interfaces", Template: "ip -brief addr"},
	{ID: TerminalModeID, Category: "advanced", Label: "Free-form terminal", Template: ""},
}

// Lookup returns the command with the given id.
func Lookup(id string) (TerminalCommand, bool) {
	for _, c := range terminalCommands {
		if c.ID == id {
			return c, true
		}
	}
	return TerminalCommand{}, false
}

// Categories lists the distinct command categories in sorted order.
func Categories() []string {
	seen := map[string]bool{}
	var out []string
	for _, c := range terminalCommands {
		if !seen[c.Category] {
			seen[c.Category] = true
			out = append(out, c.Category)
		}
	}
	sort.Strings(out)
	return out
}

// ByCategory returns the commands in the given category.
func ByCategory(category string) []TerminalCommand {
	var out []TerminalCommand
	for _, c := range terminalCommands {
		if c.Category == category {
			out = append(out, c)
		}
	}
	return out
}
