// Package router interprets the operator action protocol and drives the
// navigation stack, confirmation registry, and external capabilities. No
// failure escapes Dispatch: every branch returns a rendered Screen.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/loykin/opsgate/internal/action"
	"github.com/loykin/opsgate/internal/audit"
	"github.com/loykin/opsgate/internal/command"
	"github.com/loykin/opsgate/internal/confirm"
	"github.com/loykin/opsgate/internal/dockerops"
	"github.com/loykin/opsgate/internal/metrics"
	"github.com/loykin/opsgate/internal/navigation"
	"github.com/loykin/opsgate/internal/notify"
	"github.com/loykin/opsgate/internal/registry"
	"github.com/loykin/opsgate/internal/sysinfo"
)

// displayBudget caps command output embedded into a screen body.
const displayBudget = 3500

// dangerous container actions require a confirmed ticket before executing.
var dangerousContainerActions = map[string]bool{
	"stop":    true,
	"restart": true,
	"rebuild": true,
}

// Router is the top-level action state machine.
type Router struct {
	nav      *navigation.Stack
	confirms *confirm.Registry
	reg      *registry.Registry
	gate     *notify.Gate
	sampler  sysinfo.Sampler
	docker   dockerops.Ops
	runner   command.Runner

	monitorRunning func() bool
	confirmTimeout time.Duration
	auditSinks     []audit.Sink
}

// Deps carries the router's collaborators. Nil capabilities degrade to error
// screens for the paths that need them.
type Deps struct {
	Nav            *navigation.Stack
	Confirms       *confirm.Registry
	Registry       *registry.Registry
	Gate           *notify.Gate
	Sampler        sysinfo.Sampler
	Docker         dockerops.Ops
	Runner         command.Runner
	MonitorRunning func() bool
	ConfirmTimeout time.Duration
	AuditSinks     []audit.Sink
}

func New(d Deps) *Router {
	r := &Router{
		nav:            d.Nav,
		confirms:       d.Confirms,
		reg:            d.Registry,
		gate:           d.Gate,
		sampler:        d.Sampler,
		docker:         d.Docker,
		runner:         d.Runner,
		monitorRunning: d.MonitorRunning,
		confirmTimeout: d.ConfirmTimeout,
		auditSinks:     d.AuditSinks,
	}
	if r.confirmTimeout <= 0 {
		r.confirmTimeout = confirm.DefaultTimeout
	}
	return r
}

// Dispatch parses and routes one inbound action string for an operator.
func (r *Router) Dispatch(ctx context.Context, operator, raw string) Screen {
	act, err := action.Parse(raw)
	if err != nil {
		return errorScreen("Invalid action", err.Error())
	}
	return r.dispatch(ctx, operator, act)
}

// HandleText routes plain-text operator input. In terminal mode the text is
// executed as a shell command; otherwise the main menu is re-rendered.
func (r *Router) HandleText(ctx context.Context, operator, text string) Screen {
	if r.nav.TerminalModeActive(operator) {
		return r.executeShell(ctx, text)
	}
	return r.renderMain(ctx, operator, "menu")
}

func (r *Router) dispatch(ctx context.Context, operator string, act action.Action) Screen {
	metrics.IncActionRouted(act.Category())
	r.record(operator, act)

	switch v := act.(type) {
	case action.Confirm:
		return r.handleConfirm(ctx, operator, v)
	case action.Cancel:
		r.confirms.Cancel(operator, v.Action, v.Data)
		return Screen{ID: "cancelled", Title: "Cancelled",
			Body:    fmt.Sprintf("Action %s was cancelled.", v.Action),
			Buttons: [][]Button{backRow()}}
	case action.NavBack:
		screen := r.nav.GoBack(operator)
		return r.renderByID(ctx, operator, screen)
	case action.Main:
		r.nav.Navigate(operator, "main:"+v.Screen, "")
		return r.renderMain(ctx, operator, v.Screen)
	case action.Docker:
		r.nav.Navigate(operator, action.Encode(v), "")
		return r.handleDocker(ctx, v)
	case action.Container:
		return r.handleContainer(ctx, operator, v)
	case action.Terminal:
		return r.handleTerminal(operator, v)
	case action.Command:
		return r.handleCommand(ctx, operator, v)
	case action.Unknown:
		return errorScreen("Unknown action", fmt.Sprintf("Unrecognized action %q.", v.Raw))
	}
	return errorScreen("Unknown action", "Unrecognized action.")
}

func (r *Router) record(operator string, act action.Action) {
	if len(r.auditSinks) == 0 {
		return
	}
	evt := audit.Event{
		Type:       audit.EventAction,
		OccurredAt: time.Now().UTC(),
		Operator:   operator,
		Kind:       act.Category(),
		Subject:    action.Encode(act),
	}
	for _, s := range r.auditSinks {
		if err := s.Send(context.Background(), evt); err != nil {
			slog.Debug("audit sink send failed", "error", err)
		}
	}
}

// --- confirm / cancel ---

func (r *Router) handleConfirm(ctx context.Context, operator string, v action.Confirm) Screen {
	if !r.confirms.Confirm(operator, v.Action, v.Data) {
		return Screen{ID: "expired", Title: "Confirmation expired",
			Body:    "This confirmation is no longer valid. Request the action again.",
			Buttons: [][]Button{backRow()}}
	}
	// Replay the original action with the confirmed flag set; only this
	// single invocation bypasses the gate.
	replay, err := action.Parse(v.Action + ":" + v.Data)
	if err != nil {
		return errorScreen("Invalid action", err.Error())
	}
	switch orig := replay.(type) {
	case action.Container:
		orig.Confirmed = true
		return r.handleContainer(ctx, operator, orig)
	case action.Command:
		orig.Confirmed = true
		return r.handleCommand(ctx, operator, orig)
	default:
		return r.dispatch(ctx, operator, replay)
	}
}

// --- main screens ---

func (r *Router) renderByID(ctx context.Context, operator, screenID string) Screen {
	if rest, ok := strings.CutPrefix(screenID, "main:"); ok {
		return r.renderMain(ctx, operator, rest)
	}
	// Non-main screens are re-rendered by replaying their action string.
	act, err := action.Parse(screenID)
	if err != nil {
		return r.renderMain(ctx, operator, "menu")
	}
	switch v := act.(type) {
	case action.Docker:
		return r.handleDocker(ctx, v)
	case action.Terminal:
		return r.handleTerminal(operator, v)
	default:
		return r.renderMain(ctx, operator, "menu")
	}
}

func (r *Router) renderMain(ctx context.Context, operator, screen string) Screen {
	switch screen {
	case "menu", "":
		return Screen{ID: "main:menu", Title: "Control console", Body: "Choose a section.",
			Buttons: [][]Button{
				{{Label: "Status", Action: "main:status"}, {Label: "Queue", Action: "main:queue"}},
				{{Label: "Processes", Action: "main:processes"}, {Label: "Health", Action: "main:health"}},
				{{Label: "Docker", Action: "main:docker-menu"}, {Label: "Terminal", Action: "main:terminal-menu"}},
				{{Label: "Logs", Action: "main:logs"}, {Label: "Settings", Action: "main:settings"}},
			}}
	case "status":
		return r.renderStatus(ctx)
	case "queue":
		return r.renderQueue()
	case "processes":
		return r.renderProcesses()
	case "health":
		return r.renderHealth(ctx)
	case "docker-menu":
		return Screen{ID: "main:docker-menu", Title: "Docker", Body: "Container operations.",
			Buttons: [][]Button{
				{{Label: "List containers", Action: "docker:list"}},
				backRow(),
			}}
	case "terminal-menu":
		return r.renderTerminalMenu()
	case "logs":
		return r.renderLogs(ctx)
	case "settings":
		return r.renderSettings()
	default:
		return errorScreen("Unknown screen", fmt.Sprintf("No screen named %q.", screen))
	}
}

func (r *Router) renderStatus(ctx context.Context) Screen {
	var b strings.Builder
	if r.sampler != nil {
		sample, err := r.sampler.Sample(ctx)
		if err != nil {
			fmt.Fprintf(&b, "resource sample unavailable: %v\n", err)
		} else {
			fmt.Fprintf(&b, "CPU: %.1f%%\n", sample.CPUPercent)
			fmt.Fprintf(&b, "Memory: %.1f%% (%d/%d MB)\n", sample.MemoryPercent, sample.MemoryUsedMB, sample.MemoryTotalMB)
		}
	}
	fmt.Fprintf(&b, "Active jobs: %d", r.reg.ActiveCount())
	return Screen{ID: "main:status", Title: "Status", Body: b.String(),
		Buttons: [][]Button{{{Label: "Refresh", Action: "main:status"}}, backRow()}}
}

func (r *Router) renderQueue() Screen {
	jobs := r.reg.Snapshot()
	if len(jobs) == 0 {
		return Screen{ID: "main:queue", Title: "Queue", Body: "No jobs tracked.",
			Buttons: [][]Button{backRow()}}
	}
	var b strings.Builder
	for _, j := range jobs {
		fmt.Fprintf(&b, "%s  %s  %d%%  %s\n", j.ID, j.Status, j.Progress, j.Stage)
	}
	return Screen{ID: "main:queue", Title: "Queue", Body: strings.TrimRight(b.String(), "\n"),
		Buttons: [][]Button{{{Label: "Refresh", Action: "main:queue"}}, backRow()}}
}

func (r *Router) renderProcesses() Screen {
	active := r.reg.Active()
	if len(active) == 0 {
		return Screen{ID: "main:processes", Title: "Processes", Body: "No active jobs.",
			Buttons: [][]Button{backRow()}}
	}
	var b strings.Builder
	for _, j := range active {
		age := time.Since(j.StartTime).Round(time.Second)
		fmt.Fprintf(&b, "%s  %d%%  %s  running %s\n", j.ID, j.Progress, j.Stage, age)
	}
	return Screen{ID: "main:processes", Title: "Processes", Body: strings.TrimRight(b.String(), "\n"),
		Buttons: [][]Button{{{Label: "Refresh", Action: "main:processes"}}, backRow()}}
}

func (r *Router) renderHealth(ctx context.Context) Screen {
	var b strings.Builder
	if r.sampler != nil {
		sample, err := r.sampler.Sample(ctx)
		if err != nil {
			fmt.Fprintf(&b, "resource sample unavailable: %v\n", err)
		} else {
			fmt.Fprintf(&b, "CPU: %.1f%%\nMemory: %.1f%%\n", sample.CPUPercent, sample.MemoryPercent)
		}
	}
	running := false
	if r.monitorRunning != nil {
		running = r.monitorRunning()
	}
	fmt.Fprintf(&b, "Monitor: %s\n", map[bool]string{true: "running", false: "stopped"}[running])
	fmt.Fprintf(&b, "Active jobs: %d", r.reg.ActiveCount())
	return Screen{ID: "main:health", Title: "Health", Body: b.String(),
		Buttons: [][]Button{{{Label: "Refresh", Action: "main:health"}}, backRow()}}
}

func (r *Router) renderLogs(ctx context.Context) Screen {
	if r.docker == nil {
		return errorScreen("Logs unavailable", "Docker capability is not configured.")
	}
	containers, err := r.docker.List(ctx)
	if err != nil {
		return errorScreen("Logs unavailable", err.Error())
	}
	var rows [][]Button
	for _, c := range containers {
		rows = append(rows, []Button{{Label: c.Name, Action: "container:" + c.Name + ":logs"}})
	}
	rows = append(rows, backRow())
	return Screen{ID: "main:logs", Title: "Logs", Body: "Pick a container.", Buttons: rows}
}

func (r *Router) renderSettings() Screen {
	var b strings.Builder
	for _, t := range notify.AllEventTypes {
		state := "off"
		if r.gate.IsEnabled(t) {
			state = "on"
		}
		if notify.IsCritical(t) {
			state += " (critical)"
		}
		fmt.Fprintf(&b, "%s: %s\n", t, state)
	}
	return Screen{ID: "main:settings", Title: "Notification settings",
		Body:    strings.TrimRight(b.String(), "\n"),
		Buttons: [][]Button{backRow()}}
}

// --- docker ---

func (r *Router) handleDocker(ctx context.Context, v action.Docker) Screen {
	if r.docker == nil {
		return errorScreen("Docker unavailable", "Docker capability is not configured.")
	}
	switch v.Action {
	case "list":
		containers, err := r.docker.List(ctx)
		if err != nil {
			return errorScreen("Docker error", err.Error())
		}
		if len(containers) == 0 {
			return Screen{ID: "docker:list", Title: "Containers", Body: "No containers found.",
				Buttons: [][]Button{backRow()}}
		}
		var rows [][]Button
		var b strings.Builder
		for _, c := range containers {
			fmt.Fprintf(&b, "%s  %s  %s\n", c.Name, c.Image, c.Status)
			rows = append(rows, []Button{
				{Label: c.Name + " stats", Action: "docker:stats:" + c.Name},
				{Label: "logs", Action: "container:" + c.Name + ":logs"},
			})
		}
		rows = append(rows, backRow())
		return Screen{ID: "docker:list", Title: "Containers",
			Body: strings.TrimRight(b.String(), "\n"), Buttons: rows}
	case "stats":
		if len(v.Params) == 0 || v.Params[0] == "" {
			return errorScreen("Docker error", "stats requires a container name.")
		}
		name := v.Params[0]
		details, err := r.docker.Details(ctx, name)
		if err != nil {
			return errorScreen("Docker error", err.Error())
		}
		return Screen{ID: "docker:stats", Title: "Stats: " + name, Body: details,
			Buttons: [][]Button{containerRow(name), backRow()}}
	default:
		return errorScreen("Docker error", fmt.Sprintf("Unsupported docker action %q.", v.Action))
	}
}

func containerRow(name string) []Button {
	return []Button{
		{Label: "Stop", Action: "container:" + name + ":stop"},
		{Label: "Restart", Action: "container:" + name + ":restart"},
		{Label: "Logs", Action: "container:" + name + ":logs"},
	}
}

// --- container ---

func (r *Router) handleContainer(ctx context.Context, operator string, v action.Container) Screen {
	if r.docker == nil {
		return errorScreen("Docker unavailable", "Docker capability is not configured.")
	}
	if dangerousContainerActions[v.Action] && !v.Confirmed {
		data := v.Name + ":" + v.Action
		r.confirms.Create(operator, "container", data, r.confirmTimeout)
		info := confirm.Danger("container:" + v.Action)
		secs := r.confirms.TimeRemaining(operator, "container", data)
		body := fmt.Sprintf("%s %s?\n%s\nExpires in %ds.",
			v.Action, v.Name, info.Warning, secs)
		return Screen{ID: "confirm", Title: "Confirm action", Body: body,
			Buttons: [][]Button{{
				{Label: "Confirm", Action: "confirm:container:" + data},
				{Label: "Cancel", Action: "cancel:container:" + data},
			}}}
	}

	var err error
	switch v.Action {
	case "start":
		err = r.docker.Start(ctx, v.Name)
	case "stop":
		err = r.docker.Stop(ctx, v.Name)
	case "restart":
		err = r.docker.Restart(ctx, v.Name)
	case "rebuild":
		err = r.docker.Rebuild(ctx, v.Name)
	case "logs":
		logs, lerr := r.docker.Logs(ctx, v.Name, 50)
		if lerr != nil {
			return errorScreen("Docker error", lerr.Error())
		}
		return Screen{ID: "container:logs", Title: "Logs: " + v.Name,
			Body:    truncate(logs, displayBudget),
			Buttons: [][]Button{containerRow(v.Name), backRow()}}
	case "details":
		details, derr := r.docker.Details(ctx, v.Name)
		if derr != nil {
			return errorScreen("Docker error", derr.Error())
		}
		return Screen{ID: "container:details", Title: v.Name, Body: details,
			Buttons: [][]Button{containerRow(v.Name), backRow()}}
	default:
		return errorScreen("Docker error", fmt.Sprintf("Unsupported container action %q.", v.Action))
	}
	if err != nil {
		return errorScreen("Docker error", err.Error())
	}
	return Screen{ID: "container:done", Title: "Done",
		Body:    fmt.Sprintf("%s %s succeeded.", v.Action, v.Name),
		Buttons: [][]Button{{{Label: "Containers", Action: "docker:list"}}, backRow()}}
}

// --- terminal ---

func (r *Router) handleTerminal(operator string, v action.Terminal) Screen {
	if v.Exit {
		r.nav.SetTerminalMode(operator, false)
		r.nav.Reset(operator)
		return Screen{ID: "main:menu", Title: "Control console",
			Body:    "Terminal mode off.",
			Buttons: [][]Button{{{Label: "Menu", Action: "main:menu"}}}}
	}
	cmds := command.ByCategory(v.Section)
	if len(cmds) == 0 {
		return errorScreen("Terminal", fmt.Sprintf("No commands in category %q.", v.Section))
	}
	r.nav.Navigate(operator, "terminal:"+v.Section, "")
	var rows [][]Button
	for _, c := range cmds {
		rows = append(rows, []Button{{Label: c.Label, Action: "cmd:" + c.ID}})
	}
	rows = append(rows, backRow())
	return Screen{ID: "terminal:" + v.Section, Title: "Commands: " + v.Section,
		Body: "Pick a command.", Buttons: rows}
}

func (r *Router) renderTerminalMenu() Screen {
	var rows [][]Button
	for _, cat := range command.Categories() {
		rows = append(rows, []Button{{Label: cat, Action: "terminal:" + cat}})
	}
	rows = append(rows, backRow())
	return Screen{ID: "main:terminal-menu", Title: "Terminal", Body: "Command categories.", Buttons: rows}
}

// --- cmd ---

func (r *Router) handleCommand(ctx context.Context, operator string, v action.Command) Screen {
	cmd, ok := command.Lookup(v.ID)
	if !ok {
		return errorScreen("Unknown command", fmt.Sprintf("No command with id %q.", v.ID))
	}
	if cmd.ID == command.TerminalModeID {
		r.nav.SetTerminalMode(operator, true)
		return Screen{ID: "terminal:mode", Title: "Terminal mode",
			Body:    "Terminal mode on. Send any text to run it as a shell command.",
			Buttons: [][]Button{{{Label: "Exit terminal", Action: "terminal:exit"}}}}
	}
	if cmd.NeedsConfirmation && !v.Confirmed {
		r.confirms.Create(operator, "cmd", cmd.ID, r.confirmTimeout)
		info := confirm.Danger("terminal:execute")
		secs := r.confirms.TimeRemaining(operator, "cmd", cmd.ID)
		return Screen{ID: "confirm", Title: "Confirm command",
			Body: fmt.Sprintf("Run %q?\n%s\nExpires in %ds.", cmd.Template, info.Warning, secs),
			Buttons: [][]Button{{
				{Label: "Confirm", Action: "confirm:cmd:" + cmd.ID},
				{Label: "Cancel", Action: "cancel:cmd:" + cmd.ID},
			}}}
	}
	return r.executeShell(ctx, cmd.Template)
}

func (r *Router) executeShell(ctx context.Context, cmdStr string) Screen {
	if r.runner == nil {
		return errorScreen("Terminal unavailable", "Command runner is not configured.")
	}
	res, err := r.runner.Run(ctx, cmdStr, 0, 0)
	if err != nil {
		if res.TimedOut {
			return errorScreen("Command timed out", fmt.Sprintf("%q exceeded its time limit.", cmdStr))
		}
		return errorScreen("Command failed", err.Error())
	}
	var b strings.Builder
	fmt.Fprintf(&b, "$ %s\n", cmdStr)
	if res.Stdout != "" {
		b.WriteString(res.Stdout)
	}
	if res.Stderr != "" {
		if res.Stdout != "" {
			b.WriteString("\n")
		}
		b.WriteString(res.Stderr)
	}
	if !res.ExitedOk {
		b.WriteString("\n(exited with error)")
	}
	if res.Truncated {
		b.WriteString("\n(output truncated)")
	}
	return Screen{ID: "cmd:result", Title: "Command output",
		Body:    truncate(b.String(), displayBudget),
		Buttons: [][]Button{{{Label: "Exit terminal", Action: "terminal:exit"}}, backRow()}}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "\n(truncated, " + strconv.Itoa(len(s)-n) + " bytes omitted)"
}
