package router

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/opsgate/internal/command"
	"github.com/loykin/opsgate/internal/confirm"
	"github.com/loykin/opsgate/internal/dockerops"
	"github.com/loykin/opsgate/internal/navigation"
	"github.com/loykin/opsgate/internal/notify"
	"github.com/loykin/opsgate/internal/registry"
)

// fakeDocker counts lifecycle calls and serves canned data.
type fakeDocker struct {
	mu         sync.Mutex
	containers []dockerops.Container
	logs       string
	details    string
	err        error

	stops    []string
	restarts []string
	starts   []string
	rebuilds []string
}

func (d *fakeDocker) List(_ context.Context) ([]dockerops.Container, error) {
	return d.containers, d.err
}

func (d *fakeDocker) Details(_ context.Context, _ string) (string, error) {
	return d.details, d.err
}

func (d *fakeDocker) Logs(_ context.Context, _ string, _ int) (string, error) {
	return d.logs, d.err
}

func (d *fakeDocker) Start(_ context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.starts = append(d.starts, name)
	return d.err
}

func (d *fakeDocker) Stop(_ context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stops = append(d.stops, name)
	return d.err
}

func (d *fakeDocker) Restart(_ context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.restarts = append(d.restarts, name)
	return d.err
}

func (d *fakeDocker) Rebuild(_ context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rebuilds = append(d.rebuilds, name)
	return d.err
}

// fakeRunner records commands instead of executing them.
type fakeRunner struct {
	cmds   []string
	result command.Result
	err    error
}

func (r *fakeRunner) Run(_ context.Context, cmdStr string, _ time.Duration, _ int) (command.Result, error) {
	r.cmds = append(r.cmds, cmdStr)
	return r.result, r.err
}

type fixture struct {
	router   *Router
	docker   *fakeDocker
	runner   *fakeRunner
	confirms *confirm.Registry
	nav      *navigation.Stack
	reg      *registry.Registry
	clk      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		docker:   &fakeDocker{},
		runner:   &fakeRunner{result: command.Result{ExitedOk: true, Stdout: "ok\n"}},
		confirms: confirm.NewRegistry(),
		nav:      navigation.NewStack(),
		reg:      registry.New(),
		clk:      time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC),
	}
	f.confirms.SetClock(func() time.Time { return f.clk })
	f.router = New(Deps{
		Nav:      f.nav,
		Confirms: f.confirms,
		Registry: f.reg,
		Gate:     notify.NewGate(nil),
		Docker:   f.docker,
		Runner:   f.runner,
	})
	return f
}

func dispatch(f *fixture, raw string) Screen {
	return f.router.Dispatch(context.Background(), "alice", raw)
}

func TestInvalidActionRendersErrorScreen(t *testing.T) {
	f := newFixture(t)
	s := dispatch(f, "container:web-1")
	assert.True(t, s.IsError)
}

func TestUnknownCategoryRendersErrorScreen(t *testing.T) {
	f := newFixture(t)
	s := dispatch(f, "bogus:anything")
	assert.True(t, s.IsError)
	assert.Contains(t, s.Body, "bogus:anything")
}

func TestMainMenu(t *testing.T) {
	f := newFixture(t)
	s := dispatch(f, "main:menu")
	assert.Equal(t, "main:menu", s.ID)
	assert.NotEmpty(t, s.Buttons)
}

func TestStatusScreenShowsJobs(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.reg.Register(registry.Job{ID: "job-1", Status: registry.StatusProcessing}))

	s := dispatch(f, "main:status")
	assert.Contains(t, s.Body, "Active jobs: 1")
}

func TestDangerousContainerActionRequiresConfirmation(t *testing.T) {
	f := newFixture(t)

	s := dispatch(f, "container:web-1:stop")
	assert.Equal(t, "confirm", s.ID)
	assert.Contains(t, s.Body, "stop web-1?")
	assert.Empty(t, f.docker.stops, "nothing may execute before confirmation")

	// the screen carries matching confirm and cancel callbacks
	require.Len(t, s.Buttons, 1)
	require.Len(t, s.Buttons[0], 2)
	assert.Equal(t, "confirm:container:web-1:stop", s.Buttons[0][0].Action)
	assert.Equal(t, "cancel:container:web-1:stop", s.Buttons[0][1].Action)
}

func TestConfirmedStopExecutesExactlyOnce(t *testing.T) {
	f := newFixture(t)
	dispatch(f, "container:web-1:stop")

	s := dispatch(f, "confirm:container:web-1:stop")
	assert.Equal(t, "container:done", s.ID)
	assert.Equal(t, []string{"web-1"}, f.docker.stops)

	// the ticket was consumed, a replayed confirm must not stop again
	s = dispatch(f, "confirm:container:web-1:stop")
	assert.Equal(t, "expired", s.ID)
	assert.Equal(t, []string{"web-1"}, f.docker.stops)
}

func TestConfirmAfterWindowExpires(t *testing.T) {
	f := newFixture(t)
	dispatch(f, "container:web-1:stop")

	f.clk = f.clk.Add(31 * time.Second)
	s := dispatch(f, "confirm:container:web-1:stop")
	assert.Equal(t, "expired", s.ID)
	assert.Empty(t, f.docker.stops)
}

func TestCancelDiscardsTicket(t *testing.T) {
	f := newFixture(t)
	dispatch(f, "container:web-1:stop")

	s := dispatch(f, "cancel:container:web-1:stop")
	assert.Equal(t, "cancelled", s.ID)

	s = dispatch(f, "confirm:container:web-1:stop")
	assert.Equal(t, "expired", s.ID)
	assert.Empty(t, f.docker.stops)
}

func TestCancelForOtherContainerKeepsTicket(t *testing.T) {
	f := newFixture(t)
	dispatch(f, "container:web-1:stop")

	dispatch(f, "cancel:container:web-2:stop")

	s := dispatch(f, "confirm:container:web-1:stop")
	assert.Equal(t, "container:done", s.ID)
	assert.Equal(t, []string{"web-1"}, f.docker.stops)
}

func TestConfirmationsAreScopedToOperator(t *testing.T) {
	f := newFixture(t)
	dispatch(f, "container:web-1:stop") // alice's ticket

	s := f.router.Dispatch(context.Background(), "bob", "confirm:container:web-1:stop")
	assert.Equal(t, "expired", s.ID)
	assert.Empty(t, f.docker.stops)
}

func TestIndependentTicketsPerContainer(t *testing.T) {
	f := newFixture(t)
	dispatch(f, "container:web-1:stop")
	dispatch(f, "container:web-2:stop")

	dispatch(f, "confirm:container:web-2:stop")
	assert.Equal(t, []string{"web-2"}, f.docker.stops)

	dispatch(f, "confirm:container:web-1:stop")
	assert.Equal(t, []string{"web-2", "web-1"}, f.docker.stops)
}

func TestSafeContainerActionsSkipConfirmation(t *testing.T) {
	f := newFixture(t)
	f.docker.logs = "line1\nline2"

	s := dispatch(f, "container:web-1:logs")
	assert.Equal(t, "container:logs", s.ID)
	assert.Contains(t, s.Body, "line1")

	s = dispatch(f, "container:web-1:start")
	assert.Equal(t, "container:done", s.ID)
	assert.Equal(t, []string{"web-1"}, f.docker.starts)
}

func TestDockerListRendersContainers(t *testing.T) {
	f := newFixture(t)
	f.docker.containers = []dockerops.Container{
		{Name: "web-1", Image: "nginx:1.27", Status: "Up 2 hours"},
	}

	s := dispatch(f, "docker:list")
	assert.Equal(t, "docker:list", s.ID)
	assert.Contains(t, s.Body, "web-1")
	assert.Contains(t, s.Body, "nginx:1.27")
}

func TestDockerStatsRequiresName(t *testing.T) {
	f := newFixture(t)
	s := dispatch(f, "docker:stats")
	assert.True(t, s.IsError)
}

func TestNavBackAfterNavigation(t *testing.T) {
	f := newFixture(t)
	dispatch(f, "main:status")
	dispatch(f, "main:queue")

	s := dispatch(f, "nav:back")
	assert.Equal(t, "main:status", s.ID)

	s = dispatch(f, "nav:back")
	assert.Equal(t, "main:menu", s.ID)

	// back on the root keeps rendering the root
	s = dispatch(f, "nav:back")
	assert.Equal(t, "main:menu", s.ID)
}

func TestTerminalMenuAndCategory(t *testing.T) {
	f := newFixture(t)
	s := dispatch(f, "main:terminal-menu")
	assert.Equal(t, "main:terminal-menu", s.ID)

	s = dispatch(f, "terminal:system")
	assert.Equal(t, "terminal:system", s.ID)
	assert.NotEmpty(t, s.Buttons)

	s = dispatch(f, "terminal:nope")
	assert.True(t, s.IsError)
}

func TestCommandExecution(t *testing.T) {
	f := newFixture(t)
	s := dispatch(f, "cmd:disk-usage")
	assert.Equal(t, "cmd:result", s.ID)
	assert.Contains(t, s.Body, "$ df -h")
	assert.Equal(t, []string{"df -h"}, f.runner.cmds)
}

func TestCommandNeedingConfirmation(t *testing.T) {
	f := newFixture(t)

	s := dispatch(f, "cmd:docker-prune")
	assert.Equal(t, "confirm", s.ID)
	assert.Empty(t, f.runner.cmds)

	s = dispatch(f, "confirm:cmd:docker-prune")
	assert.Equal(t, "cmd:result", s.ID)
	assert.Equal(t, []string{"docker system prune -f"}, f.runner.cmds)

	// consumed
	s = dispatch(f, "confirm:cmd:docker-prune")
	assert.Equal(t, "expired", s.ID)
	assert.Len(t, f.runner.cmds, 1)
}

func TestTerminalModeRoundTrip(t *testing.T) {
	f := newFixture(t)

	s := dispatch(f, "cmd:terminal-mode")
	assert.Equal(t, "terminal:mode", s.ID)
	assert.True(t, f.nav.TerminalModeActive("alice"))

	s = f.router.HandleText(context.Background(), "alice", "uptime")
	assert.Equal(t, "cmd:result", s.ID)
	assert.Equal(t, []string{"uptime"}, f.runner.cmds)

	s = dispatch(f, "terminal:exit")
	assert.Equal(t, "main:menu", s.ID)
	assert.False(t, f.nav.TerminalModeActive("alice"))

	// outside terminal mode plain text re-renders the menu
	s = f.router.HandleText(context.Background(), "alice", "uptime")
	assert.Equal(t, "main:menu", s.ID)
	assert.Len(t, f.runner.cmds, 1)
}

func TestSettingsScreenMarksCriticals(t *testing.T) {
	f := newFixture(t)
	s := dispatch(f, "main:settings")
	assert.Contains(t, s.Body, string(notify.EventServerCrashed)+": on (critical)")
	assert.Contains(t, s.Body, string(notify.EventVideoDone)+": on")
}

func TestNilDockerDegradesToErrorScreen(t *testing.T) {
	f := newFixture(t)
	f.router = New(Deps{
		Nav:      f.nav,
		Confirms: f.confirms,
		Registry: f.reg,
		Gate:     notify.NewGate(nil),
		Runner:   f.runner,
	})

	s := dispatch(f, "docker:list")
	assert.True(t, s.IsError)
	s = dispatch(f, "container:web-1:logs")
	assert.True(t, s.IsError)
}

func TestCommandOutputTruncatedToBudget(t *testing.T) {
	f := newFixture(t)
	big := make([]byte, displayBudget+100)
	for i := range big {
		big[i] = 'x'
	}
	f.runner.result = command.Result{ExitedOk: true, Stdout: string(big)}

	s := dispatch(f, "cmd:uptime")
	assert.Contains(t, s.Body, "(truncated")
	assert.LessOrEqual(t, len(s.Body), displayBudget+100)
}
