// Package action parses the colon-delimited operator protocol
// ("category:action:params...") into a closed set of variants. Downstream
// code never re-splits the wire string.
//
// Known limitation: the format has no escaping, so a dynamic identifier
// containing ':' is ambiguous. Params after the fixed prefix are re-joined
// verbatim.
package action

import (
	"fmt"
	"strings"
)

// Action is one parsed operator action. The set of implementations is closed.
type Action interface {
	Category() string
	isAction()
}

// Confirm approves a pending two-phase confirmation and replays the original
// action.
type Confirm struct {
	Action string // original action category
	Data   string // original params, rejoined
}

// Cancel discards a pending confirmation.
type Cancel struct {
	Action string
	Data   string
}

// NavBack pops the operator's navigation history.
type NavBack struct{}

// Main navigates to a built-in screen.
type Main struct {
	Screen string
}

// Docker runs a read-only docker query (list, stats).
type Docker struct {
	Action string
	Params []string
}

// Container acts on a single container. Confirmed is set only when the
// invocation is the replay of a confirmed ticket; the zero value cannot skip
// the confirmation gate.
type Container struct {
	Name      string
	Action    string
	Confirmed bool
}

// Terminal browses the command registry or exits terminal mode. Section
// selects a command category to list.
type Terminal struct {
	Section string
	Exit    bool
}

// Command runs a predefined terminal command by id. Confirmed is set only
// when the invocation is the replay of a confirmed ticket.
type Command struct {
	ID        string
	Confirmed bool
}

// Unknown carries an unrecognized category for error rendering.
type Unknown struct {
	Raw string
}

func (Confirm) Category() string   { return "confirm" }
func (Cancel) Category() string    { return "cancel" }
func (NavBack) Category() string   { return "nav" }
func (Main) Category() string      { return "main" }
func (Docker) Category() string    { return "docker" }
func (Container) Category() string { return "container" }
func (Terminal) Category() string  { return "terminal" }
func (Command) Category() string   { return "cmd" }
func (Unknown) Category() string   { return "unknown" }

func (Confirm) isAction()   {}
func (Cancel) isAction()    {}
func (NavBack) isAction()   {}
func (Main) isAction()      {}
func (Docker) isAction()    {}
func (Container) isAction() {}
func (Terminal) isAction()  {}
func (Command) isAction()   {}
func (Unknown) isAction()   {}

// Parse turns a wire string into an Action. Unrecognized categories come
// back as Unknown; structurally malformed strings return an error.
func Parse(raw string) (Action, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty action")
	}
	tokens := strings.Split(raw, ":")
	switch tokens[0] {
	case "confirm":
		if len(tokens) < 2 {
			return nil, fmt.Errorf("confirm requires an action: %q", raw)
		}
		return Confirm{Action: tokens[1], Data: strings.Join(tokens[2:], ":")}, nil
	case "cancel":
		if len(tokens) < 2 {
			return nil, fmt.Errorf("cancel requires an action: %q", raw)
		}
		return Cancel{Action: tokens[1], Data: strings.Join(tokens[2:], ":")}, nil
	case "nav":
		if len(tokens) != 2 || tokens[1] != "back" {
			return nil, fmt.Errorf("unsupported nav action: %q", raw)
		}
		return NavBack{}, nil
	case "main":
		if len(tokens) != 2 || tokens[1] == "" {
			return nil, fmt.Errorf("main requires a screen: %q", raw)
		}
		return Main{Screen: tokens[1]}, nil
	case "docker":
		if len(tokens) < 2 || tokens[1] == "" {
			return nil, fmt.Errorf("docker requires an action: %q", raw)
		}
		return Docker{Action: tokens[1], Params: tokens[2:]}, nil
	case "container":
		if len(tokens) < 3 || tokens[1] == "" || tokens[2] == "" {
			return nil, fmt.Errorf("container requires name and action: %q", raw)
		}
		// tokens beyond the action would be ambiguous; reject rather than guess
		if len(tokens) > 3 {
			return nil, fmt.Errorf("container action takes no params: %q", raw)
		}
		return Container{Name: tokens[1], Action: tokens[2]}, nil
	case "terminal":
		if len(tokens) != 2 || tokens[1] == "" {
			return nil, fmt.Errorf("terminal requires a category: %q", raw)
		}
		if tokens[1] == "exit" {
			return Terminal{Exit: true}, nil
		}
		return Terminal{Section: tokens[1]}, nil
	case "cmd":
		if len(tokens) != 2 || tokens[1] == "" {
			return nil, fmt.Errorf("cmd requires a command id: %q", raw)
		}
		return Command{ID: tokens[1]}, nil
	default:
		return Unknown{Raw: raw}, nil
	}
}

// Encode renders an Action back to the wire format. Used when building
// confirm/cancel callback strings for rendering.
func Encode(a Action) string {
	switch v := a.(type) {
	case Confirm:
		return join("confirm", v.Action, v.Data)
	case Cancel:
		return join("cancel", v.Action, v.Data)
	case NavBack:
		return "nav:back"
	case Main:
		return "main:" + v.Screen
	case Docker:
		return join("docker", v.Action, strings.Join(v.Params, ":"))
	case Container:
		return join("container", v.Name, v.Action)
	case Terminal:
		if v.Exit {
			return "terminal:exit"
		}
		return "terminal:" + v.Section
	case Command:
		return "cmd:" + v.ID
	case Unknown:
		return v.Raw
	}
	return ""
}

func join(parts ...string) string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ":")
}
