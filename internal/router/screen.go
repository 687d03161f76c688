package router

// Button is one tappable choice on a screen. Action carries the wire string
// replayed through the router when pressed.
type Button struct {
	Label  string `json:"label"`
	Action string `json:"action"`
}

// Screen is a rendering instruction for the chat transport: a named menu
// state with body text and button rows. The router never talks to the
// transport directly.
type Screen struct {
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Body    string     `json:"body"`
	Buttons [][]Button `json:"buttons,omitempty"`
	IsError bool       `json:"is_error,omitempty"`
}

func errorScreen(title, body string) Screen {
	return Screen{ID: "error", Title: title, Body: body, IsError: true,
		Buttons: [][]Button{{{Label: "Back", Action: "nav:back"}}}}
}

func backRow() []Button {
	return []Button{{Label: "Back", Action: "nav:back"}}
}
