package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer   Action = "answer"
	ActionMark     Action = "mark"
	ActionNavigate Action = "navigate"
	ActionSubmit   Action = "submit"
	ActionView     Action = "view"
	ActionPing     Action = "ping"
)

// Navigation targets for ActionNavigate.
const (
	NavigateNext     = "next"
	NavigatePrevious = "previous"
)

// RequestPayload is any client message; fields unused by an action stay
// zero.
type RequestPayload struct {
	Action   Action `json:"action"`
	Question int    `json:"question,omitempty"`
	Option   string `json:"option,omitempty"`
	// Direction is "next", "previous", or empty with Question set.
	Direction string `json:"direction,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError   Event = "error"
	EventSession Event = "session"
	EventView    Event = "view"
	EventPong    Event = "pong"
	// EventExpired tells the page to go to the login screen.
	EventExpired Event = "expired"
)

// ResponsePayload wraps every server message.
type ResponsePayload struct {
	Event Event       `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}
