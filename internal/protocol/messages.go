package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Operator        string     `json:"operator"`
	PermissionLevel int        `json:"permission_level"`
	Auth            *HelloAuth `json:"auth,omitempty"`
}

type HelloAuth struct {
	Token string `json:"token,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	SessionID       string   `json:"session_id"`
	Operator        string   `json:"operator"`
	Online          []string `json:"online"`
}

// EXEC (client -> server): run one command line.
type ExecMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	Line            string `json:"line"`
}

type FeedbackLine struct {
	Text      string `json:"text"`
	Broadcast bool   `json:"broadcast,omitempty"`
}

// RESULT (server -> client): a command finished.
type ResultMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	ID              string         `json:"id"`
	Result          int            `json:"result"`
	Feedback        []FeedbackLine `json:"feedback"`
}

// COMPLETE (client -> server): ask for completions of a partial line.
type CompleteMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	Line            string `json:"line"`
}

type CompletionsMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	ID              string   `json:"id"`
	Suggestions     []string `json:"suggestions"`
}

// FEEDBACK (server -> client): broadcast feedback from another operator.
type FeedbackMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	From            string `json:"from"`
	Text            string `json:"text"`
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

func NewError(id, code, message string) ErrorMsg {
	return ErrorMsg{
		Type:            TypeError,
		ProtocolVersion: Version,
		ID:              id,
		Code:            code,
		Message:         message,
	}
}
