package terminal

// ClientFrame is the decoded form of every client->server message. The Type
// tag selects which fields are meaningful; dispatch is a closed switch with
// one handler per variant.
type ClientFrame struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	Content    string `json:"content,omitempty"`
	IsPassword bool   `json:"is_password,omitempty"`
	CommandID  string `json:"command_id,omitempty"`
	Rows       int    `json:"rows,omitempty"`
	Cols       int    `json:"cols,omitempty"`
	Signal     string `json:"signal,omitempty"`
	Cursor     int    `json:"cursor,omitempty"`
}

// Client frame types.
const (
	FrameInput         = "input"
	FrameTerminalStdin = "terminal_stdin"
	FrameResize        = "resize"
	FrameSignal        = "signal"
	FramePing          = "ping"
	FrameTabCompletion = "tab_completion"
)

// OutputFrame carries PTY output to the client.
type OutputFrame struct {
	Type     string            `json:"type"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ConnectedFrame greets a freshly attached client.
type ConnectedFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// ErrorFrame reports a per-message failure without tearing the connection.
type ErrorFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// PongFrame answers a ping.
type PongFrame struct {
	Type string `json:"type"`
}

// TabCompletionFrame returns filesystem completions.
type TabCompletionFrame struct {
	Type        string   `json:"type"`
	Completions []string `json:"completions"`
	Prefix      string   `json:"prefix"`
}

// TerminalClosedFrame tells the client the PTY side is gone.
type TerminalClosedFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// SignalSentFrame acknowledges signal delivery.
type SignalSentFrame struct {
	Type   string `json:"type"`
	Signal string `json:"signal"`
}

// SecurityWarningFrame reports a blocked command.
type SecurityWarningFrame struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	RiskLevel string `json:"risk_level"`
}

func newOutputFrame(content string, meta map[string]string) OutputFrame {
	return OutputFrame{Type: "output", Content: content, Metadata: meta}
}

func newConnectedFrame(content string) ConnectedFrame {
	return ConnectedFrame{Type: "connected", Content: content}
}

func newErrorFrame(content string) ErrorFrame {
	return ErrorFrame{Type: "error", Content: content}
}

func newPongFrame() PongFrame {
	return PongFrame{Type: "pong"}
}

func newTabCompletionFrame(completions []string, prefix string) TabCompletionFrame {
	if completions == nil {
		completions = []string{}
	}
	return TabCompletionFrame{Type: "tab_completion", Completions: completions, Prefix: prefix}
}

func newTerminalClosedFrame(content string) TerminalClosedFrame {
	return TerminalClosedFrame{Type: "terminal_closed", Content: content}
}

func newSignalSentFrame(signal string) SignalSentFrame {
	return SignalSentFrame{Type: "signal_sent", Signal: signal}
}

func newSecurityWarningFrame(content, risk string) SecurityWarningFrame {
	return SecurityWarningFrame{Type: "security_warning", Content: content, RiskLevel: risk}
}
