package collab

import (
	"encoding/json"

	"github.com/sunstudio/sunstudio/backend-go/internal/document"
	"github.com/sunstudio/sunstudio/backend-go/internal/engine"
)

type Message struct {
	Type      string          `json:"type"`
	ProjectID string          `json:"projectId,omitempty"`
	ClientID  string          `json:"clientId,omitempty"`
	UserID    string          `json:"userId,omitempty"`
	Seq       int64           `json:"seq,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

type PresencePayload struct {
	Cursor      *CursorPos `json:"cursor,omitempty"`
	Selection   []string   `json:"selection,omitempty"`
	DisplayName string     `json:"displayName,omitempty"`
}

type CursorPos struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type PresenceStatePayload struct {
	Presences map[string]*PresencePayload `json:"presences"`
}

type PresenceJoinPayload struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type PresenceLeavePayload struct {
	UserID string `json:"userId"`
}

const (
	TypePresenceUpdate = "presence.update"
	TypePresenceState  = "presence.state"
	TypePresenceJoin   = "presence.join"
	TypePresenceLeave  = "presence.leave"
	TypeError          = "error"

	// Connection
	TypeWelcome = "welcome"

	// Canvas input
	TypeInputPointer = "input.pointer"
	TypeInputWheel   = "input.wheel"
	TypeInputKey     = "input.key"

	// Commands
	TypeCommand       = "command"
	TypeCommandResult = "command.result"
	TypeChatReply     = "chat.reply"

	// Canvas state
	TypeSceneUpdate = "scene.update"
)

// Pointer phases.
const (
	PhaseDown = "down"
	PhaseMove = "move"
	PhaseUp   = "up"
)

// WelcomePayload greets a new client with its identity and the full canvas.
type WelcomePayload struct {
	ClientID string       `json:"clientId"`
	UserID   string       `json:"userId"`
	State    engine.State `json:"state"`
}

// PointerPayload is one pointer event in screen coordinates.
type PointerPayload struct {
	Phase string `json:"phase"`
	engine.PointerEvent
}

type WheelPayload struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	DeltaX float64 `json:"deltaX"`
	DeltaY float64 `json:"deltaY"`
	Shift  bool    `json:"shift"`
}

type KeyPayload struct {
	Key   string `json:"key"`
	Mod   bool   `json:"mod"`
	Shift bool   `json:"shift"`
}

// Command is an editing request. Name selects the operation; only the fields
// that operation reads need to be set.
type Command struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`

	NodeType document.NodeType  `json:"nodeType,omitempty"`
	NodeID   string             `json:"nodeId,omitempty"`
	NodeIDs  []string           `json:"nodeIds,omitempty"`
	X        *float64           `json:"x,omitempty"`
	Y        *float64           `json:"y,omitempty"`
	Width    *float64           `json:"width,omitempty"`
	Height   *float64           `json:"height,omitempty"`
	Update   *engine.NodeUpdate `json:"update,omitempty"`
	Order    []string           `json:"order,omitempty"`

	// For connect / disconnect / smartConnect
	From     string          `json:"from,omitempty"`
	FromPort engine.PortKind `json:"fromPort,omitempty"`
	To       string          `json:"to,omitempty"`
	ToPort   engine.PortKind `json:"toPort,omitempty"`

	GroupID    string `json:"groupId,omitempty"`
	WorkflowID string `json:"workflowId,omitempty"`
	Title      string `json:"title,omitempty"`

	// For execute
	Prompt string `json:"prompt,omitempty"`

	// For zoom
	Scale float64 `json:"scale,omitempty"`

	// For dropAssets
	Assets []engine.DroppedAsset `json:"assets,omitempty"`

	// For chat
	Text string `json:"text,omitempty"`
}

// CommandResultPayload acknowledges a command. Result carries what the
// command created, if anything.
type CommandResultPayload struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name"`
	Result any    `json:"result,omitempty"`
}

type ErrorPayload struct {
	Message   string `json:"message"`
	CommandID string `json:"commandId,omitempty"`
}

type ChatReplyPayload struct {
	Text string `json:"text"`
}

func newMessage(typ string, payload any) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{Type: typ, Payload: data}, nil
}
