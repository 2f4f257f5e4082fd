package collab

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/sunstudio/sunstudio/backend-go/internal/dispatch"
	"github.com/sunstudio/sunstudio/backend-go/internal/document"
	"github.com/sunstudio/sunstudio/backend-go/internal/engine"
	"github.com/sunstudio/sunstudio/backend-go/internal/persist"
)

const maxChatHistory = 40

// Options configure the rooms a Hub opens.
type Options struct {
	HistoryLimit   int
	ViewportWidth  float64
	ViewportHeight float64
	// SaveInterval is the autosave period. Zero saves only when a room
	// empties and when the hub stops.
	SaveInterval time.Duration
	Dispatch     dispatch.Options
	Logger       *slog.Logger
}

// Room is one live project: its canvas, the actions running on it and the
// clients editing it.
type Room struct {
	projectID  string
	engine     *engine.Engine
	dispatcher *dispatch.Dispatcher
	presence   *PresenceManager

	mu      sync.RWMutex
	clients map[string]*Client // clientID -> client

	// owned by the hub goroutine
	savedVersion uint64

	chatMu sync.Mutex
	chat   []dispatch.ChatMessage
}

func (r *Room) broadcast(msg *Message, excludeClientID string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, c := range r.clients {
		if id != excludeClientID {
			c.Send(msg)
		}
	}
}

// broadcastState pushes the canvas to every client, each as its own viewer
// sees it.
func (r *Room) broadcastState() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, c := range r.clients {
		msg, err := newMessage(TypeSceneUpdate, r.engine.Join(id).Snapshot())
		if err != nil {
			slog.Error("marshal scene update", "error", err, "project", r.projectID)
			return
		}
		c.Send(msg)
	}
}

type Hub struct {
	mu         sync.RWMutex
	rooms      map[string]*Room // projectID -> room
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	done       chan struct{}
	stopOnce   sync.Once

	store  *persist.Store
	gen    dispatch.Generator
	opts   Options
	logger *slog.Logger
}

func NewHub(store *persist.Store, gen dispatch.Generator, opts Options) *Hub {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Dispatch.Logger == nil {
		opts.Dispatch.Logger = opts.Logger
	}
	return &Hub{
		rooms:      make(map[string]*Room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		store:      store,
		gen:        gen,
		opts:       opts,
		logger:     opts.Logger,
	}
}

func (h *Hub) Run() {
	defer close(h.done)

	var autosave <-chan time.Time
	if h.opts.SaveInterval > 0 {
		ticker := time.NewTicker(h.opts.SaveInterval)
		defer ticker.Stop()
		autosave = ticker.C
	}

	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-autosave:
			for _, room := range h.liveRooms() {
				h.save(room)
			}
		case <-h.stop:
			h.shutdown()
			return
		}
	}
}

// Stop saves every live room, cancels running actions and waits for Run to
// return.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
	<-h.done
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.close()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Live reports whether project has connected clients.
func (h *Hub) Live(projectID string) bool {
	return h.room(projectID) != nil
}

// Scene returns the live scene of an open project.
func (h *Hub) Scene(projectID string) (*document.Scene, bool) {
	room := h.room(projectID)
	if room == nil {
		return nil, false
	}
	return room.engine.Scene(), true
}

func (h *Hub) room(projectID string) *Room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[projectID]
}

func (h *Hub) liveRooms() []*Room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

// openRoom loads a project into a fresh engine. Runs on the hub goroutine.
func (h *Hub) openRoom(projectID string) *Room {
	logger := h.logger.With("project", projectID)
	e := engine.New(engine.Options{
		HistoryLimit:   h.opts.HistoryLimit,
		ViewportWidth:  h.opts.ViewportWidth,
		ViewportHeight: h.opts.ViewportHeight,
		Logger:         logger,
	})
	e.Load(h.store.Load(context.Background(), projectID))

	dopts := h.opts.Dispatch
	dopts.Logger = logger
	room := &Room{
		projectID:    projectID,
		engine:       e,
		dispatcher:   dispatch.New(e, h.gen, dopts),
		presence:     NewPresenceManager(),
		clients:      make(map[string]*Client),
		savedVersion: e.Version(),
	}
	e.OnChange(room.broadcastState)
	logger.Info("room opened")
	return room
}

// closeRoom cancels the room's actions and saves what they left behind.
func (h *Hub) closeRoom(room *Room) {
	room.dispatcher.Close()
	h.save(room)
	h.logger.Info("room closed", "project", room.projectID)
}

// save persists the room when it changed since the last save. Failures are
// logged and retried on the next save.
func (h *Hub) save(room *Room) {
	v := room.engine.Version()
	if v == room.savedVersion {
		return
	}
	if err := h.store.Save(context.Background(), room.projectID, room.engine.Workspace()); err != nil {
		return
	}
	room.savedVersion = v
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	rooms := h.rooms
	h.rooms = make(map[string]*Room)
	h.mu.Unlock()

	for _, room := range rooms {
		h.closeRoom(room)
		room.mu.Lock()
		for _, c := range room.clients {
			c.close()
		}
		room.mu.Unlock()
	}
}

func (h *Hub) addClient(client *Client) {
	room := h.room(client.ProjectID)
	if room == nil {
		room = h.openRoom(client.ProjectID)
		h.mu.Lock()
		h.rooms[client.ProjectID] = room
		h.mu.Unlock()
	}

	room.mu.Lock()
	room.clients[client.ClientID] = client
	room.mu.Unlock()

	welcome, err := newMessage(TypeWelcome, WelcomePayload{
		ClientID: client.ClientID,
		UserID:   client.UserID,
		State:    room.engine.Join(client.ClientID).Snapshot(),
	})
	if err == nil {
		client.Send(welcome)
	}

	// Send current presence state to new client
	if stateMsg := room.presence.StateMessage(); stateMsg != nil {
		client.Send(stateMsg)
	}

	// Broadcast join to other clients
	joinPayload, _ := json.Marshal(PresenceJoinPayload{
		UserID:      client.UserID,
		DisplayName: client.DisplayName,
	})
	joinMsg := &Message{
		Type:     TypePresenceJoin,
		UserID:   client.UserID,
		ClientID: client.ClientID,
		Payload:  joinPayload,
	}
	room.broadcast(joinMsg, client.ClientID)

	h.logger.Info("client joined", "user", client.UserID, "project", client.ProjectID)
}

func (h *Hub) removeClient(client *Client) {
	room := h.room(client.ProjectID)
	if room == nil {
		client.close()
		return
	}

	room.mu.Lock()
	delete(room.clients, client.ClientID)
	empty := len(room.clients) == 0
	room.mu.Unlock()
	client.close()
	room.engine.Leave(client.ClientID)
	room.presence.Remove(client.ClientID)

	h.logger.Info("client left", "user", client.UserID, "project", client.ProjectID)

	if empty {
		h.mu.Lock()
		delete(h.rooms, client.ProjectID)
		h.mu.Unlock()
		h.closeRoom(room)
		return
	}

	// Broadcast leave to remaining clients
	leavePayload, _ := json.Marshal(PresenceLeavePayload{
		UserID: client.UserID,
	})
	leaveMsg := &Message{
		Type:     TypePresenceLeave,
		UserID:   client.UserID,
		ClientID: client.ClientID,
		Payload:  leavePayload,
	}
	room.broadcast(leaveMsg, "")
}

func (h *Hub) handleMessage(ctx context.Context, sender *Client, msg *Message) {
	room := h.room(sender.ProjectID)
	if room == nil {
		return
	}
	view := room.engine.Join(sender.ClientID)

	switch msg.Type {
	case TypeInputPointer:
		h.handlePointer(view, sender, msg)
	case TypeInputWheel:
		var p WheelPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			sender.sendError(err, "")
			return
		}
		view.Wheel(engine.Point{X: p.X, Y: p.Y}, p.DeltaX, p.DeltaY, p.Shift)
	case TypeInputKey:
		var p KeyPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			sender.sendError(err, "")
			return
		}
		view.KeyDown(p.Key, p.Mod, p.Shift)
	case TypeCommand:
		h.handleCommand(ctx, room, view, sender, msg)
	case TypePresenceUpdate:
		h.handlePresenceUpdate(room, sender, msg)
	default:
		h.logger.Warn("unknown message type", "type", msg.Type, "user", sender.UserID)
	}
}

func (h *Hub) handlePointer(view *engine.Viewer, sender *Client, msg *Message) {
	var p PointerPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		sender.sendError(err, "")
		return
	}
	switch p.Phase {
	case PhaseDown:
		view.PointerDown(p.PointerEvent)
	case PhaseMove:
		view.PointerMove(p.PointerEvent)
	case PhaseUp:
		view.PointerUp(p.PointerEvent)
	default:
		h.logger.Debug("unknown pointer phase", "phase", p.Phase)
	}
}

func (h *Hub) handleCommand(ctx context.Context, room *Room, view *engine.Viewer, sender *Client, msg *Message) {
	var cmd Command
	if err := json.Unmarshal(msg.Payload, &cmd); err != nil {
		sender.sendError(err, "")
		return
	}

	if cmd.Name == CmdChat {
		go h.handleChat(ctx, room, sender, cmd)
		return
	}

	result, err := room.apply(ctx, view, cmd)
	if err != nil {
		h.logger.Debug("command rejected", "command", cmd.Name, "error", err, "user", sender.UserID)
		sender.sendError(err, cmd.ID)
		return
	}
	if cmd.ID == "" {
		return
	}
	out, err := newMessage(TypeCommandResult, CommandResultPayload{ID: cmd.ID, Name: cmd.Name, Result: result})
	if err != nil {
		h.logger.Error("marshal command result", "error", err)
		return
	}
	sender.Send(out)
}

// handleChat answers an assistant message. The conversation is shared by the
// room; replies go to the asking client only.
func (h *Hub) handleChat(ctx context.Context, room *Room, sender *Client, cmd Command) {
	if cmd.Text == "" {
		sender.sendError(ErrMissingField, cmd.ID)
		return
	}

	room.chatMu.Lock()
	history := append([]dispatch.ChatMessage(nil), room.chat...)
	room.chatMu.Unlock()

	reply, err := room.dispatcher.Generator().Chat(ctx, history, cmd.Text)
	if err != nil {
		sender.sendError(err, cmd.ID)
		return
	}

	room.chatMu.Lock()
	room.chat = append(room.chat,
		dispatch.ChatMessage{Role: "user", Text: cmd.Text},
		dispatch.ChatMessage{Role: "model", Text: reply},
	)
	if n := len(room.chat); n > maxChatHistory {
		room.chat = append([]dispatch.ChatMessage(nil), room.chat[n-maxChatHistory:]...)
	}
	room.chatMu.Unlock()

	out, err := newMessage(TypeChatReply, ChatReplyPayload{Text: reply})
	if err != nil {
		return
	}
	sender.Send(out)
}

func (h *Hub) handlePresenceUpdate(room *Room, sender *Client, msg *Message) {
	var presence PresencePayload
	if err := json.Unmarshal(msg.Payload, &presence); err != nil {
		h.logger.Warn("invalid presence payload", "error", err)
		return
	}

	presence.DisplayName = sender.DisplayName
	room.presence.Update(sender.ClientID, presence)

	// Broadcast to other clients in room
	outPayload, _ := json.Marshal(presence)
	outMsg := &Message{
		Type:     TypePresenceUpdate,
		UserID:   sender.UserID,
		ClientID: sender.ClientID,
		Payload:  outPayload,
	}
	room.broadcast(outMsg, sender.ClientID)
}
