package statesync

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/crypto/blake2b"

	"github.com/udisondev/ascension/internal/model"
)

// Envelope types sent to observers.
const (
	TypeStats        = "stats"
	TypeRankUp       = "rank_up"
	TypeBreakthrough = "breakthrough"
	TypeDamage       = "damage"
	TypeShop         = "shop"
	TypeArtifacts    = "artifacts"
	TypeWallet       = "wallet"
)

// DigestSize is the blake2b digest length in bytes.
const DigestSize = 16

// Envelope is one message on the observer stream.
// Digest is the hex blake2b-128 of Payload, so observers can skip unchanged snapshots.
type Envelope struct {
	Type    string          `json:"type"`
	Seq     uint64          `json:"seq"`
	Digest  string          `json:"digest"`
	Payload json.RawMessage `json:"payload"`
}

// Command is an inbound message from an observer.
type Command struct {
	Observer uuid.UUID       `json:"-"`
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
}

// CommandHandler processes observer commands. A returned error is sent back
// to that observer as an "error" envelope.
type CommandHandler func(ctx context.Context, cmd Command) error

// HubConfig tunes the observer hub.
type HubConfig struct {
	SendQueueSize int
	WriteTimeout  time.Duration
	ReadLimit     int64
	// CommandToken authenticates the host side. Only connections presenting
	// it as a bearer token may send commands; an empty token disables
	// commands for everyone.
	CommandToken string
}

// DefaultHubConfig returns the settings used when config leaves them unset.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		SendQueueSize: 64,
		WriteTimeout:  5 * time.Second,
		ReadLimit:     4096,
	}
}

// Hub broadcasts every publish to connected websocket observers.
// Each observer has a bounded queue; an observer that falls behind is dropped.
type Hub struct {
	cfg      HubConfig
	upgrader websocket.Upgrader

	mu        sync.RWMutex
	observers map[uuid.UUID]*observer
	handler   CommandHandler

	seq    atomic.Uint64
	closed atomic.Bool
}

type observer struct {
	id        uuid.UUID
	conn      *websocket.Conn
	sendCh    chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once
	// trusted observers presented the command token.
	trusted bool
}

// NewHub creates a hub. Zero fields of cfg take defaults.
func NewHub(cfg HubConfig) *Hub {
	def := DefaultHubConfig()
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = def.SendQueueSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = def.ReadLimit
	}
	return &Hub{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// observers are local tools and UIs
			CheckOrigin: func(*http.Request) bool { return true },
		},
		observers: make(map[uuid.UUID]*observer),
	}
}

// SetCommandHandler installs the handler for inbound commands of trusted
// observers.
func (h *Hub) SetCommandHandler(fn CommandHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handler = fn
}

// Observers returns the number of connected observers.
func (h *Hub) Observers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}

// ServeHTTP upgrades the request and attaches a new observer.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.closed.Load() {
		http.Error(w, "hub closed", http.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	conn.SetReadLimit(h.cfg.ReadLimit)

	o := &observer{
		id:      uuid.New(),
		conn:    conn,
		sendCh:  make(chan []byte, h.cfg.SendQueueSize),
		closeCh: make(chan struct{}),
		trusted: h.authorized(r),
	}

	h.mu.Lock()
	h.observers[o.id] = o
	h.mu.Unlock()

	slog.Info("observer connected", "observer", o.id, "remote", r.RemoteAddr, "trusted", o.trusted)

	go h.writePump(o)
	go h.readPump(r.Context(), o)
}

func (h *Hub) authorized(r *http.Request) bool {
	if h.cfg.CommandToken == "" {
		return false
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.CommandToken)) == 1
}

// Close disconnects every observer. Further publishes are dropped.
func (h *Hub) Close() {
	if !h.closed.CompareAndSwap(false, true) {
		return
	}
	h.mu.Lock()
	observers := h.observers
	h.observers = make(map[uuid.UUID]*observer)
	h.mu.Unlock()

	for _, o := range observers {
		o.close()
	}
}

func (h *Hub) remove(o *observer) {
	h.mu.Lock()
	if _, ok := h.observers[o.id]; ok {
		delete(h.observers, o.id)
		slog.Info("observer disconnected", "observer", o.id)
	}
	h.mu.Unlock()
	o.close()
}

func (o *observer) close() {
	o.closeOnce.Do(func() {
		close(o.closeCh)
		_ = o.conn.Close()
	})
}

// enqueue never blocks. A full queue means the observer is too slow.
func (h *Hub) enqueue(o *observer, msg []byte) {
	select {
	case o.sendCh <- msg:
	case <-o.closeCh:
	default:
		slog.Warn("observer queue full, dropping observer", "observer", o.id)
		go h.remove(o)
	}
}

func (h *Hub) writePump(o *observer) {
	defer h.remove(o)

	for {
		select {
		case msg := <-o.sendCh:
			if err := o.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout)); err != nil {
				slog.Warn("set write deadline failed", "observer", o.id, "error", err)
				return
			}
			if err := o.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				slog.Warn("observer write failed", "observer", o.id, "error", err)
				return
			}
		case <-o.closeCh:
			_ = o.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(h.cfg.WriteTimeout))
			return
		}
	}
}

func (h *Hub) readPump(ctx context.Context, o *observer) {
	defer h.remove(o)
	// the request context ends with ServeHTTP; commands outlive it
	ctx = context.WithoutCancel(ctx)

	for {
		msgType, raw, err := o.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				select {
				case <-o.closeCh:
				default:
					slog.Debug("observer read failed", "observer", o.id, "error", err)
				}
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var cmd Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			h.sendError(o, fmt.Errorf("decoding command: %w", err))
			continue
		}
		cmd.Observer = o.id

		h.mu.RLock()
		handler := h.handler
		h.mu.RUnlock()
		if handler == nil || !o.trusted {
			h.sendError(o, errors.New("commands are not accepted"))
			continue
		}
		if err := handler(ctx, cmd); err != nil {
			h.sendError(o, err)
		}
	}
}

func (h *Hub) sendError(o *observer, err error) {
	msg, encErr := h.encode("error", map[string]string{"error": err.Error()})
	if encErr != nil {
		slog.Error("encoding error envelope", "error", encErr)
		return
	}
	h.enqueue(o, msg)
}

func (h *Hub) encode(typ string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", typ, err)
	}
	env := Envelope{
		Type:    typ,
		Seq:     h.seq.Add(1),
		Digest:  Digest(body),
		Payload: body,
	}
	msg, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encoding %s envelope: %w", typ, err)
	}
	return msg, nil
}

func (h *Hub) broadcast(typ string, payload any) {
	if h.closed.Load() {
		return
	}
	h.mu.RLock()
	if len(h.observers) == 0 {
		h.mu.RUnlock()
		return
	}
	targets := make([]*observer, 0, len(h.observers))
	for _, o := range h.observers {
		targets = append(targets, o)
	}
	h.mu.RUnlock()

	msg, err := h.encode(typ, payload)
	if err != nil {
		slog.Error("broadcast encode failed", "type", typ, "error", err)
		return
	}
	for _, o := range targets {
		h.enqueue(o, msg)
	}
}

// Digest returns the hex blake2b-128 of b.
func Digest(b []byte) string {
	d, err := blake2b.New(DigestSize, nil)
	if err != nil {
		// only fails for invalid sizes or keys
		panic(err)
	}
	d.Write(b)
	return hex.EncodeToString(d.Sum(nil))
}

func (h *Hub) PublishStatsSnapshot(stats *model.CombatantStats) {
	h.broadcast(TypeStats, stats)
}

func (h *Hub) PublishRankUpResult(r model.RankUpResult) {
	h.broadcast(TypeRankUp, r)
}

func (h *Hub) PublishBreakthroughResult(r model.BreakthroughResult) {
	h.broadcast(TypeBreakthrough, r)
}

func (h *Hub) PublishDamageDisplay(d model.DamageDisplay) {
	h.broadcast(TypeDamage, d)
}

func (h *Hub) PublishShopState(s model.ShopSnapshot) {
	h.broadcast(TypeShop, s)
}

func (h *Hub) PublishArtifacts(a model.ArtifactsSnapshot) {
	h.broadcast(TypeArtifacts, a)
}

func (h *Hub) PublishWallet(w model.WalletSnapshot) {
	h.broadcast(TypeWallet, w)
}
