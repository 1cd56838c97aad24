package ws

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"scarify.ai/internal/command"
	"scarify.ai/internal/console"
	"scarify.ai/internal/protocol"
)

const (
	handshakeTimeout = 5 * time.Second
	readTimeout      = 60 * time.Second
	writeTimeout     = 5 * time.Second
	requestTimeout   = 5 * time.Second
	outQueue         = 32
)

type Options struct {
	// Token, when set, must match HELLO auth.token.
	Token string
	// MaxPermissionLevel caps the level an operator may claim.
	MaxPermissionLevel int
}

type session struct {
	id       string
	operator console.Operator
	out      chan []byte
}

type Server struct {
	host *console.Host
	opts Options
	log  *log.Logger

	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*session
}

func NewServer(host *console.Host, opts Options, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	if opts.MaxPermissionLevel <= 0 {
		opts.MaxPermissionLevel = 4
	}
	return &Server{
		host: host,
		opts: opts,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // console binds to loopback by default
		},
		sessions: map[string]*session{},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess := s.handshake(conn)
		if sess == nil {
			return
		}
		defer s.drop(sess)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-sess.out:
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			reply := s.handle(ctx, sess, msg)
			if reply == nil {
				continue
			}
			if !enqueue(ctx, sess, reply) {
				break
			}
		}
	}
}

// Sessions returns the ids of connected sessions.
func (s *Server) Sessions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s *Server) handshake(conn *websocket.Conn) *session {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		s.reject(conn, protocol.ErrProtoBadRequest, "expected HELLO")
		return nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		s.reject(conn, protocol.ErrProtoBadRequest, "bad HELLO")
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		s.reject(conn, protocol.ErrProtoVersion, "bad protocol_version")
		return nil
	}
	if s.opts.Token != "" {
		tok := ""
		if hello.Auth != nil {
			tok = strings.TrimSpace(hello.Auth.Token)
		}
		if subtle.ConstantTimeCompare([]byte(tok), []byte(s.opts.Token)) != 1 {
			s.reject(conn, protocol.ErrAuth, "bad token")
			return nil
		}
	}
	name := strings.TrimSpace(hello.Operator)
	if name == "" {
		s.reject(conn, protocol.ErrProtoBadRequest, "missing operator")
		return nil
	}
	level := hello.PermissionLevel
	if level < 0 {
		level = 0
	}
	if level > s.opts.MaxPermissionLevel {
		level = s.opts.MaxPermissionLevel
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if err := s.host.Join(ctx, name); err != nil {
		s.reject(conn, protocol.ErrBusy, err.Error())
		return nil
	}
	st, err := s.host.State(ctx)
	if err != nil {
		s.host.Leave(name)
		s.reject(conn, protocol.ErrBusy, err.Error())
		return nil
	}

	sess := &session{
		id:       uuid.NewString(),
		operator: console.Operator{Name: name, Level: level},
		out:      make(chan []byte, outQueue),
	}
	online := st.Online
	if online == nil {
		online = []string{}
	}
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sess.id,
		Operator:        name,
		Online:          online,
	}
	// Register before WELCOME so broadcasts sent after the client sees it
	// are queued behind it.
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	if err := writeJSON(conn, welcome); err != nil {
		s.drop(sess)
		return nil
	}
	s.log.Printf("session %s operator=%s level=%d", sess.id, name, level)
	return sess
}

func (s *Server) drop(sess *session) {
	s.mu.Lock()
	delete(s.sessions, sess.id)
	s.mu.Unlock()
	s.host.Leave(sess.operator.Name)
	s.log.Printf("session %s closed", sess.id)
}

func (s *Server) reject(conn *websocket.Conn, code, msg string) {
	_ = writeJSON(conn, protocol.NewError("", code, msg))
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, msg), time.Now().Add(time.Second))
}

// handle answers one client message. Unknown types are ignored.
func (s *Server) handle(ctx context.Context, sess *session, msg []byte) any {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return protocol.NewError("", protocol.ErrProtoBadRequest, "bad json")
	}
	if base.ProtocolVersion != protocol.Version {
		return protocol.NewError("", protocol.ErrProtoVersion, "bad protocol_version")
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	switch base.Type {
	case protocol.TypeExec:
		var m protocol.ExecMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return protocol.NewError("", protocol.ErrProtoBadRequest, "bad EXEC")
		}
		res, err := s.host.Exec(reqCtx, sess.operator, m.Line)
		if err != nil {
			return hostError(m.ID, err)
		}
		feedback := make([]protocol.FeedbackLine, 0, len(res.Feedback))
		for _, l := range res.Feedback {
			feedback = append(feedback, protocol.FeedbackLine{Text: l.Text, Broadcast: l.Broadcast})
			if l.Broadcast {
				s.broadcast(sess, l.Text)
			}
		}
		return protocol.ResultMsg{
			Type:            protocol.TypeResult,
			ProtocolVersion: protocol.Version,
			ID:              m.ID,
			Result:          res.Code,
			Feedback:        feedback,
		}

	case protocol.TypeComplete:
		var m protocol.CompleteMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return protocol.NewError("", protocol.ErrProtoBadRequest, "bad COMPLETE")
		}
		sugg, err := s.host.Complete(reqCtx, sess.operator, m.Line)
		if err != nil {
			return hostError(m.ID, err)
		}
		if sugg == nil {
			sugg = []string{}
		}
		return protocol.CompletionsMsg{
			Type:            protocol.TypeCompletions,
			ProtocolVersion: protocol.Version,
			ID:              m.ID,
			Suggestions:     sugg,
		}
	}
	return nil
}

func hostError(id string, err error) protocol.ErrorMsg {
	var ce *command.Error
	switch {
	case errors.As(err, &ce):
		return protocol.NewError(id, ce.Code, ce.Message)
	case errors.Is(err, context.DeadlineExceeded):
		return protocol.NewError(id, protocol.ErrBusy, "console busy")
	default:
		return protocol.NewError(id, protocol.ErrInternal, err.Error())
	}
}

// broadcast sends FEEDBACK to every other session. Slow sessions miss it.
func (s *Server) broadcast(from *session, text string) {
	b, err := json.Marshal(protocol.FeedbackMsg{
		Type:            protocol.TypeFeedback,
		ProtocolVersion: protocol.Version,
		From:            from.operator.Name,
		Text:            text,
	})
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if id == from.id {
			continue
		}
		select {
		case sess.out <- b:
		default:
			s.log.Printf("session %s: feedback dropped (queue full)", id)
		}
	}
}

func enqueue(ctx context.Context, sess *session, v any) bool {
	b, err := json.Marshal(v)
	if err != nil {
		return false
	}
	select {
	case sess.out <- b:
		return true
	case <-ctx.Done():
		return false
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
