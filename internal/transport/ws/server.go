package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"subspace.dev/internal/protocol"
	"subspace.dev/internal/sim/world"
	"subspace.dev/schemas"
)

// Per-session outbound queue. TICKs replace the oldest entry when it is full.
const (
	outQueue    = 32
	joinTimeout = 10 * time.Second
)

type Server struct {
	world *world.World
	log   *log.Logger

	// ValidateCmds checks every CMD against cmd.schema.json before it reaches the world.
	ValidateCmds bool

	upgrader websocket.Upgrader
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		world:        w,
		log:          logger,
		ValidateCmds: true,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sessionID, out := s.handshake(r.Context(), conn)
		if sessionID == "" {
			return
		}
		s.log.Printf("session %s connected from %s", sessionID, r.RemoteAddr)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			cmd, rej := s.decodeCmd(msg)
			if rej != nil {
				queueJSON(out, *rej)
				continue
			}
			select {
			case s.world.Inbox() <- world.CommandEnvelope{SessionID: sessionID, Cmd: cmd}:
			default:
				queueJSON(out, protocol.NewReject(cmd.ID, s.world.CurrentTick(), protocol.ErrWorldBusy, "inbox full"))
			}
		}
		cancel()

		s.leave(sessionID)
		s.log.Printf("session %s disconnected", sessionID)
	}
}

func (s *Server) leave(sessionID string) {
	select {
	case s.world.Leave() <- sessionID:
	case <-time.After(5 * time.Second):
		s.log.Printf("session %s: leave not accepted", sessionID)
	}
}

// awaitJoin waits for the world to answer an accepted JoinRequest. If ctx ends first the
// answer is still collected in the background and the session is left again, so the world
// never keeps a client nobody reads from.
func (s *Server) awaitJoin(ctx context.Context, respCh <-chan world.JoinResponse) (world.JoinResponse, bool) {
	select {
	case resp := <-respCh:
		return resp, true
	case <-ctx.Done():
	}
	go func() {
		select {
		case resp := <-respCh:
			if resp.Welcome.SessionID != "" {
				s.leave(resp.Welcome.SessionID)
			}
		case <-time.After(joinTimeout):
			s.log.Printf("abandoned join: no response from world")
		}
	}()
	return world.JoinResponse{}, false
}

// decodeCmd returns the command or the reject to send back. Non-CMD messages are ignored.
func (s *Server) decodeCmd(msg []byte) (protocol.CmdMsg, *protocol.AckMsg) {
	var cmd protocol.CmdMsg
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		rej := protocol.NewReject("", s.world.CurrentTick(), protocol.ErrProtoBadRequest, "invalid json")
		return cmd, &rej
	}
	if base.Type != protocol.TypeCmd {
		rej := protocol.NewReject("", s.world.CurrentTick(), protocol.ErrProtoBadRequest, fmt.Sprintf("unexpected message type %q", base.Type))
		return cmd, &rej
	}
	if err := json.Unmarshal(msg, &cmd); err != nil {
		rej := protocol.NewReject("", s.world.CurrentTick(), protocol.ErrProtoBadRequest, "bad CMD")
		return cmd, &rej
	}
	if cmd.ProtocolVersion != protocol.Version {
		rej := protocol.NewReject(cmd.ID, s.world.CurrentTick(), protocol.ErrProtoVersion, "unsupported protocol_version "+cmd.ProtocolVersion)
		return cmd, &rej
	}
	if s.ValidateCmds {
		var doc any
		if err := json.Unmarshal(msg, &doc); err == nil {
			err = schemas.Validate("cmd.schema.json", doc)
		}
		if err != nil {
			rej := protocol.NewReject(cmd.ID, s.world.CurrentTick(), protocol.ErrProtoBadRequest, err.Error())
			return cmd, &rej
		}
	}
	return cmd, nil
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (sessionID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = writeJSON(conn, protocol.NewReject("", s.world.CurrentTick(), protocol.ErrProtoVersion, "unsupported protocol_version "+hello.ProtocolVersion))
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", nil
	}
	if hello.ClientName == "" {
		hello.ClientName = "client"
	}

	out = make(chan []byte, outQueue)
	respCh := make(chan world.JoinResponse, 1)
	select {
	case s.world.Join() <- world.JoinRequest{Name: hello.ClientName, Watch: hello.Watch, Out: out, Resp: respCh}:
	case <-ctx.Done():
		return "", nil
	}
	resp, ok := s.awaitJoin(ctx, respCh)
	if !ok {
		return "", nil
	}

	if err := writeJSON(conn, resp.Welcome); err != nil {
		s.leave(resp.Welcome.SessionID)
		return "", nil
	}
	return resp.Welcome.SessionID, out
}

func queueJSON(out chan []byte, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
