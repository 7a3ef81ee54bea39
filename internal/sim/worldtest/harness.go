package worldtest

import (
	"encoding/json"
	"fmt"
	"testing"

	"subspace.dev/internal/persistence/snapshot"
	"subspace.dev/internal/protocol"
	"subspace.dev/internal/sim/catalogs"
	world "subspace.dev/internal/sim/world"
)

// Harness drives a world through exported APIs only:
//   - Join() issues a JoinRequest via StepOnce()
//   - Step()/Send() issue CMD envelopes via StepOnce()
//   - the session Out channel carries TICK and ACK JSON, decoded after every step
//
// It avoids touching world internals so tests can live outside the world package.
type Harness struct {
	T    *testing.T
	Cats *catalogs.Catalogs
	W    *world.World

	SessionID string
	out       chan []byte
	nextCmd   int

	lastTick protocol.TickMsg
	acks     map[string]protocol.AckMsg
}

func NewHarness(t *testing.T, cfg world.WorldConfig, cats *catalogs.Catalogs) *Harness {
	t.Helper()
	w, err := world.New(cfg, cats)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	return NewHarnessWithWorld(t, w, cats)
}

// NewHarnessWithWorld is like NewHarness, but uses an already-constructed world instance.
// This is useful for snapshot round-trip tests where the snapshot is imported before join.
func NewHarnessWithWorld(t *testing.T, w *world.World, cats *catalogs.Catalogs) *Harness {
	t.Helper()
	if w == nil {
		t.Fatalf("NewHarnessWithWorld: nil world")
	}
	h := &Harness{
		T:    t,
		Cats: cats,
		W:    w,
		out:  make(chan []byte, 64),
		acks: map[string]protocol.AckMsg{},
	}
	resp := make(chan world.JoinResponse, 1)
	h.W.StepOnce([]world.JoinRequest{{Name: t.Name(), Out: h.out, Resp: resp}}, nil, nil)
	jr := <-resp
	if jr.Welcome.SessionID == "" {
		t.Fatalf("join returned empty session id")
	}
	h.SessionID = jr.Welcome.SessionID
	h.drain()
	return h
}

// Cmd fills in the envelope fields of c and gives it a unique id.
func (h *Harness) Cmd(c protocol.CmdMsg) protocol.CmdMsg {
	h.nextCmd++
	c.Type = protocol.TypeCmd
	c.ProtocolVersion = protocol.Version
	if c.ID == "" {
		c.ID = fmt.Sprintf("C%d", h.nextCmd)
	}
	return c
}

// Step applies cmds in one tick and returns the TICK the session received.
func (h *Harness) Step(cmds ...protocol.CmdMsg) protocol.TickMsg {
	h.T.Helper()
	envs := make([]world.CommandEnvelope, 0, len(cmds))
	for _, c := range cmds {
		envs = append(envs, world.CommandEnvelope{SessionID: h.SessionID, Cmd: h.Cmd(c)})
	}
	h.W.StepOnce(nil, nil, envs)
	h.drain()
	return h.lastTick
}

// StepN runs n ticks without commands and returns the last digest.
func (h *Harness) StepN(n int) string {
	h.T.Helper()
	for i := 0; i < n; i++ {
		h.Step()
	}
	return h.lastTick.Digest
}

// Send applies a single command and fails the test when it is rejected.
func (h *Harness) Send(c protocol.CmdMsg) protocol.AckMsg {
	h.T.Helper()
	c = h.Cmd(c)
	h.Step(c)
	ack, ok := h.acks[c.ID]
	if !ok {
		h.T.Fatalf("no ACK for %s", c.ID)
	}
	if !ack.OK {
		h.T.Fatalf("%s %s rejected: %s %s", c.Cmd, c.ID, ack.Code, ack.Message)
	}
	return ack
}

// Spawn creates a body and returns its entity id.
func (h *Harness) Spawn(pos, vel [3]float64, blocks ...protocol.BlockSpec) uint64 {
	h.T.Helper()
	return h.Send(protocol.CmdMsg{Cmd: protocol.CmdSpawn, Pos: pos, Vel: vel, Blocks: blocks}).EntityID
}

func (h *Harness) Ack(id string) (protocol.AckMsg, bool) {
	a, ok := h.acks[id]
	return a, ok
}

func (h *Harness) LastTick() protocol.TickMsg { return h.lastTick }

// Body returns the body from the last TICK.
func (h *Harness) Body(id uint64) protocol.BodyState {
	h.T.Helper()
	for _, b := range h.lastTick.Bodies {
		if b.ID == id {
			return b
		}
	}
	h.T.Fatalf("body %d not in last TICK", id)
	return protocol.BodyState{}
}

// Snapshot exports the last completed tick.
func (h *Harness) Snapshot() (tick uint64, snap snapshot.SnapshotV1) {
	h.T.Helper()
	cur := h.W.CurrentTick()
	if cur == 0 {
		return 0, h.W.ExportSnapshot(0)
	}
	tick = cur - 1
	return tick, h.W.ExportSnapshot(tick)
}

func (h *Harness) drain() {
	h.T.Helper()
	for {
		select {
		case b := <-h.out:
			h.decode(b)
			continue
		default:
		}
		return
	}
}

func (h *Harness) decode(b []byte) {
	base, err := protocol.DecodeBase(b)
	if err != nil {
		h.T.Fatalf("decode message: %v", err)
	}
	switch base.Type {
	case protocol.TypeTick:
		var m protocol.TickMsg
		if err := json.Unmarshal(b, &m); err != nil {
			h.T.Fatalf("unmarshal TICK: %v", err)
		}
		h.lastTick = m
	case protocol.TypeAck:
		var a protocol.AckMsg
		if err := json.Unmarshal(b, &a); err != nil {
			h.T.Fatalf("unmarshal ACK: %v", err)
		}
		h.acks[a.ID] = a
	default:
		h.T.Fatalf("unexpected message type %q", base.Type)
	}
}
