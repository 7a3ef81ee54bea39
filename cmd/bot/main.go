package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"

	"subspace.dev/internal/protocol"
)

// bot spawns one ship and flies it around with random thrust bursts.
func main() {
	var (
		url   = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name  = flag.String("name", "bot", "client name")
		seed  = flag.Int64("seed", 1, "rng seed")
		every = flag.Uint64("every", 40, "ticks between thrust bursts")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: *name}); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.Close()
	}()

	p := &pilot{conn: conn, log: logger, rng: rand.New(rand.NewSource(*seed)), every: *every}
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME session=%s world=%s tick=%d rate=%dHz", w.SessionID, w.WorldID, w.Tick, w.WorldParams.TickRateHz)
			p.spawn(w.Tick)
		case protocol.TypeAck:
			var a protocol.AckMsg
			if err := json.Unmarshal(msg, &a); err != nil {
				continue
			}
			p.onAck(a)
		case protocol.TypeTick:
			var t protocol.TickMsg
			if err := json.Unmarshal(msg, &t); err != nil {
				continue
			}
			p.onTick(t)
		}
	}
}

type pilot struct {
	conn  *websocket.Conn
	log   *log.Logger
	rng   *rand.Rand
	every uint64

	spawnID string
	entity  uint64
	seq     int
}

func (p *pilot) send(c protocol.CmdMsg) string {
	p.seq++
	c.Type = protocol.TypeCmd
	c.ProtocolVersion = protocol.Version
	c.ID = fmt.Sprintf("%s_%d", c.Cmd, p.seq)
	_ = p.conn.WriteJSON(c)
	return c.ID
}

func (p *pilot) spawn(tick uint64) {
	hull := func(x, y, z float64) protocol.BlockSpec {
		return protocol.BlockSpec{Pos: [3]float64{x, y, z}, Size: [3]float64{1, 1, 1}, Material: "TITANIUM", BlockType: "HULL"}
	}
	blocks := []protocol.BlockSpec{hull(0, 0, 0), hull(1, 0, 0), hull(-1, 0, 0), hull(0, 0, 1)}
	blocks = append(blocks, protocol.BlockSpec{Pos: [3]float64{0, 0, -1}, Size: [3]float64{1, 1, 1}, Material: "TITANIUM", BlockType: "ENGINE"}, protocol.BlockSpec{Pos: [3]float64{0, 1, 0}, Size: [3]float64{1, 1, 1}, Material: "IRON", BlockType: "GYRO_ARRAY"})
	pos := [3]float64{p.rng.Float64()*40 - 20, 0, p.rng.Float64()*40 - 20}
	p.spawnID = p.send(protocol.CmdMsg{Cmd: protocol.CmdSpawn, Pos: pos, Blocks: blocks})
}

func (p *pilot) onAck(a protocol.AckMsg) {
	if !a.OK {
		p.log.Printf("%s rejected: %s %s", a.ID, a.Code, a.Message)
		return
	}
	if a.ID == p.spawnID {
		p.entity = a.EntityID
		p.log.Printf("spawned entity=%d at tick=%d", a.EntityID, a.Tick)
	}
}

func (p *pilot) onTick(t protocol.TickMsg) {
	for _, c := range t.Collisions {
		if c.A == p.entity || c.B == p.entity {
			p.log.Printf("tick=%d collision %d<->%d impulse=%.2f", t.Tick, c.A, c.B, c.Impulse)
		}
	}
	for _, d := range t.Destroyed {
		if d.EntityID == p.entity {
			p.log.Printf("tick=%d lost block %d (%s)", t.Tick, d.BlockID, d.BlockType)
		}
	}
	if p.entity == 0 || p.every == 0 || t.Tick%p.every != 0 {
		return
	}
	dir := [3]float64{p.rng.Float64()*2 - 1, 0, p.rng.Float64()*2 - 1}
	p.send(protocol.CmdMsg{Cmd: protocol.CmdThrust, EntityID: p.entity, Direction: dir, Magnitude: 0.5 + p.rng.Float64()*0.5})
	if p.rng.Intn(3) == 0 {
		p.send(protocol.CmdMsg{Cmd: protocol.CmdRotate, EntityID: p.entity, Axis: [3]float64{0, 1, 0}, Magnitude: p.rng.Float64()*2 - 1})
	}
}
