package world

import (
	"encoding/json"
	"fmt"
	"time"

	"subspace.dev/internal/protocol"
	"subspace.dev/internal/sim/physics"
)

// StepResult is what one tick produced, in application order.
type StepResult struct {
	Tick       uint64
	Digest     string
	Contacts   int
	Acks       []CommandResult
	Collisions []physics.CollisionEvent
	Destroyed  []DestroyedBlock
}

// CommandResult is the ACK for one queued command.
type CommandResult struct {
	SessionID string
	Ack       protocol.AckMsg
}

func (w *World) step(joins []JoinRequest, leaves []string, cmds []CommandEnvelope) {
	stepStart := time.Now()
	nowTick := w.tick.Load()

	// Fresh slices: the previous StepResult still references the old ones.
	w.collisions = nil
	w.destroyed = nil
	w.acks = nil

	// Apply leaves and joins at the tick boundary.
	recordedLeaves := make([]string, 0, len(leaves))
	for _, id := range leaves {
		if _, ok := w.clients[id]; ok {
			delete(w.clients, id)
			recordedLeaves = append(recordedLeaves, id)
		}
	}
	recordedJoins := make([]string, 0, len(joins))
	for _, req := range joins {
		resp := w.joinClient(req, nowTick)
		if req.Resp != nil {
			req.Resp <- resp
		}
		recordedJoins = append(recordedJoins, resp.Welcome.SessionID)
	}

	// Apply commands in inbox order. Anything past the per-tick budget is rejected unapplied
	// and left out of the log.
	recorded := make([]RecordedCommand, 0, len(cmds))
	for i, env := range cmds {
		if i >= w.cfg.MaxCommandsPerTick {
			w.rejectsTotal++
			w.acks = append(w.acks, CommandResult{
				SessionID: env.SessionID,
				Ack:       protocol.NewReject(env.Cmd.ID, nowTick, protocol.ErrRateLimit, "too many commands this tick"),
			})
			continue
		}
		recorded = append(recorded, RecordedCommand{SessionID: env.SessionID, Cmd: env.Cmd})
		ack := w.applyCmd(env.Cmd, nowTick)
		if !ack.OK {
			w.rejectsTotal++
		}
		w.acks = append(w.acks, CommandResult{SessionID: env.SessionID, Ack: ack})
	}
	w.commandsTotal += uint64(len(recorded))

	contacts := w.physics.Update(w, w.cfg.dt())

	digest := w.stateDigest(nowTick)
	if w.tickLogger != nil {
		_ = w.tickLogger.WriteTick(TickLogEntry{
			Tick:      nowTick,
			Joins:     recordedJoins,
			Leaves:    recordedLeaves,
			Commands:  recorded,
			Destroyed: w.destroyed,
			Digest:    digest,
		})
	}
	if w.collisionLogger != nil {
		for _, ev := range w.collisions {
			_ = w.collisionLogger.WriteCollision(collisionLogEntry(nowTick, ev))
		}
	}

	w.broadcast(nowTick, digest)

	// Snapshot every N ticks, starting after tick 0.
	if w.snapshotSink != nil && nowTick != 0 && w.cfg.SnapshotEveryTicks > 0 {
		every := uint64(w.cfg.SnapshotEveryTicks)
		if nowTick%every == 0 {
			snap := w.ExportSnapshot(nowTick)
			select {
			case w.snapshotSink <- snap:
			default:
				// Drop snapshot if sink is backed up.
			}
		}
	}

	w.collisionsTotal += uint64(len(w.collisions))
	w.destroyedTotal += uint64(len(w.destroyed))
	w.lastStep = StepResult{
		Tick:       nowTick,
		Digest:     digest,
		Contacts:   contacts,
		Acks:       w.acks,
		Collisions: w.collisions,
		Destroyed:  w.destroyed,
	}

	stepMS := float64(time.Since(stepStart).Microseconds()) / 1000.0
	nextTick := w.tick.Add(1)
	w.storeMetrics(nextTick, stepMS, contacts)
}

func (w *World) joinClient(req JoinRequest, nowTick uint64) JoinResponse {
	w.nextSessionID++
	id := fmt.Sprintf("S%06d", w.nextSessionID)
	cl := &clientState{Name: req.Name, Out: req.Out}
	if len(req.Watch) > 0 {
		cl.Watch = make(map[uint64]struct{}, len(req.Watch))
		for _, e := range req.Watch {
			cl.Watch[e] = struct{}{}
		}
	}
	w.clients[id] = cl

	return JoinResponse{Welcome: protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       id,
		WorldID:         w.cfg.ID,
		Tick:            nowTick,
		WorldParams: protocol.WorldParams{
			TickRateHz:  w.cfg.TickRateHz,
			CellSize:    w.physics.Resolver.Grid.CellSize(),
			Restitution: w.cfg.Physics.Restitution,
			MaxVelocity: w.cfg.Physics.MaxVelocity,
		},
		Catalogs: w.catalogDigests(),
	}}
}

// broadcast sends each client its TICK (latest wins) and its ACKs (dropped when the queue
// is full).
func (w *World) broadcast(nowTick uint64, digest string) {
	if len(w.clients) == 0 {
		return
	}
	base := protocol.TickMsg{
		Type:            protocol.TypeTick,
		ProtocolVersion: protocol.Version,
		Tick:            nowTick,
		Digest:          digest,
	}
	for _, ev := range w.collisions {
		base.Collisions = append(base.Collisions, collisionState(ev))
	}
	base.Destroyed = w.destroyed

	var all []byte
	for _, cl := range w.clients {
		if cl.Out == nil {
			continue
		}
		var b []byte
		if cl.Watch == nil {
			if all == nil {
				msg := base
				msg.Bodies = w.Bodies()
				all, _ = json.Marshal(msg)
			}
			b = all
		} else {
			msg := base
			msg.Bodies = w.watchedBodies(cl.Watch)
			b, _ = json.Marshal(msg)
		}
		if b != nil {
			sendLatest(cl.Out, b)
		}
	}

	for _, r := range w.acks {
		cl := w.clients[r.SessionID]
		if cl == nil || cl.Out == nil {
			continue
		}
		b, err := json.Marshal(r.Ack)
		if err != nil {
			continue
		}
		trySend(cl.Out, b)
	}
}

func (w *World) watchedBodies(watch map[uint64]struct{}) []protocol.BodyState {
	out := make([]protocol.BodyState, 0, len(watch))
	for _, id := range w.ids {
		if _, ok := watch[uint64(id)]; ok {
			out = append(out, bodyState(w.entities[id]))
		}
	}
	return out
}

func collisionState(ev physics.CollisionEvent) protocol.CollisionState {
	return protocol.CollisionState{
		A:       uint64(ev.A),
		B:       uint64(ev.B),
		Point:   ev.Point,
		Normal:  ev.Normal,
		Depth:   ev.Depth,
		Impulse: ev.Impulse,
	}
}

func collisionLogEntry(tick uint64, ev physics.CollisionEvent) CollisionLogEntry {
	return CollisionLogEntry{
		Tick:    tick,
		A:       uint64(ev.A),
		B:       uint64(ev.B),
		Point:   ev.Point,
		Normal:  ev.Normal,
		Depth:   ev.Depth,
		Impulse: ev.Impulse,
	}
}

func (c WorldConfig) dt() float64 { return 1 / float64(c.TickRateHz) }
