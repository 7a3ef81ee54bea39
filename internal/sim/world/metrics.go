package world

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Entities int `json:"entities"`
	Blocks   int `json:"blocks"`
	Clients  int `json:"clients"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS   float64 `json:"step_ms"`
	Contacts int     `json:"contacts"`

	CollisionsTotal uint64 `json:"collisions_total"`
	DestroyedTotal  uint64 `json:"destroyed_blocks_total"`
	CommandsTotal   uint64 `json:"commands_total"`
	RejectsTotal    uint64 `json:"rejects_total"`
}

type QueueDepths struct {
	Inbox int `json:"inbox"`
	Join  int `json:"join"`
	Leave int `json:"leave"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}

func (w *World) storeMetrics(nextTick uint64, stepMS float64, contacts int) {
	w.metrics.Store(WorldMetrics{
		Tick:     nextTick,
		Entities: len(w.ids),
		Blocks:   w.BlockCount(),
		Clients:  len(w.clients),
		QueueDepths: QueueDepths{
			Inbox: len(w.inbox),
			Join:  len(w.join),
			Leave: len(w.leave),
		},
		StepMS:          stepMS,
		Contacts:        contacts,
		CollisionsTotal: w.collisionsTotal,
		DestroyedTotal:  w.destroyedTotal,
		CommandsTotal:   w.commandsTotal,
		RejectsTotal:    w.rejectsTotal,
	})
}
