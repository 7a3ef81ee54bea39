package physics

// System runs one physics tick: integrate, then resolve collisions.
type System struct {
	Integrator *Integrator
	Resolver   *Resolver
}

func NewSystem(cellSize float64, sink EventSink) *System {
	return &System{
		Integrator: NewIntegrator(),
		Resolver:   NewResolver(cellSize, sink),
	}
}

// Update advances reg by dt and returns the number of contacts resolved.
func (s *System) Update(reg Registry, dt float64) int {
	s.Integrator.Update(reg, dt)
	return s.Resolver.Resolve(reg)
}
