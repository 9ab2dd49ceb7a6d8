package loadgen

// NewIDGeneratorAt returns a generator whose next id is next.
func NewIDGeneratorAt(next uint64) *IDGenerator {
	g := &IDGenerator{}
	g.next.Store(next)

	return g
}
