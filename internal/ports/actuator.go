package ports

// Actuator is the local hardware safety output (relay cutoff or equivalent).
// Apply is called once per safety cycle with the composite unsafe verdict;
// implementations must be idempotent and fast.
type Actuator interface {
	Apply(tripped bool) error
}
