package vm

// VarStore maps script identifiers to numeric values. Each machine owns
// exactly one store; it is created empty on Run and populated by SET and
// DECLARE PARAMETER statements.
type VarStore struct {
	vals map[string]float64
}

// NewVarStore creates an empty variable store.
func NewVarStore() *VarStore {
	return &VarStore{vals: make(map[string]float64)}
}

// Set stores v under name, replacing any previous value.
func (s *VarStore) Set(name string, v float64) {
	s.vals[name] = v
}

// Get returns the value stored under name.
func (s *VarStore) Get(name string) (float64, bool) {
	v, ok := s.vals[name]
	return v, ok
}

// Reset discards all variables.
func (s *VarStore) Reset() {
	s.vals = make(map[string]float64)
}

// Len returns the number of stored variables.
func (s *VarStore) Len() int {
	return len(s.vals)
}
