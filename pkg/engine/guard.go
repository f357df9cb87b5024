package engine

// Guard is the compilation-scoped set of singleton keys already declared.
// Entries are never removed. A Guard is owned by exactly one compilation
// pass and is not safe for concurrent use.
type Guard struct {
	seen  map[string]struct{}
	order []string
}

// NewGuard returns an empty guard.
func NewGuard() *Guard {
	return &Guard{seen: make(map[string]struct{})}
}

// Seen reports whether key was marked.
func (g *Guard) Seen(key string) bool {
	_, ok := g.seen[key]
	return ok
}

// Mark records key and reports whether it was new.
func (g *Guard) Mark(key string) bool {
	if g.Seen(key) {
		return false
	}
	g.seen[key] = struct{}{}
	g.order = append(g.order, key)
	return true
}

// Len returns the number of marked keys.
func (g *Guard) Len() int {
	return len(g.order)
}

// Keys returns marked keys in marking order.
func (g *Guard) Keys() []string {
	return append([]string(nil), g.order...)
}
