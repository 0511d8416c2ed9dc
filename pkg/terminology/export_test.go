package terminology

// InFlight returns the number of publisher and value set pairs with pending requests.
func (r *Resolver) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}
