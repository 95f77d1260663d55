package sched

// expiryEntry is one (callback, user data) registration.
type expiryEntry struct {
	fn   ExpiryFunc
	data any
}

// callbackRegistry associates an optional expiration callback with each
// thread. Registration replaces any prior pair; mutation happens inside the
// scheduler's critical section. Callbacks fire only from the slice-expiration
// path, never on yield, block, or preemption by a more urgent thread.
type callbackRegistry struct {
	entries map[ThreadID]expiryEntry
}

func newCallbackRegistry() *callbackRegistry {
	return &callbackRegistry{entries: make(map[ThreadID]expiryEntry)}
}

// register installs fn for id, replacing any prior registration. A nil fn
// clears it.
func (r *callbackRegistry) register(id ThreadID, fn ExpiryFunc, data any) {
	if fn == nil {
		delete(r.entries, id)
		return
	}
	r.entries[id] = expiryEntry{fn: fn, data: data}
}

func (r *callbackRegistry) unregister(id ThreadID) {
	delete(r.entries, id)
}

// lookup returns id's registration, if any. The scheduler reads the entry
// under its lock and invokes the callback outside it, so a callback may call
// lifecycle operations on its own thread without deadlocking.
func (r *callbackRegistry) lookup(id ThreadID) (ExpiryFunc, any, bool) {
	e, ok := r.entries[id]
	return e.fn, e.data, ok
}
