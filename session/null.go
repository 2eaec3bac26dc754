package session

import "time"

// NullStore is the store abstraction's degenerate case: sessions are
// still minted and signed, but nothing is ever persisted server-side.
// Every Load misses, Save/Destroy/Touch/Cleanup are no-ops, and Dispose
// releases nothing. Hosts that want stateless signed identifiers
// without server-side storage configure this instead of a MemoryStore.
type NullStore struct{}

var _ Store = NullStore{}

func (NullStore) Load(string) (Data, bool)        { return nil, false }
func (NullStore) Save(string, Data, time.Duration) {}
func (NullStore) Destroy(string)                   {}
func (NullStore) Touch(string, time.Duration)      {}
func (NullStore) Cleanup()                         {}
func (NullStore) Dispose()                         {}
