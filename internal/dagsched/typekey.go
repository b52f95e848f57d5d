package dagsched

import (
	"reflect"
	"sync"
)

var (
	typeKeyMu   sync.Mutex
	typeKeys    = map[reflect.Type]ResourceKey{}
	nextTypeKey = ResourceKey(labelKeySpace + 1)
)

// TypeKey returns a stable ResourceKey for T: the same T always yields the
// same key, distinct Ts always yield distinct keys, for the lifetime of the
// process. A new key is assigned once per distinct type and memoized; every
// Read[T]()/Write[T]() call after the first is a reflect.TypeOf plus a map
// lookup under a mutex.
func TypeKey[T any]() ResourceKey {
	t := reflect.TypeOf((*T)(nil)).Elem()

	typeKeyMu.Lock()
	defer typeKeyMu.Unlock()

	if k, ok := typeKeys[t]; ok {
		return k
	}
	k := nextTypeKey
	nextTypeKey++
	typeKeys[t] = k
	return k
}

// TypeName returns the registered type's name for introspection/debug
// logging only; never consulted by hazard logic.
func TypeName(key ResourceKey) (string, bool) {
	typeKeyMu.Lock()
	defer typeKeyMu.Unlock()
	for t, k := range typeKeys {
		if k == key {
			return t.String(), true
		}
	}
	return "", false
}
