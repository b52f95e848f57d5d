package dagsched

import "hash/fnv"

// ResourceKey is the opaque integer identifying a logical resource over
// which hazards are tracked. Two categories share this one key space by
// construction: type keys (derived from a stable, process-wide identity
// per Go type) and label keys (a 32-bit string fingerprint with the top
// bit forced set). Type keys are handed out starting at (1<<32)+1 so the two
// spaces can never collide.
type ResourceKey uint64

// NodeIndex is a compact, per-frame node identifier assigned monotonically
// by the DAG Scheduler. Stable only until the next Reset.
type NodeIndex int32

const labelKeySpace = uint64(1) << 32

// typeKeyRegistry is not used: TypeKey (typekey.go) hands out a stable
// integer per distinct Go type and memoizes it in package-level state keyed
// by reflect.Type.
type typeKeyRegistry struct {
	next ResourceKey
}

// LabelKey fingerprints a user-visible label string into the label half of
// the ResourceKey space via FNV-1a (deterministic across runs, unlike a
// map-based or seeded hash, and needs no dependency beyond the standard
// library's hash/fnv).
func LabelKey(label string) ResourceKey {
	h := fnv.New32a()
	_, _ = h.Write([]byte(label))
	fingerprint := h.Sum32() | (1 << 31)
	return ResourceKey(fingerprint)
}

// IsLabelKey reports whether key was derived from LabelKey rather than a
// type registration.
func IsLabelKey(key ResourceKey) bool {
	return uint64(key) < labelKeySpace
}
