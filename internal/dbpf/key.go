package dbpf

import "fmt"

// ResourceKey identifies one resource in a package. Every field is a 32-bit
// name hash.
type ResourceKey struct {
	Type     uint32
	Group    uint32
	Instance uint32
}

// Equal reports whether both keys match on all three fields.
func (k ResourceKey) Equal(o ResourceKey) bool {
	return k == o
}

// Equivalent reports whether both keys address the same resource content:
// type and instance match, group is ignored.
func (k ResourceKey) Equivalent(o ResourceKey) bool {
	return k.Type == o.Type && k.Instance == o.Instance
}

func (k ResourceKey) String() string {
	return fmt.Sprintf("%08x!%08x.%08x", k.Group, k.Instance, k.Type)
}
