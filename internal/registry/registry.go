// Package registry defines which entities participate in sync and how
// their local names map to remote collections.
package registry

import "fmt"

// Entity describes one logical record type participating in sync.
type Entity struct {
	Name       string // local collection name
	Collection string // remote collection identifier
	KeyField   string // primary key field, string-typed
	Singleton  bool   // configuration-style entity with a fixed key
}

// The registered entities. Order is not significant; entities sync
// independently.
var entities = []Entity{
	{Name: "orders", Collection: "orders", KeyField: "id"},
	{Name: "products", Collection: "products", KeyField: "id"},
	{Name: "expenses", Collection: "expenses", KeyField: "id"},
	{Name: "inventory", Collection: "inventory", KeyField: "id"},
	{Name: "settings", Collection: "shop_settings", KeyField: "id", Singleton: true},
	{Name: "tracking_numbers", Collection: "tracking_numbers", KeyField: "id"},
	{Name: "order_sources", Collection: "order_sources", KeyField: "id"},
}

// All returns every registered entity.
func All() []Entity {
	out := make([]Entity, len(entities))
	copy(out, entities)
	return out
}

// Lookup finds an entity by its local name.
func Lookup(name string) (Entity, error) {
	for _, e := range entities {
		if e.Name == name {
			return e, nil
		}
	}
	return Entity{}, fmt.Errorf("unknown entity: %q", name)
}

// IsRegistered reports whether an entity participates in sync.
func IsRegistered(name string) bool {
	_, err := Lookup(name)
	return err == nil
}
