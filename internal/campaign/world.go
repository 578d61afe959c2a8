// internal/campaign/world.go
package campaign

import (
	"sort"
	"strings"

	"github.com/user/chronicler/internal/types"
)

// upsertEntities applies last-write-wins upserts keyed by the lowercased
// entity name. Names are unique within a collection case-insensitively;
// the stored Entity keeps the incoming display casing.
func upsertEntities(collection map[string]types.Entity, entities []types.Entity) {
	for _, e := range entities {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			continue
		}
		e.Name = name
		collection[strings.ToLower(name)] = e
	}
}

// SeedWorld bulk-upserts entities during the planning phase (interactive
// answers or imported notes).
func SeedWorld(world *types.WorldState, npcs, locations, items []types.Entity) {
	upsertEntities(world.NPCs, npcs)
	upsertEntities(world.Locations, locations)
	upsertEntities(world.Items, items)
}

// FindEntity looks up a name across all three collections.
func FindEntity(world types.WorldState, name string) (types.Entity, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, collection := range []map[string]types.Entity{world.NPCs, world.Locations, world.Items} {
		if e, ok := collection[key]; ok {
			return e, true
		}
	}
	return types.Entity{}, false
}

// cloneWorld deep-copies a WorldState so snapshots and merge scratch copies
// never alias the canonical maps.
func cloneWorld(world types.WorldState) types.WorldState {
	out := types.NewWorldState()
	for k, v := range world.NPCs {
		out.NPCs[k] = cloneEntity(v)
	}
	for k, v := range world.Locations {
		out.Locations[k] = cloneEntity(v)
	}
	for k, v := range world.Items {
		out.Items[k] = cloneEntity(v)
	}
	return out
}

func cloneEntity(e types.Entity) types.Entity {
	if e.Tags != nil {
		tags := make([]string, len(e.Tags))
		copy(tags, e.Tags)
		e.Tags = tags
	}
	return e
}

// SortedEntities returns a collection's entities ordered by key, for
// stable rendering.
func SortedEntities(collection map[string]types.Entity) []types.Entity {
	keys := make([]string, 0, len(collection))
	for k := range collection {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]types.Entity, 0, len(keys))
	for _, k := range keys {
		out = append(out, collection[k])
	}
	return out
}
