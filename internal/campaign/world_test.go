package campaign

import (
	"testing"

	"github.com/user/chronicler/internal/types"
)

func TestUpsertEntities_CaseInsensitiveLastWriteWins(t *testing.T) {
	world := types.NewWorldState()

	upsertEntities(world.NPCs, []types.Entity{
		{Name: "Eldrin", Description: "an elven sage"},
	})
	upsertEntities(world.NPCs, []types.Entity{
		{Name: "ELDRIN", Description: "a disgraced elven sage", Tags: []string{"hostile"}},
	})

	if len(world.NPCs) != 1 {
		t.Fatalf("name collision must update in place, have %d entries", len(world.NPCs))
	}
	e, ok := FindEntity(world, "eldrin")
	if !ok {
		t.Fatal("entity not found by lowercase name")
	}
	if e.Description != "a disgraced elven sage" {
		t.Errorf("last write must win, got %q", e.Description)
	}
	if e.Name != "ELDRIN" {
		t.Errorf("stored entity keeps incoming casing, got %q", e.Name)
	}
}

func TestUpsertEntities_SkipsBlankNames(t *testing.T) {
	world := types.NewWorldState()
	upsertEntities(world.Items, []types.Entity{
		{Name: "   ", Description: "nameless"},
		{Name: "  Sunblade ", Description: "a glowing sword"},
	})
	if len(world.Items) != 1 {
		t.Fatalf("blank names must be skipped, have %d entries", len(world.Items))
	}
	if e := world.Items["sunblade"]; e.Name != "Sunblade" {
		t.Errorf("name should be trimmed, got %q", e.Name)
	}
}

func TestCloneWorld_NoAliasing(t *testing.T) {
	world := types.NewWorldState()
	upsertEntities(world.NPCs, []types.Entity{
		{Name: "Eldrin", Description: "a sage", Tags: []string{"ally"}},
	})

	clone := cloneWorld(world)
	clone.NPCs["eldrin"] = types.Entity{Name: "Eldrin", Description: "mutated"}
	if world.NPCs["eldrin"].Description != "a sage" {
		t.Error("clone map must not alias the original")
	}

	clone2 := cloneWorld(world)
	clone2.NPCs["eldrin"].Tags[0] = "enemy"
	if world.NPCs["eldrin"].Tags[0] != "ally" {
		t.Error("clone tags must not alias the original")
	}
}

func TestSortedEntities(t *testing.T) {
	world := types.NewWorldState()
	upsertEntities(world.Locations, []types.Entity{
		{Name: "Silverpine"},
		{Name: "Ashford"},
		{Name: "Mirefen"},
	})

	sorted := SortedEntities(world.Locations)
	want := []string{"Ashford", "Mirefen", "Silverpine"}
	for i, e := range sorted {
		if e.Name != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], e.Name)
		}
	}
}
