package main

import (
	"testing"

	"github.com/jmoiron/sqlx"
)

func TestRoleByIDUnknownIsUnimplementedStub(t *testing.T) {
	c := defaultCatalog()
	info := c.RoleByID("shapeshifter")
	if info.Implemented {
		t.Error("unknown role must load as unimplemented")
	}
	if info.HasNightAction {
		t.Error("unknown role must not get a night turn")
	}
	if info.Team != TeamNone {
		t.Errorf("unknown role must not count toward a faction, got %s", info.Team)
	}
}

func TestAllImplementedRolesExcludesModerator(t *testing.T) {
	for _, info := range defaultCatalog().AllImplementedRoles() {
		if info.ID == RoleModerator {
			t.Fatal("moderator must not be selectable")
		}
		if !info.Implemented {
			t.Fatalf("role %s is not implemented but was listed", info.ID)
		}
	}
}

func TestDeclarationIndexStable(t *testing.T) {
	c := defaultCatalog()
	if c.declarationIndex(RoleModerator) != 0 {
		t.Error("moderator should be first in declaration order")
	}
	if c.declarationIndex(RoleVillager) != 1 {
		t.Error("villager should be second in declaration order")
	}
	if c.declarationIndex("shapeshifter") != len(seedRoles) {
		t.Error("unknown roles should sort last")
	}
}

func TestLoadRoleCatalogFromDB(t *testing.T) {
	db, err := sqlx.Connect("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()

	if err := initDB(db); err != nil {
		t.Fatalf("initDB: %v", err)
	}
	// Seeding twice must be a no-op.
	if err := initDB(db); err != nil {
		t.Fatalf("second initDB: %v", err)
	}

	catalog, err := LoadRoleCatalog(db)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(catalog.order) != len(seedRoles) {
		t.Fatalf("expected %d roles, got %d", len(seedRoles), len(catalog.order))
	}
	for i, seed := range seedRoles {
		if catalog.order[i] != seed.ID {
			t.Errorf("position %d: expected %s, got %s", i, seed.ID, catalog.order[i])
		}
		loaded := catalog.RoleByID(seed.ID)
		if loaded.Team != seed.Team || loaded.TurnOrder != seed.TurnOrder || loaded.HasNightAction != seed.HasNightAction {
			t.Errorf("role %s did not round trip through the database", seed.ID)
		}
	}
}
