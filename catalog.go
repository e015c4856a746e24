package main

import (
	"log"

	"github.com/jmoiron/sqlx"
)

// RoleID identifies a role in the closed role set. Unknown ids are tolerated
// everywhere: they load as unimplemented entries that never get a night turn
// and never count toward a win condition.
type RoleID string

const (
	RoleModerator    RoleID = "moderator"
	RoleVillager     RoleID = "villager"
	RoleWerewolf     RoleID = "werewolf"
	RoleWarden       RoleID = "warden"
	RoleMason        RoleID = "mason"
	RoleSeer         RoleID = "seer"
	RoleRobber       RoleID = "robber"
	RoleTroublemaker RoleID = "troublemaker"
	RoleDrunk        RoleID = "drunk"
	RoleInsomniac    RoleID = "insomniac"
	RoleBodyguard    RoleID = "bodyguard"
	RoleHunter       RoleID = "hunter"
	RoleTanner       RoleID = "tanner"
	RoleSurvivor     RoleID = "survivor"
)

// Team is the faction a role belongs to for win evaluation.
type Team string

const (
	TeamNone     Team = ""
	TeamVillager Team = "villager"
	TeamWerewolf Team = "werewolf"
	TeamTanner   Team = "tanner"
	TeamSurvivor Team = "survivor"
)

// RoleInfo is the read-only catalog entry for one role.
type RoleInfo struct {
	ID             RoleID `db:"id"`
	Name           string `db:"name"`
	Description    string `db:"description"`
	Team           Team   `db:"team"`
	HasNightAction bool   `db:"has_night_action"`
	TurnOrder      int    `db:"turn_order"`
	Implemented    bool   `db:"implemented"`
}

// seedRoles is the built-in role set, in declaration order. Declaration order
// is the tie-break when two roles share a turn order.
var seedRoles = []RoleInfo{
	{ID: RoleModerator, Name: "Moderator", Description: "Runs the game. Never dealt a card.", Team: TeamNone, Implemented: true},
	{ID: RoleVillager, Name: "Villager", Description: "No special powers, relies on deduction and discussion.", Team: TeamVillager, Implemented: true},
	{ID: RoleWerewolf, Name: "Werewolf", Description: "Learns the other werewolves and votes to kill a villager each night.", Team: TeamWerewolf, HasNightAction: true, TurnOrder: 2, Implemented: true},
	{ID: RoleWarden, Name: "Warden", Description: "Locks up one player each night, blocking their night action.", Team: TeamVillager, HasNightAction: true, TurnOrder: 3, Implemented: true},
	{ID: RoleMason, Name: "Mason", Description: "Knows the other masons, providing confirmed villagers.", Team: TeamVillager, HasNightAction: true, TurnOrder: 4, Implemented: true},
	{ID: RoleSeer, Name: "Seer", Description: "Looks at one player's role, or at two of the center cards.", Team: TeamVillager, HasNightAction: true, TurnOrder: 5, Implemented: true},
	{ID: RoleRobber, Name: "Robber", Description: "Swaps roles with another player and looks at the new role.", Team: TeamVillager, HasNightAction: true, TurnOrder: 6, Implemented: true},
	{ID: RoleTroublemaker, Name: "Troublemaker", Description: "Swaps the roles of two other players.", Team: TeamVillager, HasNightAction: true, TurnOrder: 7, Implemented: true},
	{ID: RoleDrunk, Name: "Drunk", Description: "Swaps own role with a center card without looking at it.", Team: TeamVillager, HasNightAction: true, TurnOrder: 8, Implemented: true},
	{ID: RoleInsomniac, Name: "Insomniac", Description: "Looks at their own role at the end of the night.", Team: TeamVillager, HasNightAction: true, TurnOrder: 9, Implemented: true},
	{ID: RoleBodyguard, Name: "Bodyguard", Description: "Protects one player from being killed each night.", Team: TeamVillager, HasNightAction: true, TurnOrder: 10, Implemented: true},
	{ID: RoleHunter, Name: "Hunter", Description: "When eliminated, immediately kills the player they had marked.", Team: TeamVillager, Implemented: true},
	{ID: RoleTanner, Name: "Tanner", Description: "Wins alone by getting killed.", Team: TeamTanner, Implemented: true},
	{ID: RoleSurvivor, Name: "Survivor", Description: "Wins alone by staying alive through enough votes.", Team: TeamSurvivor, Implemented: true},
}

// RoleCatalog is a read-only role lookup shared by every room.
type RoleCatalog struct {
	byID  map[RoleID]RoleInfo
	order []RoleID // declaration order, for stable turn-order tie-breaks
}

func newCatalog(infos []RoleInfo) *RoleCatalog {
	c := &RoleCatalog{byID: make(map[RoleID]RoleInfo, len(infos))}
	for _, info := range infos {
		if _, dup := c.byID[info.ID]; dup {
			continue
		}
		c.byID[info.ID] = info
		c.order = append(c.order, info.ID)
	}
	return c
}

// defaultCatalog builds the catalog from the built-in seed without a database.
func defaultCatalog() *RoleCatalog {
	return newCatalog(seedRoles)
}

// RoleByID returns the catalog entry for id. Unknown ids come back as an
// unimplemented stub so callers can skip them uniformly.
func (c *RoleCatalog) RoleByID(id RoleID) RoleInfo {
	if info, ok := c.byID[id]; ok {
		return info
	}
	return RoleInfo{ID: id, Name: string(id), Team: TeamNone, Implemented: false}
}

// AllImplementedRoles returns implemented, dealable roles in declaration order.
// The moderator role is excluded: it is never part of a room's selection.
func (c *RoleCatalog) AllImplementedRoles() []RoleInfo {
	var roles []RoleInfo
	for _, id := range c.order {
		info := c.byID[id]
		if info.Implemented && info.ID != RoleModerator {
			roles = append(roles, info)
		}
	}
	return roles
}

// declarationIndex returns the position of id in catalog declaration order.
// Unknown ids sort last.
func (c *RoleCatalog) declarationIndex(id RoleID) int {
	for i, rid := range c.order {
		if rid == id {
			return i
		}
	}
	return len(c.order)
}

func initDB(db *sqlx.DB) error {
	schema := `
	PRAGMA journal_mode=WAL;

	CREATE TABLE IF NOT EXISTS role (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL,
		team TEXT NOT NULL,
		has_night_action INTEGER NOT NULL DEFAULT 0,
		turn_order INTEGER NOT NULL DEFAULT 0,
		implemented INTEGER NOT NULL DEFAULT 1,
		seq INTEGER NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		log.Printf("initDB error: %v", err)
		return err
	}

	for i, r := range seedRoles {
		_, err := db.Exec(`
			INSERT OR IGNORE INTO role (id, name, description, team, has_night_action, turn_order, implemented, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.Name, r.Description, r.Team, r.HasNightAction, r.TurnOrder, r.Implemented, i)
		if err != nil {
			log.Printf("initDB seed role %s: %v", r.ID, err)
			return err
		}
	}

	log.Printf("Database initialized successfully")
	return nil
}

// LoadRoleCatalog reads the role table into an immutable catalog. Row order
// (seq) preserves declaration order so tie-breaks stay stable across loads.
func LoadRoleCatalog(db *sqlx.DB) (*RoleCatalog, error) {
	var infos []RoleInfo
	err := db.Select(&infos, `
		SELECT id, name, description, team, has_night_action, turn_order, implemented
		FROM role
		ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	return newCatalog(infos), nil
}
