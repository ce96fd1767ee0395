package world

import "math"

// Room geometry in canvas units. Walls are 50 units thick; the playing
// field is the interior.
const (
	RoomWidth     = 800.0
	RoomHeight    = 600.0
	WallThickness = 50.0
	InteractRange = 150.0
	chestSize     = 128.0
)

// Vec2 is a 2D point.
type Vec2 struct {
	X, Y float64
}

func (v Vec2) DistanceTo(o Vec2) float64 {
	dx, dy := v.X-o.X, v.Y-o.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// PlayerStart is the spawn position on room entry, clear of the chests.
var PlayerStart = Vec2{X: 400, Y: 200}

// Chest is one of the three question chests in a room.
type Chest struct {
	Number    int // 1..3, chest 1 easiest
	Pos       Vec2
	Completed bool
}

// Portal is the exit on the top wall, active once the room is complete.
type Portal struct {
	X, Y          float64
	Width, Height float64
	Active        bool
}

// ChestOpener is the part of the run state a room reads to sync chest
// completion.
type ChestOpener interface {
	IsChestOpened(room, chest int) bool
}

// Room is one dungeon room: three chests at fixed spots and a portal.
type Room struct {
	Number int
	Chests [3]*Chest
	Portal Portal
}

// Chest layout: bottom left, bottom right, top center. Positions are
// sprite top-left corners; proximity uses centers.
var chestLayout = [3]Vec2{
	{X: 100, Y: 380},
	{X: 570, Y: 380},
	{X: 340, Y: 150},
}

func NewRoom(number int) *Room {
	r := &Room{
		Number: number,
		Portal: Portal{
			X:      RoomWidth/2 - 30,
			Y:      30,
			Width:  60,
			Height: 50,
		},
	}
	for i := range r.Chests {
		r.Chests[i] = &Chest{Number: i + 1, Pos: chestLayout[i]}
	}
	return r
}

func (c *Chest) center() Vec2 {
	return Vec2{X: c.Pos.X + chestSize/2, Y: c.Pos.Y + chestSize/2}
}

// NearbyChest returns the first incomplete chest within interaction
// range of pos, or nil.
func (r *Room) NearbyChest(pos Vec2) *Chest {
	for _, c := range r.Chests {
		if !c.Completed && pos.DistanceTo(c.center()) < InteractRange {
			return c
		}
	}
	return nil
}

// AtPortal reports whether pos stands in the portal doorway. Always
// false while the portal is inactive.
func (r *Room) AtPortal(pos Vec2) bool {
	if !r.Portal.Active {
		return false
	}
	p := r.Portal
	return pos.X > p.X && pos.X < p.X+p.Width && pos.Y < p.Y+p.Height+30
}

// IsComplete reports whether every chest is completed.
func (r *Room) IsComplete() bool {
	for _, c := range r.Chests {
		if !c.Completed {
			return false
		}
	}
	return true
}

// ActivatePortalIfComplete turns the portal on once all chests are
// complete and reports whether it is active.
func (r *Room) ActivatePortalIfComplete() bool {
	if r.IsComplete() {
		r.Portal.Active = true
	}
	return r.Portal.Active
}

// SyncState marks chests completed from a loaded run state, so a
// continued game re-enters the room with earlier progress intact.
func (r *Room) SyncState(st ChestOpener) {
	for _, c := range r.Chests {
		if st.IsChestOpened(r.Number, c.Number) {
			c.Completed = true
		}
	}
	r.ActivatePortalIfComplete()
}

// ClampToWalls keeps a position inside the playing field.
func ClampToWalls(pos Vec2) Vec2 {
	pos.X = math.Max(WallThickness, math.Min(RoomWidth-WallThickness, pos.X))
	pos.Y = math.Max(WallThickness, math.Min(RoomHeight-WallThickness, pos.Y))
	return pos
}
