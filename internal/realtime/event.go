package realtime

import (
	"github.com/ajaykrishnavemula/Campus-Pass-sub001/internal/models"
)

// Event is a single live push frame as written to the wire.
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Targets selects the audience of a broadcast. The three dimensions are
// unioned; a session matching more than one still receives the event
// exactly once.
type Targets struct {
	Users   []string
	Roles   []models.UserRole
	Hostels []string
}

// Empty reports whether the target set selects nobody.
func (t Targets) Empty() bool {
	return len(t.Users) == 0 && len(t.Roles) == 0 && len(t.Hostels) == 0
}
