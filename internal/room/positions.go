// internal/room/positions.go
package room

// Position describes one of the four fixed seats around the arena. Clients
// render the cannon at (DefaultX, DefaultY) in normalized screen space and
// use Orientation/Side to mirror the sprite.
type Position struct {
	ID          int     `json:"id"`
	Orientation string  `json:"orientation"`
	Side        string  `json:"side"`
	DefaultX    float64 `json:"defaultX"`
	DefaultY    float64 `json:"defaultY"`
}

var positions = [4]Position{
	{ID: 1, Orientation: "bottom", Side: "left", DefaultX: 0.25, DefaultY: 0.95},
	{ID: 2, Orientation: "bottom", Side: "right", DefaultX: 0.75, DefaultY: 0.95},
	{ID: 3, Orientation: "top", Side: "left", DefaultX: 0.25, DefaultY: 0.05},
	{ID: 4, Orientation: "top", Side: "right", DefaultX: 0.75, DefaultY: 0.05},
}

// PositionFor returns the seat for a 1-based position id. ok is false when
// the id is outside 1..4.
func PositionFor(id int) (Position, bool) {
	if id < 1 || id > len(positions) {
		return Position{}, false
	}
	return positions[id-1], true
}

// Positions returns all four seats in id order.
func Positions() []Position {
	out := make([]Position, len(positions))
	copy(out, positions[:])
	return out
}
