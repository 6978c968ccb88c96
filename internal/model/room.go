package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Mode selects the input affordances a host is offered.
type Mode string

const (
	ModeManual  Mode = "manual"
	ModeTombola Mode = "tombola"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeManual || m == ModeTombola
}

// Room is the single persisted game document. Its JSON form is the document
// schema shared with web clients; Version and UpdatedAt are storage-only.
type Room struct {
	ID           string  `gorm:"primaryKey;size:64" json:"id"`
	Code         string  `gorm:"uniqueIndex;size:16;not null" json:"code"`
	HostID       string  `gorm:"size:64;not null" json:"hostId"`
	CreatedAt    int64   `gorm:"autoCreateTime:milli;not null" json:"createdAt"`
	MaxNumber    int     `gorm:"not null" json:"maxNumber"`
	DrawnNumbers Numbers `gorm:"type:text;not null" json:"drawnNumbers"`
	CurrentMode  Mode    `gorm:"size:16;not null" json:"currentMode"`

	Version   int64     `gorm:"not null" json:"-"`
	UpdatedAt time.Time `gorm:"index" json:"-"`
}

// Clone returns a deep copy of the room.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	c := *r
	c.DrawnNumbers = r.DrawnNumbers.Clone()
	return &c
}

// Last returns the most recently drawn number.
func (r *Room) Last() (int, bool) {
	if len(r.DrawnNumbers) == 0 {
		return 0, false
	}
	return r.DrawnNumbers[len(r.DrawnNumbers)-1], true
}

// Previous returns the number drawn before Last.
func (r *Room) Previous() (int, bool) {
	if len(r.DrawnNumbers) < 2 {
		return 0, false
	}
	return r.DrawnNumbers[len(r.DrawnNumbers)-2], true
}

// RoomUpdate is a partial update of a room. Nil fields are left untouched.
type RoomUpdate struct {
	MaxNumber    *int
	CurrentMode  *Mode
	DrawnNumbers *Numbers
}

// Empty reports whether the update changes nothing.
func (u RoomUpdate) Empty() bool {
	return u.MaxNumber == nil && u.CurrentMode == nil && u.DrawnNumbers == nil
}

// ApplyTo writes the set fields of u into r.
func (u RoomUpdate) ApplyTo(r *Room) {
	if u.MaxNumber != nil {
		r.MaxNumber = *u.MaxNumber
	}
	if u.CurrentMode != nil {
		r.CurrentMode = *u.CurrentMode
	}
	if u.DrawnNumbers != nil {
		r.DrawnNumbers = u.DrawnNumbers.Clone()
	}
}

// Columns returns the column assignments for a SQL update.
func (u RoomUpdate) Columns() map[string]any {
	cols := make(map[string]any, 3)
	if u.MaxNumber != nil {
		cols["max_number"] = *u.MaxNumber
	}
	if u.CurrentMode != nil {
		cols["current_mode"] = *u.CurrentMode
	}
	if u.DrawnNumbers != nil {
		cols["drawn_numbers"] = u.DrawnNumbers.Clone()
	}
	return cols
}

// Snapshot is the full state of a room delivered to a watcher.
// Deleted snapshots carry no room and are terminal.
type Snapshot struct {
	Room    *Room
	Deleted bool
}

// Numbers is an ordered list of drawn numbers, stored as a JSON array.
type Numbers []int

// Clone returns a copy that never aliases n and is never nil.
func (n Numbers) Clone() Numbers {
	c := make(Numbers, len(n))
	copy(c, n)
	return c
}

// Contains reports whether v was drawn.
func (n Numbers) Contains(v int) bool {
	return n.Index(v) >= 0
}

// Index returns the position of v, or -1.
func (n Numbers) Index(v int) int {
	for i, x := range n {
		if x == v {
			return i
		}
	}
	return -1
}

// MarshalJSON encodes a nil list as [] so documents never carry null.
func (n Numbers) MarshalJSON() ([]byte, error) {
	if n == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]int(n))
}

// GormDataType tells gorm which column type to use.
func (Numbers) GormDataType() string {
	return "text"
}

// Value implements driver.Valuer.
func (n Numbers) Value() (driver.Value, error) {
	b, err := n.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (n *Numbers) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*n = Numbers{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("numbers: unsupported scan type %T", src)
	}
	var out []int
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("numbers: %w", err)
	}
	if out == nil {
		out = []int{}
	}
	*n = out
	return nil
}
