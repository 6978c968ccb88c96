package api

import "bingo-room-backend/internal/model"

// roomView is the room document plus the numbers players see highlighted.
type roomView struct {
	*model.Room
	LastNumber     *int `json:"lastNumber"`
	PreviousNumber *int `json:"previousNumber"`
}

func viewOf(r *model.Room) *roomView {
	if r == nil {
		return nil
	}
	v := &roomView{Room: r}
	if n, ok := r.Last(); ok {
		v.LastNumber = &n
	}
	if n, ok := r.Previous(); ok {
		v.PreviousNumber = &n
	}
	return v
}
