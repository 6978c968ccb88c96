package game

import (
	"fmt"

	"bingo-room-backend/internal/model"
)

// AbsoluteMaxNumber is the largest board any room may have.
const AbsoluteMaxNumber = 150

// Limits bounds the board size a host may pick when reconfiguring.
type Limits struct {
	Min int
	Max int
}

// DefaultLimits matches the range offered by the web client.
var DefaultLimits = Limits{Min: 10, Max: 150}

func checkRange(room *model.Room, n int) error {
	if n < 1 || n > room.MaxNumber {
		return fmt.Errorf("%w: %d is not between 1 and %d", ErrOutOfRange, n, room.MaxNumber)
	}
	return nil
}

// Draw appends n to the drawn numbers.
func Draw(room *model.Room, n int) (model.RoomUpdate, error) {
	if err := checkRange(room, n); err != nil {
		return model.RoomUpdate{}, err
	}
	if room.DrawnNumbers.Contains(n) {
		return model.RoomUpdate{}, fmt.Errorf("%w: %d", ErrAlreadyDrawn, n)
	}
	drawn := append(room.DrawnNumbers.Clone(), n)
	return model.RoomUpdate{DrawnNumbers: &drawn}, nil
}

// Undraw removes n, keeping the order of the other numbers.
func Undraw(room *model.Room, n int) (model.RoomUpdate, error) {
	i := room.DrawnNumbers.Index(n)
	if i < 0 {
		return model.RoomUpdate{}, fmt.Errorf("%w: %d", ErrNotDrawn, n)
	}
	drawn := make(model.Numbers, 0, len(room.DrawnNumbers)-1)
	drawn = append(drawn, room.DrawnNumbers[:i]...)
	drawn = append(drawn, room.DrawnNumbers[i+1:]...)
	return model.RoomUpdate{DrawnNumbers: &drawn}, nil
}

// Toggle undraws n if it was drawn and draws it otherwise. marked reports
// the state of n after the update.
func Toggle(room *model.Room, n int) (upd model.RoomUpdate, marked bool, err error) {
	if err := checkRange(room, n); err != nil {
		return model.RoomUpdate{}, false, err
	}
	if room.DrawnNumbers.Contains(n) {
		upd, err = Undraw(room, n)
		return upd, false, err
	}
	upd, err = Draw(room, n)
	return upd, true, err
}

// Reconfigure changes the board size and mode of a room with nothing drawn.
// Requesting the current values is a no-op.
func Reconfigure(room *model.Room, maxNumber int, mode model.Mode, limits Limits) (model.RoomUpdate, error) {
	if len(room.DrawnNumbers) > 0 {
		return model.RoomUpdate{}, fmt.Errorf("%w: %d numbers drawn, reset first", ErrGameInProgress, len(room.DrawnNumbers))
	}
	if maxNumber < limits.Min || maxNumber > limits.Max {
		return model.RoomUpdate{}, fmt.Errorf("%w: max number must be between %d and %d", ErrInvalidConfig, limits.Min, limits.Max)
	}
	if !mode.Valid() {
		return model.RoomUpdate{}, fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, mode)
	}

	var upd model.RoomUpdate
	if maxNumber != room.MaxNumber {
		upd.MaxNumber = &maxNumber
	}
	if mode != room.CurrentMode {
		upd.CurrentMode = &mode
	}
	return upd, nil
}

// Reset clears the drawn numbers. It returns an empty update when there is
// nothing to clear.
func Reset(room *model.Room) model.RoomUpdate {
	if len(room.DrawnNumbers) == 0 {
		return model.RoomUpdate{}
	}
	drawn := model.Numbers{}
	return model.RoomUpdate{DrawnNumbers: &drawn}
}

// validateNew checks the settings of a room being created.
func validateNew(maxNumber int, mode model.Mode) error {
	if maxNumber < 1 || maxNumber > AbsoluteMaxNumber {
		return fmt.Errorf("%w: max number must be between 1 and %d", ErrInvalidConfig, AbsoluteMaxNumber)
	}
	if !mode.Valid() {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, mode)
	}
	return nil
}
