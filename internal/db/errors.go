package db

import "errors"

var (
	// ErrNotFound is returned when the requested document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict is returned when a versioned write lost a race.
	ErrVersionConflict = errors.New("version conflict")
	// ErrOdometerRollback is returned when a reading would decrease the odometer.
	ErrOdometerRollback = errors.New("odometer reading lower than current distance")
	// ErrNilCollection is returned when a store was built without a collection.
	ErrNilCollection = errors.New("mongo collection is nil")
)
