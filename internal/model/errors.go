package model

import (
	"errors"
	"fmt"
)

var (
	ErrZoneNotFound         = errors.New("zone not found")
	ErrDeviceUnavailable    = errors.New("device unavailable")
	ErrDeviceIO             = errors.New("device io error")
	ErrMissingSensorData    = errors.New("missing sensor data")
	ErrTankEmpty            = errors.New("tank empty")
	ErrPositionNotConfirmed = errors.New("position not confirmed")
	ErrParse                = errors.New("parse error")
	ErrPersistence          = errors.New("persistence error")
)

func ZoneNotFound(kind Kind, id uint8) error {
	return fmt.Errorf("%w: %s %d", ErrZoneNotFound, kind, id)
}

func DeviceUnavailable(kind Kind, id uint8) error {
	return fmt.Errorf("%w: %s %d", ErrDeviceUnavailable, kind, id)
}

// DeviceIO wraps a driver failure. Errors already tagged with a device
// kind are returned unchanged.
func DeviceIO(err error) error {
	if err == nil || errors.Is(err, ErrDeviceIO) || errors.Is(err, ErrDeviceUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrDeviceIO, err)
}

func MissingSensorData(kind Kind, id uint8) error {
	return fmt.Errorf("%w: %s %d", ErrMissingSensorData, kind, id)
}

func TankEmpty(id uint8) error {
	return fmt.Errorf("%w: tank %d", ErrTankEmpty, id)
}

func PositionNotConfirmed(waterID uint8) error {
	return fmt.Errorf("%w: water %d", ErrPositionNotConfirmed, waterID)
}
