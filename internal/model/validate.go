package model

import (
	"fmt"
	"strings"
	"time"
)

// FieldErrors maps an input field to what is wrong with it.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	parts := make([]string, 0, len(fe))
	for _, k := range []string{"vehicleId", "vehicleType", "timestamp"} {
		if msg, ok := fe[k]; ok {
			parts = append(parts, k+": "+msg)
		}
	}
	return strings.Join(parts, "; ")
}

// Normalize trims surrounding whitespace from every field.
func (in PassageInput) Normalize() PassageInput {
	return PassageInput{
		VehicleID:   strings.TrimSpace(in.VehicleID),
		VehicleType: VehicleType(strings.TrimSpace(string(in.VehicleType))),
		Timestamp:   strings.TrimSpace(in.Timestamp),
	}
}

// Validate reports every problem with a normalized input, or nil.
func (in PassageInput) Validate() FieldErrors {
	fe := FieldErrors{}
	if in.VehicleID == "" {
		fe["vehicleId"] = "vehicleId is required"
	}
	if !in.VehicleType.Valid() {
		fe["vehicleType"] = fmt.Sprintf("must be one of %s", joinTypes())
	}
	if _, err := time.Parse(time.RFC3339Nano, in.Timestamp); err != nil {
		fe["timestamp"] = "timestamp must be an ISO-8601 date-time with offset"
	}
	if len(fe) == 0 {
		return nil
	}
	return fe
}

func joinTypes() string {
	s := make([]string, len(vehicleTypes))
	for i, t := range vehicleTypes {
		s[i] = string(t)
	}
	return strings.Join(s, ", ")
}
