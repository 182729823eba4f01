package model

import "errors"

// Core domain types shared by the engine, the stores and the API.

// VehicleType is the closed set of vehicle classes a passage can be recorded for.
type VehicleType string

const (
	VehicleCar        VehicleType = "car"
	VehicleMotorcycle VehicleType = "motorcycle"
	VehicleEmergency  VehicleType = "emergency"
	VehicleTractor    VehicleType = "tractor"
	VehicleDiplomat   VehicleType = "diplomat"
	VehicleMilitary   VehicleType = "military"
	VehicleForeign    VehicleType = "foreign"
	VehicleBus        VehicleType = "bus"
)

var ErrUnknownVehicleType = errors.New("unknown vehicle type")

var vehicleTypes = []VehicleType{
	VehicleCar,
	VehicleMotorcycle,
	VehicleEmergency,
	VehicleTractor,
	VehicleDiplomat,
	VehicleMilitary,
	VehicleForeign,
	VehicleBus,
}

var tollExempt = map[VehicleType]bool{
	VehicleEmergency: true,
	VehicleTractor:   true,
	VehicleDiplomat:  true,
	VehicleMilitary:  true,
	VehicleBus:       true,
}

// VehicleTypes returns every vehicle type in declaration order.
func VehicleTypes() []VehicleType {
	out := make([]VehicleType, len(vehicleTypes))
	copy(out, vehicleTypes)
	return out
}

// ParseVehicleType maps a wire value onto the enum, rejecting anything outside it.
func ParseVehicleType(s string) (VehicleType, error) {
	vt := VehicleType(s)
	if !vt.Valid() {
		return "", ErrUnknownVehicleType
	}
	return vt, nil
}

func (v VehicleType) Valid() bool {
	for _, t := range vehicleTypes {
		if t == v {
			return true
		}
	}
	return false
}

// TollExempt reports whether passages of this class are never charged.
func (v VehicleType) TollExempt() bool { return tollExempt[v] }

// VehicleTypeOption is one entry of the vehicle type metadata listing.
type VehicleTypeOption struct {
	VehicleType VehicleType `json:"vehicleType"`
	TollFree    bool        `json:"tollFree"`
}

// VehicleTypeOptions projects the enum together with its exemption flag.
func VehicleTypeOptions() []VehicleTypeOption {
	out := make([]VehicleTypeOption, 0, len(vehicleTypes))
	for _, t := range vehicleTypes {
		out = append(out, VehicleTypeOption{VehicleType: t, TollFree: t.TollExempt()})
	}
	return out
}

// Passage is one recorded crossing of a toll point. Timestamp is kept exactly as
// submitted (ISO-8601 with offset).
type Passage struct {
	ID          string      `json:"id"`
	VehicleID   string      `json:"vehicleId"`
	VehicleType VehicleType `json:"vehicleType"`
	Timestamp   string      `json:"timestamp"`
}

type PassageInput struct {
	VehicleID   string      `json:"vehicleId"`
	VehicleType VehicleType `json:"vehicleType"`
	Timestamp   string      `json:"timestamp"`
}

// Charge is the computed outcome for one passage.
type Charge struct {
	PassageID  string `json:"passageId"`
	BaseFee    int    `json:"baseFee"`
	ChargedFee int    `json:"chargedFee"`
	DailyTotal int    `json:"dailyTotal"`
}

// PassageView is a passage merged with its charge, as served by the API.
type PassageView struct {
	Passage
	BaseFee    int `json:"baseFee"`
	ChargedFee int `json:"chargedFee"`
	DailyTotal int `json:"dailyTotal"`
}

func NewPassageView(p Passage, c Charge) PassageView {
	return PassageView{Passage: p, BaseFee: c.BaseFee, ChargedFee: c.ChargedFee, DailyTotal: c.DailyTotal}
}

// DailyStatement summarizes one vehicle on one civil day.
type DailyStatement struct {
	VehicleID string        `json:"vehicleId"`
	Date      string        `json:"date"`
	Passages  []PassageView `json:"passages"`
	Total     int           `json:"total"`
}
