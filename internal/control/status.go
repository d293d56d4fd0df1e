package control

import (
	"RoverLink/internal/actuator"
	"RoverLink/internal/model"
)

// BuildStatus snapshots the rover for one status report.
func BuildStatus(vehicleID string, act actuator.Actuator, state State, batteryMV int) model.VehicleStatus {
	left, right := act.Speeds()
	return model.VehicleStatus{
		VehicleID: vehicleID,
		Motors:    model.MotorSpeeds{Left: left, Right: right},
		BatteryMV: batteryMV,
		Status:    state.String(),
	}
}
