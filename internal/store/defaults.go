package store

import "github.com/thatsimonsguy/grow-controller/internal/model"

// Default is the configuration used when no settings file can be read:
// two air zones, one light, two water beds sharing the pump, tank and arm,
// and the aux hub.
func Default() []model.ZoneConfig {
	air := model.AirSettings{
		TempFanLow:  25,
		TempFanHigh: 30,
		TempWarning: 32,
		TempHigh:    35,
		FanRPMAlarm: 300,
	}
	light := model.LightSettings{
		LuxLowYellow: 2000,
		LuxLowRed:    500,
		LampOn:       model.TimeOfDay{Hour: 6},
		LampOff:      model.TimeOfDay{Hour: 22},
	}
	water := func(x, y int32) *model.WaterSettings {
		return &model.WaterSettings{
			MoistLowRed:        20,
			MoistLowYellow:     35,
			MoistHighYellow:    75,
			MoistHighRed:       90,
			MoistureLimitWater: 40,
			PumpID:             1,
			TankID:             1,
			PumpTime:           5,
			SettlingTime:       600,
			Position:           model.ArmTarget{ArmID: 1, X: x, Y: y},
		}
	}
	air1, air2 := air, air

	return []model.ZoneConfig{
		{Kind: model.KindAir, ID: 1, Air: &air1},
		{Kind: model.KindAir, ID: 2, Air: &air2},
		{Kind: model.KindLight, ID: 1, Light: &light},
		{Kind: model.KindWater, ID: 1, Water: water(84, 3872)},
		{Kind: model.KindWater, ID: 2, Water: water(1700, 3872)},
		{Kind: model.KindTank, ID: 1},
		{Kind: model.KindPump, ID: 1, Pump: &model.PumpSettings{RunForSecs: 5, RestSecs: 30}},
		{Kind: model.KindArm, ID: 1},
		{Kind: model.KindAux, ID: 1},
	}
}
