package domain

import (
	"time"

	"github.com/guregu/null"
)

// HardwareType identifies the weather station family that produced a sample.
// The numeric values are stable and appear in persisted buffer files.
type HardwareType int

const (
	HardwareGeneric    HardwareType = 0
	HardwareFineOffset HardwareType = 1
	HardwareDavis      HardwareType = 2
)

func (h HardwareType) String() string {
	switch h {
	case HardwareFineOffset:
		return "fine_offset"
	case HardwareDavis:
		return "davis"
	default:
		return "generic"
	}
}

// ParseHardwareType maps a config/CLI name to a HardwareType.
func ParseHardwareType(s string) (HardwareType, bool) {
	switch s {
	case "generic", "":
		return HardwareGeneric, true
	case "fine_offset", "fineoffset", "wh1080":
		return HardwareFineOffset, true
	case "davis", "vantage_pro2":
		return HardwareDavis, true
	}
	return HardwareGeneric, false
}

// Sample is the canonical unit of live weather data in LiveFlow. It is passed
// by value; aggregators build new samples rather than mutating their input.
type Sample struct {
	Timestamp           time.Time    `json:"ts"`
	HardwareType        HardwareType `json:"hw_type"`
	IndoorDataAvailable bool         `json:"indoor_data_available"`

	Temperature         float64 `json:"temperature"`
	IndoorTemperature   float64 `json:"indoor_temperature"`
	ApparentTemperature float64 `json:"apparent_temperature"`
	WindChill           float64 `json:"wind_chill"`
	DewPoint            float64 `json:"dew_point"`
	Humidity            float64 `json:"humidity"`
	IndoorHumidity      float64 `json:"indoor_humidity"`
	Pressure            float64 `json:"pressure"`
	WindSpeed           float64 `json:"wind_speed"`
	GustWindSpeed       float64 `json:"gust_wind_speed"`
	WindDirection       float64 `json:"wind_direction"`

	// Davis is only meaningful when HardwareType == HardwareDavis.
	Davis DavisData `json:"davis"`

	// Synthetic marks samples generated by the repeater rather than received
	// from the station. It is never persisted.
	Synthetic bool `json:"synthetic,omitempty"`
}

// DavisData carries the Vantage Pro2 specific fields of a sample.
type DavisData struct {
	StormRain             float64   `json:"storm_rain"`
	RainRate              float64   `json:"rain_rate"`
	StormStartDate        time.Time `json:"storm_start_date"`
	StormDateValid        bool      `json:"storm_date_valid"`
	BarometerTrend        int       `json:"barometer_trend"`
	ForecastIcon          int       `json:"forecast_icon"`
	ForecastRule          int       `json:"forecast_rule"`
	TxBatteryStatus       int       `json:"tx_battery_status"`
	ConsoleBatteryVoltage float64   `json:"console_battery_voltage"`
	UVIndex               float64   `json:"uv_index"`
	SolarRadiation        float64   `json:"solar_radiation"`

	Extra ExtraSensors `json:"extra"`
}

// ExtraSensors holds the optional add-on sensor channels. Each channel is
// absent (null) unless the station reports it.
type ExtraSensors struct {
	SoilMoisture     [4]null.Float `json:"soil_moisture"`
	SoilTemperature  [4]null.Float `json:"soil_temperature"`
	LeafWetness      [2]null.Float `json:"leaf_wetness"`
	LeafTemperature  [2]null.Float `json:"leaf_temperature"`
	ExtraHumidity    [2]null.Float `json:"extra_humidity"`
	ExtraTemperature [3]null.Float `json:"extra_temperature"`
}

// ExtraSensorCount is the number of nullable channels in ExtraSensors.
const ExtraSensorCount = 4 + 4 + 2 + 2 + 2 + 3

// Channels returns pointers to every extra sensor channel in a fixed order.
// The order is part of the buffer file format.
func (e *ExtraSensors) Channels() []*null.Float {
	out := make([]*null.Float, 0, ExtraSensorCount)
	for i := range e.SoilMoisture {
		out = append(out, &e.SoilMoisture[i])
	}
	for i := range e.SoilTemperature {
		out = append(out, &e.SoilTemperature[i])
	}
	for i := range e.LeafWetness {
		out = append(out, &e.LeafWetness[i])
	}
	for i := range e.LeafTemperature {
		out = append(out, &e.LeafTemperature[i])
	}
	for i := range e.ExtraHumidity {
		out = append(out, &e.ExtraHumidity[i])
	}
	for i := range e.ExtraTemperature {
		out = append(out, &e.ExtraTemperature[i])
	}
	return out
}

// IsDavis reports whether the Davis block of s may be read.
func (s Sample) IsDavis() bool {
	return s.HardwareType == HardwareDavis
}
