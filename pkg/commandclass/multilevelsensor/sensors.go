package multilevelsensor

// Scale describes one unit a sensor type can report in.
type Scale struct {
	Index uint8
	Label string
	Unit  string
}

// SensorType describes a sensor type and its scales.
type SensorType struct {
	ID     uint8
	Label  string
	Scales []Scale
}

// Scale returns the scale with the given index.
func (s SensorType) Scale(index uint8) (Scale, bool) {
	for _, sc := range s.Scales {
		if sc.Index == index {
			return sc, true
		}
	}
	return Scale{}, false
}

// Sensor type ids.
const (
	AirTemperature      uint8 = 0x01
	GeneralPurpose      uint8 = 0x02
	Illuminance         uint8 = 0x03
	Power               uint8 = 0x04
	Humidity            uint8 = 0x05
	Velocity            uint8 = 0x06
	AtmosphericPressure uint8 = 0x08
	Voltage             uint8 = 0x0F
	Current             uint8 = 0x10
	CO2Level            uint8 = 0x11
	WaterTemperature    uint8 = 0x17
	SoilTemperature     uint8 = 0x18
	Ultraviolet         uint8 = 0x1B
)

var temperatureScales = []Scale{{0, "Celsius", "°C"}, {1, "Fahrenheit", "°F"}}

var sensorTypes = map[uint8]SensorType{
	AirTemperature:      {AirTemperature, "Air temperature", temperatureScales},
	GeneralPurpose:      {GeneralPurpose, "General purpose", []Scale{{0, "Percentage value", "%"}, {1, "Dimensionless value", ""}}},
	Illuminance:         {Illuminance, "Illuminance", []Scale{{0, "Percentage value", "%"}, {1, "Lux", "Lux"}}},
	Power:               {Power, "Power", []Scale{{0, "Watt", "W"}, {1, "Btu/h", "Btu/h"}}},
	Humidity:            {Humidity, "Humidity", []Scale{{0, "Percentage value", "%"}, {1, "Absolute humidity", "g/m³"}}},
	Velocity:            {Velocity, "Velocity", []Scale{{0, "m/s", "m/s"}, {1, "Mph", "Mph"}}},
	AtmosphericPressure: {AtmosphericPressure, "Atmospheric pressure", []Scale{{0, "Kilopascal", "kPa"}, {1, "Inches of Mercury", "inHg"}}},
	Voltage:             {Voltage, "Voltage", []Scale{{0, "Volt", "V"}, {1, "Millivolt", "mV"}}},
	Current:             {Current, "Current", []Scale{{0, "Ampere", "A"}, {1, "Milliampere", "mA"}}},
	CO2Level:            {CO2Level, "Carbon dioxide (CO₂) level", []Scale{{0, "Parts/million", "ppm"}}},
	WaterTemperature:    {WaterTemperature, "Water temperature", temperatureScales},
	SoilTemperature:     {SoilTemperature, "Soil temperature", temperatureScales},
	Ultraviolet:         {Ultraviolet, "Ultraviolet", []Scale{{0, "UV index", ""}}},
}

// LookupSensorType returns the definition of a sensor type.
func LookupSensorType(id uint8) (SensorType, bool) {
	t, ok := sensorTypes[id]
	return t, ok
}
