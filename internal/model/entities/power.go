package entities

// PowerParams are the per-sensor inputs of the power-station planning view.
type PowerParams struct {
	TileAreaMM2      float64 `json:"tile_area_mm2"`       // tile footprint per sensor [mm^2]
	PowerPerSensorMV float64 `json:"power_per_sensor_mv"` // draw per sensor [mV]
}
