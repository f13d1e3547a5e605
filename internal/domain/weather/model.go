package weather

import "time"

// Reading is a normalized weather observation. Wind values are km/h,
// visibility is km, pressure is hPa. Gust is never below sustained speed.
type Reading struct {
	Time          time.Time `json:"time"`
	WindSpeedKMH  float64   `json:"windSpeed"`
	WindGustKMH   float64   `json:"windGust"`
	WindDirection float64   `json:"windDirection"`
	TemperatureC  float64   `json:"temperature"`
	Humidity      float64   `json:"humidity"`
	PressureHPA   float64   `json:"pressure"`
	VisibilityKM  float64   `json:"visibility"`
}

// ForecastPoint is a future step of the hourly forecast window.
type ForecastPoint struct {
	Time          time.Time `json:"time"`
	WindSpeedKMH  float64   `json:"windSpeed"`
	WindGustKMH   float64   `json:"windGust"`
	WindDirection float64   `json:"windDirection"`
	TemperatureC  float64   `json:"temperature"`
}

// Snapshot bundles a current reading with its forecast window.
type Snapshot struct {
	Current   Reading         `json:"current"`
	Forecast  []ForecastPoint `json:"forecast"`
	Provider  string          `json:"provider"`
	FetchedAt time.Time       `json:"fetchedAt"`
	FromCache bool            `json:"-"`
}

// MaxWind returns the larger of sustained speed and gust for a point.
func (p ForecastPoint) MaxWind() float64 {
	if p.WindGustKMH > p.WindSpeedKMH {
		return p.WindGustKMH
	}
	return p.WindSpeedKMH
}

// Sanitize enforces reading invariants: non-negative wind, gust >= speed,
// humidity clamped into [0, 100].
func Sanitize(r Reading) Reading {
	if r.WindSpeedKMH < 0 {
		r.WindSpeedKMH = 0
	}
	if r.WindGustKMH < r.WindSpeedKMH {
		r.WindGustKMH = r.WindSpeedKMH
	}
	if r.Humidity < 0 {
		r.Humidity = 0
	}
	if r.Humidity > 100 {
		r.Humidity = 100
	}
	if r.VisibilityKM < 0 {
		r.VisibilityKM = 0
	}
	return r
}

// SanitizePoint applies the same invariants to a forecast step.
func SanitizePoint(p ForecastPoint) ForecastPoint {
	if p.WindSpeedKMH < 0 {
		p.WindSpeedKMH = 0
	}
	if p.WindGustKMH < p.WindSpeedKMH {
		p.WindGustKMH = p.WindSpeedKMH
	}
	return p
}

// MetersPerSecondToKMH converts provider wind values reported in m/s.
func MetersPerSecondToKMH(v float64) float64 {
	return v * 3.6
}

// MetersToKM converts provider visibility values reported in meters.
func MetersToKM(v float64) float64 {
	return v / 1000
}
