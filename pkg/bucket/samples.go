package bucket

// Sample dataset ids. Stable across releases so that consumers can pin
// onboarding flows to them.
const (
	SampleAirSensorID  = "sample-air-sensor"
	SampleCoinbaseID   = "sample-coinbase"
	SampleNOAAID       = "sample-noaa-buoy"
	SampleEarthquakeID = "sample-usgs-quakes"
)

var sampleBuckets = []Bucket{
	{ID: SampleAirSensorID, Type: TypeSample, Name: "Air Sensor Data"},
	{ID: SampleCoinbaseID, Type: TypeSample, Name: "Coinbase bitcoin price"},
	{ID: SampleNOAAID, Type: TypeSample, Name: "NOAA National Buoy Data"},
	{ID: SampleEarthquakeID, Type: TypeSample, Name: "USGS Earthquakes"},
}

// Samples returns the fixed set of demo datasets appended to every scope's
// listing. The returned slice is a copy; callers may reorder it freely.
func Samples() []Bucket {
	out := make([]Bucket, len(sampleBuckets))
	copy(out, sampleBuckets)
	return out
}
