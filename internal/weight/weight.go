// Package weight implements the carrier weight arithmetic used for
// shipping cost lookups: volumetric weight from carton dimensions and
// billable weight as the max of real and volumetric weight.
package weight

// DefaultDivisor is the carrier-standard volumetric divisor in cm³/kg.
const DefaultDivisor = 5000.0

// Volumetric converts carton inner dimensions (cm) into a volumetric
// weight in kg using the provided divisor. A divisor <= 0 falls back to
// DefaultDivisor.
func Volumetric(lengthCm, widthCm, heightCm, divisor float64) float64 {
	if divisor <= 0 {
		divisor = DefaultDivisor
	}
	return (lengthCm * widthCm * heightCm) / divisor
}

// Billable returns the weight a carrier charges for: the greater of the
// real weight and the volumetric weight, both in kg.
func Billable(realKg, volumetricKg float64) float64 {
	if realKg >= volumetricKg {
		return realKg
	}
	return volumetricKg
}
