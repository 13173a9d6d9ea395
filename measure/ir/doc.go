// Package ir measures the room acoustic parameters of traced filters.
//
// The metrics follow ISO 3382 and are derived from the Schroeder backward
// integral of the squared response:
//
//   - RT60: reverberation time, from the -5 to -35 dB slope (T30) or the
//     -5 to -25 dB slope (T20)
//   - EDT: early decay time, from the 0 to -10 dB slope
//   - C80: clarity, early-to-late energy ratio at 80 ms
//   - D50: definition, early energy fraction at 50 ms
//   - Center time: temporal energy centroid
//
// Analysis starts at the peak tap, which for a traced filter is the direct
// path unless it is occluded.
//
//	a := ir.NewAnalyzer(48000)
//	reports, err := a.AnalyzeSet(set)
package ir
