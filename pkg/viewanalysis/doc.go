// Package viewanalysis computes view-visibility metrics for architectural
// and urban analysis.
//
// GenerateRayBunch samples view directions in concentric rings around a
// surface normal. ComputeClearDistances casts those directions from a
// sample point against an obstacle Surface and reports how far the view
// stays unobstructed, capped at a maximum range. Analyzer combines the two
// over many sample points in parallel.
package viewanalysis
