package localize

import "gonum.org/v1/gonum/stat/distuv"

// NormPdf evaluates the normal density with mean mu and standard deviation
// sigma at x. sigma must be positive.
func NormPdf(x, mu, sigma float64) float64 {
	return distuv.Normal{Mu: mu, Sigma: sigma}.Prob(x)
}

// StdNormPdf evaluates the standard normal density (mu 0, sigma 1) at x
func StdNormPdf(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}
