package stats

import "math"

// InformationCriteria holds the likelihood-based scores of a fitted model.
type InformationCriteria struct {
	AIC    float64
	AICc   float64
	BIC    float64
	LogLik float64
}

// Criterion names accepted by InformationCriteria.Get.
const (
	CriterionAIC  = "aic"
	CriterionAICc = "aicc"
	CriterionBIC  = "bic"
)

// ValidCriterion reports whether name is a known criterion.
func ValidCriterion(name string) bool {
	switch name {
	case CriterionAIC, CriterionAICc, CriterionBIC:
		return true
	}
	return false
}

// Get returns the named criterion. Unknown names fall back to AIC.
func (ic *InformationCriteria) Get(name string) float64 {
	switch name {
	case CriterionAICc:
		return ic.AICc
	case CriterionBIC:
		return ic.BIC
	default:
		return ic.AIC
	}
}

// GaussianLogLik is the log-likelihood of n residuals with sum of squares sse
// under a zero-mean normal with the given variance.
func GaussianLogLik(n int, sse, variance float64) float64 {
	if variance <= 0 {
		return math.Inf(-1)
	}
	nf := float64(n)
	return -nf/2*math.Log(2*math.Pi) - nf/2*math.Log(variance) - sse/(2*variance)
}

// CalculateIC calculates all information criteria.
// logLik is the log-likelihood, nObs is the number of observations,
// nParams is the number of estimated parameters.
func CalculateIC(logLik float64, nObs int, nParams int) *InformationCriteria {
	k := float64(nParams)
	n := float64(nObs)

	aic := -2*logLik + 2*k
	bic := -2*logLik + k*math.Log(n)

	// AICc is undefined when n <= k+1.
	var aicc float64
	if n-k-1 > 0 {
		aicc = aic + 2*k*(k+1)/(n-k-1)
	} else {
		aicc = math.Inf(1)
	}

	return &InformationCriteria{
		AIC:    aic,
		AICc:   aicc,
		BIC:    bic,
		LogLik: logLik,
	}
}
