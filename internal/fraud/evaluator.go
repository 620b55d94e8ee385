package fraud

// Rule point values. Rules are independent and additive; the maximum
// possible score is 100 with all four firing.
const (
	pointsHighAmount     = 30
	pointsUnusualCountry = 25
	pointsUnusualTime    = 15
	pointsHighFrequency  = 30

	// largeAmountMultiplier marks a recent transaction as "large" for
	// rule 4 when its amount exceeds this multiple of the running mean.
	largeAmountMultiplier = 1.5
	largeRecentMinimum    = 2

	// Classification thresholds applied to the summed score.
	rejectThreshold = 70
	flagThreshold   = 40
)

// Assessment is the result of evaluating a single transaction.
type Assessment struct {
	Score   int
	Factors []string
	Status  Status
}

// Evaluate scores a transaction against the user's profile and recent
// transaction history. Pure computation: no I/O, no side effects,
// deterministic given identical inputs.
//
// recent must contain the user's past transactions whose timestamp falls
// within the profile's frequency window; the caller fetches them so the
// evaluator never blocks.
func Evaluate(tx *Transaction, profile *UserProfile, recent []*Transaction) Assessment {
	score := 0
	factors := []string{}

	if tx.Amount > profile.HighAmountThreshold {
		score += pointsHighAmount
		factors = append(factors, FactorHighAmount)
	}

	// Rules 2 and 3 are cold-start-safe: an empty baseline means there is
	// no "usual" behavior to violate yet, so they never fire.
	if len(profile.UsualCountries) > 0 && !profile.HasCountry(tx.Country) {
		score += pointsUnusualCountry
		factors = append(factors, FactorUnusualCountry)
	}

	if len(profile.UsualHours) > 0 && !profile.HasHour(tx.Timestamp.Hour()) {
		score += pointsUnusualTime
		factors = append(factors, FactorUnusualTime)
	}

	if len(recent) >= profile.Frequency.Count && countLarge(recent, profile.AverageAmount) >= largeRecentMinimum {
		score += pointsHighFrequency
		factors = append(factors, FactorHighFrequency)
	}

	return Assessment{
		Score:   score,
		Factors: factors,
		Status:  classify(score),
	}
}

// countLarge counts recent transactions whose amount exceeds 1.5x the
// user's running mean.
func countLarge(recent []*Transaction, average float64) int {
	n := 0
	for _, tx := range recent {
		if tx.Amount > largeAmountMultiplier*average {
			n++
		}
	}
	return n
}

// classify maps a summed score to a final status. Thresholds are strict
// and non-overlapping: 70+ rejected, 40-69 flagged, below 40 completed.
func classify(score int) Status {
	switch {
	case score >= rejectThreshold:
		return StatusRejected
	case score >= flagThreshold:
		return StatusFlagged
	default:
		return StatusCompleted
	}
}
