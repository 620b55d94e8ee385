package fraud

// Apply folds an evaluated transaction into the user's behavioral profile.
// Steps run in a fixed order: recompute the running mean, increment the
// count, then learn the hour and country if unseen. The learned sets only
// ever grow.
//
// Apply runs unconditionally after every evaluated transaction, including
// rejected ones — the baseline absorbs high-risk behavior too. Callers are
// responsible for exactly-once application per transaction and for holding
// the user's lock while the profile is read, mutated, and written back.
func Apply(profile *UserProfile, tx *Transaction) {
	total := profile.AverageAmount*float64(profile.TransactionCount) + tx.Amount
	profile.AverageAmount = total / float64(profile.TransactionCount+1)
	profile.TransactionCount++

	if hour := tx.Timestamp.Hour(); !profile.HasHour(hour) {
		profile.UsualHours = append(profile.UsualHours, hour)
	}
	if !profile.HasCountry(tx.Country) {
		profile.UsualCountries = append(profile.UsualCountries, tx.Country)
	}
}
