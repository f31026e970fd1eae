package quiz

// DefaultReviewThreshold is the number of consecutive misses that forces a review.
const DefaultReviewThreshold = 3

// ReviewTrigger counts consecutive misses and fires at a threshold.
type ReviewTrigger struct {
	threshold int
	count     int
}

// NewReviewTrigger returns a trigger firing every threshold consecutive misses.
// A non-positive threshold selects DefaultReviewThreshold.
func NewReviewTrigger(threshold int) *ReviewTrigger {
	if threshold <= 0 {
		threshold = DefaultReviewThreshold
	}
	return &ReviewTrigger{threshold: threshold}
}

// Miss records an incorrect answer and reports whether a review is due.
// The counter resets when it fires.
func (r *ReviewTrigger) Miss() bool {
	r.count++
	if r.count >= r.threshold {
		r.count = 0
		return true
	}
	return false
}

// Hit records a correct answer.
func (r *ReviewTrigger) Hit() {
	r.count = 0
}

// Count returns the current number of consecutive misses.
func (r *ReviewTrigger) Count() int {
	return r.count
}
