// Package discovery implements the in-process half of business discovery:
// rating aggregation, filtering, ordering and paging over materialized rows.
package discovery

import "midtown_book/internal/domain"

// Aggregate derives a RatingSummary from a business's review rows.
// Every row counts towards ReviewCount; only approved rows with a rating feed
// the average, the approved count and the histogram.
func Aggregate(reviews []domain.Review) domain.RatingSummary {
	var (
		out   domain.RatingSummary
		sum   int
		rated int
	)
	for _, r := range reviews {
		out.ReviewCount++
		if !r.IsApproved {
			continue
		}
		out.ApprovedCount++
		if r.Rating == nil || *r.Rating < 1 || *r.Rating > 5 {
			continue
		}
		sum += *r.Rating
		rated++
		out.Histogram[*r.Rating-1]++
	}
	if rated > 0 {
		avg := float64(sum) / float64(rated)
		out.Average = &avg
	}
	return out
}
