package businessflow

import "github.com/amirphl/Orochi-Mail/models"

// AudienceSummary is the resolved size and quality of a category selection
type AudienceSummary struct {
	RecipientCount int64    `json:"recipient_count"`
	HealthScore    float64  `json:"health_score"`
	Names          []string `json:"names"`
}

// Aggregate resolves selected ids against categories. Unknown ids are ignored
// and duplicate ids count once.
func Aggregate(selectedIDs []string, categories []models.AudienceCategory) AudienceSummary {
	selected := make(map[string]struct{}, len(selectedIDs))
	for _, id := range selectedIDs {
		selected[id] = struct{}{}
	}

	summary := AudienceSummary{Names: []string{}}
	if len(selected) == 0 {
		return summary
	}

	var healthTotal float64
	matched := 0
	seen := make(map[string]struct{}, len(selected))
	for _, category := range categories {
		if _, ok := selected[category.ID]; !ok {
			continue
		}
		if _, dup := seen[category.ID]; dup {
			continue
		}
		seen[category.ID] = struct{}{}

		summary.RecipientCount += category.RecipientCount
		summary.Names = append(summary.Names, category.Name)
		healthTotal += category.HealthTier.Score()
		matched++
	}

	if matched > 0 {
		summary.HealthScore = healthTotal / float64(matched)
	}

	return summary
}
