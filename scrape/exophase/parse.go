package exophase

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/questlog/achievements/internal/errs"
	"github.com/questlog/achievements/models"
)

// parseAchievements extracts the achievement list items from an Exophase
// page. Pages use different list classes per platform family (achievement,
// trophy, challenge); all three are read.
func parseAchievements(html string) ([]models.Achievement, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errs.NewParseError("", err.Error())
	}

	lists := doc.Find(achievementsSelector)
	if lists.Length() == 0 {
		return nil, nil
	}

	var items []models.Achievement
	lists.Find("li").Each(func(_ int, li *goquery.Selection) {
		percent := parsePercent(li.AttrOr("data-average", ""))

		name := strings.TrimSpace(li.Find("a").First().Text())
		if name == "" {
			return
		}

		a := models.Achievement{
			Name:        name,
			Description: strings.TrimSpace(li.Find("div.award-description p").First().Text()),
			URLUnlocked: li.Find("img").First().AttrOr("src", ""),
			IsHidden:    strings.Contains(li.AttrOr("class", ""), "secret"),
			Percent:     percent,
			GamerScore:  models.CalcGamerScore(percent),
		}
		items = append(items, a)
	})
	return items, nil
}

// parsePercent reads the data-average attribute, which uses either comma
// or point as the decimal separator depending on page locale.
func parsePercent(s string) float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
