package trueach

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/questlog/achievements/internal/errs"
	"github.com/questlog/achievements/models"
)

// parseSearchResults reads the search result table. When the site finds a
// single match it redirects straight to the game page, which has no result
// table; the canonical link identifies the game instead.
func parseSearchResults(html, base, gameName string) ([]models.SearchResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errs.NewParseError("", err.Error())
	}

	table := doc.Find("#oSearchResults")
	if table.Length() == 0 {
		canonical := doc.Find(`link[rel="canonical"]`).AttrOr("href", "")
		if canonical == "" {
			return nil, nil
		}
		return []models.SearchResult{{
			Name:     gameName,
			URL:      canonical,
			ImageURL: doc.Find("div.info img").First().AttrOr("src", ""),
		}}, nil
	}

	var results []models.SearchResult
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() <= 2 {
			return
		}
		// only "game" rows; the table also lists DLC and achievements
		itemType := strings.TrimSpace(cells.Eq(2).Text())
		if !strings.EqualFold(itemType, "game") {
			return
		}

		href := cells.Eq(0).Find("a").First().AttrOr("href", "")
		name := strings.TrimSpace(cells.Eq(1).Find("a").First().Text())
		img := cells.Eq(0).Find("a img").First().AttrOr("src", "")
		if href == "" || name == "" {
			return
		}
		results = append(results, models.SearchResult{
			Name:     name,
			URL:      base + href,
			ImageURL: base + img,
		})
	})
	return results, nil
}

// parseEstimate fills est from the game page's header blocks: the maximum
// score element carries the achievement count, the hourglass link the
// completion estimate range.
func parseEstimate(html string, est *models.EstimateTime) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return
	}

	doc.Find("div.game div.l1 div").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		title := s.AttrOr("title", "")
		if title == "Maximum TrueAchievement" || title == "Maximum TrueSteamAchievement" {
			est.DataCount = parseDigits(s.Text())
			return false
		}
		return true
	})

	doc.Find("div.game div.l2 a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.AttrOr("title", "") != "Estimated time to unlock all achievements" {
			return true
		}
		estimate := strings.TrimSpace(s.Text())
		est.Display = estimate
		est.MinHours, est.MaxHours = parseEstimateRange(estimate)
		return false
	})
}

// parseAchievements reads the achievement panels on a game page. Each panel
// holds the icon, a title link and a description paragraph. Relative icon
// URLs are made absolute against the page URL.
func parseAchievements(html, pageURL string) ([]models.Achievement, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errs.NewParseError(pageURL, err.Error())
	}

	baseURL, _ := url.Parse(pageURL)

	var items []models.Achievement
	doc.Find("ul.ach-panels li").Each(func(_ int, panel *goquery.Selection) {
		name := strings.TrimSpace(panel.Find("a.title").First().Text())
		img := panel.Find("img").First()
		if name == "" {
			name = strings.TrimSpace(img.AttrOr("alt", ""))
		}
		if name == "" {
			return
		}

		src := img.AttrOr("src", "")
		if src != "" {
			src = absolutize(src, baseURL)
		}
		items = append(items, models.Achievement{
			Name:        name,
			APIName:     name,
			Description: strings.TrimSpace(panel.Find("p").First().Text()),
			URLUnlocked: src,
			IsHidden:    panel.HasClass("secret"),
		})
	})
	return items, nil
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// achievement image containers, tried in order before falling back to the
// page's main content areas
var imageSelectors = []string{".achievement", ".achievements", ".achievement-list", "#achievements"}

// DataImages extracts achievement name to image URL pairs from a game
// page. Names come from alt/title attributes, then nearby text, then the
// image filename. Relative URLs are made absolute against the page URL and
// duplicate URLs are dropped.
func (c *Client) DataImages(ctx context.Context, gameURL string) (*models.ImageMap, error) {
	images := models.NewImageMap()
	if gameURL == "" {
		return images, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	html, err := c.fetcher.Fetch(ctx, gameURL, "")
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errs.NewParseError(gameURL, err.Error())
	}

	baseURL, _ := url.Parse(gameURL)

	var imgs []*goquery.Selection
	for _, sel := range imageSelectors {
		doc.Find(sel + " img").Each(func(_ int, s *goquery.Selection) {
			imgs = append(imgs, s)
		})
	}
	if len(imgs) == 0 {
		doc.Find("main img, #main img, .main img, #content img, .content img").Each(func(_ int, s *goquery.Selection) {
			imgs = append(imgs, s)
		})
	}

	seen := map[string]bool{}
	count := 0
	for _, img := range imgs {
		if count >= maxImagesPerPage {
			break
		}

		src := img.AttrOr("src", "")
		if src == "" {
			src = img.AttrOr("data-src", "")
		}
		if src == "" {
			src = img.AttrOr("data-original", "")
		}
		if src == "" {
			continue
		}

		imgURL := absolutize(src, baseURL)
		lowered := strings.ToLower(imgURL)
		if seen[lowered] {
			continue
		}
		seen[lowered] = true

		name := imageName(img, imgURL)
		if name == "" {
			continue
		}

		// suffix duplicated names so distinct images keep distinct keys
		key := name
		for dup := 1; hasKey(images, key); dup++ {
			key = fmt.Sprintf("%s (%d)", name, dup)
		}
		images.Set(key, imgURL)
		count++
	}
	return images, nil
}

func hasKey(m *models.ImageMap, key string) bool {
	_, ok := m.Get(key)
	return ok
}

func absolutize(src string, base *url.URL) string {
	switch {
	case strings.HasPrefix(src, "//"):
		scheme := "https"
		if base != nil {
			scheme = base.Scheme
		}
		return scheme + ":" + src
	case strings.HasPrefix(src, "/"):
		if base != nil {
			return base.Scheme + "://" + base.Host + src
		}
		return src
	case !strings.HasPrefix(strings.ToLower(src), "http") && base != nil:
		ref, err := url.Parse(src)
		if err != nil {
			return src
		}
		return base.ResolveReference(ref).String()
	default:
		return src
	}
}

// imageName picks the best available label for an image: its alt or title
// attribute, the first line of surrounding text, or the filename stem.
func imageName(img *goquery.Selection, imgURL string) string {
	name := img.AttrOr("alt", "")
	if name == "" {
		name = img.AttrOr("title", "")
	}
	if name == "" {
		txt := strings.TrimSpace(img.Parent().Text())
		if txt == "" {
			txt = strings.TrimSpace(img.Parent().Parent().Text())
		}
		if txt != "" {
			lines := strings.FieldsFunc(txt, func(r rune) bool { return r == '\n' || r == '\r' })
			if len(lines) > 0 {
				name = strings.TrimSpace(lines[0])
				if len(name) > maxImageNameLength {
					name = name[:maxImageNameLength]
				}
			}
		}
	}
	if name == "" {
		if u, err := url.Parse(imgURL); err == nil {
			file := path.Base(u.Path)
			name = strings.TrimSuffix(file, path.Ext(file))
		}
	}
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(name), " ")
}
