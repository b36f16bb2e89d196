package imprint

import (
	"io"

	"github.com/PuerkitoBio/goquery"

	"pillscan/internal/extractor"
)

// detailsLinkText is the text of the link each search result carries.
const detailsLinkText = "View details"

// MaxChoices is how many candidates a lookup keeps.
const MaxChoices = 3

// ParseChoices returns the flattened text of the block around each
// "View details" link, in page order, up to MaxChoices.
func ParseChoices(r io.Reader) ([]string, error) {
	doc, err := extractor.Parse(r)
	if err != nil {
		return nil, err
	}

	var choices []string
	doc.Find("a").
		FilterFunction(func(_ int, a *goquery.Selection) bool {
			return a.Text() == detailsLinkText
		}).
		EachWithBreak(func(_ int, a *goquery.Selection) bool {
			container := a.ParentsFiltered("div").First()
			if container.Length() == 0 {
				return true
			}
			choices = append(choices, extractor.Flatten(container, " "))
			return len(choices) < MaxChoices
		})

	return choices, nil
}
