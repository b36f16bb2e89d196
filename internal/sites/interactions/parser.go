package interactions

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"

	"pillscan/internal/extractor"
)

const (
	MsgNoSection   = "No 'Drug and food interactions' section found on the page."
	MsgNoWrapper   = "No interactions wrapper found."
	MsgNoInstances = "No drug-food interaction instances found."

	sectionPhrase = "drug and food interactions"
	disclaimer    = "Switch to professional"
)

// Selectors for the interaction-check result page.
const (
	selHeading   = "h2"
	selWrapper   = "div.interactions-reference-wrapper"
	selReference = "div.interactions-reference"
	selHeader    = "div.interactions-reference-header"
)

// Interaction is one drug-food interaction block.
type Interaction struct {
	Title       string `json:"title,omitempty"`
	AppliesTo   string `json:"applies_to,omitempty"`
	Description string `json:"description,omitempty"`
}

// Report is the parsed interaction section. Either Message is set and
// Interactions is empty, or the reverse.
type Report struct {
	Message      string
	Interactions []Interaction
}

// Label returns the key for the i-th interaction, counting from zero.
func Label(i int) string {
	return Ordinal(i+1) + " interaction"
}

// MarshalJSON renders {"message": ...} or an object keyed "1st interaction",
// "2nd interaction", ... in order.
func (r Report) MarshalJSON() ([]byte, error) {
	if r.Message != "" || len(r.Interactions) == 0 {
		return json.Marshal(struct {
			Message string `json:"message"`
		}{r.Message})
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, in := range r.Interactions {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(Label(i))
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ParseReport extracts the drug and food interactions section from an
// interaction-check page. A missing section yields a Report with a Message,
// not an error.
func ParseReport(r io.Reader) (Report, error) {
	doc, err := extractor.Parse(r)
	if err != nil {
		return Report{}, err
	}

	fold := cases.Fold()
	heading := doc.Find(selHeading).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(fold.String(s.Text()), sectionPhrase)
	}).First()
	if heading.Length() == 0 {
		return Report{Message: MsgNoSection}, nil
	}

	wrapper := heading.NextAllFiltered(selWrapper).First()
	if wrapper.Length() == 0 {
		return Report{Message: MsgNoWrapper}, nil
	}

	blocks := wrapper.Find(selReference)
	if blocks.Length() == 0 {
		return Report{Message: MsgNoInstances}, nil
	}

	report := Report{Interactions: make([]Interaction, 0, blocks.Length())}
	blocks.Each(func(_ int, block *goquery.Selection) {
		report.Interactions = append(report.Interactions, parseBlock(block))
	})
	return report, nil
}

func parseBlock(block *goquery.Selection) Interaction {
	var in Interaction

	header := block.Find(selHeader).First()
	if header.Length() > 0 {
		if h3 := header.Find("h3").First(); h3.Length() > 0 {
			in.Title = extractor.Flatten(h3, " ")
		}
		if p := header.Find("p").First(); p.Length() > 0 {
			in.AppliesTo = extractor.Flatten(p, "")
		}
	}
	headerParas := header.Find("p")

	var parts []string
	block.ChildrenFiltered("p").Each(func(_ int, p *goquery.Selection) {
		if strings.Contains(p.Text(), disclaimer) {
			return
		}
		if headerParas.Length() > 0 && headerParas.IsSelection(p) {
			return
		}
		parts = append(parts, extractor.Flatten(p, ""))
	})
	in.Description = strings.Join(parts, " ")
	return in
}
