package pill

import "strings"

// NotAvailable marks a field the prediction did not provide.
const NotAvailable = "N/A"

// Features is what the model reports about a pill.
type Features struct {
	Imprint string `json:"imprint"`
	Color   string `json:"color"`
	Shape   string `json:"shape"`
}

// ParseFeatures splits prediction text positionally on commas: imprint,
// color, shape. Each token is trimmed; missing tokens become NotAvailable and
// tokens past the third are ignored. There is no escaping, so a comma inside
// a field shifts the following fields.
func ParseFeatures(text string) Features {
	tokens := strings.Split(text, ",")
	for i := range tokens {
		tokens[i] = strings.TrimSpace(tokens[i])
	}

	at := func(i int) string {
		if i < len(tokens) {
			return tokens[i]
		}
		return NotAvailable
	}

	return Features{
		Imprint: at(0),
		Color:   at(1),
		Shape:   at(2),
	}
}
