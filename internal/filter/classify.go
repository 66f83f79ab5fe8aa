package filter

import "strings"

// BusinessContext is the coarse business area an URL belongs to.
type BusinessContext struct {
	Feature  string `json:"feature"`
	Priority string `json:"priority"`
}

var businessRoutes = []struct {
	match string
	ctx   BusinessContext
}{
	{"/auth", BusinessContext{Feature: "authentication", Priority: "critical"}},
	{"/checkout", BusinessContext{Feature: "checkout", Priority: "critical"}},
	{"/payment", BusinessContext{Feature: "payment", Priority: "critical"}},
	{"/search", BusinessContext{Feature: "search", Priority: "high"}},
	{"/profile", BusinessContext{Feature: "profile", Priority: "medium"}},
	{"/products", BusinessContext{Feature: "catalog", Priority: "medium"}},
}

// ClassifyBusinessContext maps an URL to the business area it serves.
// Unknown URLs fall into the low priority "general" bucket.
func ClassifyBusinessContext(rawURL string) BusinessContext {
	lower := strings.ToLower(rawURL)
	for _, r := range businessRoutes {
		if strings.Contains(lower, r.match) {
			return r.ctx
		}
	}
	return BusinessContext{Feature: "general", Priority: "low"}
}

// Element describes the target of a user interaction.
type Element struct {
	Tag     string   `json:"tag"`
	Type    string   `json:"type,omitempty"`
	Classes []string `json:"classes,omitempty"`
	Tracked bool     `json:"tracked,omitempty"` // explicit opt-in marker
}

// ShouldTrackInteraction reports whether an interaction on el carries
// business meaning: buttons, links, forms, submit inputs, or elements
// explicitly opted in.
func ShouldTrackInteraction(el Element) bool {
	switch strings.ToUpper(el.Tag) {
	case "BUTTON", "A", "FORM":
		return true
	case "INPUT":
		if strings.EqualFold(el.Type, "submit") {
			return true
		}
	}
	if el.Tracked {
		return true
	}
	for _, c := range el.Classes {
		if c == "track-interaction" {
			return true
		}
	}
	return false
}
