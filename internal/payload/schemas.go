package payload

import "sort"

// Product is the schema of a catalog product.
func Product() Schema {
	return Schema{Name: "product", Fields: map[string]Field{
		"id":          {Type: TypeNumber, Required: true, Fallback: 0.0},
		"title":       {Type: TypeString, Required: true, Fallback: "Unknown Product"},
		"price":       {Type: TypeNumber, Required: true, Fallback: 0.0},
		"description": {Type: TypeString, Fallback: "No description available"},
		"category":    {Type: TypeString, Fallback: "uncategorized"},
		"image":       {Type: TypeString, Fallback: "/placeholder.jpg"},
		"rating":      {Type: TypeObject, Fallback: map[string]any{"rate": 0.0, "count": 0.0}},
		"stock":       {Type: TypeNumber, Fallback: 0.0},
		"brand":       {Type: TypeString, Fallback: "Generic"},
		"variants":    {Type: TypeObject, Fallback: map[string]any{}},
	}}
}

// User is the schema of a user profile.
func User() Schema {
	return Schema{Name: "user", Fields: map[string]Field{
		"id":           {Type: TypeNumber, Required: true, Fallback: 0.0},
		"email":        {Type: TypeString, Required: true, Fallback: "unknown@example.com"},
		"first_name":   {Type: TypeString, Required: true, Fallback: "Unknown"},
		"last_name":    {Type: TypeString, Required: true, Fallback: "User"},
		"avatar":       {Type: TypeString, Fallback: "/default-avatar.png"},
		"profile":      {Type: TypeObject, Fallback: map[string]any{}},
		"preferences":  {Type: TypeObject, Fallback: map[string]any{}},
		"subscription": {Type: TypeObject, Fallback: map[string]any{"plan": "free"}},
	}}
}

// Order is the schema of a placed order.
func Order() Schema {
	return Schema{Name: "order", Fields: map[string]Field{
		"id":              {Type: TypeString, Required: true, Fallback: "unknown"},
		"status":          {Type: TypeString, Required: true, Fallback: "pending"},
		"total":           {Type: TypeNumber, Required: true, Fallback: 0.0},
		"items":           {Type: TypeArray, Required: true, Fallback: []any{}},
		"shipping":        {Type: TypeObject, Fallback: map[string]any{}},
		"payment_method":  {Type: TypeString, Fallback: "unknown"},
		"tracking_number": {Type: TypeString, Fallback: nil},
	}}
}

var builtin = map[string]func() Schema{
	"product": Product,
	"user":    User,
	"order":   Order,
}

// Lookup returns the built-in schema called name.
func Lookup(name string) (Schema, bool) {
	fn, ok := builtin[name]
	if !ok {
		return Schema{}, false
	}
	return fn(), true
}

// Names lists the built-in schemas in sorted order.
func Names() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
