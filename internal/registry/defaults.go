package registry

// DefaultDomains returns the built-in catalog used when configuration
// declares no domains.
func DefaultDomains() []Domain {
	return []Domain{
		{
			Name:           "authentication",
			Priority:       PriorityCritical,
			SLATargetMS:    2000,
			ErrorThreshold: 0.1,
			Features: []Feature{
				{
					Name:      "login",
					Domain:    "authentication",
					Endpoints: []string{"/api/auth/login", "/api/auth/verify"},
					Journeys: []Journey{
						{
							Name:               "user_login_flow",
							CriticalPath:       true,
							ConversionTracking: true,
							Steps: []Step{
								{Name: "load_login_page", ExpectedDurationMS: 1000, Required: true},
								{Name: "enter_credentials", Interaction: "form_input", ExpectedDurationMS: 5000, Required: true},
								{Name: "submit_login", Endpoint: "/api/auth/login", ExpectedDurationMS: 2000, Required: true},
								{Name: "redirect_dashboard", ExpectedDurationMS: 1500, Required: true},
							},
						},
					},
					Metrics: []CustomMetric{
						{
							Name:           "login_attempts",
							Kind:           KindCounter,
							Description:    "Number of login attempts",
							Labels:         []string{"success", "failure_reason"},
							BusinessImpact: ImpactEngagement,
						},
						{
							Name:           "login_duration",
							Kind:           KindHistogram,
							Description:    "Time taken to complete login",
							Labels:         []string{"user_segment"},
							BusinessImpact: ImpactEngagement,
						},
					},
				},
			},
		},
		{
			Name:           "ecommerce",
			Priority:       PriorityCritical,
			SLATargetMS:    3000,
			ErrorThreshold: 0.05,
			Features: []Feature{
				{
					Name:      "checkout",
					Domain:    "ecommerce",
					Endpoints: []string{"/api/cart", "/api/checkout", "/api/payment"},
					Journeys: []Journey{
						{
							Name:               "purchase_flow",
							CriticalPath:       true,
							ConversionTracking: true,
							Steps: []Step{
								{Name: "add_to_cart", Endpoint: "/api/cart", ExpectedDurationMS: 1000, Required: true},
								{Name: "view_cart", ExpectedDurationMS: 800, Required: true},
								{Name: "enter_shipping", ExpectedDurationMS: 10000, Required: true},
								{Name: "select_payment", ExpectedDurationMS: 5000, Required: true},
								{Name: "complete_purchase", Endpoint: "/api/checkout", ExpectedDurationMS: 3000, Required: true},
							},
						},
					},
					Metrics: []CustomMetric{
						{
							Name:           "cart_abandonment_rate",
							Kind:           KindGauge,
							Description:    "Percentage of carts abandoned",
							Labels:         []string{"step", "user_segment"},
							BusinessImpact: ImpactRevenue,
						},
						{
							Name:           "purchase_value",
							Kind:           KindHistogram,
							Description:    "Value of completed purchases",
							Labels:         []string{"payment_method", "user_segment"},
							BusinessImpact: ImpactRevenue,
						},
					},
				},
				{
					Name:      "api_health",
					Domain:    "ecommerce",
					Endpoints: []string{"/api/products", "/api/orders"},
					Metrics: []CustomMetric{
						{
							Name:           "network_errors",
							Kind:           KindCounter,
							Description:    "Categorised network failures",
							Labels:         []string{"category", "endpoint", "status"},
							BusinessImpact: ImpactReliability,
						},
						{
							Name:           "schema_validation_errors",
							Kind:           KindCounter,
							Description:    "Payloads that failed schema validation",
							Labels:         []string{"schema", "error_count"},
							BusinessImpact: ImpactReliability,
						},
						{
							Name:           "property_access_errors",
							Kind:           KindCounter,
							Description:    "Failed nested property reads",
							Labels:         []string{"path"},
							BusinessImpact: ImpactReliability,
						},
						{
							Name:           "component_errors",
							Kind:           KindCounter,
							Description:    "Errors raised while rendering components",
							Labels:         []string{"component", "severity"},
							BusinessImpact: ImpactReliability,
						},
					},
				},
			},
		},
		{
			Name:           "content",
			Priority:       PriorityMedium,
			SLATargetMS:    2000,
			ErrorThreshold: 1.0,
			Features: []Feature{
				{
					Name:      "search",
					Domain:    "content",
					Endpoints: []string{"/api/search", "/api/products"},
					Journeys: []Journey{
						{
							Name:               "product_discovery",
							CriticalPath:       false,
							ConversionTracking: true,
							Steps: []Step{
								{Name: "search_query", Endpoint: "/api/search", ExpectedDurationMS: 1500, Required: true},
								{Name: "view_results", ExpectedDurationMS: 800, Required: true},
								{Name: "filter_results", ExpectedDurationMS: 1000, Required: false},
								{Name: "select_product", ExpectedDurationMS: 500, Required: false},
							},
						},
					},
					Metrics: []CustomMetric{
						{
							Name:           "search_success_rate",
							Kind:           KindGauge,
							Description:    "Percentage of searches returning results",
							Labels:         []string{"query_type"},
							BusinessImpact: ImpactEngagement,
						},
					},
				},
			},
		},
	}
}

// Default returns a registry over DefaultDomains.
func Default() *Registry {
	r, err := New(DefaultDomains())
	if err != nil {
		panic("registry: invalid default catalog: " + err.Error())
	}
	return r
}
