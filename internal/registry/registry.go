// Package registry holds the catalog of business domains, features, journeys
// and custom metrics that telemetry is attributed to.
//
// The catalog is loaded once at startup and never changes afterwards:
//
//	authentication/                 ← domain (priority, SLA, error budget)
//	├── login/                      ← feature (endpoints)
//	│   ├── user_login_flow         ← journey (ordered steps)
//	│   └── login_attempts          ← custom metric
//	ecommerce/
//	└── checkout/
//	    ├── purchase_flow
//	    └── purchase_value
//
// Lookups never fail hard. A miss is reported through the boolean result and
// callers decide whether to log and carry on.
package registry

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Errors for catalog validation.
var (
	ErrInvalidName    = errors.New("invalid name: must be alphanumeric with dots, hyphens or underscores")
	ErrDuplicateName  = errors.New("duplicate name")
	ErrInvalidCatalog = errors.New("invalid catalog")
)

// namePattern validates domain, feature, journey, step and metric names.
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// Registry is an immutable, validated catalog of domains.
//
// Pointers returned by lookups reference the registry's own copy and must be
// treated as read-only.
type Registry struct {
	domains []Domain
	byName  map[string]int
}

// New validates domains and returns a registry holding a private copy.
func New(domains []Domain) (*Registry, error) {
	if len(domains) == 0 {
		return nil, fmt.Errorf("%w: at least one domain is required", ErrInvalidCatalog)
	}

	r := &Registry{
		domains: make([]Domain, len(domains)),
		byName:  make(map[string]int, len(domains)),
	}

	for i := range domains {
		d := cloneDomain(domains[i])
		path := fmt.Sprintf("domains[%d]", i)
		if err := validateDomain(path, &d); err != nil {
			return nil, err
		}
		if _, dup := r.byName[d.Name]; dup {
			return nil, fmt.Errorf("%s: %w: domain %q", path, ErrDuplicateName, d.Name)
		}
		r.domains[i] = d
		r.byName[d.Name] = i
	}

	return r, nil
}

// ValidateName checks a catalog name.
func ValidateName(name string) error {
	if name == "" {
		return ErrInvalidName
	}
	if len(name) > 128 {
		return fmt.Errorf("%w: name too long (max 128)", ErrInvalidName)
	}
	if !namePattern.MatchString(name) {
		return ErrInvalidName
	}
	return nil
}

// Domains returns domain names in declaration order.
func (r *Registry) Domains() []string {
	names := make([]string, len(r.domains))
	for i := range r.domains {
		names[i] = r.domains[i].Name
	}
	return names
}

// FindDomain returns the domain with the given name.
func (r *Registry) FindDomain(name string) (*Domain, bool) {
	i, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return &r.domains[i], true
}

// FindFeature returns a feature by domain and feature name.
func (r *Registry) FindFeature(domain, feature string) (*Feature, bool) {
	d, ok := r.FindDomain(domain)
	if !ok {
		return nil, false
	}
	return d.FindFeature(feature)
}

// ResolveEndpoint returns the first domain, in declaration order, with a
// feature serving path.
func (r *Registry) ResolveEndpoint(path string) (*Domain, *Feature, bool) {
	for i := range r.domains {
		if f, ok := r.domains[i].FeatureForEndpoint(path); ok {
			return &r.domains[i], f, true
		}
	}
	return nil, nil, false
}

// FindFeature returns the named feature of d.
func (d *Domain) FindFeature(name string) (*Feature, bool) {
	for i := range d.Features {
		if d.Features[i].Name == name {
			return &d.Features[i], true
		}
	}
	return nil, false
}

// FeatureForJourney returns the feature declaring the named journey.
func (d *Domain) FeatureForJourney(name string) (*Feature, *Journey, bool) {
	for i := range d.Features {
		if j, ok := d.Features[i].FindJourney(name); ok {
			return &d.Features[i], j, true
		}
	}
	return nil, nil, false
}

// FeatureForMetric returns the feature declaring the named custom metric.
func (d *Domain) FeatureForMetric(name string) (*Feature, *CustomMetric, bool) {
	for i := range d.Features {
		if m, ok := d.Features[i].FindMetric(name); ok {
			return &d.Features[i], m, true
		}
	}
	return nil, nil, false
}

// FeatureForEndpoint returns the first feature listing an endpoint that
// prefixes the given path.
func (d *Domain) FeatureForEndpoint(path string) (*Feature, bool) {
	for i := range d.Features {
		for _, ep := range d.Features[i].Endpoints {
			if strings.HasPrefix(path, ep) {
				return &d.Features[i], true
			}
		}
	}
	return nil, false
}

// FindMetric returns the named custom metric of f.
func (f *Feature) FindMetric(name string) (*CustomMetric, bool) {
	for i := range f.Metrics {
		if f.Metrics[i].Name == name {
			return &f.Metrics[i], true
		}
	}
	return nil, false
}

// FindJourney returns the named journey of f.
func (f *Feature) FindJourney(name string) (*Journey, bool) {
	for i := range f.Journeys {
		if f.Journeys[i].Name == name {
			return &f.Journeys[i], true
		}
	}
	return nil, false
}

// FindStep returns the named step of j.
func (j *Journey) FindStep(name string) (*Step, bool) {
	for i := range j.Steps {
		if j.Steps[i].Name == name {
			return &j.Steps[i], true
		}
	}
	return nil, false
}

func validateDomain(path string, d *Domain) error {
	if err := ValidateName(d.Name); err != nil {
		return fmt.Errorf("%s.name: %w", path, err)
	}
	if !d.Priority.Valid() {
		return fmt.Errorf("%s.priority: %w: unknown priority %q", path, ErrInvalidCatalog, d.Priority)
	}
	if d.SLATargetMS <= 0 {
		return fmt.Errorf("%s.sla_target_ms: %w: must be positive, got %d", path, ErrInvalidCatalog, d.SLATargetMS)
	}
	if d.ErrorThreshold < 0 || d.ErrorThreshold > 100 {
		return fmt.Errorf("%s.error_threshold: %w: must be between 0 and 100, got %g", path, ErrInvalidCatalog, d.ErrorThreshold)
	}

	seen := make(map[string]bool, len(d.Features))
	for i := range d.Features {
		f := &d.Features[i]
		fpath := fmt.Sprintf("%s.features[%d]", path, i)
		if f.Domain == "" {
			f.Domain = d.Name
		}
		if f.Domain != d.Name {
			return fmt.Errorf("%s.domain: %w: feature declares domain %q inside %q", fpath, ErrInvalidCatalog, f.Domain, d.Name)
		}
		if err := validateFeature(fpath, f); err != nil {
			return err
		}
		if seen[f.Name] {
			return fmt.Errorf("%s: %w: feature %q", fpath, ErrDuplicateName, f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}

func validateFeature(path string, f *Feature) error {
	if err := ValidateName(f.Name); err != nil {
		return fmt.Errorf("%s.name: %w", path, err)
	}

	journeys := make(map[string]bool, len(f.Journeys))
	for i := range f.Journeys {
		j := &f.Journeys[i]
		jpath := fmt.Sprintf("%s.journeys[%d]", path, i)
		if err := ValidateName(j.Name); err != nil {
			return fmt.Errorf("%s.name: %w", jpath, err)
		}
		if journeys[j.Name] {
			return fmt.Errorf("%s: %w: journey %q", jpath, ErrDuplicateName, j.Name)
		}
		journeys[j.Name] = true

		steps := make(map[string]bool, len(j.Steps))
		for k := range j.Steps {
			s := &j.Steps[k]
			spath := fmt.Sprintf("%s.steps[%d]", jpath, k)
			if err := ValidateName(s.Name); err != nil {
				return fmt.Errorf("%s.name: %w", spath, err)
			}
			if s.ExpectedDurationMS < 0 {
				return fmt.Errorf("%s.expected_duration_ms: %w: must not be negative", spath, ErrInvalidCatalog)
			}
			if steps[s.Name] {
				return fmt.Errorf("%s: %w: step %q", spath, ErrDuplicateName, s.Name)
			}
			steps[s.Name] = true
		}
	}

	metrics := make(map[string]bool, len(f.Metrics))
	for i := range f.Metrics {
		m := &f.Metrics[i]
		mpath := fmt.Sprintf("%s.metrics[%d]", path, i)
		if err := ValidateName(m.Name); err != nil {
			return fmt.Errorf("%s.name: %w", mpath, err)
		}
		if !m.Kind.Valid() {
			return fmt.Errorf("%s.kind: %w: unknown metric kind %q", mpath, ErrInvalidCatalog, m.Kind)
		}
		if !m.BusinessImpact.Valid() {
			return fmt.Errorf("%s.business_impact: %w: unknown impact %q", mpath, ErrInvalidCatalog, m.BusinessImpact)
		}
		if metrics[m.Name] {
			return fmt.Errorf("%s: %w: metric %q", mpath, ErrDuplicateName, m.Name)
		}
		metrics[m.Name] = true
	}
	return nil
}

func cloneDomain(d Domain) Domain {
	out := d
	out.Features = make([]Feature, len(d.Features))
	for i, f := range d.Features {
		nf := f
		nf.Endpoints = append([]string(nil), f.Endpoints...)
		nf.Journeys = make([]Journey, len(f.Journeys))
		for k, j := range f.Journeys {
			nj := j
			nj.Steps = append([]Step(nil), j.Steps...)
			nf.Journeys[k] = nj
		}
		nf.Metrics = make([]CustomMetric, len(f.Metrics))
		for k, m := range f.Metrics {
			nm := m
			nm.Labels = append([]string(nil), m.Labels...)
			nf.Metrics[k] = nm
		}
		out.Features[i] = nf
	}
	return out
}
