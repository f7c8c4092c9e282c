package fhir

// CapabilityStatement is the /fhir/metadata document.
type CapabilityStatement struct {
	ResourceType string           `json:"resourceType"`
	Status       string           `json:"status"`
	Date         string           `json:"date"`
	Kind         string           `json:"kind"`
	Software     Software         `json:"software"`
	FHIRVersion  string           `json:"fhirVersion"`
	Format       []string         `json:"format"`
	Rest         []CapabilityRest `json:"rest"`
}

type Software struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type CapabilityRest struct {
	Mode     string               `json:"mode"`
	Resource []CapabilityResource `json:"resource"`
}

type CapabilityResource struct {
	Type        string        `json:"type"`
	Interaction []Interaction `json:"interaction"`
}

type Interaction struct {
	Code string `json:"code"`
}

// CapabilityBuilder assembles the server CapabilityStatement from the
// resource types the gateway registers.
type CapabilityBuilder struct {
	software  Software
	resources []CapabilityResource
}

func NewCapabilityBuilder(name, version string) *CapabilityBuilder {
	return &CapabilityBuilder{software: Software{Name: name, Version: version}}
}

// AddResource registers a resource type with the given interaction codes
// (e.g. "read", "search-type", "create", "update").
func (b *CapabilityBuilder) AddResource(typ string, interactions ...string) *CapabilityBuilder {
	res := CapabilityResource{Type: typ}
	for _, code := range interactions {
		res.Interaction = append(res.Interaction, Interaction{Code: code})
	}
	b.resources = append(b.resources, res)
	return b
}

// Build renders the CapabilityStatement with the given generation date.
func (b *CapabilityBuilder) Build(date string) *CapabilityStatement {
	return &CapabilityStatement{
		ResourceType: "CapabilityStatement",
		Status:       "active",
		Date:         date,
		Kind:         "instance",
		Software:     b.software,
		FHIRVersion:  "4.0.1",
		Format:       []string{"json"},
		Rest: []CapabilityRest{
			{Mode: "server", Resource: b.resources},
		},
	}
}
