package metadata

import (
	"encoding/json"
	"sort"
)

// Property describes one attribute of a record type.
type Property struct {
	Name     string `json:"Name"`
	Type     string `json:"Type,omitempty"`
	Required bool   `json:"IsRequired,omitempty"`
}

// Relationship describes a reference from one record type to another.
type Relationship struct {
	Name   string `json:"Name"`
	Target string `json:"RelatedEntityType,omitempty"`
	Kind   string `json:"Kind,omitempty"`
}

// Descriptor is the validated description of one record type. The original
// payload is preserved opaquely in Raw; internal logic never relies on it.
type Descriptor struct {
	Name          string
	IsCustom      bool
	Properties    []Property
	Relationships []Relationship
	Raw           json.RawMessage
}

// descriptorPayload is the wire shape of a metadata entry. Unknown fields
// stay in the retained raw bytes.
type descriptorPayload struct {
	Name          string         `json:"Name"`
	Properties    []Property     `json:"Properties"`
	Relationships []Relationship `json:"Relationships"`
}

func (d *Descriptor) UnmarshalJSON(data []byte) error {
	var payload descriptorPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	d.Name = payload.Name
	d.Properties = payload.Properties
	d.Relationships = payload.Relationships
	d.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// Bundle is the combined, best-effort metadata picture. It is usable even
// when Degraded; DegradationReasons records which sources fell short.
type Bundle struct {
	EntityTypes         []Descriptor
	RelationshipsByType map[string][]Relationship
	PropertiesByType    map[string][]Property
	Degraded            bool
	DegradationReasons  []string
}

func newBundle() *Bundle {
	return &Bundle{
		RelationshipsByType: make(map[string][]Relationship),
		PropertiesByType:    make(map[string][]Property),
	}
}

func (b *Bundle) degrade(reason string) {
	b.Degraded = true
	b.DegradationReasons = append(b.DegradationReasons, reason)
}

// addType records a type name if it is not already present.
func (b *Bundle) addType(d Descriptor) {
	if d.Name == "" {
		return
	}
	for i := range b.EntityTypes {
		if b.EntityTypes[i].Name == d.Name {
			return
		}
	}
	b.EntityTypes = append(b.EntityTypes, d)
}

// mergeDetail attaches properties and relationships to a type, creating the
// descriptor when the type is new.
func (b *Bundle) mergeDetail(d Descriptor) {
	b.addType(d)
	for i := range b.EntityTypes {
		if b.EntityTypes[i].Name != d.Name {
			continue
		}
		if len(b.EntityTypes[i].Properties) == 0 {
			b.EntityTypes[i].Properties = d.Properties
		}
		if len(b.EntityTypes[i].Relationships) == 0 {
			b.EntityTypes[i].Relationships = d.Relationships
		}
		if b.EntityTypes[i].Raw == nil {
			b.EntityTypes[i].Raw = d.Raw
		}
		break
	}
	if len(d.Properties) > 0 && len(b.PropertiesByType[d.Name]) == 0 {
		b.PropertiesByType[d.Name] = d.Properties
	}
	if len(d.Relationships) > 0 && len(b.RelationshipsByType[d.Name]) == 0 {
		b.RelationshipsByType[d.Name] = d.Relationships
	}
}

func (b *Bundle) sortTypes() {
	sort.Slice(b.EntityTypes, func(i, j int) bool {
		return b.EntityTypes[i].Name < b.EntityTypes[j].Name
	})
}
