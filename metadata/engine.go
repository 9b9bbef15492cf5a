// Package metadata assembles a best-effort combined description of the
// instance's record types. Discovery runs as an ordered pipeline of stages,
// each additive over the prior; failures degrade the result instead of
// failing it.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	log "github.com/sirupsen/logrus"
)

// Source provides the remote calls the engine composes, implemented by
// api.Client.
type Source interface {
	ListEntityTypes(ctx context.Context) ([]string, error)
	MetadataDocument(ctx context.Context) ([]byte, error)
	ProbeInvalidType(ctx context.Context) (string, error)
}

// Engine builds metadata bundles. It is stateless; each FetchMetadata call
// runs the full pipeline.
type Engine struct {
	source Source
}

func NewEngine(source Source) *Engine {
	return &Engine{source: source}
}

type stage struct {
	name string
	run  func(ctx context.Context, b *Bundle) error
}

func (e *Engine) stages() []stage {
	return []stage{
		{name: "primary type listing", run: e.primaryTypes},
		{name: "secondary metadata", run: e.secondaryDocument},
		{name: "tertiary error-message probe", run: e.tertiaryProbe},
		{name: "static enhancement", run: e.staticEnhance},
	}
}

// FetchMetadata runs every stage in order and returns the combined bundle.
// It never fails: if every remote stage falls over, the result is the static
// baseline with Degraded set and every failure reason recorded.
func (e *Engine) FetchMetadata(ctx context.Context) *Bundle {
	b := newBundle()

	for _, st := range e.stages() {
		if err := st.run(ctx, b); err != nil {
			b.degrade(err.Error())
			log.WithContext(ctx).WithField("stage", st.name).WithError(err).Warn("metadata stage degraded")
		}
	}

	b.sortTypes()
	return b
}

// primaryTypes records type names from the paginated listing endpoint.
// Cheap and reliable, names only.
func (e *Engine) primaryTypes(ctx context.Context, b *Bundle) error {
	names, err := e.source.ListEntityTypes(ctx)
	if err != nil {
		return fmt.Errorf("primary type listing failed: %w", err)
	}
	for _, name := range names {
		b.addType(Descriptor{Name: name})
	}
	return nil
}

// metaDocument is the wire shape of the detailed metadata endpoint.
type metaDocument struct {
	Items []Descriptor `json:"Items"`
}

// secondaryDocument merges per-type properties and relationships from the
// detailed metadata endpoint. The endpoint is known to return truncated or
// malformed payloads on large instances, so a parse failure gets one bounded
// repair pass before the stage is skipped.
func (e *Engine) secondaryDocument(ctx context.Context, b *Bundle) error {
	raw, err := e.source.MetadataDocument(ctx)
	if err != nil {
		return fmt.Errorf("secondary metadata fetch failed: %w", err)
	}

	doc, repaired, err := parseMetadataDocument(raw)
	if err != nil {
		return fmt.Errorf("secondary metadata parse failed: %w", err)
	}

	for _, d := range doc.Items {
		b.mergeDetail(d)
	}

	if repaired {
		// The payload was salvaged, not served intact; callers should know
		// the detail may be incomplete.
		return fmt.Errorf("secondary metadata required repair")
	}
	return nil
}

func parseMetadataDocument(raw []byte) (doc metaDocument, repaired bool, err error) {
	if err = json.Unmarshal(raw, &doc); err == nil {
		return doc, false, nil
	}

	fixed, repairErr := jsonrepair.JSONRepair(string(raw))
	if repairErr != nil {
		return metaDocument{}, false, err
	}
	if err = json.Unmarshal([]byte(fixed), &doc); err != nil {
		return metaDocument{}, false, err
	}
	return doc, true, nil
}

// typeEnumeration matches the enumerated type list a well-behaved instance
// includes in "unknown type" error messages. The format is not a documented
// contract, so the match is deliberately lenient.
var typeEnumeration = regexp.MustCompile(`(?i)valid\s+(?:entity\s+)?types?\s*(?:are|include)?\s*:?\s*(.+)`)

// tertiaryProbe runs only when the earlier stages produced no type names at
// all. It issues a deliberately invalid request and mines the error message
// for the enumerated list of valid types.
func (e *Engine) tertiaryProbe(ctx context.Context, b *Bundle) error {
	if len(b.EntityTypes) > 0 {
		return nil
	}

	message, err := e.source.ProbeInvalidType(ctx)
	if err != nil {
		return fmt.Errorf("tertiary probe failed: %w", err)
	}

	names := parseTypeEnumeration(message)
	if len(names) == 0 {
		return fmt.Errorf("tertiary probe found no type names in error message")
	}
	for _, name := range names {
		b.addType(Descriptor{Name: name})
	}
	return nil
}

func parseTypeEnumeration(message string) []string {
	m := typeEnumeration.FindStringSubmatch(message)
	if m == nil {
		return nil
	}

	var names []string
	for _, part := range strings.Split(m[1], ",") {
		name := strings.Trim(strings.TrimSpace(part), ".'\"")
		if name != "" && !strings.ContainsAny(name, " \t") {
			names = append(names, name)
		}
	}
	return names
}

// staticEnhance merges baseline descriptors so well-known types are always
// fully described, whatever the earlier stages managed.
func (e *Engine) staticEnhance(ctx context.Context, b *Bundle) error {
	baseline := make(map[string]struct{})
	for _, d := range staticDescriptors() {
		b.mergeDetail(d)
		baseline[d.Name] = struct{}{}
	}

	// Types discovered but absent from the baseline are custom.
	for i := range b.EntityTypes {
		if _, ok := baseline[b.EntityTypes[i].Name]; !ok {
			b.EntityTypes[i].IsCustom = true
		}
	}
	return nil
}
