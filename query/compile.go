package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// MaxTake is the largest page size the service accepts. Larger requests are
// rejected at compile time rather than truncated silently.
const MaxTake = 1000

// Query is a structured request against one record type. It is owned by the
// caller for the duration of a single logical call.
type Query struct {
	RecordType string
	Filter     Expr
	Includes   []string
	OrderBy    []SortSpec
	Take       int
	Skip       int
}

// SortSpec names a field to sort by.
type SortSpec struct {
	Field      string
	Descending bool
}

// Params is the compiled wire form of a Query. Warnings carry non-fatal
// compile notes, such as extra sort fields that were dropped.
type Params struct {
	Where    string
	Include  string
	OrderBy  string
	Take     int
	Skip     int
	Warnings []string
}

// CompileError reports an invalid query shape. It signals a caller bug and is
// never retried.
type CompileError struct {
	Reason string
}

func (e *CompileError) Error() string {
	return "query compile: " + e.Reason
}

// Compile renders a Query into wire parameters. Compilation is deterministic:
// the same query always yields the same parameters.
func Compile(q Query) (*Params, error) {
	if err := validateFieldPath(q.RecordType); err != nil {
		return nil, &CompileError{Reason: fmt.Sprintf("invalid record type %q", q.RecordType)}
	}
	if q.Take < 0 || q.Take > MaxTake {
		return nil, &CompileError{Reason: fmt.Sprintf("take %d outside valid range 0..%d", q.Take, MaxTake)}
	}
	if q.Skip < 0 {
		return nil, &CompileError{Reason: fmt.Sprintf("skip %d is negative", q.Skip)}
	}

	p := &Params{
		Take: q.Take,
		Skip: q.Skip,
	}

	if q.Filter != nil {
		var sb strings.Builder
		if err := q.Filter.render(&sb); err != nil {
			return nil, err
		}
		p.Where = sb.String()
	}

	if len(q.Includes) > 0 {
		for _, inc := range q.Includes {
			if err := validateFieldPath(inc); err != nil {
				return nil, &CompileError{Reason: fmt.Sprintf("invalid include %q", inc)}
			}
		}
		p.Include = "[" + strings.Join(q.Includes, ",") + "]"
	}

	if len(q.OrderBy) > 0 {
		first := q.OrderBy[0]
		if err := validateFieldPath(first.Field); err != nil {
			return nil, &CompileError{Reason: fmt.Sprintf("invalid orderBy field %q", first.Field)}
		}
		p.OrderBy = first.Field
		if first.Descending {
			p.OrderBy += " desc"
		}
		// The remote grammar only reliably accepts a single sort field.
		// Extra specs are accepted for forward-compatibility but dropped.
		if len(q.OrderBy) > 1 {
			p.Warnings = append(p.Warnings, fmt.Sprintf("orderBy supports a single field; dropped %d extra sort spec(s)", len(q.OrderBy)-1))
		}
	}

	return p, nil
}

// Values renders the compiled parameters as URL query values.
func (p *Params) Values() url.Values {
	v := url.Values{}
	if p.Where != "" {
		v.Set("where", p.Where)
	}
	if p.Include != "" {
		v.Set("include", p.Include)
	}
	if p.OrderBy != "" {
		v.Set("orderBy", p.OrderBy)
	}
	if p.Take > 0 {
		v.Set("take", strconv.Itoa(p.Take))
	}
	if p.Skip > 0 {
		v.Set("skip", strconv.Itoa(p.Skip))
	}
	return v
}
