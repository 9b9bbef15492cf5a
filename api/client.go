package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/tracelane/tracelane-go/query"
	"github.com/tracelane/tracelane-go/retry"
)

const (
	apiPrefix = "api/v1"

	// entityTypesPageSize is the page size used when walking the paginated
	// type-listing endpoint.
	entityTypesPageSize = 200
)

// TypeValidator answers whether a record type exists on the connected
// instance. Implemented by typecache.Cache.
type TypeValidator interface {
	IsValid(ctx context.Context, name string) bool
}

// Client issues logical calls against the service: compile, then execute
// under the retry policy. It is safe for concurrent use.
type Client struct {
	transport *Transport
	policy    retry.Policy
	types     TypeValidator
}

// NewClient wraps a transport with a retry policy.
func NewClient(transport *Transport, policy retry.Policy) *Client {
	return &Client{
		transport: transport,
		policy:    policy,
	}
}

// SetTypeValidator attaches a record-type validator. When set, mutating and
// querying calls fail fast on unknown types instead of issuing a request.
func (c *Client) SetTypeValidator(v TypeValidator) {
	c.types = v
}

func (c *Client) validateRecordType(ctx context.Context, recordType string) error {
	if c.types == nil {
		return nil
	}
	if !c.types.IsValid(ctx, recordType) {
		return &ValidationError{RecordType: recordType}
	}
	return nil
}

// collectionPath returns the collection endpoint for a record type, e.g.
// "api/v1/Bugs".
func collectionPath(recordType string) string {
	return apiPrefix + "/" + recordType + "s"
}

// Search executes a compiled query and returns one page of results.
// Compile errors are surfaced immediately and never retried.
func (c *Client) Search(ctx context.Context, q query.Query) (*Page, error) {
	if err := c.validateRecordType(ctx, q.RecordType); err != nil {
		return nil, err
	}

	params, err := query.Compile(q)
	if err != nil {
		return nil, err
	}
	for _, warning := range params.Warnings {
		log.WithContext(ctx).WithField("recordType", q.RecordType).Warn(warning)
	}

	resp, err := retry.Do(ctx, c.policy, func(ctx context.Context) (*Response, error) {
		return c.transport.Do(ctx, Request{
			Method: http.MethodGet,
			Path:   collectionPath(q.RecordType),
			Query:  params.Values(),
		})
	})
	if err != nil {
		return nil, err
	}

	var page Page
	if err := json.Unmarshal(resp.Body, &page); err != nil {
		return nil, fmt.Errorf("decoding %v page: %w", q.RecordType, err)
	}
	return &page, nil
}

// Get fetches a single record by id.
func (c *Client) Get(ctx context.Context, recordType string, id int) (json.RawMessage, error) {
	if err := c.validateRecordType(ctx, recordType); err != nil {
		return nil, err
	}

	resp, err := retry.Do(ctx, c.policy, func(ctx context.Context) (*Response, error) {
		return c.transport.Do(ctx, Request{
			Method: http.MethodGet,
			Path:   collectionPath(recordType) + "/" + strconv.Itoa(id),
		})
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Create posts a new record and returns the created object.
func (c *Client) Create(ctx context.Context, recordType string, body any) (json.RawMessage, error) {
	if err := c.validateRecordType(ctx, recordType); err != nil {
		return nil, err
	}

	resp, err := retry.Do(ctx, c.policy, func(ctx context.Context) (*Response, error) {
		return c.transport.Do(ctx, Request{
			Method: http.MethodPost,
			Path:   collectionPath(recordType),
			Body:   body,
		})
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Update modifies an existing record and returns the updated object.
func (c *Client) Update(ctx context.Context, recordType string, id int, body any) (json.RawMessage, error) {
	if err := c.validateRecordType(ctx, recordType); err != nil {
		return nil, err
	}

	resp, err := retry.Do(ctx, c.policy, func(ctx context.Context) (*Response, error) {
		return c.transport.Do(ctx, Request{
			Method: http.MethodPost,
			Path:   collectionPath(recordType) + "/" + strconv.Itoa(id),
			Body:   body,
		})
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Delete removes a record.
func (c *Client) Delete(ctx context.Context, recordType string, id int) error {
	if err := c.validateRecordType(ctx, recordType); err != nil {
		return err
	}

	_, err := retry.Do(ctx, c.policy, func(ctx context.Context) (*Response, error) {
		return c.transport.Do(ctx, Request{
			Method: http.MethodDelete,
			Path:   collectionPath(recordType) + "/" + strconv.Itoa(id),
		})
	})
	return err
}

// entityTypeItem is one entry from the type-listing endpoint.
type entityTypeItem struct {
	Name string `json:"Name"`
}

// ListEntityTypes walks the paginated type-listing endpoint and returns
// every type name the instance reports. Each page fetch runs under the retry
// policy.
func (c *Client) ListEntityTypes(ctx context.Context) ([]string, error) {
	var names []string
	skip := 0

	for {
		resp, err := retry.Do(ctx, c.policy, func(ctx context.Context) (*Response, error) {
			params := url.Values{}
			params.Set("take", strconv.Itoa(entityTypesPageSize))
			if skip > 0 {
				params.Set("skip", strconv.Itoa(skip))
			}
			return c.transport.Do(ctx, Request{
				Method: http.MethodGet,
				Path:   apiPrefix + "/EntityTypes",
				Query:  params,
			})
		})
		if err != nil {
			return nil, err
		}

		var page Page
		if err := json.Unmarshal(resp.Body, &page); err != nil {
			return nil, fmt.Errorf("decoding entity types page: %w", err)
		}

		for _, raw := range page.Items {
			var item entityTypeItem
			if err := json.Unmarshal(raw, &item); err != nil {
				log.WithContext(ctx).WithError(err).Warn("skipping undecodable entity type entry")
				continue
			}
			if item.Name != "" {
				names = append(names, item.Name)
			}
		}

		if page.Next == "" || len(page.Items) == 0 {
			break
		}
		skip += len(page.Items)
	}

	return names, nil
}

// MetadataDocument fetches the instance's full metadata description. The
// payload may be large and, on some instances, malformed; it is returned
// verbatim for the metadata engine to parse and repair.
func (c *Client) MetadataDocument(ctx context.Context) ([]byte, error) {
	resp, err := retry.Do(ctx, c.policy, func(ctx context.Context) (*Response, error) {
		return c.transport.Do(ctx, Request{
			Method: http.MethodGet,
			Path:   apiPrefix + "/EntityTypes/meta",
		})
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// ProbeInvalidType issues a deliberately invalid request and returns the
// remote error message. Well-behaved instances enumerate their valid type
// names in "unknown type" errors, which the metadata engine uses as a
// last-resort discovery source.
func (c *Client) ProbeInvalidType(ctx context.Context) (string, error) {
	_, err := retry.Do(ctx, c.policy, func(ctx context.Context) (*Response, error) {
		return c.transport.Do(ctx, Request{
			Method: http.MethodGet,
			Path:   collectionPath("__TracelaneProbe__"),
		})
	})
	if err == nil {
		return "", errors.New("probe request unexpectedly succeeded")
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message, nil
	}
	return "", err
}
