// Package search keeps a best-effort Elasticsearch projection of users.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/oksasatya/rxcheck-identity/internal/domain/entity"
	"github.com/oksasatya/rxcheck-identity/internal/domain/errs"
	"github.com/oksasatya/rxcheck-identity/internal/domain/port"
)

// UserIndex writes users into a single index and queries it with
// multi_match. Secrets never leave the entity.
type UserIndex struct {
	es      *elasticsearch.Client
	index   string
	timeout time.Duration
}

func NewUserIndex(es *elasticsearch.Client, index string) *UserIndex {
	return &UserIndex{es: es, index: index, timeout: 3 * time.Second}
}

type userDoc struct {
	port.IndexedUser
	UpdatedAt string `json:"updated_at"`
}

func (x *UserIndex) Index(ctx context.Context, u *entity.User) error {
	doc := userDoc{
		IndexedUser: port.IndexedUser{
			ID:         u.ID,
			Identifier: u.Identifier,
			Email:      u.Email,
			FullName:   u.FullName(),
			Role:       u.Role,
			Active:     u.Active,
		},
		UpdatedAt: u.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{Index: x.index, DocumentID: u.ID, Body: bytes.NewReader(b), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()
	res, err := req.Do(c, x.es)
	if err != nil {
		return errs.Unavailable("search.index", err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return errs.Unavailable("search.index", fmt.Errorf("status %s", res.Status()))
	}
	return nil
}

// Search matches q against identifier, email and name among active users.
func (x *UserIndex) Search(ctx context.Context, q string, size int) ([]port.IndexedUser, error) {
	query := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must": map[string]any{
					"multi_match": map[string]any{
						"query":  q,
						"fields": []string{"identifier^3", "email^2", "full_name"},
					},
				},
				"filter": []any{
					map[string]any{"term": map[string]any{"active": true}},
				},
			},
		},
		"size": size,
	}
	b, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	c, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	res, err := x.es.Search(x.es.Search.WithContext(c), x.es.Search.WithIndex(x.index), x.es.Search.WithBody(bytes.NewReader(b)))
	if err != nil {
		return nil, errs.Unavailable("search.query", err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return nil, errs.Unavailable("search.query", fmt.Errorf("status %s", res.Status()))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source port.IndexedUser `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]port.IndexedUser, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}
