package search

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/oksasatya/rxcheck-identity/internal/domain/errs"
)

// NewClient creates an Elasticsearch client with optional basic auth. Gateway
// errors are retried by the transport, a few times at most.
func NewClient(addrs []string, username, password string) (*elasticsearch.Client, error) {
	return elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     addrs,
		Username:      username,
		Password:      password,
		RetryOnStatus: []int{502, 503, 504},
		MaxRetries:    2,
		RetryBackoff:  func(i int) time.Duration { return time.Duration(i) * 200 * time.Millisecond },
		Transport: &http.Transport{
			MaxIdleConnsPerHost:   10,
			ResponseHeaderTimeout: 5 * time.Second,
			TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
			DialContext:           (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		},
	})
}

// usersMapping keeps identifier and email exact-matchable while still
// tokenizing them for multi_match.
const usersMapping = `{
  "mappings": {
    "properties": {
      "id":         {"type": "keyword"},
      "identifier": {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "email":      {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "full_name":  {"type": "text"},
      "role":       {"type": "keyword"},
      "active":     {"type": "boolean"},
      "updated_at": {"type": "date"}
    }
  }
}`

// EnsureIndex creates the users index with its mapping when it is missing.
func (x *UserIndex) EnsureIndex(ctx context.Context) error {
	c, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	res, err := esapi.IndicesExistsRequest{Index: []string{x.index}}.Do(c, x.es)
	if err != nil {
		return errs.Unavailable("search.ensure_index", err)
	}
	_ = res.Body.Close()
	switch res.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
	default:
		return errs.Unavailable("search.ensure_index", fmt.Errorf("status %s", res.Status()))
	}

	res, err = esapi.IndicesCreateRequest{Index: x.index, Body: bytes.NewReader([]byte(usersMapping))}.Do(c, x.es)
	if err != nil {
		return errs.Unavailable("search.ensure_index", err)
	}
	defer func() { _ = res.Body.Close() }()
	// A concurrent instance may have created it first.
	if res.IsError() && res.StatusCode != http.StatusBadRequest {
		return errs.Unavailable("search.ensure_index", fmt.Errorf("status %s", res.Status()))
	}
	return nil
}
