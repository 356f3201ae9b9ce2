// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package solr queries a Solr core through its select handler.
package solr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/repoexport/pkg/index"
)

const defaultTimeout = 30 * time.Second

// Options configures a Client
type Options struct {
	URL     string
	Core    string
	Timeout time.Duration
	// HTTPClient defaults to http.DefaultClient
	HTTPClient *http.Client
}

// 🔎 Client implements index.Index against Solr
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
}

var _ index.Index = (*Client)(nil)

type selectResponse struct {
	Response struct {
		NumFound int         `json:"numFound"`
		Start    int         `json:"start"`
		Docs     []index.Doc `json:"docs"`
	} `json:"response"`
}

// 🏭 New creates a client for <url>/<core>/select
func New(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, errors.Errorf("solr url is required")
	}

	u, err := url.Parse(strings.TrimRight(opts.URL, "/"))
	if err != nil {
		return nil, errors.Errorf("parsing solr url: %w", err)
	}
	if opts.Core != "" {
		u = u.JoinPath(opts.Core)
	}
	u = u.JoinPath("select")

	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Client{base: u, http: opts.HTTPClient, timeout: opts.Timeout}, nil
}

// 🌐 Query runs one select request
func (c *Client) Query(ctx context.Context, q index.Query) ([]index.Doc, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := url.Values{}
	params.Set("q", "*:*")
	params.Set("fq", q.Filter.Expression())
	params.Set("rows", strconv.Itoa(q.Rows))
	params.Set("start", strconv.Itoa(q.Start))
	params.Set("wt", "json")
	if len(q.Fields) > 0 {
		params.Set("fl", strings.Join(q.Fields, ","))
	}
	if q.Sort != "" {
		params.Set("sort", q.Sort)
	}

	u := *c.base
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Errorf("querying solr: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var body selectResponse
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, errors.Errorf("decoding solr response: %w", err)
	}

	zerolog.Ctx(ctx).Debug().
		Str("fq", params.Get("fq")).
		Int("start", q.Start).
		Int("rows", q.Rows).
		Int("num_found", body.Response.NumFound).
		Int("returned", len(body.Response.Docs)).
		Msg("solr page")

	return body.Response.Docs, nil
}
