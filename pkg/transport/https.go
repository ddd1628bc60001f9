// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package transport

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/kraklabs/bdp-ingest/internal/ingesterr"
)

// userAgent is sent on every request; several sources (NCBI in
// particular) rate-limit or reject requests with no identifying
// User-Agent.
const userAgent = "bdp-ingest/1.0 (+https://kraklabs.com)"

// HTTPClient fetches release artifacts and directory-index pages over
// HTTPS.
type HTTPClient struct {
	client *http.Client
	retry  RetryPolicy
}

// NewHTTPClient builds an HTTPClient with a fixed request timeout.
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{Timeout: timeout},
		retry:  DefaultRetryPolicy,
	}
}

// Download GETs url and returns its full body.
func (c *HTTPClient) Download(ctx context.Context, url string) ([]byte, error) {
	var data []byte
	err := c.retry.Do(ctx, func() error {
		body, err := c.get(ctx, url)
		if err != nil {
			return err
		}
		defer body.Close()
		data, err = io.ReadAll(body)
		if err != nil {
			return ingesterr.Transportf(err, "read %s", url)
		}
		return nil
	})
	return data, err
}

func (c *HTTPClient) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, ingesterr.Transportf(err, "build request %s", url)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, ingesterr.Transportf(err, "fetch %s", url)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, ingesterr.NotFoundf("%s not found", url)
	}
	if resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, ingesterr.Transportf(nil, "%s returned status %d", url, resp.StatusCode)
	}
	return resp.Body, nil
}

// DirEntry is one link found in a directory-index HTML page.
type DirEntry struct {
	Name string
	Href string
}

// ListDirectoryIndex GETs url (expected to be an Apache/nginx-style
// autoindex page) and returns every anchor tag's href, skipping the
// conventional "parent directory" link. Malformed HTML degrades
// gracefully: golang.org/x/net/html implements the HTML5 parsing
// algorithm's error-recovery rules, so a page that isn't well-formed
// XML still yields whatever anchors it can find.
func (c *HTTPClient) ListDirectoryIndex(ctx context.Context, url string) ([]DirEntry, error) {
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc, err := html.Parse(body)
	if err != nil {
		return nil, ingesterr.Parsef(err, "parse directory index %s", url)
	}

	var entries []DirEntry
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			href, text := anchorHrefAndText(n)
			if href != "" && !isParentLink(href, text) {
				entries = append(entries, DirEntry{Name: strings.TrimSuffix(text, "/"), Href: href})
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return entries, nil
}

func anchorHrefAndText(n *html.Node) (href, text string) {
	for _, attr := range n.Attr {
		if attr.Key == "href" {
			href = attr.Val
		}
	}
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return href, strings.TrimSpace(sb.String())
}

func isParentLink(href, text string) bool {
	return href == "../" || href == ".." || strings.EqualFold(text, "parent directory")
}
