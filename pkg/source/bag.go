package source

import (
	"context"
	"io"
	"net/http"

	"github.com/cockroachdb/errors"
	"howett.net/plist"
)

// Endpoints holds the researcher API URLs a transparency log publishes
// in its bag, a plist document fetched before any log traffic.
type Endpoints struct {
	ListTrees string `plist:"at-researcher-list-trees"`
	LogHead   string `plist:"at-researcher-log-head"`
	LogLeaves string `plist:"at-researcher-log-leaves"`
}

// DiscoverEndpoints fetches and parses a log's bag. A nil client uses a
// default with the package timeout. The bag must at least name the
// leaves endpoint; the others are optional.
func DiscoverEndpoints(ctx context.Context, client *http.Client, bagURL string) (*Endpoints, error) {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, bagURL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "building bag request for %q", bagURL)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching bag %q", bagURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("source: bag endpoint returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Wrap(err, "reading bag body")
	}

	var endpoints Endpoints
	if _, err := plist.Unmarshal(body, &endpoints); err != nil {
		return nil, errors.Wrap(err, "parsing bag plist")
	}

	if endpoints.LogLeaves == "" {
		return nil, errors.New("source: bag does not name a log-leaves endpoint")
	}

	return &endpoints, nil
}
