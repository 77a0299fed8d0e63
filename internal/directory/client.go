package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	dErrors "appraiser-gateway/pkg/domain-errors"
)

// Client queries the organizational directory for a registered appraiser.
// A miss is a normal outcome and surfaces as CodeNotFound; only lookup
// channel failures carry CodeUnavailable.
type Client interface {
	Lookup(ctx context.Context, name string, unit OrgUnitRef) (BoundRegistration, error)
}

// HTTPClient talks to the directory service over JSON/HTTP.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient builds a directory client against the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type lookupRequest struct {
	Name     string `json:"name"`
	BankID   int64  `json:"bank_id"`
	BranchID int64  `json:"branch_id"`
}

func (c *HTTPClient) Lookup(ctx context.Context, name string, unit OrgUnitRef) (BoundRegistration, error) {
	body, err := json.Marshal(lookupRequest{
		Name:     name,
		BankID:   unit.BankID,
		BranchID: unit.BranchID,
	})
	if err != nil {
		return BoundRegistration{}, dErrors.Wrap(err, dErrors.CodeInternal, "encode directory lookup")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/directory/lookup", bytes.NewReader(body))
	if err != nil {
		return BoundRegistration{}, dErrors.Wrap(err, dErrors.CodeInternal, "build directory request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return BoundRegistration{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "directory unreachable")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return BoundRegistration{}, dErrors.New(dErrors.CodeNotFound, "appraiser not registered")
	case resp.StatusCode != http.StatusOK:
		return BoundRegistration{}, dErrors.New(dErrors.CodeUnavailable,
			fmt.Sprintf("directory returned status %d", resp.StatusCode))
	}

	var reg BoundRegistration
	if err := json.NewDecoder(resp.Body).Decode(&reg); err != nil {
		return BoundRegistration{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "malformed directory response")
	}
	if reg.IsZero() {
		return BoundRegistration{}, dErrors.New(dErrors.CodeUnavailable, "directory response missing registration id")
	}
	reg.Unit = unit
	return reg, nil
}
