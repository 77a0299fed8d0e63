package biometric

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"appraiser-gateway/internal/directory"
	dErrors "appraiser-gateway/pkg/domain-errors"
)

// ServiceClient submits a capture to the remote face-matching service and
// returns its decoded structured response. Transport faults are errors;
// everything else, including structured error tags, is a Response for the
// matcher to interpret.
type ServiceClient interface {
	Submit(ctx context.Context, image CapturedImage, registration directory.BoundRegistration) (Response, error)
}

// Response is the matching service's structured answer, decoded once at this
// boundary so the matcher never branches on transport representation.
type Response struct {
	// ErrorTag is the service's structured error, empty on nominal
	// responses. Known values: "no_face_detected", "multiple_faces";
	// anything else is an unspecified upstream failure.
	ErrorTag string `json:"error"`

	Matched    bool         `json:"matched"`
	Confidence float64      `json:"confidence"`
	Profile    *wireProfile `json:"appraiser"`
}

type wireProfile struct {
	ID             string `json:"id"`
	RegistrationID int64  `json:"registration_id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	AppraisalCount int    `json:"appraisal_count"`
}

type submitRequest struct {
	Image          string `json:"image"`
	RegistrationID int64  `json:"registration_id"`
	Name           string `json:"name"`
	BankID         int64  `json:"bank_id"`
	BranchID       int64  `json:"branch_id"`
}

// HTTPClient talks to the face-matching service over JSON/HTTP.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient builds a matching-service client against the given base URL.
// The timeout is generous; face comparison on the service side is slow.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) Submit(ctx context.Context, image CapturedImage, registration directory.BoundRegistration) (Response, error) {
	body, err := json.Marshal(submitRequest{
		Image:          image.Payload,
		RegistrationID: int64(registration.ID),
		Name:           registration.Name,
		BankID:         registration.Unit.BankID,
		BranchID:       registration.Unit.BranchID,
	})
	if err != nil {
		return Response{}, dErrors.Wrap(err, dErrors.CodeInternal, "encode match request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/face/verify", bytes.NewReader(body))
	if err != nil {
		return Response{}, dErrors.Wrap(err, dErrors.CodeInternal, "build match request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Response{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "matching service unreachable")
	}
	defer resp.Body.Close()

	var decoded Response
	decodeErr := json.NewDecoder(resp.Body).Decode(&decoded)

	if resp.StatusCode != http.StatusOK {
		// A structured error body still counts as an interpretable answer;
		// only an uninterpretable non-success is a transport fault.
		if decodeErr == nil && decoded.ErrorTag != "" {
			return decoded, nil
		}
		return Response{}, dErrors.Newf(dErrors.CodeUnavailable, "matching service returned status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return Response{}, dErrors.Wrap(decodeErr, dErrors.CodeUnavailable, "malformed matching service response")
	}
	return decoded, nil
}
