package biometric

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	id "appraiser-gateway/pkg/domain"
	dErrors "appraiser-gateway/pkg/domain-errors"
)

// Enroller registers a face profile with the matching service so later
// captures can be compared against it.
type Enroller interface {
	Enroll(ctx context.Context, image CapturedImage, registrationID id.RegistrationID) error
}

type enrollRequest struct {
	Image          string `json:"image"`
	RegistrationID int64  `json:"registration_id"`
}

type enrollResponse struct {
	ErrorTag string `json:"error"`
	Enrolled bool   `json:"enrolled"`
}

// Enroll submits an image for profile extraction. Detection failures come
// back as coded errors so callers can degrade instead of aborting.
func (c *HTTPClient) Enroll(ctx context.Context, image CapturedImage, registrationID id.RegistrationID) error {
	if image.IsEmpty() {
		return dErrors.New(dErrors.CodeBadRequest, "captured image is required")
	}
	if registrationID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "registration id is required")
	}

	body, err := json.Marshal(enrollRequest{
		Image:          image.Payload,
		RegistrationID: int64(registrationID),
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "encode enroll request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/face/enroll", bytes.NewReader(body))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "build enroll request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "matching service unreachable")
	}
	defer resp.Body.Close()

	var decoded enrollResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&decoded)

	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && decoded.ErrorTag != "" {
			return dErrors.Newf(dErrors.CodeInvalidInput, "enrollment rejected: %s", decoded.ErrorTag)
		}
		return dErrors.Newf(dErrors.CodeUnavailable, "matching service returned status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return dErrors.Wrap(decodeErr, dErrors.CodeUnavailable, "malformed matching service response")
	}
	if !decoded.Enrolled {
		return dErrors.New(dErrors.CodeInvalidInput, "matching service did not extract a face profile")
	}
	return nil
}
