package requests

import "time"

// AccessRequestResponse is the admin representation of a request.
type AccessRequestResponse struct {
	RequestID      string    `json:"requestId"`
	DocumentID     string    `json:"documentId"`
	RequesterName  string    `json:"requesterName"`
	RequesterEmail string    `json:"requesterEmail"`
	Status         Status    `json:"status"`
	HasAccess      bool      `json:"hasAccess"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// SubmitResponse is returned to the requester.
type SubmitResponse struct {
	RequestID string `json:"requestId"`
	Status    Status `json:"status"`
}

// TransitionResponse is returned by accept, decline and deactivate.
type TransitionResponse struct {
	RequestID      string `json:"requestId"`
	Status         Status `json:"status"`
	PreviousStatus Status `json:"previousStatus"`
	DownloadURL    string `json:"downloadUrl,omitempty"`
	Notified       bool   `json:"notified"`
	NotifyError    string `json:"notifyError,omitempty"`
}

func toResponse(req AccessRequest) AccessRequestResponse {
	return AccessRequestResponse{
		RequestID:      req.ID,
		DocumentID:     req.DocumentID,
		RequesterName:  req.RequesterName,
		RequesterEmail: req.RequesterEmail,
		Status:         req.Status,
		HasAccess:      req.SecureHash != "",
		CreatedAt:      req.CreatedAt,
		UpdatedAt:      req.UpdatedAt,
	}
}

func toTransitionResponse(res TransitionResult) TransitionResponse {
	return TransitionResponse{
		RequestID:      res.Request.ID,
		Status:         res.Request.Status,
		PreviousStatus: res.PreviousStatus,
		DownloadURL:    res.DownloadURL,
		Notified:       res.Notified,
		NotifyError:    res.NotifyError,
	}
}
