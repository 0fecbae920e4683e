package documents

import "time"

// DocumentResponse is the admin representation of a document.
type DocumentResponse struct {
	DocumentID string    `json:"documentId"`
	Title      string    `json:"title"`
	FileName   string    `json:"fileName"`
	MimeType   string    `json:"mimeType"`
	SizeBytes  int64     `json:"sizeBytes"`
	PageCount  int       `json:"pageCount"`
	Location   Location  `json:"location"`
	Checksum   string    `json:"checksum,omitempty"`
	UploadedAt time.Time `json:"uploadedAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// PublicDocumentResponse is all a requester sees before access is granted.
type PublicDocumentResponse struct {
	DocumentID string `json:"documentId"`
	Title      string `json:"title"`
}

// ToResponse maps a document to its admin representation.
func ToResponse(doc Document) DocumentResponse {
	return DocumentResponse{
		DocumentID: doc.ID,
		Title:      doc.Title,
		FileName:   doc.FileName,
		MimeType:   doc.MimeType,
		SizeBytes:  doc.SizeBytes,
		PageCount:  doc.PageCount,
		Location:   doc.Location,
		Checksum:   doc.Checksum,
		UploadedAt: doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}
}
