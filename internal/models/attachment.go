package models

// Attachment references an uploaded file attached to a chat message.
// Only built from a successful upload response.
type Attachment struct {
	URL         string `json:"url"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
}

// UploadResponse is the success body of POST /api/files/upload.
type UploadResponse struct {
	URL         string `json:"url"`
	Pathname    string `json:"pathname"`
	ContentType string `json:"contentType"`
}

// Attachment converts an upload response into the attachment sent with a message.
func (u UploadResponse) Attachment() Attachment {
	return Attachment{
		URL:         u.URL,
		Name:        u.Pathname,
		ContentType: u.ContentType,
	}
}

// UploadErrorResponse is the failure body of POST /api/files/upload.
type UploadErrorResponse struct {
	Error string `json:"error"`
}
