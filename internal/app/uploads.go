package app

import (
	"context"
	"io"
	"net/http"
	"strings"
)

const maxUploadBytes = 10 << 20

var errBlobsUnavailable = domainError(http.StatusServiceUnavailable, "BLOBS_UNAVAILABLE", "Attachment storage not configured", nil)

type UploadTicket struct {
	Handle string `json:"handle"`
	URL    string `json:"url"`
}

// UploadImage stores an image attachment and returns its handle, to be set
// as a message's image.
func (s *Service) UploadImage(ctx context.Context, caller Caller, content io.Reader, size int64, contentType string) (string, error) {
	if err := requireCaller(caller); err != nil {
		return "", err
	}
	if s.blobs == nil {
		return "", errBlobsUnavailable
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", validationError("Only image attachments are supported")
	}
	if size > maxUploadBytes {
		return "", validationError("Attachment is too large")
	}
	handle, err := s.blobs.PutBlob(ctx, content, size, contentType)
	if err != nil {
		return "", err
	}
	s.logger.Debug("Attachment stored", "handle", handle, "size", size, "user_id", caller.UserID)
	return handle, nil
}

// GenerateUploadURL reserves a handle the client can upload to directly.
func (s *Service) GenerateUploadURL(ctx context.Context, caller Caller) (UploadTicket, error) {
	if err := requireCaller(caller); err != nil {
		return UploadTicket{}, err
	}
	if s.blobs == nil {
		return UploadTicket{}, errBlobsUnavailable
	}
	handle, url, err := s.blobs.UploadURL(ctx)
	if err != nil {
		return UploadTicket{}, err
	}
	return UploadTicket{Handle: handle, URL: url}, nil
}
