package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// ThumbnailService mirrors provider thumbnail images into our own bucket so
// the catalog does not hotlink the provider's CDN. Mirroring is best-effort:
// the ingestion pipeline logs and continues when it fails.
type ThumbnailService struct {
	s3Client   *s3.Client
	bucketName string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewThumbnailService creates a new ThumbnailService.
func NewThumbnailService(s3Client *s3.Client, bucketName string, logger zerolog.Logger) *ThumbnailService {
	return &ThumbnailService{
		s3Client:   s3Client,
		bucketName: bucketName,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger.With().Str("service", "ThumbnailService").Logger(),
	}
}

// Mirror downloads the thumbnail and stores it under the content's key,
// returning the object path.
func (s *ThumbnailService) Mirror(ctx context.Context, contentID, thumbnailURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, thumbnailURL, nil)
	if err != nil {
		return "", fmt.Errorf("building thumbnail request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading thumbnail for %s: %w", contentID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloading thumbnail for %s: status %d", contentID, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return "", fmt.Errorf("reading thumbnail body for %s: %w", contentID, err)
	}

	key := fmt.Sprintf("thumbnails/%s.jpg", contentID)
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return "", fmt.Errorf("storing thumbnail %s: %w", key, err)
	}
	return key, nil
}
