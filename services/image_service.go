package services

import (
	"context"
	"fmt"

	"github.com/sgp-fichas/fichas-api/utils"
)

// ImageService stores item images and resolves them to URLs
type ImageService interface {
	// StoreItemImage uploads a decoded image for the item at position in the order and returns its storage key
	StoreItemImage(ctx context.Context, orderID uint, position int, img *utils.DecodedImage) (string, error)

	// GetImageURL generates a URL for accessing a stored image
	GetImageURL(ctx context.Context, imageKey string) (string, error)

	// DeleteImage removes an image from storage
	DeleteImage(ctx context.Context, imageKey string) error
}

// S3ImageService implements ImageService using AWS S3 for storage
type S3ImageService struct {
	s3Service S3Interface
}

var imageServiceInstance ImageService

// InitImageService initializes the image service with S3 backend
func InitImageService(s3Service S3Interface) ImageService {
	imageServiceInstance = &S3ImageService{
		s3Service: s3Service,
	}
	return imageServiceInstance
}

// GetImageService returns the initialized image service instance
func GetImageService() ImageService {
	return imageServiceInstance
}

// SetImageService sets the image service instance (primarily for testing)
func SetImageService(service ImageService) {
	imageServiceInstance = service
}

// ItemImageKey is the storage key for an item image.
// Format: pedidos/{orderID}/item_{position}{ext}
func ItemImageKey(orderID uint, position int, ext string) string {
	return fmt.Sprintf("pedidos/%d/item_%d%s", orderID, position, ext)
}

// StoreItemImage uploads an item image to S3
func (s *S3ImageService) StoreItemImage(ctx context.Context, orderID uint, position int, img *utils.DecodedImage) (string, error) {
	key := ItemImageKey(orderID, position, img.Extension)
	if err := s.s3Service.PutObject(ctx, key, img.Data, img.ContentType); err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	return key, nil
}

// GetImageURL generates a presigned URL for accessing an image
func (s *S3ImageService) GetImageURL(ctx context.Context, imageKey string) (string, error) {
	if imageKey == "" {
		return "", nil
	}

	url, err := s.s3Service.GetPresignedURL(ctx, imageKey)
	if err != nil {
		return "", fmt.Errorf("failed to generate image URL: %w", err)
	}
	return url, nil
}

// DeleteImage deletes an image from S3
func (s *S3ImageService) DeleteImage(ctx context.Context, imageKey string) error {
	if imageKey == "" {
		return nil
	}

	if err := s.s3Service.DeleteObject(ctx, imageKey); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}
