package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sgp-fichas/fichas-api/utils"
)

// MockImageService is a mock implementation of ImageService for testing
type MockImageService struct {
	images    map[string][]byte
	failStore bool
	mu        sync.RWMutex
}

// NewMockImageService creates a new mock image service
func NewMockImageService() *MockImageService {
	return &MockImageService{
		images: make(map[string][]byte),
	}
}

// SetAsMockForTesting sets this mock as the global image service instance for testing
func (m *MockImageService) SetAsMockForTesting() {
	SetImageService(m)
}

// FailUploads makes every later StoreItemImage call fail
func (m *MockImageService) FailUploads() {
	m.mu.Lock()
	m.failStore = true
	m.mu.Unlock()
}

// StoreItemImage keeps the image in memory
func (m *MockImageService) StoreItemImage(_ context.Context, orderID uint, position int, img *utils.DecodedImage) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failStore {
		return "", errors.New("mock upload failure")
	}
	key := ItemImageKey(orderID, position, img.Extension)
	m.images[key] = append([]byte(nil), img.Data...)
	return key, nil
}

// GetImageURL simulates generating a URL for an image
func (m *MockImageService) GetImageURL(_ context.Context, imageKey string) (string, error) {
	if imageKey == "" {
		return "", nil
	}

	m.mu.RLock()
	_, exists := m.images[imageKey]
	m.mu.RUnlock()
	if !exists {
		return "", fmt.Errorf("image not found in mock storage: %s", imageKey)
	}

	return fmt.Sprintf("https://test-bucket.s3.us-east-1.amazonaws.com/%s?mock=true", imageKey), nil
}

// DeleteImage simulates deleting an image
func (m *MockImageService) DeleteImage(_ context.Context, imageKey string) error {
	if imageKey == "" {
		return nil
	}
	m.mu.Lock()
	delete(m.images, imageKey)
	m.mu.Unlock()
	return nil
}

// ImageExists checks if an image exists in mock storage
func (m *MockImageService) ImageExists(imageKey string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.images[imageKey]
	return exists
}

// Count returns the number of stored images
func (m *MockImageService) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.images)
}
