package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/sgp-fichas/fichas-api/models"
	"github.com/sgp-fichas/fichas-api/utils"
	"go.uber.org/zap"
)

// itemImagePrefix marks image references owned by this service
const itemImagePrefix = "pedidos/"

type pendingImage struct {
	position int
	img      *utils.DecodedImage
}

// prepareItems validates inline data URL images. With image storage configured
// they are cleared from the returned copy and returned for upload once the
// order id is known; without it they stay inline.
func (s *OrderService) prepareItems(items []models.Item) ([]models.Item, []pendingImage, error) {
	out := cloneItems(items)
	var pending []pendingImage
	for i, item := range out {
		if item.Image == nil || !utils.IsDataURL(*item.Image) {
			continue
		}
		img, err := utils.DecodeDataURL(*item.Image)
		if err != nil {
			return nil, nil, err
		}
		if s.images == nil {
			continue
		}
		pending = append(pending, pendingImage{position: i, img: img})
		out[i].Image = nil
	}
	return out, pending, nil
}

// storeImages uploads pending images and points their items at the storage keys.
// It returns the keys written so far, also on failure.
func (s *OrderService) storeImages(ctx context.Context, orderID uint, items []models.Item, pending []pendingImage) ([]string, error) {
	var uploaded []string
	for _, p := range pending {
		key, err := s.images.StoreItemImage(ctx, orderID, p.position, p.img)
		if err != nil {
			return uploaded, fmt.Errorf("item %d image: %w", p.position, err)
		}
		uploaded = append(uploaded, key)
		items[p.position].Image = &key
	}
	return uploaded, nil
}

// discardImages deletes stored images best-effort
func (s *OrderService) discardImages(ctx context.Context, keys []string) {
	if s.images == nil {
		return
	}
	for _, key := range keys {
		if err := s.images.DeleteImage(ctx, key); err != nil {
			s.logger.Warn("failed to delete item image", zap.String("key", key), zap.Error(err))
		}
	}
}

// ItemImageURL resolves the image of the item at position in order id to a
// fetchable URL. Stored images get a presigned URL; inline and external
// references are returned as they are.
func (s *OrderService) ItemImageURL(ctx context.Context, id uint, position int) (string, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if position < 0 || position >= len(order.Items) {
		return "", ErrItemNotFound
	}
	image := order.Items[position].Image
	if image == nil || strings.TrimSpace(*image) == "" {
		return "", ErrImageNotFound
	}
	if !strings.HasPrefix(*image, itemImagePrefix) || s.images == nil {
		return *image, nil
	}
	url, err := s.images.GetImageURL(ctx, *image)
	if err != nil {
		return "", fmt.Errorf("failed to sign image url: %w", err)
	}
	return url, nil
}

func storedImageKeys(items []models.Item) []string {
	var keys []string
	for _, item := range items {
		if item.Image != nil && strings.HasPrefix(*item.Image, itemImagePrefix) {
			keys = append(keys, *item.Image)
		}
	}
	return keys
}

// subtractKeys returns the keys of a that are not in b
func subtractKeys(a, b []string) []string {
	drop := make(map[string]struct{}, len(b))
	for _, key := range b {
		drop[key] = struct{}{}
	}
	var out []string
	for _, key := range a {
		if _, ok := drop[key]; !ok {
			out = append(out, key)
		}
	}
	return out
}

func cloneItems(items []models.Item) []models.Item {
	if items == nil {
		return nil
	}
	out := make([]models.Item, len(items))
	copy(out, items)
	return out
}
