package roblox

import (
	"encoding/json"
	"fmt"
)

// Fixed placeholder metrics for synthesized catalog entries.
const (
	fallbackPlaying        = 0
	fallbackVisits         = 12500
	fallbackFavoritedCount = 250
)

type fallbackDetail struct {
	ID             int64  `json:"id"`
	RootPlaceID    int64  `json:"rootPlaceId"`
	Name           string `json:"name"`
	Playing        int    `json:"playing"`
	Visits         int    `json:"visits"`
	FavoritedCount int    `json:"favoritedCount"`
}

type fallbackThumbnail struct {
	TargetID int64  `json:"targetId"`
	State    string `json:"state"`
	ImageURL string `json:"imageUrl"`
}

type dataEnvelope[T any] struct {
	Data []T `json:"data"`
}

// Fallback synthesizes a structurally-valid catalog payload for the given
// universe identifiers, used when the batched details or thumbnail calls
// fail after resolution succeeded. The identifiers are echoed so the UI
// can still key its cards correctly.
func Fallback(universeIDs []int64) *Catalog {
	details := dataEnvelope[fallbackDetail]{Data: make([]fallbackDetail, 0, len(universeIDs))}
	thumbnails := dataEnvelope[fallbackThumbnail]{Data: make([]fallbackThumbnail, 0, len(universeIDs))}
	for _, id := range universeIDs {
		details.Data = append(details.Data, fallbackDetail{
			ID:             id,
			RootPlaceID:    id,
			Name:           fmt.Sprintf("Game %d", id),
			Playing:        fallbackPlaying,
			Visits:         fallbackVisits,
			FavoritedCount: fallbackFavoritedCount,
		})
		thumbnails.Data = append(thumbnails.Data, fallbackThumbnail{
			TargetID: id,
			State:    "Completed",
			ImageURL: "",
		})
	}

	detailsJSON, _ := json.Marshal(details)
	thumbnailsJSON, _ := json.Marshal(thumbnails)
	return &Catalog{
		Details:    detailsJSON,
		Thumbnails: thumbnailsJSON,
		IsFallback: true,
	}
}
