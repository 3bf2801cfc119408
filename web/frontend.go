package web

import "github.com/b1naryth1ef/livemap"

// FrontendData is embedded into index.html as the page's configuration.
type FrontendData struct {
	TileWidth      int              `json:"tileWidth"`
	TileHeight     int              `json:"tileHeight"`
	UpdateInterval int              `json:"updateInterval"`
	Markers        []livemap.Marker `json:"markers"`
	Warps          []livemap.Warp   `json:"warps"`
}

// UpdateFeed is the response of the incremental update endpoint.
type UpdateFeed struct {
	Timestamp int64        `json:"timestamp"`
	Stale     int          `json:"stale"`
	Updates   []TileUpdate `json:"updates"`
}

type TileUpdate struct {
	Tile string `json:"tile"`
	At   int64  `json:"at"`
}

type Status struct {
	Stale   int  `json:"stale"`
	Updates int  `json:"updates"`
	Tiles   int  `json:"tiles"`
	Running bool `json:"running"`
}

func toFeedUpdates(updates []livemap.TileUpdate) []TileUpdate {
	result := make([]TileUpdate, 0, len(updates))
	for _, u := range updates {
		result = append(result, TileUpdate{
			Tile: u.Tile.Name(),
			At:   u.At.UnixMilli(),
		})
	}
	return result
}
