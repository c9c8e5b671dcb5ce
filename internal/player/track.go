package player

import (
	"path/filepath"
	"strings"

	"go.senan.xyz/taglib"
)

type Track struct {
	Path       string `json:"path"`
	Title      string `json:"title"`
	Artist     string `json:"artist,omitempty"`
	Album      string `json:"album,omitempty"`
	DurationMS *int   `json:"durationMs,omitempty"`
}

// LoadTracks reads tag metadata for each path. Files taglib cannot read still
// become tracks titled after their file name.
func LoadTracks(paths []string) []Track {
	tracks := make([]Track, 0, len(paths))
	for _, path := range paths {
		trimmed := strings.TrimSpace(path)
		if trimmed == "" {
			continue
		}
		tracks = append(tracks, loadTrack(trimmed))
	}
	return tracks
}

func loadTrack(path string) Track {
	track := Track{
		Path:  path,
		Title: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
	}

	if tags, err := taglib.ReadTags(path); err == nil {
		if value := firstTagValue(tags, taglib.Title, "TITLE"); value != "" {
			track.Title = value
		}
		track.Artist = firstTagValue(tags, taglib.Artist, "ARTIST")
		track.Album = firstTagValue(tags, taglib.Album, "ALBUM")
	}

	if properties, err := taglib.ReadProperties(path); err == nil && properties.Length > 0 {
		durationMS := int(properties.Length.Milliseconds())
		if durationMS > 0 {
			track.DurationMS = &durationMS
		}
	}

	return track
}

func firstTagValue(tags map[string][]string, keys ...string) string {
	for _, key := range keys {
		for _, value := range tags[key] {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}

	return ""
}
