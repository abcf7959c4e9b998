package youtube

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMissingContents means the payload decoded but has no top-level contents.
	ErrMissingContents = errors.New("youtube: payload has no contents")
	// ErrBrokenPath means a node on the way to the result list is absent.
	ErrBrokenPath = errors.New("youtube: result path broken")
	// ErrIncompleteVideo means a video entry lacks its first title run or thumbnail.
	ErrIncompleteVideo = errors.New("youtube: incomplete video entry")
)

func decode(raw string) (*content, error) {
	var page searchPage
	if err := json.Unmarshal([]byte(raw), &page); err != nil {
		return nil, fmt.Errorf("youtube: decode ytInitialData: %w", err)
	}
	if page.Contents == nil {
		return nil, ErrMissingContents
	}
	return page.Contents, nil
}

// resultItems walks
// twoColumnSearchResultsRenderer.primaryContents.sectionListRenderer.contents[0].itemSectionRenderer.contents.
func resultItems(root *content) ([]content, error) {
	two := root.TwoColumnSearchResultsRenderer
	if two == nil {
		return nil, fmt.Errorf("%w: twoColumnSearchResultsRenderer", ErrBrokenPath)
	}
	if two.PrimaryContents == nil {
		return nil, fmt.Errorf("%w: primaryContents", ErrBrokenPath)
	}
	section := two.PrimaryContents.SectionListRenderer
	if section == nil {
		return nil, fmt.Errorf("%w: sectionListRenderer", ErrBrokenPath)
	}
	if len(section.Contents) == 0 {
		return nil, fmt.Errorf("%w: sectionListRenderer.contents is empty", ErrBrokenPath)
	}
	items := section.Contents[0].ItemSectionRenderer
	if items == nil {
		return nil, fmt.Errorf("%w: itemSectionRenderer", ErrBrokenPath)
	}
	if items.Contents == nil {
		return nil, fmt.Errorf("%w: itemSectionRenderer.contents", ErrBrokenPath)
	}
	return items.Contents, nil
}

// project returns the videos under root in document order. The result is
// non-nil on success even when the section holds no videos.
func project(root *content) ([]SearchResult, error) {
	items, err := resultItems(root)
	if err != nil {
		return nil, err
	}

	videos := make([]SearchResult, 0, len(items))
	for _, item := range items {
		v := item.VideoRenderer
		if v == nil {
			continue
		}
		if v.Title == nil || len(v.Title.Runs) == 0 {
			return nil, fmt.Errorf("%w: %s has no title run", ErrIncompleteVideo, v.VideoID)
		}
		if v.Thumbnail == nil || len(v.Thumbnail.Thumbnails) == 0 {
			return nil, fmt.Errorf("%w: %s has no thumbnail", ErrIncompleteVideo, v.VideoID)
		}
		videos = append(videos, SearchResult{
			Title:        v.Title.Runs[0].Text,
			VideoID:      v.VideoID,
			ThumbnailURL: v.Thumbnail.Thumbnails[0].URL,
		})
	}
	return videos, nil
}
