package youtube

// The types below mirror only the slice of ytInitialData we walk. Every branch
// is optional and everything else in the payload is ignored by the decoder.

// content is one node of the renderer tree. At most one branch is usually set.
type content struct {
	ItemSectionRenderer            *itemSectionRenderer            `json:"itemSectionRenderer"`
	VideoRenderer                  *videoRenderer                  `json:"videoRenderer"`
	TwoColumnSearchResultsRenderer *twoColumnSearchResultsRenderer `json:"twoColumnSearchResultsRenderer"`
}

type twoColumnSearchResultsRenderer struct {
	PrimaryContents *primaryContents `json:"primaryContents"`
}

type primaryContents struct {
	SectionListRenderer *sectionListRenderer `json:"sectionListRenderer"`
}

type sectionListRenderer struct {
	Contents []content `json:"contents"`
}

type itemSectionRenderer struct {
	Contents []content `json:"contents"`
}

type videoRenderer struct {
	VideoID   string         `json:"videoId"`
	Title     *textRuns      `json:"title"`
	Thumbnail *thumbnailList `json:"thumbnail"`
}

type textRuns struct {
	Runs []struct {
		Text string `json:"text"`
	} `json:"runs"`
}

type thumbnailList struct {
	Thumbnails []thumbnail `json:"thumbnails"`
}

// thumbnail keeps only the URL. Sizes are not always numeric in the wild.
type thumbnail struct {
	URL string `json:"url"`
}

// searchPage is the top level of the payload.
type searchPage struct {
	Contents *content `json:"contents"`
}
