package bluesky

// BlobRef represents an AT Protocol blob reference for uploaded content.
type BlobRef struct {
	Type string `json:"$type"`
	Ref  struct {
		Link string `json:"$link"`
	} `json:"ref"`
	MimeType string `json:"mimeType"`
	Size     int    `json:"size"`
}

// PostRecord is the record body for app.bsky.feed.post.
type PostRecord struct {
	Type      string  `json:"$type"`
	Text      string  `json:"text"`
	Facets    []Facet `json:"facets,omitempty"`
	Embed     any     `json:"embed,omitempty"`
	CreatedAt string  `json:"createdAt"`
}

// Facet annotates a byte range of the post text with rich-text features.
type Facet struct {
	Index    ByteSlice      `json:"index"`
	Features []FacetFeature `json:"features"`
}

// ByteSlice is a [start, end) range of UTF-8 byte offsets into the text.
type ByteSlice struct {
	ByteStart int `json:"byteStart"`
	ByteEnd   int `json:"byteEnd"`
}

// FacetFeature is one of app.bsky.richtext.facet#mention, #link or #tag.
// Exactly one of DID, URI or Tag is set, matching Type.
type FacetFeature struct {
	Type string `json:"$type"`
	DID  string `json:"did,omitempty"`
	URI  string `json:"uri,omitempty"`
	Tag  string `json:"tag,omitempty"`
}

const (
	FeatureMention = "app.bsky.richtext.facet#mention"
	FeatureLink    = "app.bsky.richtext.facet#link"
	FeatureTag     = "app.bsky.richtext.facet#tag"
)

// ExternalEmbed is an app.bsky.embed.external link card.
type ExternalEmbed struct {
	Type     string   `json:"$type"`
	External External `json:"external"`
}

// External carries the link card contents.
type External struct {
	URI         string   `json:"uri"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Thumb       *BlobRef `json:"thumb,omitempty"`
}

// ImagesEmbed is an app.bsky.embed.images attachment.
type ImagesEmbed struct {
	Type   string       `json:"$type"`
	Images []EmbedImage `json:"images"`
}

// EmbedImage is a single image entry. Alt is always present, empty when the
// author supplied none.
type EmbedImage struct {
	Alt   string   `json:"alt"`
	Image *BlobRef `json:"image"`
}

const (
	RecordTypePost    = "app.bsky.feed.post"
	EmbedTypeExternal = "app.bsky.embed.external"
	EmbedTypeImages   = "app.bsky.embed.images"
)

// NewExternalEmbed builds a link card embed.
func NewExternalEmbed(uri, title, description string, thumb *BlobRef) *ExternalEmbed {
	return &ExternalEmbed{
		Type: EmbedTypeExternal,
		External: External{
			URI:         uri,
			Title:       title,
			Description: description,
			Thumb:       thumb,
		},
	}
}

// NewImagesEmbed builds a single-image embed.
func NewImagesEmbed(alt string, blob *BlobRef) *ImagesEmbed {
	return &ImagesEmbed{
		Type:   EmbedTypeImages,
		Images: []EmbedImage{{Alt: alt, Image: blob}},
	}
}
