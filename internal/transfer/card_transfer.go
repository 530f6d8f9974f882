package transfer

// LinkCard is the resolved link-preview metadata for a URL. ImageURL is the
// remote thumbnail location; empty when the page has none or resolution
// degraded.
type LinkCard struct {
	URI         string `json:"uri"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"image,omitempty"`
}

// CardServiceResponse is the wire shape of the metadata service.
type CardServiceResponse struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Error       string `json:"error"`
}
