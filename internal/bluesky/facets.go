package bluesky

import (
	"context"
	"regexp"
	"strings"
)

// HandleResolver resolves a handle to a DID. The client's ResolveHandle
// satisfies it; tests substitute a local function.
type HandleResolver func(ctx context.Context, handle string) (string, error)

var (
	mentionPattern = regexp.MustCompile(`(?:^|\s)(@([a-zA-Z0-9][a-zA-Z0-9.-]*\.[a-zA-Z]{2,}))`)
	linkPattern    = regexp.MustCompile(`https?://[^\s]+`)
	tagPattern     = regexp.MustCompile(`(?:^|\s)(#([\p{L}\p{N}_]*\p{L}[\p{L}\p{N}_]*))`)
)

// DetectFacets computes the rich-text facets (mentions, links, hashtags) for
// a post text. Offsets are UTF-8 byte positions as the lexicon requires.
// Mentions whose handle cannot be resolved to a DID are skipped rather than
// failing the post. Link and tag detection is a pure function of the text.
func DetectFacets(ctx context.Context, text string, resolve HandleResolver) ([]Facet, error) {
	var facets []Facet

	for _, m := range mentionPattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[2], m[3]
		handle := text[m[4]:m[5]]

		if resolve == nil {
			continue
		}
		did, err := resolve(ctx, handle)
		if err != nil || did == "" {
			continue
		}

		facets = append(facets, Facet{
			Index:    ByteSlice{ByteStart: start, ByteEnd: end},
			Features: []FacetFeature{{Type: FeatureMention, DID: did}},
		})
	}

	for _, m := range linkPattern.FindAllStringIndex(text, -1) {
		start, end := m[0], m[1]
		uri := strings.TrimRight(text[start:end], `.,;:!?)]}'"`)
		end = start + len(uri)

		facets = append(facets, Facet{
			Index:    ByteSlice{ByteStart: start, ByteEnd: end},
			Features: []FacetFeature{{Type: FeatureLink, URI: uri}},
		})
	}

	for _, m := range tagPattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[2], m[3]
		tag := text[m[4]:m[5]]

		facets = append(facets, Facet{
			Index:    ByteSlice{ByteStart: start, ByteEnd: end},
			Features: []FacetFeature{{Type: FeatureTag, Tag: tag}},
		})
	}

	return facets, nil
}
