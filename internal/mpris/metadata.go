package mpris

import (
	"strings"

	"github.com/godbus/dbus/v5"
)

// Metadata is the subset of the xesam track metadata a player reports.
// A nil field means the player did not provide it.
type Metadata struct {
	Artists []string `json:"artists,omitempty"`
	Title   *string  `json:"title,omitempty"`
}

// ParseMetadata derives Metadata from a raw Metadata property value.
// Values of an unexpected type, empty titles and empty artist lists are
// treated as absent.
func ParseMetadata(raw map[string]dbus.Variant) Metadata {
	var metadata Metadata

	if value, ok := raw[metadataArtist]; ok {
		metadata.Artists = stringList(value.Value())
	}

	if value, ok := raw[metadataTitle]; ok {
		if title, ok := value.Value().(string); ok && title != "" {
			metadata.Title = &title
		}
	}

	return metadata
}

// String renders "<artists> - <title>", either part alone, or "".
func (m Metadata) String() string {
	artists := strings.Join(m.Artists, ", ")

	switch {
	case len(m.Artists) > 0 && m.Title != nil:
		return artists + " - " + *m.Title
	case m.Title != nil:
		return *m.Title
	default:
		return artists
	}
}

func stringList(value any) []string {
	switch list := value.(type) {
	case []string:
		if len(list) == 0 {
			return nil
		}
		out := make([]string, len(list))
		copy(out, list)
		return out
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil
			}
			out = append(out, s)
		}
		if len(out) == 0 {
			return nil
		}
		return out
	default:
		return nil
	}
}
