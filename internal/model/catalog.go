package model

import (
	"net/url"
	"strings"
)

// DefaultBaseURL is the stats.fm API root.
const DefaultBaseURL = "https://api.stats.fm/api/v1"

// EndpointSpec describes one statistic kind.
// PathTemplate is relative to the API root; "{user}" is replaced by the user id.
type EndpointSpec struct {
	Name         string
	PathTemplate string
	Filename     string
}

// ResolvedEndpoint is an EndpointSpec bound to a range.
type ResolvedEndpoint struct {
	Name     string
	URL      string
	Filename string
}

// Endpoints is the fixed list of statistic kinds in fetch order.
var Endpoints = []EndpointSpec{
	{Name: "top-genres", PathTemplate: "/users/{user}/top/genres", Filename: "top-genres.json"},
	{Name: "streams-stats", PathTemplate: "/users/{user}/streams/stats", Filename: "streams-stats.json"},
	{Name: "top-albums", PathTemplate: "/users/{user}/top/albums", Filename: "top-albums.json"},
	{Name: "top-tracks", PathTemplate: "/users/{user}/top/tracks", Filename: "top-tracks.json"},
	{Name: "top-artists", PathTemplate: "/users/{user}/top/artists", Filename: "top-artists.json"},
}

// Catalog resolves endpoint specs against an API root and user.
type Catalog struct {
	BaseURL string
	UserID  string
}

// NewCatalog creates a catalog. An empty baseURL selects DefaultBaseURL.
func NewCatalog(baseURL, userID string) Catalog {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return Catalog{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		UserID:  strings.TrimSpace(userID),
	}
}

// Resolve returns the endpoints for r in catalog order.
func (c Catalog) Resolve(r Range) []ResolvedEndpoint {
	resolved := make([]ResolvedEndpoint, 0, len(Endpoints))
	for _, ep := range Endpoints {
		path := strings.ReplaceAll(ep.PathTemplate, "{user}", url.PathEscape(c.UserID))
		query := url.Values{}
		query.Set("range", string(r))
		resolved = append(resolved, ResolvedEndpoint{
			Name:     ep.Name,
			URL:      c.BaseURL + path + "?" + query.Encode(),
			Filename: ep.Filename,
		})
	}
	return resolved
}

// Filenames lists every known snapshot filename in catalog order.
func Filenames() []string {
	names := make([]string, len(Endpoints))
	for i, ep := range Endpoints {
		names[i] = ep.Filename
	}
	return names
}
