package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/roach88/musicsnap/internal/model"
)

// FileStatus describes one snapshot file in one directory.
type FileStatus struct {
	Present bool      `json:"present"`
	Size    int64     `json:"size,omitempty"`
	ModTime time.Time `json:"mod_time,omitempty"`
}

// FileReport describes one snapshot kind across the three directories.
type FileReport struct {
	Filename  string     `json:"filename"`
	Latest    FileStatus `json:"latest"`
	Old       FileStatus `json:"old"`
	Public    FileStatus `json:"public"`
	ValidJSON bool       `json:"valid_json"`
	JSONError string     `json:"json_error,omitempty"`
	// ItemCount is the length of the top-level "items" array, -1 if absent.
	ItemCount int `json:"item_count"`
	// StreamCount is the "count" field of streams-stats, -1 if absent.
	StreamCount int64  `json:"stream_count"`
	TopLabel    string `json:"top_label,omitempty"`
}

// RangeReport is the inspection result for one range.
type RangeReport struct {
	Range        model.Range  `json:"range"`
	LatestExists bool         `json:"latest_dir"`
	OldExists    bool         `json:"old_dir"`
	PublicExists bool         `json:"public_dir"`
	Files        []FileReport `json:"files"`
}

// Healthy reports whether every directory exists and no latest file holds invalid JSON.
func (r RangeReport) Healthy() bool {
	if !r.LatestExists || !r.OldExists || !r.PublicExists {
		return false
	}
	for _, f := range r.Files {
		if f.Latest.Present && !f.ValidJSON {
			return false
		}
	}
	return true
}

// Inspect reports presence, size and structure of every snapshot of r.
// It only reads; missing directories and files are reported, not created.
func (s *Store) Inspect(r model.Range) RangeReport {
	dirs := s.Dirs(r)
	report := RangeReport{
		Range:        r,
		LatestExists: dirExists(dirs.Latest),
		OldExists:    dirExists(dirs.Old),
		PublicExists: dirExists(dirs.Public),
	}

	for _, name := range s.filenames {
		fr := FileReport{
			Filename:    name,
			Latest:      statFile(filepath.Join(dirs.Latest, name)),
			Old:         statFile(filepath.Join(dirs.Old, name)),
			Public:      statFile(filepath.Join(dirs.Public, name)),
			ItemCount:   -1,
			StreamCount: -1,
		}
		if fr.Latest.Present {
			inspectPayload(&fr, filepath.Join(dirs.Latest, name))
		}
		report.Files = append(report.Files, fr)
	}
	return report
}

func statFile(path string) FileStatus {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return FileStatus{}
	}
	return FileStatus{Present: true, Size: info.Size(), ModTime: info.ModTime().UTC()}
}

// statsPayload is the subset of the stats.fm response shapes we look at.
// Every field is optional; the site tolerates partial documents and so do we.
type statsPayload struct {
	Items []map[string]any `json:"items"`
	Count *int64           `json:"count"`
}

func inspectPayload(fr *FileReport, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fr.JSONError = err.Error()
		return
	}
	var payload statsPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		// Valid JSON that does not match the shape (e.g. a bare array) is still valid.
		if !json.Valid(data) {
			fr.JSONError = err.Error()
			return
		}
	}
	fr.ValidJSON = true

	if payload.Items != nil {
		fr.ItemCount = len(payload.Items)
		if len(payload.Items) > 0 {
			fr.TopLabel = itemLabel(payload.Items[0], strings.TrimSuffix(fr.Filename, ".json"))
		}
	}
	if payload.Count != nil {
		fr.StreamCount = *payload.Count
	}
}

// itemLabel finds a display name in a top-list item. Items nest the entity
// under its singular kind ("artist", "track", "album", "genre") with either
// a "name" or, for genres, a "tag".
func itemLabel(item map[string]any, kind string) string {
	singular := strings.TrimSuffix(strings.TrimPrefix(kind, "top-"), "s")
	if nested, ok := item[singular].(map[string]any); ok {
		for _, key := range []string{"name", "tag"} {
			if v, ok := nested[key].(string); ok && v != "" {
				return model.NormalizeLabel(v)
			}
		}
	}
	for _, key := range []string{"name", singular, "tag"} {
		if v, ok := item[key].(string); ok && v != "" {
			return model.NormalizeLabel(v)
		}
	}
	return ""
}
