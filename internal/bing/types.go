// Package bing defines the image-of-the-day record and the ports shared across the pipeline stages.
package bing

import "maps"

// Resolution labels one asset size published by the image source.
type Resolution string

// Resolutions offered by the image source.
const (
	ResolutionUHD           Resolution = "UHD"
	Resolution1920x1080     Resolution = "1920x1080"
	Resolution1024x768      Resolution = "1024x768"
	Resolution1366x768      Resolution = "1366x768"
	Resolution800x480       Resolution = "800x480"
	Resolution1080x1920     Resolution = "1080x1920"
	Resolution480x800       Resolution = "480x800"
	ReferenceResolution                = ResolutionUHD
	secondaryCoverCandidate            = Resolution1920x1080
)

// Resolutions is the fixed download and archive order.
var Resolutions = []Resolution{
	ResolutionUHD,
	Resolution1920x1080,
	Resolution1024x768,
	Resolution1366x768,
	Resolution800x480,
	Resolution1080x1920,
	Resolution480x800,
}

// Backlink pairs a resolution with the label shown in the cover caption.
type Backlink struct {
	Resolution Resolution
	Display    string
}

// BacklinkPriority lists the archive posts linked from the cover photo, in caption order.
var BacklinkPriority = []Backlink{
	{Resolution: ResolutionUHD, Display: "UHD"},
	{Resolution: Resolution1920x1080, Display: "1080p"},
	{Resolution: Resolution1080x1920, Display: "Mobile"},
}

// LatestAliases maps resolutions to the file name overwritten on every successful download.
var LatestAliases = map[Resolution]string{
	ResolutionUHD:       "UHD.jpg",
	Resolution1920x1080: "1080p.jpg",
}

// Envelope is the JSON document returned by the metadata endpoint.
type Envelope struct {
	Images   []Image   `json:"images"`
	Tooltips *Tooltips `json:"tooltips,omitempty"`
}

// Tooltips carries UI strings the endpoint ships with the image list.
type Tooltips struct {
	Loading  string `json:"loading"`
	Previous string `json:"previous"`
	Next     string `json:"next"`
}

// Image is one image-of-the-day entry.
type Image struct {
	StartDate     string `json:"startdate"`
	FullStartDate string `json:"fullstartdate"`
	EndDate       string `json:"enddate"`
	URL           string `json:"url"`
	URLBase       string `json:"urlbase"`
	Copyright     string `json:"copyright"`
	CopyrightLink string `json:"copyrightlink"`
	Title         string `json:"title"`
	Desc          string `json:"desc,omitempty"`
	Hsh           string `json:"hsh"`
}

// First returns the first image of the envelope.
func (e Envelope) First() (Image, bool) {
	if len(e.Images) == 0 {
		return Image{}, false
	}
	return e.Images[0], true
}

// ArchiveRef identifies a document posted to the archive channel.
type ArchiveRef struct {
	MessageID int64  `json:"message_id"`
	FileID    string `json:"file_id"`
}

// PhotoSize is one rendition of a photo as reported by the messaging API.
type PhotoSize struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id,omitempty"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	FileSize     int64  `json:"file_size,omitempty"`
}

// PhotoResult is returned by a cover photo post.
type PhotoResult struct {
	MessageID int64
	Photo     []PhotoSize
}

// PublishRefs collects the identifiers assigned by the messaging sink.
type PublishRefs struct {
	Archive        map[Resolution]ArchiveRef `json:"archive"`
	StoryMessageID int64                     `json:"story_message_id,omitempty"`
	PhotoMessageID int64                     `json:"photo_message_id,omitempty"`
	Photo          []PhotoSize               `json:"photo,omitempty"`
}

// DayRecord is the unit of work for one calendar day.
type DayRecord struct {
	RunID              string                `json:"run_id,omitempty"`
	Date               string                `json:"date"`
	Name               string                `json:"name"`
	URLBase            string                `json:"urlbase"`
	Title              string                `json:"title,omitempty"`
	StartDate          string                `json:"startdate,omitempty"`
	Copyright          string                `json:"copyright"`
	CopyrightLink      string                `json:"copyrightlink,omitempty"`
	CopyrightSecondary string                `json:"copyright_cn,omitempty"`
	Description        string                `json:"desc,omitempty"`
	RawSize            string                `json:"raw_size,omitempty"`
	URLs               map[Resolution]string `json:"url"`
	Checksums          map[Resolution]string `json:"sha256,omitempty"`
	Telegram           PublishRefs           `json:"telegram"`
	Published          bool                  `json:"published"`
	PublishErrors      []string              `json:"publish_errors,omitempty"`
}

// Clone returns a deep copy so each stage can hand back an updated record
// without aliasing the maps of its input.
func (r DayRecord) Clone() DayRecord {
	out := r
	out.URLs = maps.Clone(r.URLs)
	out.Checksums = maps.Clone(r.Checksums)
	out.Telegram.Archive = maps.Clone(r.Telegram.Archive)
	out.Telegram.Photo = append([]PhotoSize(nil), r.Telegram.Photo...)
	out.PublishErrors = append([]string(nil), r.PublishErrors...)
	return out
}

// HasAsset reports whether res was downloaded.
func (r DayRecord) HasAsset(res Resolution) bool {
	_, ok := r.URLs[res]
	return ok
}

// CoverURL picks the asset used for the cover photo: the reference resolution,
// then 1920x1080, then whatever downloaded first in list order.
func (r DayRecord) CoverURL() (string, bool) {
	for _, res := range []Resolution{ReferenceResolution, secondaryCoverCandidate} {
		if u, ok := r.URLs[res]; ok {
			return u, true
		}
	}
	for _, res := range Resolutions {
		if u, ok := r.URLs[res]; ok {
			return u, true
		}
	}
	return "", false
}
