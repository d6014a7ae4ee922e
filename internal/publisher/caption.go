package publisher

import (
	"fmt"
	"strings"

	"github.com/JakeFAU/bing-daily-crawler/internal/bing"
)

// ArchiveCaption labels one archived document. The reference resolution
// shows its decoded dimensions when they are known.
func ArchiveCaption(record bing.DayRecord, res bing.Resolution) string {
	suffix := string(res)
	if res == bing.ReferenceResolution && record.RawSize != "" {
		suffix = record.RawSize
	}
	return fmt.Sprintf("#%s\n%s\n<b>%s_%s</b>", res, record.Date, Escape(record.Name), suffix)
}

// StoryText is the caption post: date, captions in bold, then the description.
func StoryText(record bing.DayRecord) string {
	var b strings.Builder
	b.WriteString(record.Date)
	b.WriteString("\n")
	b.WriteString(boldCaptions(record))
	if record.Description != "" {
		b.WriteString("\n\n")
		b.WriteString(Escape(record.Description))
	}
	return b.String()
}

// CoverCaption links the cover photo back to the story post and to the
// archived documents listed in bing.BacklinkPriority that were published.
func CoverCaption(record bing.DayRecord, archiveLink string) string {
	link := strings.TrimRight(archiveLink, "/")
	var b strings.Builder
	b.WriteString(boldCaptions(record))
	b.WriteString("\n")
	fmt.Fprintf(&b, `<a href="%s/%d">Story</a>`, link, record.Telegram.StoryMessageID)
	for _, bl := range bing.BacklinkPriority {
		ref, ok := record.Telegram.Archive[bl.Resolution]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, ` | <a href="%s/%d">%s</a>`, link, ref.MessageID, bl.Display)
	}
	return b.String()
}

func boldCaptions(record bing.DayRecord) string {
	var b strings.Builder
	b.WriteString("<b>")
	b.WriteString(Escape(record.Copyright))
	if record.CopyrightSecondary != "" {
		b.WriteString("\n")
		b.WriteString(Escape(record.CopyrightSecondary))
	}
	b.WriteString("</b>")
	return b.String()
}
