package bing

import (
	"fmt"
	"strings"
)

const idParam = "?id="

// ParseName extracts the image identifier from a urlbase such as
// "/th?id=OHR.Example_EN-US1234567890".
func ParseName(urlbase string) (string, error) {
	_, after, ok := strings.Cut(urlbase, idParam)
	if !ok {
		return "", fmt.Errorf("%w: urlbase %q has no id parameter", ErrMalformedMetadata, urlbase)
	}
	name, _, _ := strings.Cut(after, "&")
	if name == "" {
		return "", fmt.Errorf("%w: urlbase %q has an empty id", ErrMalformedMetadata, urlbase)
	}
	return name, nil
}

// Merge builds the DayRecord for date from the primary-locale envelope and an
// optional secondary-locale envelope. Name and URLBase always come from the
// primary. The secondary only fills the alternate caption and, if the primary
// lacks one, the description. A secondary that appears to describe a
// different image is still merged; the mismatch is returned as a warning.
func Merge(date string, primary Envelope, secondary *Envelope) (DayRecord, []string, error) {
	img, ok := primary.First()
	if !ok {
		return DayRecord{}, nil, fmt.Errorf("%w: primary envelope has no images", ErrMalformedMetadata)
	}
	name, err := ParseName(img.URLBase)
	if err != nil {
		return DayRecord{}, nil, err
	}

	record := DayRecord{
		Date:          date,
		Name:          name,
		URLBase:       img.URLBase,
		Title:         img.Title,
		StartDate:     img.StartDate,
		Copyright:     img.Copyright,
		CopyrightLink: img.CopyrightLink,
		Description:   img.Desc,
		URLs:          map[Resolution]string{},
		Telegram:      PublishRefs{Archive: map[Resolution]ArchiveRef{}},
	}

	if secondary == nil {
		return record, nil, nil
	}
	alt, ok := secondary.First()
	if !ok {
		return record, []string{"secondary envelope has no images"}, nil
	}

	var warnings []string
	switch altName, err := ParseName(alt.URLBase); {
	case err != nil:
		warnings = append(warnings, fmt.Sprintf("secondary urlbase unparseable: %v", err))
	case !sameImage(name, altName):
		warnings = append(warnings, fmt.Sprintf("secondary image %q differs from primary %q", altName, name))
	}

	record.CopyrightSecondary = alt.Copyright
	if record.Description == "" {
		record.Description = alt.Desc
	}
	return record, warnings, nil
}

// sameImage compares identifiers without the market suffix, since
// "OHR.Example_EN-US123" and "OHR.Example_ZH-CN456" name the same picture.
func sameImage(a, b string) bool {
	return imageStem(a) == imageStem(b)
}

func imageStem(name string) string {
	if i := strings.LastIndex(name, "_"); i > 0 {
		return name[:i]
	}
	return name
}
