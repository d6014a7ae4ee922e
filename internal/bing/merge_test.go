package bing

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func envelope(img Image) Envelope {
	return Envelope{Images: []Image{img}}
}

func TestParseName(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		urlbase string
		want    string
		wantErr bool
	}{
		{"standard", "/th?id=OHR.Example_EN-US1234567890", "OHR.Example_EN-US1234567890", false},
		{"extra params", "/th?id=OHR.Example_ZH-CN42&rf=LaDigue", "OHR.Example_ZH-CN42", false},
		{"no query", "/az/hprichbg/rb/Example_EN-US123", "", true},
		{"empty id", "/th?id=", "", true},
		{"other param only", "/th?rf=LaDigue", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseName(tc.urlbase)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrMalformedMetadata)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestMergePrimaryOnly(t *testing.T) {
	t.Parallel()

	primary := envelope(Image{
		URLBase:       "/th?id=OHR.Example_EN-US1234567890",
		Copyright:     "A fox in the snow (© Someone)",
		CopyrightLink: "https://www.bing.com/search?q=fox",
		Title:         "Winter fox",
		StartDate:     "20240101",
		Desc:          "Foxes & snow.",
	})

	rec, warnings, err := Merge("2024-01-01", primary, nil)
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, "OHR.Example_EN-US1234567890", rec.Name)
	require.Equal(t, "/th?id=OHR.Example_EN-US1234567890", rec.URLBase)
	require.Equal(t, "Foxes & snow.", rec.Description, "merge must not escape")
	require.Empty(t, rec.CopyrightSecondary)
	require.NotNil(t, rec.URLs)
	require.NotNil(t, rec.Telegram.Archive)
}

func TestMergeSecondaryNeverOverridesPrimaryIdentity(t *testing.T) {
	t.Parallel()

	primary := envelope(Image{URLBase: "/th?id=OHR.Example_EN-US1", Copyright: "English"})
	secondary := envelope(Image{URLBase: "/th?id=OHR.Example_ZH-CN2", Copyright: "中文", Desc: "描述"})

	rec, warnings, err := Merge("2024-01-01", primary, &secondary)
	require.NoError(t, err)
	require.Empty(t, warnings, "same stem across markets is not a mismatch")
	require.Equal(t, "OHR.Example_EN-US1", rec.Name)
	require.Equal(t, "/th?id=OHR.Example_EN-US1", rec.URLBase)
	require.Equal(t, "中文", rec.CopyrightSecondary)
	require.Equal(t, "描述", rec.Description, "secondary fills a missing description")
}

func TestMergeWarnsOnDifferentImage(t *testing.T) {
	t.Parallel()

	primary := envelope(Image{URLBase: "/th?id=OHR.Fox_EN-US1", Copyright: "Fox", Desc: "primary"})
	secondary := envelope(Image{URLBase: "/th?id=OHR.Owl_ZH-CN2", Copyright: "猫头鹰", Desc: "secondary"})

	rec, warnings, err := Merge("2024-01-01", primary, &secondary)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0], "OHR.Owl_ZH-CN2")
	require.Equal(t, "猫头鹰", rec.CopyrightSecondary)
	require.Equal(t, "primary", rec.Description)
}

func TestMergeEmptySecondaryDegrades(t *testing.T) {
	t.Parallel()

	primary := envelope(Image{URLBase: "/th?id=OHR.Fox_EN-US1", Copyright: "Fox"})
	rec, warnings, err := Merge("2024-01-01", primary, &Envelope{})
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Empty(t, rec.CopyrightSecondary)
}

func TestMergeMalformedPrimary(t *testing.T) {
	t.Parallel()

	_, _, err := Merge("2024-01-01", Envelope{}, nil)
	require.ErrorIs(t, err, ErrMalformedMetadata)

	_, _, err = Merge("2024-01-01", envelope(Image{URLBase: "/th/no-id"}), nil)
	require.ErrorIs(t, err, ErrMalformedMetadata)
}

func TestMergeIsDeterministic(t *testing.T) {
	t.Parallel()

	primary := envelope(Image{URLBase: "/th?id=OHR.Fox_EN-US1", Copyright: "Fox <b>", Desc: "d"})
	secondary := envelope(Image{URLBase: "/th?id=OHR.Fox_ZH-CN1", Copyright: "狐狸"})

	first, _, err := Merge("2024-01-01", primary, &secondary)
	require.NoError(t, err)
	second, _, err := Merge("2024-01-01", primary, &secondary)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	require.Equal(t, string(a), string(b))
}

func TestDayRecordCloneDoesNotAlias(t *testing.T) {
	t.Parallel()

	rec := DayRecord{
		URLs:     map[Resolution]string{ResolutionUHD: "u"},
		Telegram: PublishRefs{Archive: map[Resolution]ArchiveRef{ResolutionUHD: {MessageID: 1}}},
	}
	clone := rec.Clone()
	clone.URLs[Resolution1920x1080] = "x"
	clone.Telegram.Archive[Resolution1920x1080] = ArchiveRef{MessageID: 2}

	require.Len(t, rec.URLs, 1)
	require.Len(t, rec.Telegram.Archive, 1)
}

func TestCoverURLPreference(t *testing.T) {
	t.Parallel()

	rec := DayRecord{URLs: map[Resolution]string{Resolution1920x1080: "fhd", Resolution480x800: "m"}}
	got, ok := rec.CoverURL()
	require.True(t, ok)
	require.Equal(t, "fhd", got)

	rec.URLs[ResolutionUHD] = "uhd"
	got, _ = rec.CoverURL()
	require.Equal(t, "uhd", got)

	rec = DayRecord{URLs: map[Resolution]string{Resolution480x800: "m"}}
	got, _ = rec.CoverURL()
	require.Equal(t, "m", got)

	_, ok = DayRecord{}.CoverURL()
	require.False(t, ok)
}
