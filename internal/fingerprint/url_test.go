package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURLVariantsCollapse(t *testing.T) {
	variants := []string{
		"http://www.site.ch/job/1/",
		"https://site.ch/job/1",
		"site.ch//job/1",
		"HTTPS://SITE.CH/job/1",
	}
	want := "https://site.ch/job/1"
	for _, v := range variants {
		got, err := NormalizeURL(v)
		require.NoError(t, err, "input %q", v)
		assert.Equal(t, want, got, "input %q", v)
	}
}

func TestNormalizeURLIdempotent(t *testing.T) {
	inputs := []string{
		"http://www.site.ch/job/1/",
		"https://jobs.example.com/listing/42?ref=home&utm_source=mail",
		"example.org/careers//senior-go/",
	}
	for _, in := range inputs {
		once, err := NormalizeURL(in)
		require.NoError(t, err)
		twice, err := NormalizeURL(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice, "input %q", in)
	}
}

func TestNormalizeURLDropsTrackingParams(t *testing.T) {
	got, err := NormalizeURL("https://site.ch/job/7?utm_source=x&utm_campaign=y&gclid=abc&id=7")
	require.NoError(t, err)
	assert.Equal(t, "https://site.ch/job/7?id=7", got)
}

func TestNormalizeURLDeterministicQueryOrder(t *testing.T) {
	a, err := NormalizeURL("https://site.ch/job?b=2&a=1")
	require.NoError(t, err)
	b, err := NormalizeURL("https://site.ch/job?a=1&b=2")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestNormalizeURLRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "   ", "ftp://site.ch/job", "https://"} {
		_, err := NormalizeURL(in)
		assert.ErrorIs(t, err, ErrBadURL, "input %q", in)
	}
}
