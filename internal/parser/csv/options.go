package csv

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"

	"ouvidoria/internal/config"
)

// DefaultFallback is the encoding tried when a file is not valid UTF-8.
const DefaultFallback = "ISO-8859-1"

// Options configures the decoder. The zero value reads ';'-delimited files
// with an ISO-8859-1 fallback and strict quoting; OptionsFrom turns lazy
// quoting on.
type Options struct {
	// Comma is the field delimiter. Zero means ';'.
	Comma rune

	// FallbackEncoding is an IANA charset name tried after UTF-8 fails.
	FallbackEncoding string

	// LazyQuotes tolerates stray quotes inside unquoted fields.
	LazyQuotes bool

	// TrimSpace drops leading white space in each field.
	TrimSpace bool
}

// OptionsFrom reads parser options from a pipeline options bag.
func OptionsFrom(o config.Options) Options {
	return Options{
		Comma:            o.Rune("comma", ';'),
		FallbackEncoding: o.String("fallback_encoding", DefaultFallback),
		LazyQuotes:       o.Bool("lazy_quotes", true),
		TrimSpace:        o.Bool("trim_space", false),
	}
}

func (o Options) comma() rune {
	if o.Comma == 0 {
		return ';'
	}
	return o.Comma
}

// fallback resolves the configured fallback encoding and its display name.
func (o Options) fallback() (encoding.Encoding, string, error) {
	name := strings.TrimSpace(o.FallbackEncoding)
	if name == "" {
		return charmap.ISO8859_1, strings.ToLower(DefaultFallback), nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, "", fmt.Errorf("fallback encoding %q: %w", name, err)
	}
	if enc == nil {
		return nil, "", fmt.Errorf("fallback encoding %q is not supported", name)
	}
	return enc, strings.ToLower(name), nil
}
