package shell

import "strings"

// Encoding is the character encoding mode of a run. Resolved once at
// startup (explicit flag, else locale probe, else 8-bit) and fixed
// afterwards.
type Encoding int

const (
	// Encoding8Bit treats input as opaque single-byte characters.
	Encoding8Bit Encoding = iota
	// EncodingUTF8 treats input as UTF-8.
	EncodingUTF8
)

// String returns the encoding name.
func (e Encoding) String() string {
	if e == EncodingUTF8 {
		return "utf-8"
	}
	return "8-bit"
}

// DetectEncoding probes the locale environment the way nl_langinfo(CODESET)
// would: LC_ALL first, then LC_CTYPE, then LANG. A locale naming UTF-8
// selects EncodingUTF8; everything else, including an empty environment,
// selects Encoding8Bit. lookup is normally os.Getenv.
func DetectEncoding(lookup func(string) string) Encoding {
	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		v := lookup(key)
		if v == "" {
			continue
		}
		if strings.Contains(strings.ToUpper(v), "UTF-8") || strings.Contains(strings.ToUpper(v), "UTF8") {
			return EncodingUTF8
		}
		return Encoding8Bit
	}
	return Encoding8Bit
}
