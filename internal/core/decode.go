package core

// decode.go turns fetched bytes into a RawTable.
//
// The messy reality of the remote export:
//   - the declared charset is sometimes wrong or missing (latin-1 vs UTF-8)
//   - Windows tools prepend a BOM
//   - the delimiter flips between ',' and ';' depending on the export locale
//   - on outages the endpoint serves an HTML page with a 200 status
//
// Decoding and structural parsing are owned here so that adapters only move
// bytes around.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Payload is the raw result of a fetch.
type Payload struct {
	Body        []byte
	Encoding    string // Declared charset label; "" means UTF-8
	ContentType string // Media type as reported by the source, if any
}

// DecodeOptions controls structural parsing.
type DecodeOptions struct {
	// Delimiter is the field separator. Zero means detect from the header line.
	Delimiter rune
}

// candidateDelimiters are tried, in order, when no delimiter is configured.
var candidateDelimiters = []rune{',', ';', '\t'}

// DecodeTable decodes p with its declared encoding and parses it as
// delimited text. The first record is the header.
func DecodeTable(p Payload, opts DecodeOptions) (*RawTable, error) {
	if len(bytes.TrimSpace(p.Body)) == 0 {
		return nil, &EmptyPayloadError{Reason: "response body is empty"}
	}

	text, err := decodeText(p.Body, p.Encoding)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimLeftFunc(text, isTrimmable)
	if trimmed == "" {
		return nil, &EmptyPayloadError{Reason: "response body is blank after decoding"}
	}
	if looksLikeMarkup(trimmed, p.ContentType) {
		return nil, &FormatError{Reason: "payload looks like markup, not delimited text"}
	}

	delim := opts.Delimiter
	if delim == 0 {
		delim = detectDelimiter(trimmed)
	}

	r := csv.NewReader(strings.NewReader(trimmed))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &EmptyPayloadError{Reason: "no header row"}
		}
		return nil, &FormatError{Reason: "reading header", Err: err}
	}
	if !hasNamedColumn(header) {
		return nil, &FormatError{Reason: "header row has no column names"}
	}

	table := &RawTable{Columns: header}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &FormatError{Reason: "reading rows", Err: err}
		}
		cells := make([]*string, len(rec))
		for i := range rec {
			v := rec[i]
			cells[i] = &v
		}
		table.Rows = append(table.Rows, cells)
	}

	return table, nil
}

// decodeText converts body to UTF-8 using the declared label. A BOM, when
// present, overrides the label. Invalid sequences become U+FFFD.
func decodeText(body []byte, label string) (string, error) {
	enc, err := lookupEncoding(label)
	if err != nil {
		return "", err
	}
	dec := unicode.BOMOverride(enc.NewDecoder())
	out, _, err := transform.Bytes(dec, body)
	if err != nil {
		return "", &FormatError{Reason: "decoding " + labelOrDefault(label), Err: err}
	}
	return string(out), nil
}

func lookupEncoding(label string) (encoding.Encoding, error) {
	if strings.TrimSpace(label) == "" {
		return unicode.UTF8, nil
	}
	enc, err := htmlindex.Get(strings.TrimSpace(label))
	if err != nil {
		return nil, &FormatError{Reason: "unsupported encoding " + label, Err: err}
	}
	return enc, nil
}

func labelOrDefault(label string) string {
	if label == "" {
		return "utf-8"
	}
	return label
}

func looksLikeMarkup(text, contentType string) bool {
	if strings.Contains(strings.ToLower(contentType), "html") {
		return true
	}
	return strings.HasPrefix(text, "<")
}

// detectDelimiter picks the candidate that occurs most often on the first
// line. Ties go to the earlier candidate, so plain CSV stays on ','.
func detectDelimiter(text string) rune {
	line := text
	if i := strings.IndexAny(text, "\r\n"); i >= 0 {
		line = text[:i]
	}
	best, bestCount := candidateDelimiters[0], 0
	for _, d := range candidateDelimiters {
		if n := strings.Count(line, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func hasNamedColumn(header []string) bool {
	for _, h := range header {
		if NormalizeValue(h) != "" {
			return true
		}
	}
	return false
}
