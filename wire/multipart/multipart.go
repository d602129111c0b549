/*
 * MIT License
 *
 * Copyright (c) 2026 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package multipart decodes multipart/form-data request bodies (spec
// §4.3.5), grounded on original_source/src/uploadFilter.c's state machine
// (HTTP_UPLOAD_BOUNDARY / CONTENT_HEADER / CONTENT_DATA / CONTENT_END).
package multipart

import (
	"bytes"
	"strings"

	"github.com/nabbar/httpcore/errors"
)

const (
	ErrorUploadTooLarge errors.CodeError = iota + errors.MinPkgWire + 300
	ErrorMalformedPart
)

func init() {
	errors.RegisterIdFctMessage(ErrorUploadTooLarge, getMessage)
}

func getMessage(code errors.CodeError) string {
	switch code {
	case ErrorUploadTooLarge:
		return "uploaded file part exceeds configured size limit"
	case ErrorMalformedPart:
		return "malformed multipart/form-data part"
	}
	return ""
}

var (
	ErrUploadTooLarge = ErrorUploadTooLarge.Error()
	ErrMalformedPart  = ErrorMalformedPart.Error()
)

// State names original_source/src/uploadFilter.c's content states.
type State uint8

const (
	StateBoundary State = iota
	StateContentHeader
	StateContentData
	StateEnd
)

// File describes one decoded file part, mirroring the Rx file-map entry
// and the FILE_n_* CGI variables it feeds.
type File struct {
	FieldName       string
	ClientFilename  string
	TempFilename    string
	ContentType     string
	Size            int64
}

// Sink receives decoded file bytes as they arrive, so the decoder never
// has to buffer an entire upload in memory. Implementations typically
// write to a temp path under the configured upload directory.
type Sink interface {
	// Open is called once per file part, before the first Write.
	Open(fieldName, clientFilename, contentType string) (tempFilename string, err error)
	Write(tempFilename string, p []byte) error
	Close(tempFilename string) error
}

// Decoder incrementally decodes a multipart/form-data body.
type Decoder struct {
	boundary    []byte
	uploadLimit int64
	sink        Sink

	state   State
	buf     []byte
	partHdr map[string]string

	curField    string
	curFilename string
	curType     string
	curTemp     string
	curSize     int64

	Form  map[string]string
	Files []File
}

// NewDecoder returns a Decoder for the given boundary (without leading
// "--"), enforcing uploadLimit bytes per file part.
func NewDecoder(boundary string, uploadLimit int64, sink Sink) *Decoder {
	return &Decoder{
		boundary:    []byte("--" + boundary),
		uploadLimit: uploadLimit,
		sink:        sink,
		state:       StateBoundary,
		Form:        make(map[string]string),
	}
}

// Feed appends body bytes and drives the state machine as far as
// possible. It is safe to call repeatedly as more bytes arrive.
func (d *Decoder) Feed(in []byte) error {
	d.buf = append(d.buf, in...)

	for {
		switch d.state {
		case StateBoundary:
			i := bytes.Index(d.buf, d.boundary)
			if i < 0 {
				return nil
			}
			rest := d.buf[i+len(d.boundary):]
			if bytes.HasPrefix(rest, []byte("--")) {
				d.state = StateEnd
				return nil
			}
			nl := bytes.Index(rest, []byte("\r\n"))
			if nl < 0 {
				return nil
			}
			d.buf = rest[nl+2:]
			d.partHdr = map[string]string{}
			d.state = StateContentHeader

		case StateContentHeader:
			i := bytes.Index(d.buf, []byte("\r\n\r\n"))
			if i < 0 {
				if bytes.Index(d.buf, d.boundary) >= 0 {
					return ErrMalformedPart
				}
				return nil
			}
			for _, line := range bytes.Split(d.buf[:i], []byte("\r\n")) {
				if k, v, ok := splitHeaderLine(string(line)); ok {
					d.partHdr[strings.ToLower(k)] = v
				}
			}
			d.buf = d.buf[i+4:]
			if err := d.startPart(); err != nil {
				return err
			}
			d.state = StateContentData

		case StateContentData:
			i := bytes.Index(d.buf, d.boundary)
			if i < 0 {
				// keep back enough bytes (the boundary plus the CRLF
				// before it) that a split boundary isn't mistaken for
				// data; flush the rest now.
				keep := len(d.boundary) + 2
				if len(d.buf) <= keep {
					return nil
				}
				if err := d.appendData(d.buf[:len(d.buf)-keep]); err != nil {
					return err
				}
				d.buf = d.buf[len(d.buf)-keep:]
				return nil
			}
			chunk := d.buf[:i]
			chunk = bytes.TrimSuffix(chunk, []byte("\r\n"))
			if err := d.appendData(chunk); err != nil {
				return err
			}
			if err := d.endPart(); err != nil {
				return err
			}
			d.buf = d.buf[i:]
			d.state = StateBoundary

		case StateEnd:
			return nil
		}
	}
}

func splitHeaderLine(line string) (key, value string, ok bool) {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return "", "", false
	}
	return line[:i], strings.TrimSpace(line[i+1:]), true
}

// startPart extracts field name and optional filename from
// Content-Disposition, matching original_source/src/uploadFilter.c's
// processContentHeader.
func (d *Decoder) startPart() error {
	disp := d.partHdr["content-disposition"]
	name, filename := parseDisposition(disp)
	d.curField = name
	d.curFilename = filename
	d.curType = d.partHdr["content-type"]
	d.curSize = 0

	if filename == "" {
		return nil
	}
	if d.sink == nil {
		return nil
	}
	tmp, err := d.sink.Open(name, filename, d.curType)
	if err != nil {
		return err
	}
	d.curTemp = tmp
	return nil
}

func (d *Decoder) appendData(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	if d.curFilename == "" {
		d.Form[d.curField] += string(p)
		return nil
	}
	d.curSize += int64(len(p))
	if d.uploadLimit > 0 && d.curSize > d.uploadLimit {
		return ErrUploadTooLarge
	}
	if d.sink != nil && d.curTemp != "" {
		return d.sink.Write(d.curTemp, p)
	}
	return nil
}

func (d *Decoder) endPart() error {
	if d.curFilename == "" {
		return nil
	}
	if d.sink != nil && d.curTemp != "" {
		if err := d.sink.Close(d.curTemp); err != nil {
			return err
		}
	}
	d.Files = append(d.Files, File{
		FieldName:      d.curField,
		ClientFilename: d.curFilename,
		TempFilename:   d.curTemp,
		ContentType:    d.curType,
		Size:           d.curSize,
	})
	d.curTemp, d.curFilename, d.curField, d.curType, d.curSize = "", "", "", "", 0
	return nil
}

// parseDisposition extracts name= and filename= from a
// Content-Disposition: form-data; ...  header value.
func parseDisposition(v string) (name, filename string) {
	for _, part := range strings.Split(v, ";") {
		part = strings.TrimSpace(part)
		if rest, ok := cut(part, "name="); ok {
			name = strings.Trim(rest, `"`)
		} else if rest, ok := cut(part, "filename="); ok {
			filename = strings.Trim(rest, `"`)
		}
	}
	return name, filename
}

func cut(s, prefix string) (string, bool) {
	if strings.HasPrefix(s, prefix) {
		return s[len(prefix):], true
	}
	return "", false
}

// Done reports whether the closing boundary has been consumed.
func (d *Decoder) Done() bool { return d.state == StateEnd }
