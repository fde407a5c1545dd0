// Package media decides how a chat message body should be rendered.
//
// A body is treated as media only when the whole trimmed body is a single
// http(s) URL ending in a known file extension. A link inside a sentence is
// plain text.
package media

import (
	"net/url"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Kind is the renderable content kind of a message body.
type Kind string

const (
	KindText     Kind = "text"
	KindImage    Kind = "image"
	KindPDF      Kind = "pdf"
	KindDocument Kind = "document"
)

var extensions = map[string]Kind{
	"jpg":  KindImage,
	"jpeg": KindImage,
	"png":  KindImage,
	"gif":  KindImage,
	"pdf":  KindPDF,
	"doc":  KindDocument,
	"docx": KindDocument,
	"xls":  KindDocument,
	"xlsx": KindDocument,
	"ppt":  KindDocument,
	"pptx": KindDocument,
	"txt":  KindDocument,
	"mp4":  KindDocument,
	"mov":  KindDocument,
	"avi":  KindDocument,
	"mp3":  KindDocument,
	"wav":  KindDocument,
}

// Media is the classification of a body plus what a media card needs.
type Media struct {
	Kind      Kind   `json:"kind"`
	URL       string `json:"url,omitempty"`
	Extension string `json:"extension,omitempty"`
}

// Label is the upper-cased extension shown on download cards ("DOCX").
func (m Media) Label() string {
	return strings.ToUpper(m.Extension)
}

// Classify returns the content kind of body. declaredMIME may be empty.
func Classify(body, declaredMIME string) Kind {
	return Describe(body, declaredMIME).Kind
}

// Describe classifies body and keeps the URL and extension when it is media.
func Describe(body, declaredMIME string) Media {
	raw := strings.TrimSpace(body)
	u, ok := singleURL(raw)
	if !ok {
		return Media{Kind: KindText}
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(u.Path)), ".")

	if kind, ok := kindForMIME(declaredMIME); ok {
		return Media{Kind: kind, URL: raw, Extension: ext}
	}
	if kind, ok := extensions[ext]; ok {
		return Media{Kind: kind, URL: raw, Extension: ext}
	}
	return Media{Kind: KindText}
}

func singleURL(raw string) (*url.URL, bool) {
	if raw == "" || strings.ContainsAny(raw, " \t\r\n") {
		return nil, false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	if u.Host == "" || u.RawQuery != "" || u.ForceQuery || u.Fragment != "" || strings.HasSuffix(raw, "#") {
		return nil, false
	}
	return u, true
}

func kindForMIME(declared string) (Kind, bool) {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if declared == "" {
		return "", false
	}
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if strings.HasPrefix(declared, "image/") {
		return KindImage, true
	}
	m := mimetype.Lookup(declared)
	if m == nil {
		return "", false
	}
	kind, ok := extensions[strings.TrimPrefix(m.Extension(), ".")]
	return kind, ok
}
