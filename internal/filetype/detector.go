package filetype

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// Kind classifies an uploaded buffer for the editing flow.
type Kind int

const (
	// KindPDF enters the editing flow directly.
	KindPDF Kind = iota
	// KindConvertible goes through the LibreOffice transcoder first.
	KindConvertible
	// KindUnsupported is rejected at upload.
	KindUnsupported
)

// Info describes a detected upload.
type Info struct {
	Kind      Kind
	MIMEType  string
	Extension string
}

// convertible maps MIME types the transcoder accepts to the extension
// LibreOffice needs on its input file.
var convertible = map[string]string{
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	"application/vnd.oasis.opendocument.text":                                 ".odt",
	"application/msword":                                                      ".doc",
	"application/rtf":                                                         ".rtf",
	"text/plain":                                                              ".txt",
	"text/markdown":                                                           ".md",
	"text/html":                                                               ".html",
}

// Detect classifies a buffer by magic bytes, never by filename. Filenames
// are only consulted to disambiguate plain text from markdown, where magic
// bytes cannot tell them apart.
func Detect(data []byte, filename string) Info {
	mtype := mimetype.Detect(data)
	mime := mtype.String()
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}

	log.Debug().Str("mime", mime).Str("filename", filename).Msg("detected upload type")

	if mime == "application/pdf" {
		return Info{Kind: KindPDF, MIMEType: mime, Extension: ".pdf"}
	}

	if ext, ok := convertible[mime]; ok {
		if mime == "text/plain" && strings.HasSuffix(strings.ToLower(filename), ".md") {
			ext = ".md"
		}
		return Info{Kind: KindConvertible, MIMEType: mime, Extension: ext}
	}

	return Info{Kind: KindUnsupported, MIMEType: mime, Extension: mtype.Extension()}
}
