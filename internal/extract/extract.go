package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimePPTX = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
)

// ErrUnreadable is returned when a payload claims a known format but cannot be parsed.
var ErrUnreadable = errors.New("document unreadable")

// Info describes an uploaded document.
type Info struct {
	MimeType  string
	PageCount int
}

// Inspect normalizes the mime type and counts pages for formats that carry them.
// Formats without a page notion return PageCount 0 and no error.
func Inspect(ctx context.Context, data []byte, mimeType string, fileName string) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	info := Info{MimeType: normalizeMimeType(mimeType, fileName, data)}
	switch info.MimeType {
	case mimePDF:
		n, err := pdfPages(data)
		if err != nil {
			return info, fmt.Errorf("%w: pdf: %v", ErrUnreadable, err)
		}
		info.PageCount = n
	case mimeDOCX, mimePPTX:
		n, err := officePages(data)
		if err != nil {
			return info, fmt.Errorf("%w: office: %v", ErrUnreadable, err)
		}
		info.PageCount = n
	}
	return info, nil
}

func pdfPages(data []byte) (n int, err error) {
	// The pdf reader panics on some malformed inputs.
	defer func() {
		if rec := recover(); rec != nil {
			n, err = 0, fmt.Errorf("parse: %v", rec)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, err
	}
	return r.NumPage(), nil
}

type appProperties struct {
	Pages  int `xml:"Pages"`
	Slides int `xml:"Slides"`
}

// officePages reads the page (or slide) count the authoring app stored in docProps/app.xml.
func officePages(data []byte) (int, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, err
	}
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") != "docProps/app.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return 0, err
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return 0, err
		}
		var props appProperties
		if err := xml.Unmarshal(raw, &props); err != nil {
			return 0, err
		}
		if props.Pages > 0 {
			return props.Pages, nil
		}
		return props.Slides, nil
	}
	return 0, nil
}

func normalizeMimeType(mimeType string, fileName string, data []byte) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	if clean == "application/octet-stream" && strings.EqualFold(filepath.Ext(fileName), ".pdf") && bytes.HasPrefix(data, []byte("%PDF-")) {
		return mimePDF
	}
	if clean != "application/zip" {
		return clean
	}

	if mapped := mapOOXMLFromZip(data); mapped != "" {
		return mapped
	}

	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".docx":
		return mimeDOCX
	case ".xlsx":
		return mimeXLSX
	case ".pptx":
		return mimePPTX
	default:
		return clean
	}
}

func mapOOXMLFromZip(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ""
	}
	for _, f := range zr.File {
		switch strings.ReplaceAll(f.Name, "\\", "/") {
		case "word/document.xml":
			return mimeDOCX
		case "xl/workbook.xml":
			return mimeXLSX
		case "ppt/presentation.xml":
			return mimePPTX
		}
	}
	return ""
}
