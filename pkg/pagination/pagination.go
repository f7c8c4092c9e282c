// Package pagination extracts count/offset windows from requests and builds
// the paged response envelopes the OpenLMIS API uses.
package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// Params holds the pagination window of a request. Count == 0 means no limit.
type Params struct {
	Count  int
	Offset int
}

// FromContext reads the window from the query string. Both the plain
// count/offset names and the FHIR _count/_offset names are honored.
func FromContext(c echo.Context) Params {
	count, _ := strconv.Atoi(c.QueryParam("count"))
	if count <= 0 {
		count, _ = strconv.Atoi(c.QueryParam("_count"))
	}
	if count < 0 {
		count = 0
	}

	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset <= 0 {
		offset, _ = strconv.Atoi(c.QueryParam("_offset"))
	}
	if offset < 0 {
		offset = 0
	}

	return Params{Count: count, Offset: offset}
}

// Page is the OpenLMIS paged envelope.
type Page struct {
	Content       any `json:"content"`
	TotalElements int `json:"totalElements"`
	TotalPages    int `json:"totalPages"`
	Size          int `json:"size"`
	Number        int `json:"number"`
}

// NewPage wraps an already-windowed slice. size reflects the returned window,
// totalElements the full filtered count.
func NewPage(content any, size, total int) *Page {
	pages := 1
	if size > 0 && total > size {
		pages = (total + size - 1) / size
	}
	return &Page{
		Content:       content,
		TotalElements: total,
		TotalPages:    pages,
		Size:          size,
		Number:        0,
	}
}
