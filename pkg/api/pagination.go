package api

import (
	"net/http"
	"strconv"

	"github.com/codeops-dev/registry/pkg/apperrors"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

// page is the envelope paged list endpoints return.
type page struct {
	Content       interface{} `json:"content"`
	Page          int         `json:"page"`
	Size          int         `json:"size"`
	TotalElements int         `json:"totalElements"`
	TotalPages    int         `json:"totalPages"`
	IsLast        bool        `json:"isLast"`
}

// pageParams reads page and size from the query. page is 0-based.
func pageParams(r *http.Request) (int, int, error) {
	pageNum := 0
	size := defaultPageSize

	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return 0, 0, apperrors.Validationf("invalid page parameter: %s", raw)
		}
		pageNum = n
	}
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return 0, 0, apperrors.Validationf("invalid size parameter: %s", raw)
		}
		size = n
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return pageNum, size, nil
}

// paginate slices items into the envelope. A page past the end yields
// empty content, not an error.
func paginate[T any](items []T, pageNum, size int) *page {
	total := len(items)
	totalPages := (total + size - 1) / size
	if totalPages == 0 {
		totalPages = 1
	}

	start := pageNum * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}

	content := items[start:end]
	if content == nil {
		content = []T{}
	}
	return &page{
		Content:       content,
		Page:          pageNum,
		Size:          size,
		TotalElements: total,
		TotalPages:    totalPages,
		IsLast:        pageNum >= totalPages-1,
	}
}
