package util

import "strconv"

func Calculate(page, size int) (from, limit int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 10
	}
	from = (page - 1) * size
	return from, size
}

func ParseIntDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// Page describes the position of one listing page for the pager in views.
type Page struct {
	CurrentPage  int
	PreviousPage int
	NextPage     int
	LastPage     int
	HasPrevious  bool
	HasNext      bool
	Total        int64
}

func NewPage(page, size int, total int64) Page {
	from, size := Calculate(page, size)
	current := from/size + 1
	last := int((total + int64(size) - 1) / int64(size))
	if last < 1 {
		last = 1
	}
	return Page{
		CurrentPage:  current,
		PreviousPage: current - 1,
		NextPage:     current + 1,
		LastPage:     last,
		HasPrevious:  current > 1,
		HasNext:      int64(current*size) < total,
		Total:        total,
	}
}
