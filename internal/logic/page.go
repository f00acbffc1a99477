package logic

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// NormalizePage 页码从1开始，页大小限制在 [1, maxPageSize]
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}
