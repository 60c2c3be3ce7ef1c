package bd

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"rental-system/pkg/types"
)

// ApplyFilters добавляет условия из filter[...] по белому списку колонок.
// Значения через запятую превращаются в IN (...).
func ApplyFilters(builder sq.SelectBuilder, filter types.Filter, allowedMap map[string]string) sq.SelectBuilder {
	for jsonField, val := range filter.Filter {
		dbCol, ok := allowedMap[jsonField]
		if !ok {
			continue
		}

		if s, ok := val.(string); ok && strings.Contains(s, ",") {
			builder = builder.Where(sq.Eq{dbCol: strings.Split(s, ",")})
		} else {
			builder = builder.Where(sq.Eq{dbCol: val})
		}
	}
	return builder
}

// ApplySearch - ILIKE по одной или нескольким колонкам через OR.
func ApplySearch(builder sq.SelectBuilder, search string, columns ...string) sq.SelectBuilder {
	if search == "" || len(columns) == 0 {
		return builder
	}
	or := sq.Or{}
	for _, col := range columns {
		or = append(or, sq.ILike{col: "%" + search + "%"})
	}
	return builder.Where(or)
}

// ApplyListParams - сортировка и пагинация. Условия WHERE применяются отдельно,
// чтобы их можно было переиспользовать в COUNT.
func ApplyListParams(builder sq.SelectBuilder, filter types.Filter, allowedMap map[string]string, defaultOrder string) sq.SelectBuilder {
	sorted := false
	for jsonField, dir := range filter.Sort {
		dbCol, ok := allowedMap[jsonField]
		if !ok {
			continue
		}
		sqlDir := "ASC"
		if strings.ToLower(dir) == "desc" {
			sqlDir = "DESC"
		}
		builder = builder.OrderBy(fmt.Sprintf("%s %s", dbCol, sqlDir))
		sorted = true
	}
	if !sorted && defaultOrder != "" {
		builder = builder.OrderBy(defaultOrder)
	}

	if filter.WithPagination {
		if filter.Limit > 0 {
			builder = builder.Limit(uint64(filter.Limit))
		}
		if filter.Offset > 0 {
			builder = builder.Offset(uint64(filter.Offset))
		}
	}

	return builder
}
