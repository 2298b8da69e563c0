package methods

import (
	"strings"
	"testing"

	"github.com/GrainArc/SectorMap/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// dryRun 只生成语句不执行
func dryRun(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{DryRun: true})
	require.NoError(t, err)
	return db
}

func rowsStatement(t *testing.T, q SectorQuery) (string, []interface{}) {
	t.Helper()
	var rows []models.Sector
	stmt := dryRun(t).Scopes(q.Filter, q.Page).Find(&rows).Statement
	return stmt.SQL.String(), stmt.Vars
}

func countStatement(t *testing.T, q SectorQuery) (string, []interface{}) {
	t.Helper()
	var total int64
	stmt := dryRun(t).Model(&models.Sector{}).Scopes(q.Filter).Count(&total).Statement
	return stmt.SQL.String(), stmt.Vars
}

func TestCompileSectorFilter_Defaults(t *testing.T) {
	q := CompileSectorFilter(nil)

	assert.Equal(t, "", q.Where)
	assert.Empty(t, q.Args)
	assert.Equal(t, DefaultLimit, q.Limit)
	assert.Equal(t, DefaultOffset, q.Offset)

	rows, rowArgs := rowsStatement(t, q)
	assert.Equal(t, "SELECT * FROM `sectors` ORDER BY division, canal_name, id LIMIT ?", rows)
	assert.Equal(t, []interface{}{1000}, rowArgs)

	count, countArgs := countStatement(t, q)
	assert.Equal(t, "SELECT count(*) FROM `sectors`", count)
	assert.Empty(t, countArgs)
}

func TestCompileSectorFilter_DivisionAndSearch(t *testing.T) {
	q := CompileSectorFilter(map[string]string{
		"division": " East ",
		"search":   "canal7",
	})

	require.Len(t, q.Args, 5)
	assert.Equal(t, "East", q.Args[0])
	for _, arg := range q.Args[1:] {
		assert.Equal(t, "%canal7%", arg)
	}
	assert.True(t, strings.HasPrefix(q.Where, "division = ? AND ("))
	assert.Contains(t, q.Where, "LOWER(canal_name) LIKE LOWER(?)")
	assert.Contains(t, q.Where, "LOWER(office) LIKE LOWER(?)")
	assert.Contains(t, q.Where, "LOWER(name_ar) LIKE LOWER(?)")
	assert.Contains(t, q.Where, "CAST(objectid AS TEXT) LIKE ?")
	assert.Contains(t, q.Where, " OR ")

	rows, rowArgs := rowsStatement(t, q)
	count, countArgs := countStatement(t, q)
	assert.NotContains(t, rows, "canal7")
	assert.NotContains(t, count, "canal7")
	assert.Equal(t, countArgs, rowArgs[:len(rowArgs)-1])
	assert.Contains(t, rows, "WHERE "+q.Where+" ORDER BY")
	assert.Contains(t, count, "WHERE "+q.Where)
	assert.NotContains(t, count, "ORDER BY")
	assert.NotContains(t, count, "LIMIT")
}

func TestCompileSectorFilter_ValuesNeverInSQL(t *testing.T) {
	hostile := "x'; DROP TABLE sectors; --"
	q := CompileSectorFilter(map[string]string{
		"division": hostile,
		"office":   hostile,
		"search":   hostile,
	})

	rows, _ := rowsStatement(t, q)
	count, _ := countStatement(t, q)
	for _, sql := range []string{rows, count} {
		assert.NotContains(t, sql, "DROP")
		assert.NotContains(t, sql, "x'")
	}
	assert.Contains(t, q.Args, hostile)
}

func TestCompileSectorFilter_AreaBounds(t *testing.T) {
	q := CompileSectorFilter(map[string]string{"minArea": "10", "maxArea": "12.5"})

	assert.Equal(t, "design_a_f >= ? AND design_a_f <= ?", q.Where)
	require.Len(t, q.Args, 2)
	assert.True(t, decimal.NewFromInt(10).Equal(q.Args[0].(decimal.Decimal)))
	assert.True(t, decimal.RequireFromString("12.5").Equal(q.Args[1].(decimal.Decimal)))
}

func TestCompileSectorFilter_UnparsableNumbersAreAbsent(t *testing.T) {
	q := CompileSectorFilter(map[string]string{
		"minArea": "abc",
		"maxArea": "",
		"limit":   "lots",
		"offset":  "1.5",
	})

	assert.Equal(t, "", q.Where)
	assert.Empty(t, q.Args)
	assert.Equal(t, DefaultLimit, q.Limit)
	assert.Equal(t, DefaultOffset, q.Offset)
}

func TestCompileSectorFilter_Pagination(t *testing.T) {
	tests := []struct {
		name       string
		limit      string
		offset     string
		wantLimit  int
		wantOffset int
	}{
		{"explicit", "25", "50", 25, 50},
		{"negative clamps to zero", "-5", "-1", 0, 0},
		{"no upper bound", "1000000", "0", 1000000, 0},
		{"whitespace", " 7 ", " 3 ", 7, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := CompileSectorFilter(map[string]string{"limit": tt.limit, "offset": tt.offset})
			assert.Equal(t, tt.wantLimit, q.Limit)
			assert.Equal(t, tt.wantOffset, q.Offset)

			sql, args := rowsStatement(t, q)
			if tt.wantOffset > 0 {
				assert.True(t, strings.HasSuffix(sql, "LIMIT ? OFFSET ?"), sql)
				assert.Equal(t, []interface{}{tt.wantLimit, tt.wantOffset}, args)
			} else {
				assert.NotContains(t, sql, "OFFSET")
				assert.Equal(t, []interface{}{tt.wantLimit}, args)
			}
		})
	}
}

func TestCompileSectorFilter_UnknownParamsIgnored(t *testing.T) {
	q := CompileSectorFilter(map[string]string{"geom": "POINT(0 0)", "id": "1", "sort": "office"})
	assert.Equal(t, "", q.Where)
	assert.Empty(t, q.Args)
}

func TestCompileSectorFilter_EscapesLikeWildcards(t *testing.T) {
	q := CompileSectorFilter(map[string]string{"office": `50%_a\`})
	require.Len(t, q.Args, 1)
	assert.Equal(t, `%50\%\_a\\%`, q.Args[0])
}

func TestCompileSectorFilter_DivisionIsExact(t *testing.T) {
	q := CompileSectorFilter(map[string]string{"division": "east"})
	assert.Equal(t, "division = ?", q.Where)
	assert.Equal(t, []interface{}{"east"}, q.Args)
}

func TestCompileSectorFilter_TextNormalized(t *testing.T) {
	// "آ" 的分解形式 ا + U+0653
	q := CompileSectorFilter(map[string]string{
		"office": " \u0627\u0653ب ",
		"search": "\u0627\u0653",
	})
	require.Len(t, q.Args, 5)
	assert.Equal(t, "%\u0622ب%", q.Args[0])
	for _, arg := range q.Args[1:] {
		assert.Equal(t, "%\u0622%", arg)
	}
}

func TestDivisionQuery(t *testing.T) {
	q := DivisionQuery("North", "10", "")
	assert.Equal(t, "division = ?", q.Where)
	assert.Equal(t, []interface{}{"North"}, q.Args)
	assert.Equal(t, 10, q.Limit)
	assert.Equal(t, 0, q.Offset)
}

func TestNewPagination_HasMore(t *testing.T) {
	assert.True(t, NewPagination(30, 10, 0, 10).HasMore)
	assert.True(t, NewPagination(30, 10, 10, 10).HasMore)
	assert.False(t, NewPagination(30, 10, 20, 10).HasMore)
	assert.False(t, NewPagination(0, 10, 0, 0).HasMore)
	assert.False(t, NewPagination(5, 1000, 0, 5).HasMore)
}
