package methods

import (
	"strconv"
	"strings"

	"github.com/GrainArc/SectorMap/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 分页默认值
const (
	DefaultLimit  = 1000
	DefaultOffset = 0
)

// SectorQuery 编译后的筛选条件；Where 只含占位符，取值都在 Args 中
type SectorQuery struct {
	Where  string
	Args   []interface{}
	Limit  int
	Offset int
}

// CompileSectorFilter 将查询参数编译为参数化条件。
// 识别 division、office、minArea、maxArea、search、limit、offset，其它参数忽略；
// 数值解析失败视为未提供。
func CompileSectorFilter(params map[string]string) SectorQuery {
	q := SectorQuery{
		Limit:  parsePage(params["limit"], DefaultLimit),
		Offset: parsePage(params["offset"], DefaultOffset),
	}
	var conds []string

	if v := strings.TrimSpace(params["division"]); v != "" {
		conds = append(conds, "division = ?")
		q.Args = append(q.Args, v)
	}
	if v := strings.TrimSpace(CleanText(params["office"])); v != "" {
		conds = append(conds, `LOWER(office) LIKE LOWER(?) ESCAPE '\'`)
		q.Args = append(q.Args, likePattern(v))
	}
	if d, err := decimal.NewFromString(strings.TrimSpace(params["minArea"])); err == nil {
		conds = append(conds, "design_a_f >= ?")
		q.Args = append(q.Args, d)
	}
	if d, err := decimal.NewFromString(strings.TrimSpace(params["maxArea"])); err == nil {
		conds = append(conds, "design_a_f <= ?")
		q.Args = append(q.Args, d)
	}
	if v := strings.TrimSpace(CleanText(params["search"])); v != "" {
		pattern := likePattern(v)
		conds = append(conds, `(LOWER(canal_name) LIKE LOWER(?) ESCAPE '\'`+
			` OR LOWER(office) LIKE LOWER(?) ESCAPE '\'`+
			` OR LOWER(name_ar) LIKE LOWER(?) ESCAPE '\'`+
			` OR CAST(objectid AS TEXT) LIKE ? ESCAPE '\')`)
		q.Args = append(q.Args, pattern, pattern, pattern, pattern)
	}

	q.Where = strings.Join(conds, " AND ")
	return q
}

// Filter 筛选条件，计数与分页查询共用
func (q SectorQuery) Filter(db *gorm.DB) *gorm.DB {
	if q.Where == "" {
		return db
	}
	return db.Where(q.Where, q.Args...)
}

// Page 按分区、渠道名、id 排序后分页
func (q SectorQuery) Page(db *gorm.DB) *gorm.DB {
	return db.Order("division, canal_name, id").Limit(q.Limit).Offset(q.Offset)
}

// DivisionQuery 按分区查询，分页参数单独给出
func DivisionQuery(division models.Division, limit, offset string) SectorQuery {
	return CompileSectorFilter(map[string]string{
		"division": string(division),
		"limit":    limit,
		"offset":   offset,
	})
}

func parsePage(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	if n < 0 {
		return 0
	}
	return n
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(v string) string {
	return "%" + likeEscaper.Replace(v) + "%"
}
