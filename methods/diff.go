package methods

import (
	"errors"
	"fmt"

	"github.com/GrainArc/SectorMap/models"
	"github.com/paulmach/orb"
)

// ErrDuplicateField 同一字段以列名和属性名各出现一次
var ErrDuplicateField = errors.New("field given more than once")

// FieldChange 单个字段的变化，Old/New 为审计快照文本
type FieldChange struct {
	Field string
	Old   *string
	New   *string
}

// Diff 差异结果：Changes 写审计，Assignments 写图斑表
type Diff struct {
	Changes     []FieldChange
	Assignments map[string]interface{}
}

// Empty 没有任何需要写入的字段
func (d *Diff) Empty() bool {
	return len(d.Assignments) == 0
}

// CheckFields 只校验字段名是否都在白名单内，不做类型转换
func CheckFields(fields map[string]interface{}) error {
	_, err := resolveFields(fields)
	return err
}

// DiffSector 对比当前图斑与提交的字段。
// fields 按列名或对外属性名给出，未提供的字段不变；值相同的字段不产生变化；
// 无法解析的数值按未提供处理；geom 非空时总视为变化，记一条 geometry 审计。
func DiffSector(current *models.Sector, fields map[string]interface{}, geom orb.MultiPolygon) (*Diff, error) {
	resolved, err := resolveFields(fields)
	if err != nil {
		return nil, err
	}

	diff := &Diff{Assignments: make(map[string]interface{})}
	for _, f := range sectorFields {
		raw, ok := resolved[f.Column]
		if !ok {
			continue
		}
		v, ok := f.Coerce(raw)
		if !ok {
			continue
		}
		oldText := Snapshot(f.Value(current))
		newText := Snapshot(v)
		if sameSnapshot(oldText, newText) {
			continue
		}
		diff.Changes = append(diff.Changes, FieldChange{Field: f.Column, Old: oldText, New: newText})
		diff.Assignments[f.Column] = v
	}

	if len(geom) > 0 {
		diff.Changes = append(diff.Changes, FieldChange{
			Field: models.FieldGeometry,
			Old:   Snapshot(current.Geom),
			New:   Snapshot(geom),
		})
		diff.Assignments["geom"] = models.Geometry{MultiPolygon: geom}
	}
	return diff, nil
}

func resolveFields(fields map[string]interface{}) (map[string]interface{}, error) {
	resolved := make(map[string]interface{}, len(fields))
	for name, raw := range fields {
		f, err := LookupField(name)
		if err != nil {
			return nil, err
		}
		if _, dup := resolved[f.Column]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateField, f.Column)
		}
		resolved[f.Column] = raw
	}
	return resolved, nil
}
