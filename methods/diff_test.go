package methods

import (
	"encoding/json"
	"testing"

	"github.com/GrainArc/SectorMap/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffSector_EqualValuesProduceNothing(t *testing.T) {
	current := fullSector()

	diff, err := DiffSector(&current, map[string]interface{}{
		"office":     "Fayoum",
		"Canal_Name": "Bahr Yusuf",
		"design_a_f": json.Number("1234.56780"),
		"objectid":   "77",
		"no_nemra":   float64(12),
	}, nil)
	require.NoError(t, err)
	assert.True(t, diff.Empty())
	assert.Empty(t, diff.Changes)
}

func TestDiffSector_EmptyProposal(t *testing.T) {
	current := fullSector()
	diff, err := DiffSector(&current, nil, nil)
	require.NoError(t, err)
	assert.True(t, diff.Empty())
}

func TestDiffSector_ChangedFields(t *testing.T) {
	current := fullSector()

	diff, err := DiffSector(&current, map[string]interface{}{
		"office":     "Minya",
		"canal_name": nil,
		"design_a_f": "10",
		"remarks_1":  "lined canal",
	}, nil)
	require.NoError(t, err)

	require.Len(t, diff.Changes, 3)
	assert.Equal(t, FieldChange{Field: "canal_name", Old: strp("Bahr Yusuf"), New: nil}, diff.Changes[0])
	assert.Equal(t, FieldChange{Field: "office", Old: strp("Fayoum"), New: strp("Minya")}, diff.Changes[1])
	assert.Equal(t, FieldChange{Field: "design_a_f", Old: strp("1234.5678"), New: strp("10")}, diff.Changes[2])

	require.Len(t, diff.Assignments, 3)
	assert.Nil(t, diff.Assignments["canal_name"])
	assert.Equal(t, "Minya", diff.Assignments["office"])
	assert.NotContains(t, diff.Assignments, "remarks_1")
}

func TestDiffSector_UnparsableNumberIsAbsent(t *testing.T) {
	current := fullSector()
	diff, err := DiffSector(&current, map[string]interface{}{"design_a_f": "ten"}, nil)
	require.NoError(t, err)
	assert.True(t, diff.Empty())
}

func TestDiffSector_GeometryAlwaysChanges(t *testing.T) {
	current := fullSector()

	diff, err := DiffSector(&current, nil, current.Geom.MultiPolygon)
	require.NoError(t, err)

	require.Len(t, diff.Changes, 1)
	change := diff.Changes[0]
	assert.Equal(t, models.FieldGeometry, change.Field)
	require.NotNil(t, change.Old)
	require.NotNil(t, change.New)
	assert.JSONEq(t, *change.Old, *change.New)
	assert.Contains(t, *change.New, `"MultiPolygon"`)
	assert.IsType(t, models.Geometry{}, diff.Assignments["geom"])
}

func TestDiffSector_RejectsNamesOutsideAllowList(t *testing.T) {
	current := fullSector()

	_, err := DiffSector(&current, map[string]interface{}{"password_hash": "x"}, nil)
	assert.ErrorIs(t, err, ErrUnknownField)

	for _, name := range []string{"division", "Division", "id", "geom", "created_by", "UpdatedAt"} {
		_, err := DiffSector(&current, map[string]interface{}{name: "x"}, nil)
		assert.ErrorIs(t, err, ErrImmutableField, name)
	}
}

func TestDiffSector_DuplicateNames(t *testing.T) {
	current := fullSector()
	_, err := DiffSector(&current, map[string]interface{}{"office": "A", "Office": "B"}, nil)
	assert.ErrorIs(t, err, ErrDuplicateField)
}

func TestCheckFields(t *testing.T) {
	assert.NoError(t, CheckFields(map[string]interface{}{"office": 1, "Name_Ar": "x"}))
	assert.ErrorIs(t, CheckFields(map[string]interface{}{"bogus": 1}), ErrUnknownField)
	assert.NoError(t, CheckFields(nil))
}
