package methods

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/GrainArc/SectorMap/models"
	"github.com/paulmach/orb"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64p(v int64) *int64 { return &v }
func strp(v string) *string { return &v }
func uintp(v uint) *uint    { return &v }
func dec(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(s), Valid: true}
}

func square(lon, lat, size float64) orb.MultiPolygon {
	return orb.MultiPolygon{{{
		{lon, lat}, {lon + size, lat}, {lon + size, lat + size}, {lon, lat + size}, {lon, lat},
	}}}
}

func fullSector() models.Sector {
	return models.Sector{
		ID:        42,
		ObjectID1: int64p(1001),
		ObjectID:  int64p(77),
		FeatureID: int64p(3),
		NoNemra:   int64p(12),
		CanalName: strp("Bahr Yusuf"),
		Office:    strp("Fayoum"),
		Division:  models.DivisionWest,
		NameAr:    strp("بحر يوسف"),
		DesignAF:  dec("1234.5678"),
		Remarks1:  strp("lined canal"),
		ShapeLeng: dec("0.12345678"),
		ShapeLe1:  dec("987.00000001"),
		ShapeArea: dec("0.00012345"),
		Geom: models.Geometry{MultiPolygon: orb.MultiPolygon{
			square(30.8, 29.3, 0.01)[0],
			{
				{{30.9, 29.4}, {30.95, 29.4}, {30.95, 29.45}, {30.9, 29.45}, {30.9, 29.4}},
				{{30.91, 29.41}, {30.92, 29.41}, {30.92, 29.42}, {30.91, 29.41}},
			},
		}},
		CreatedAt: time.Date(2024, 3, 1, 10, 20, 30, 123456789, time.UTC),
		UpdatedAt: time.Date(2024, 4, 2, 8, 0, 0, 0, time.UTC),
		CreatedBy: uintp(1),
		UpdatedBy: uintp(2),
	}
}

func assertDecimal(t *testing.T, want, got decimal.NullDecimal) {
	t.Helper()
	require.Equal(t, want.Valid, got.Valid)
	if want.Valid {
		assert.True(t, want.Decimal.Equal(got.Decimal), "want %s got %s", want.Decimal, got.Decimal)
	}
}

func TestFeatureRoundTrip(t *testing.T) {
	src := fullSector()

	data, err := json.Marshal(ToFeature(src))
	require.NoError(t, err)

	in, err := ParseFeature(data)
	require.NoError(t, err)
	got := in.Sector

	assert.Equal(t, src.ID, got.ID)
	assert.Equal(t, src.ObjectID1, got.ObjectID1)
	assert.Equal(t, src.ObjectID, got.ObjectID)
	assert.Equal(t, src.FeatureID, got.FeatureID)
	assert.Equal(t, src.NoNemra, got.NoNemra)
	assert.Equal(t, src.CanalName, got.CanalName)
	assert.Equal(t, src.Office, got.Office)
	assert.Equal(t, src.Division, got.Division)
	assert.Equal(t, src.NameAr, got.NameAr)
	assert.Equal(t, src.Remarks1, got.Remarks1)
	assertDecimal(t, src.DesignAF, got.DesignAF)
	assertDecimal(t, src.ShapeLeng, got.ShapeLeng)
	assertDecimal(t, src.ShapeLe1, got.ShapeLe1)
	assertDecimal(t, src.ShapeArea, got.ShapeArea)
	assert.Equal(t, src.Geom.MultiPolygon, got.Geom.MultiPolygon)
	assert.True(t, src.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, src.UpdatedAt.Equal(got.UpdatedAt))
	assert.Equal(t, src.CreatedBy, got.CreatedBy)
	assert.Equal(t, src.UpdatedBy, got.UpdatedBy)
	assert.True(t, in.HasGeometry)
}

func TestFeatureRoundTrip_NullFields(t *testing.T) {
	src := models.Sector{
		ID:       7,
		Division: models.DivisionEast,
		Geom:     models.Geometry{MultiPolygon: square(31, 30, 0.5)},
	}

	data, err := json.Marshal(ToFeature(src))
	require.NoError(t, err)
	in, err := ParseFeature(data)
	require.NoError(t, err)

	assert.Nil(t, in.Sector.CanalName)
	assert.Nil(t, in.Sector.ObjectID)
	assert.False(t, in.Sector.DesignAF.Valid)
	assert.True(t, in.Sector.CreatedAt.IsZero())
	assert.Nil(t, in.Sector.CreatedBy)
	assert.Equal(t, models.DivisionEast, in.Sector.Division)
}

func TestSectorProperties_ExternalNames(t *testing.T) {
	props := SectorProperties(fullSector())

	for _, name := range []string{
		"OBJECTID_1", "OBJECTID", "Id", "No_Nemra", "Canal_Name", "Office", "Division", "Name_Ar",
		"Design_A_F", "Remarks_1", "Shape_Leng", "Shape_Le_1", "Shape_Area",
		"CreatedAt", "UpdatedAt", "CreatedBy", "UpdatedBy",
	} {
		assert.Contains(t, props, name)
	}
	assert.NotContains(t, props, "canal_name")
	assert.NotContains(t, props, "geom")
	assert.Equal(t, json.Number("1234.5678"), props["Design_A_F"])
	assert.Equal(t, "West", props["Division"])
}

func TestToFeatureCollection(t *testing.T) {
	page := NewPagination(3, 2, 0, 2)
	fc := ToFeatureCollection([]models.Sector{fullSector(), fullSector()}, &page)

	data, err := json.Marshal(fc)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "FeatureCollection", decoded["type"])
	assert.Len(t, decoded["features"], 2)
	assert.Equal(t, map[string]interface{}{
		"total": float64(3), "limit": float64(2), "offset": float64(0), "hasMore": true,
	}, decoded["pagination"])
}

func TestToFeatureCollection_EmptyIsArray(t *testing.T) {
	data, err := json.Marshal(ToFeatureCollection(nil, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(data))
}

func TestParseFeature_PermissiveCoercion(t *testing.T) {
	in, err := ParseFeature([]byte(`{
		"type": "Feature",
		"geometry": {"type": "Polygon", "coordinates": [[[31,30],[31.1,30],[31.1,30.1],[31,30]]]},
		"properties": {
			"Division": "north",
			"Design_A_F": "not-a-number",
			"OBJECTID": "12x",
			"No_Nemra": "15",
			"Canal_Name": "C1\u0000",
			"Shape_Area": 1.123456789,
			"Unknown": "ignored"
		}
	}`))
	require.NoError(t, err)

	s := in.Sector
	assert.Equal(t, models.DivisionNorth, s.Division)
	assert.False(t, s.DesignAF.Valid)
	assert.Nil(t, s.ObjectID)
	assert.Equal(t, int64p(15), s.NoNemra)
	assert.Equal(t, strp("C1"), s.CanalName)
	assert.Equal(t, "1.12345679", s.ShapeArea.Decimal.String())
	assert.Len(t, s.Geom.MultiPolygon, 1)
}

func TestParseFeature_MissingGeometry(t *testing.T) {
	in, err := ParseFeature([]byte(`{"type":"Feature","geometry":null,"properties":{"Division":"East"}}`))
	require.NoError(t, err)
	assert.False(t, in.HasGeometry)
	assert.True(t, in.Sector.Geom.IsEmpty())
}

func TestParseFeature_Malformed(t *testing.T) {
	_, err := ParseFeature([]byte(`{"type":`))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = ParseFeature([]byte(`{"type":"FeatureCollection","features":[]}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestValidateGeometry(t *testing.T) {
	tests := []struct {
		name string
		geom orb.Geometry
		ok   bool
	}{
		{"polygon promoted", square(31, 30, 1)[0], true},
		{"multipolygon", square(31, 30, 1), true},
		{"point", orb.Point{31, 30}, false},
		{"linestring", orb.LineString{{31, 30}, {32, 31}}, false},
		{"nil", nil, false},
		{"empty multipolygon", orb.MultiPolygon{}, false},
		{"polygon without rings", orb.Polygon{}, false},
		{"too few positions", orb.Polygon{{{31, 30}, {32, 30}, {31, 30}}}, false},
		{"open ring", orb.Polygon{{{31, 30}, {32, 30}, {32, 31}, {31, 31}}}, false},
		{"latitude out of range", orb.Polygon{{{31, 30}, {32, 30}, {32, 95}, {31, 30}}}, false},
		{"longitude out of range", orb.Polygon{{{181, 30}, {182, 30}, {182, 31}, {181, 30}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mp, err := ValidateGeometry(tt.geom)
			if tt.ok {
				require.NoError(t, err)
				assert.NotEmpty(t, mp)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidGeometry)
		})
	}
}

func TestParseGeometry_RejectsGarbage(t *testing.T) {
	_, err := ParseGeometry([]byte(`{"type":"Polygon"}`))
	assert.ErrorIs(t, err, ErrInvalidGeometry)

	_, err = ParseGeometry([]byte(`"nope"`))
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestParseUpdate(t *testing.T) {
	in, err := ParseUpdate([]byte(`{"properties":{"Office":"Minya","design_a_f":12.5}}`))
	require.NoError(t, err)
	assert.Equal(t, "Minya", in.Fields["Office"])
	assert.Equal(t, json.Number("12.5"), in.Fields["design_a_f"])
	assert.Nil(t, in.Geometry)

	in, err = ParseUpdate([]byte(`{"fields":{"office":"A"},"geometry":{"type":"Polygon","coordinates":[[[31,30],[31.1,30],[31.1,30.1],[31,30]]]}}`))
	require.NoError(t, err)
	assert.Equal(t, "A", in.Fields["office"])
	assert.Len(t, in.Geometry, 1)

	_, err = ParseUpdate([]byte(`{"properties":{},"geometry":null}`))
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestParseBatch(t *testing.T) {
	items, err := ParseBatch([]byte(`[
		{"id": 1, "fields": {"office": "A"}},
		{"id": "999", "fields": {"office": "B"}},
		{"id": 3, "fields": {"office": "C"}}
	]`))
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, uint(1), items[0].ID)
	assert.Equal(t, uint(999), items[1].ID)
	assert.Equal(t, "C", items[2].Fields["office"])

	_, err = ParseBatch([]byte(`{"id":1}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestParseFeatureCollection(t *testing.T) {
	inputs, err := ParseFeatureCollection([]byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[31,30],[31.1,30],[31.1,30.1],[31,30]]]},"properties":{"Division":"East"}},
		{"type":"Feature","geometry":null,"properties":{"Division":"West"}}
	]}`))
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.True(t, inputs[0].HasGeometry)
	assert.False(t, inputs[1].HasGeometry)

	_, err = ParseFeatureCollection([]byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Point","coordinates":[31,30]},"properties":{}}
	]}`))
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestParseID(t *testing.T) {
	id, ok := ParseID("15")
	assert.True(t, ok)
	assert.Equal(t, uint(15), id)

	for _, bad := range []string{"", "0", "-1", "abc", "1.5"} {
		_, ok := ParseID(bad)
		assert.False(t, ok, bad)
	}
}
