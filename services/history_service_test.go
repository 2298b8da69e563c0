package services

import (
	"context"
	"testing"

	"github.com/GrainArc/SectorMap/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_NewestFirstWithActorIdentity(t *testing.T) {
	svc, db := newService(t)
	history := NewHistoryService(db)

	id := mustCreate(t, svc, models.DivisionEast, "Mahmoudiya", withOffice("Damanhour"))
	require.NoError(t, svc.Update(context.Background(), editor, id, map[string]interface{}{"office": "Kafr El Dawwar"}, nil))
	require.NoError(t, svc.Update(context.Background(), admin, id, map[string]interface{}{"no_nemra": 3}, nil))

	entries, err := history.History(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "no_nemra", entries[0].FieldName)
	assert.Equal(t, "admin", entries[0].Username)
	assert.Equal(t, "System Admin", entries[0].FullName)
	assert.Nil(t, entries[0].OldValue)
	assert.Equal(t, "3", *entries[0].NewValue)

	assert.Equal(t, "office", entries[1].FieldName)
	assert.Equal(t, "editor", entries[1].Username)
	assert.Equal(t, "Field Editor", entries[1].FullName)
	assert.Equal(t, "Damanhour", *entries[1].OldValue)
	assert.Equal(t, "Kafr El Dawwar", *entries[1].NewValue)

	assert.Equal(t, models.ActionInsert, entries[2].Action)
	assert.Equal(t, models.FieldAll, entries[2].FieldName)

	for i := 1; i < len(entries); i++ {
		assert.False(t, entries[i].ChangedAt.After(entries[i-1].ChangedAt))
	}
}

func TestHistory_UnknownSector(t *testing.T) {
	_, db := newService(t)
	_, err := NewHistoryService(db).History(context.Background(), 777)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHistory_SectorWithoutUpdates(t *testing.T) {
	svc, db := newService(t)
	id := mustCreate(t, svc, models.DivisionNorth, "Bahr Shebin")

	entries, err := NewHistoryService(db).History(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].SectorID)
	assert.Equal(t, "editor", entries[0].Username)
}
