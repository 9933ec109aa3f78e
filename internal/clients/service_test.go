package clients

import (
	"testing"

	"tienda-backend/internal/apperr"
	"tienda-backend/internal/audit"
	"tienda-backend/internal/listing"
	"tienda-backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateClient(t *testing.T) {
	db := testutil.NewDB(t)

	c, err := CreateClient(db, ClientInput{Name: " Ana ", DocumentNumber: "123", Email: " Ana@Example.com "}, audit.Actor{})
	require.NoError(t, err)
	assert.Equal(t, "Ana", c.Name)
	assert.Equal(t, "ana@example.com", c.Email)
	require.NotNil(t, c.DocumentNumber)

	noDoc, err := CreateClient(db, ClientInput{Name: "Walk-in"}, audit.Actor{})
	require.NoError(t, err)
	assert.Nil(t, noDoc.DocumentNumber)
	_, err = CreateClient(db, ClientInput{Name: "Walk-in 2", DocumentNumber: "  "}, audit.Actor{})
	require.NoError(t, err, "blank documents do not collide")

	cases := []struct {
		name string
		in   ClientInput
		kind apperr.Kind
	}{
		{"missing name", ClientInput{}, apperr.KindValidation},
		{"bad email", ClientInput{Name: "x", Email: "not-an-email"}, apperr.KindValidation},
		{"duplicate document", ClientInput{Name: "x", DocumentNumber: "123"}, apperr.KindConflict},
		{"duplicate email", ClientInput{Name: "x", Email: "ANA@example.com"}, apperr.KindConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CreateClient(db, tc.in, audit.Actor{})
			assert.True(t, apperr.Is(err, tc.kind), "got %v", err)
		})
	}
}

func TestUpdateAndDeleteClient(t *testing.T) {
	db := testutil.NewDB(t)
	ana, err := CreateClient(db, ClientInput{Name: "Ana", DocumentNumber: "123"}, audit.Actor{})
	require.NoError(t, err)
	bob, err := CreateClient(db, ClientInput{Name: "Bob"}, audit.Actor{})
	require.NoError(t, err)

	doc := "123"
	_, err = UpdateClient(db, bob.ID, ClientUpdate{DocumentNumber: &doc}, audit.Actor{})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	phone := "555-0101"
	got, err := UpdateClient(db, ana.ID, ClientUpdate{Phone: &phone, DocumentNumber: &doc}, audit.Actor{})
	require.NoError(t, err)
	assert.Equal(t, "555-0101", got.Phone)

	require.NoError(t, DeleteClient(db, ana.ID, audit.Actor{}))
	_, err = GetClient(db, ana.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = UpdateClient(db, bob.ID, ClientUpdate{DocumentNumber: &doc}, audit.Actor{})
	require.NoError(t, err, "documents of deleted clients are free again")
}

func TestListClients(t *testing.T) {
	db := testutil.NewDB(t)
	for _, in := range []ClientInput{
		{Name: "Carla", Email: "carla@shop.test"},
		{Name: "Ana", DocumentNumber: "998877"},
		{Name: "Bruno", Phone: "555-1234"},
	} {
		_, err := CreateClient(db, in, audit.Actor{})
		require.NoError(t, err)
	}

	page := listing.Params{Page: 1, PageSize: 2}
	list, count, err := ListClients(db, "", page)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
	require.Len(t, list, 2)
	assert.Equal(t, "Ana", list[0].Name)

	for search, want := range map[string]string{"8877": "Ana", "SHOP": "Carla", "1234": "Bruno"} {
		list, _, err := ListClients(db, search, listing.Params{Page: 1, PageSize: 10})
		require.NoError(t, err)
		require.Len(t, list, 1, search)
		assert.Equal(t, want, list[0].Name)
	}
}
