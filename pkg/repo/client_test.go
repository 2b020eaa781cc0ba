package repo_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wharfside/wharf/internal/fakepds"
	"github.com/wharfside/wharf/pkg/models"
	"github.com/wharfside/wharf/pkg/repo"
)

const (
	tenant     = "did:plc:clienttest"
	collection = "app.wharf.site.text"
)

func ownerClient(pds *fakepds.Server) *repo.Client {
	return repo.NewClient(pds.URL(), repo.Session{DID: tenant, AccessToken: "tok"})
}

func TestGetRecord_absentIsNotAnError(t *testing.T) {
	pds := fakepds.New()
	defer pds.Close()

	rec, err := ownerClient(pds).GetRecord(context.Background(), tenant, collection, "nope")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestPutThenGet(t *testing.T) {
	pds := fakepds.New()
	defer pds.Close()
	c := ownerClient(pds)

	value := models.Value{models.TypeField: collection, "body": "hello"}
	require.NoError(t, c.PutRecord(context.Background(), collection, "k1", value))

	rec, err := c.GetRecord(context.Background(), tenant, collection, "k1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, tenant, rec.URI.DID)
	assert.Equal(t, collection, rec.URI.Collection)
	assert.Equal(t, "k1", rec.URI.RecordKey)
	assert.Equal(t, "hello", rec.Value["body"])
}

func TestPutRecord_requiresSession(t *testing.T) {
	pds := fakepds.New()
	defer pds.Close()

	anon := repo.NewClient(pds.URL(), repo.Session{})
	err := anon.PutRecord(context.Background(), collection, "k1", models.Value{})
	require.Error(t, err)
	// Nothing reached the store.
	assert.Zero(t, pds.Calls("putRecord"))
}

func TestDeleteRecord(t *testing.T) {
	pds := fakepds.New()
	defer pds.Close()
	c := ownerClient(pds)

	pds.Seed(tenant, collection, "k1", models.Value{"body": "bye"})
	require.NoError(t, c.DeleteRecord(context.Background(), collection, "k1"))
	assert.Nil(t, pds.Record(tenant, collection, "k1"))
}

func TestStoreError_decoded(t *testing.T) {
	pds := fakepds.New()
	defer pds.Close()
	c := ownerClient(pds)

	pds.FailCalls("listRecords", 1, http.StatusInternalServerError, "InternalServerError")
	_, err := c.ListRecords(context.Background(), tenant, collection, 10, "")
	require.Error(t, err)

	var se *repo.StoreError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.Status)
	assert.Equal(t, "InternalServerError", se.Code)
	assert.False(t, se.NotFound())
}
