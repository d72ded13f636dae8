//go:build integration

package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"imrich/internal/certificate/store"
	"imrich/pkg/testutil/containers"
)

func TestPostgresStoreContract(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	pg := containers.GetManager().GetPostgres(t)

	suite.Run(t, &contractSuite{newStore: func() Store {
		require.NoError(t, pg.TruncateTables(context.Background(), "certificates"))
		return store.NewPostgres(pg.DB)
	}})
}
