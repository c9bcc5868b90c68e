package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verigate/internal/income/lock"
	"verigate/internal/income/store"
	"verigate/internal/platform/config"
	"verigate/pkg/testutil"
)

func TestBuildInfraFallsBackToInProcess(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	in, err := buildInfra(context.Background(), config.Config{}, log)
	require.NoError(t, err)
	defer in.Close()

	assert.IsType(t, &store.InMemory{}, in.stores.Cases)
	assert.IsType(t, &lock.InMemory{}, in.locker)
	require.NotNil(t, in.audit)

	rr := testutil.DoRequest(http.HandlerFunc(in.HandleHealth), testutil.NewRequest(t, http.MethodGet, "/health"))
	assert.Equal(t, http.StatusOK, rr.Code)

	var body healthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Empty(t, body.Backends)
}
