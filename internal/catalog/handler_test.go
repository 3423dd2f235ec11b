package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, ingredients ...Ingredient) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, NewMemory(ingredients...))
	r := chi.NewRouter()
	r.Route("/catalog", handler.MountRoutes)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestCreateAndGetIngredient(t *testing.T) {
	srv := newTestServer(t)

	body := `{"id":"lait","name":"Lait entier","unit":"L","shelf_life_days":5,"degradation_rate":"0.02"}`
	resp, err := http.Post(srv.URL+"/catalog/ingredients", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/catalog/ingredients/lait")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		ID              string `json:"id"`
		Name            string `json:"name"`
		Unit            string `json:"unit"`
		ShelfLifeDays   int    `json:"shelf_life_days"`
		DegradationRate string `json:"degradation_rate"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, "Lait entier", got.Name)
	require.Equal(t, 5, got.ShelfLifeDays)
	require.Equal(t, "0.02", got.DegradationRate)
}

func TestCreateIngredientValidation(t *testing.T) {
	srv := newTestServer(t)

	cases := []string{
		`{"name":"sans id","unit":"kg"}`,
		`{"id":"x","name":"taux invalide","unit":"kg","degradation_rate":"1.5"}`,
		`{"id":"y","name":"taux negatif","unit":"kg","degradation_rate":"-0.1"}`,
	}
	for _, body := range cases {
		resp, err := http.Post(srv.URL+"/catalog/ingredients", "application/json", bytes.NewBufferString(body))
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestCreateDuplicateIngredientConflicts(t *testing.T) {
	srv := newTestServer(t, Ingredient{ID: "riz", Name: "Riz", Unit: "kg"})

	resp, err := http.Post(srv.URL+"/catalog/ingredients", "application/json",
		bytes.NewBufferString(`{"id":"riz","name":"Riz","unit":"kg"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestGetUnknownIngredient(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/catalog/ingredients/fantome")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMemoryDegradationRate(t *testing.T) {
	mem := NewMemory(Ingredient{ID: "lait", DegradationRate: decimal.RequireFromString("0.02")})

	rate, ok, err := mem.DegradationRate(context.Background(), "lait")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, rate.Equal(decimal.RequireFromString("0.02")))

	_, ok, err = mem.DegradationRate(context.Background(), "fantome")
	require.NoError(t, err)
	require.False(t, ok)
}
