package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/meterboard/meterboard/pkg/storage"
	"github.com/meterboard/meterboard/pkg/storage/storagemock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestHandleListMeters(t *testing.T) {
	t.Run("all kinds", func(t *testing.T) {
		mockS := &storagemock.MockDatabase{}
		mockS.On("DiscoverMeters", mock.Anything, []string(nil)).Return([]string{"eg_strom", "strom_total"}, nil)
		handler := New(mockS).setupHandler()

		req := httptest.NewRequest(http.MethodGet, "/api/meters", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var ids []string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&ids))
		assert.Equal(t, []string{"eg_strom", "strom_total"}, ids)
		mockS.AssertExpectations(t)
	})

	t.Run("kind filter", func(t *testing.T) {
		mockS := &storagemock.MockDatabase{}
		mockS.On("DiscoverMeters", mock.Anything, []string{"m³"}).Return([]string{}, nil)
		handler := New(mockS).setupHandler()

		req := httptest.NewRequest(http.MethodGet, "/api/meters?kind=m%C2%B3", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
		mockS.AssertExpectations(t)
	})

	t.Run("unknown kind", func(t *testing.T) {
		mockS := &storagemock.MockDatabase{}
		mockS.On("DiscoverMeters", mock.Anything, []string{"MWh"}).Return(nil, fmt.Errorf("%w: MWh", storage.ErrUnknownKind))
		handler := New(mockS).setupHandler()

		req := httptest.NewRequest(http.MethodGet, "/api/meters?kind=MWh", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		mockS := &storagemock.MockDatabase{}
		mockS.On("DiscoverMeters", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))
		handler := New(mockS).setupHandler()

		req := httptest.NewRequest(http.MethodGet, "/api/meters", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		require.Equal(t, http.StatusInternalServerError, w.Code)
		var body struct {
			Message string `json:"message"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Contains(t, body.Message, "connection refused")
	})

	t.Run("method not allowed", func(t *testing.T) {
		handler := New(&storagemock.MockDatabase{}).setupHandler()
		req := httptest.NewRequest(http.MethodPost, "/api/meters", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}
