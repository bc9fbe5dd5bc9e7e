package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/meterboard/meterboard/pkg/catalog"
	"github.com/meterboard/meterboard/pkg/storage"
	"github.com/meterboard/meterboard/pkg/storage/storagemock"
	"github.com/meterboard/meterboard/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type chartBody struct {
	Kind    string           `json:"kind"`
	Range   types.TimeRange  `json:"range"`
	Layout  types.Layout     `json:"layout"`
	Sources []types.Source   `json:"sources"`
	Rows    []map[string]any `json:"rows"`
	Totals  types.Summary    `json:"totals"`
}

func doChart(t *testing.T, srv *Server, q url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/chart?"+q.Encode(), nil)
	w := httptest.NewRecorder()
	srv.setupHandler().ServeHTTP(w, req)
	return w
}

func TestHandleChart(t *testing.T) {
	now := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)

	newServer := func(mockS *storagemock.MockDatabase) *Server {
		srv := New(mockS)
		srv.now = func() time.Time { return now }
		return srv
	}

	t.Run("merge two meters", func(t *testing.T) {
		mockS := &storagemock.MockDatabase{}
		mockS.On("GetReadings", mock.Anything, storage.KindElectricity, []string{"eg_strom", "og1_strom"}, mock.MatchedBy(func(r types.TimeRange) bool {
			return r.End.Equal(now) && r.Start.Equal(now.AddDate(0, 0, -7))
		})).Return(map[string][]types.Reading{
			"eg_strom": {
				{Timestamp: "2024-05-09T00:00:00Z", Value: types.Float(10), SourceID: "eg_strom"},
				{Timestamp: "2024-05-10T00:00:00Z", Value: types.Float(20), SourceID: "eg_strom"},
			},
			"og1_strom": {
				{Timestamp: "2024-05-09T00:00:00Z", Value: types.Float(5), SourceID: "og1_strom"},
			},
		}, nil)

		q := url.Values{}
		q.Add("source", "eg_strom")
		q.Add("source", "og1_strom")
		q.Add("name", "")
		q.Add("name", "Upstairs")
		q.Set("preset", "Last 7 Days")
		w := doChart(t, newServer(mockS), q)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

		var body chartBody
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "Last 7 Days", body.Range.Label)
		assert.Equal(t, storage.KindElectricity, body.Kind)
		require.Len(t, body.Sources, 2)
		assert.Equal(t, "Eg Strom", body.Sources[0].Name)
		assert.Equal(t, "Upstairs", body.Sources[1].Name)
		assert.NotEqual(t, body.Sources[0].Color, body.Sources[1].Color)

		require.Len(t, body.Rows, 2)
		assert.Equal(t, "May 9, 2024", body.Rows[0]["formattedDate"])
		assert.Equal(t, 10.0, body.Rows[0]["eg_strom"])
		assert.Equal(t, 5.0, body.Rows[0]["og1_strom"])
		assert.Contains(t, body.Rows[1], "og1_strom")
		assert.Nil(t, body.Rows[1]["og1_strom"])

		assert.Equal(t, 35.0, body.Totals.GrandTotal)
		assert.InDelta(t, 85.714, body.Totals.Sources[0].PercentOfGrand, 0.001)

		assert.Equal(t, 400, body.Layout.ChartHeight)
		assert.False(t, body.Layout.Compact)
		mockS.AssertExpectations(t)
	})

	t.Run("compact layout from width", func(t *testing.T) {
		mockS := &storagemock.MockDatabase{}
		mockS.On("GetReadings", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(map[string][]types.Reading{}, nil)

		q := url.Values{}
		q.Set("source", "lake")
		q.Set("width", "390")
		q.Set("format", "month")
		w := doChart(t, newServer(mockS), q)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var body chartBody
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.True(t, body.Layout.Compact)
		assert.Equal(t, 300, body.Layout.ChartHeight)
		assert.Equal(t, -45, body.Layout.XAxisLabelRotation)
		assert.Empty(t, body.Rows)
		require.Len(t, body.Totals.Sources, 1)
		assert.Zero(t, body.Totals.Sources[0].PercentOfGrand)
		assert.Equal(t, "Last 30 Days", body.Range.Label, "default preset")
	})

	t.Run("custom range includes end day", func(t *testing.T) {
		mockS := &storagemock.MockDatabase{}
		mockS.On("GetReadings", mock.Anything, storage.KindWater, []string{"lake"}, mock.MatchedBy(func(r types.TimeRange) bool {
			return r.Start.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) &&
				r.End.Equal(time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))
		})).Return(map[string][]types.Reading{}, nil)

		q := url.Values{}
		q.Set("source", "lake")
		q.Set("kind", storage.KindWater)
		q.Set("start", "2024-01-01")
		q.Set("end", "2024-03-01")
		w := doChart(t, newServer(mockS), q)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var body chartBody
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "Jan 1, 2024 - Mar 1, 2024", body.Range.Label)
		assert.Equal(t, storage.KindWater, body.Kind)
		mockS.AssertExpectations(t)
	})

	t.Run("bad requests", func(t *testing.T) {
		tests := []struct {
			name   string
			query  url.Values
			errMsg string
		}{
			{"no source", url.Values{}, "at least one source"},
			{"duplicate source", url.Values{"source": {"a", "a"}}, "duplicate source"},
			{"unknown preset", url.Values{"source": {"a"}, "preset": {"Forever"}}, "unknown range preset"},
			{"inverted custom", url.Values{"source": {"a"}, "start": {"2024-03-01"}, "end": {"2024-01-01"}}, "end date is before start date"},
			{"half custom", url.Values{"source": {"a"}, "start": {"2024-03-01"}}, "start and end"},
			{"bad date", url.Values{"source": {"a"}, "start": {"03/01/2024"}, "end": {"2024-04-01"}}, "invalid start date"},
			{"bad format", url.Values{"source": {"a"}, "format": {"week"}}, "unknown date format"},
			{"bad width", url.Values{"source": {"a"}, "width": {"-5"}}, "invalid width"},
			{"unknown kind", url.Values{"source": {"a"}, "kind": {"MWh"}}, "unknown measurement kind"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				mockS := &storagemock.MockDatabase{}
				w := doChart(t, newServer(mockS), tt.query)
				assert.Equal(t, http.StatusBadRequest, w.Code)
				assert.Contains(t, w.Body.String(), tt.errMsg)
				mockS.AssertNotCalled(t, "GetReadings", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("store failure", func(t *testing.T) {
		mockS := &storagemock.MockDatabase{}
		mockS.On("GetReadings", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

		w := doChart(t, newServer(mockS), url.Values{"source": {"a"}})
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), `"message"`)
	})
}

func TestHandleChartCatalog(t *testing.T) {
	c, err := catalog.Parse([]byte("meters:\n  - meter_id: eg_strom\n    description: Ground Floor\n    color: \"#abcdef\"\n"))
	require.NoError(t, err)

	mockS := &storagemock.MockDatabase{}
	mockS.On("GetReadings", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(map[string][]types.Reading{}, nil)
	srv := New(mockS)
	srv.catalog = c

	q := url.Values{}
	q.Add("source", "eg_strom")
	q.Add("source", "og1_strom")
	w := doChart(t, srv, q)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body chartBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Len(t, body.Sources, 2)
	assert.Equal(t, types.Source{ID: "eg_strom", Name: "Ground Floor", Color: "#abcdef"}, body.Sources[0])
	assert.Equal(t, types.Source{ID: "og1_strom", Name: "Og1 Strom", Color: palette[1]}, body.Sources[1])
}

func TestHandleListPresets(t *testing.T) {
	srv := New(&storagemock.MockDatabase{})
	now := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
	srv.now = func() time.Time { return now }

	req := httptest.NewRequest(http.MethodGet, "/api/presets", nil)
	w := httptest.NewRecorder()
	srv.setupHandler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "default-src 'none'")

	var body presetResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "Last 30 Days", body.Default)
	require.Len(t, body.Presets, 7)
	assert.Equal(t, "Year to Date", body.Presets[5].Label)
	assert.True(t, body.Presets[5].Start.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestHandleChartMixedUnits(t *testing.T) {
	c, err := catalog.Parse([]byte("meters:\n  - meter_id: eg_strom\n    output_unit: kWh\n  - meter_id: wasser_haus\n    output_unit: m³\n"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		query  url.Values
		status int
	}{
		{"water meter on electricity chart", url.Values{"source": {"eg_strom", "wasser_haus"}}, http.StatusBadRequest},
		{"electricity meter on water chart", url.Values{"source": {"eg_strom"}, "kind": {storage.KindWater}}, http.StatusBadRequest},
		{"matching units", url.Values{"source": {"wasser_haus", "unlisted"}, "kind": {storage.KindWater}}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockS := &storagemock.MockDatabase{}
			mockS.On("GetReadings", mock.Anything, storage.KindWater, mock.Anything, mock.Anything).Return(map[string][]types.Reading{}, nil)
			srv := New(mockS)
			srv.catalog = c

			w := doChart(t, srv, tt.query)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.status == http.StatusBadRequest {
				assert.Contains(t, w.Body.String(), "records")
				mockS.AssertNotCalled(t, "GetReadings", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}
