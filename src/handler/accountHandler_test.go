package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantsystem/src/model"
	"quantsystem/src/paper"
)

type fakeAccount struct {
	err error
}

func (f *fakeAccount) GetAccountInfo(context.Context) (*paper.AccountInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &paper.AccountInfo{
		Cash:       decimal.NewFromInt(990_000),
		Equity:     decimal.NewFromInt(10_000),
		TotalValue: decimal.NewFromInt(1_000_000),
		Positions:  1,
	}, nil
}

func (f *fakeAccount) GetPositions(context.Context) ([]model.Position, error) {
	return []model.Position{{Symbol: "0700.HK", Quantity: 200}}, f.err
}

type fakeSnapshots struct {
	since time.Time
	limit int
}

func (f *fakeSnapshots) Curve(_ context.Context, since time.Time, limit int) ([]model.PortfolioSnapshot, error) {
	f.since, f.limit = since, limit
	return []model.PortfolioSnapshot{}, nil
}

type fakeSelections struct {
	limit int
}

func (f *fakeSelections) LatestRanking(_ context.Context, limit int) ([]model.Selection, error) {
	f.limit = limit
	return []model.Selection{{Symbol: "0700.HK", Rank: 1}}, nil
}

func TestAccountHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	AccountHandler(&fakeAccount{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/account", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"cash":"990000","equity":"10000","total_value":"1000000","positions":1}`, rr.Body.String())

	rr = httptest.NewRecorder()
	AccountHandler(&fakeAccount{err: assert.AnError}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/account", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestPositionsHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	PositionsHandler(&fakeAccount{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/positions", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"symbol":"0700.HK"`)
}

func TestSnapshotsHandlerParsesSince(t *testing.T) {
	repo := &fakeSnapshots{}
	rr := httptest.NewRecorder()
	SnapshotsHandler(repo).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/snapshots?since=2024-03-01T00:00:00Z&limit=10", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, repo.since.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 10, repo.limit)

	rr = httptest.NewRecorder()
	SnapshotsHandler(repo).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/snapshots?since=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSelectionsHandlerLimit(t *testing.T) {
	repo := &fakeSelections{}
	rr := httptest.NewRecorder()
	SelectionsHandler(repo).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/selections", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 20, repo.limit)

	rr = httptest.NewRecorder()
	SelectionsHandler(repo).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/selections?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
