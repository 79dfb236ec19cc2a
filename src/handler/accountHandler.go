package handler

import (
	"context"
	"net/http"
	"time"

	logger "github.com/sirupsen/logrus"

	"quantsystem/src/model"
	"quantsystem/src/paper"
)

type accountReader interface {
	GetAccountInfo(ctx context.Context) (*paper.AccountInfo, error)
	GetPositions(ctx context.Context) ([]model.Position, error)
}

type selectionReader interface {
	LatestRanking(ctx context.Context, limit int) ([]model.Selection, error)
}

type snapshotReader interface {
	Curve(ctx context.Context, since time.Time, limit int) ([]model.PortfolioSnapshot, error)
}

type exceptionReader interface {
	FindLatest(ctx context.Context, limit int) ([]model.Exception, error)
}

// AccountHandler returns cash, equity and total value at current reference prices.
func AccountHandler(trader accountReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := trader.GetAccountInfo(r.Context())
		if err != nil {
			logger.WithError(err).Error("failed to load account")
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

// PositionsHandler lists open positions.
func PositionsHandler(trader accountReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		positions, err := trader.GetPositions(r.Context())
		if err != nil {
			logger.WithError(err).Error("failed to load positions")
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		writeJSON(w, http.StatusOK, positions)
	}
}

// SelectionsHandler returns the latest ranking, best first.
func SelectionsHandler(repo selectionReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := intQuery(r, "limit", 20)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}

		sels, err := repo.LatestRanking(r.Context(), limit)
		if err != nil {
			logger.WithError(err).Error("failed to load selections")
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		writeJSON(w, http.StatusOK, sels)
	}
}

// SnapshotsHandler returns the equity curve since the given RFC3339 time,
// defaulting to the last 30 days.
func SnapshotsHandler(repo snapshotReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		since := time.Now().UTC().AddDate(0, 0, -30)
		if raw := r.URL.Query().Get("since"); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid since")
				return
			}
			since = parsed
		}
		limit, ok := intQuery(r, "limit", 1000)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}

		curve, err := repo.Curve(r.Context(), since, limit)
		if err != nil {
			logger.WithError(err).Error("failed to load snapshots")
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		writeJSON(w, http.StatusOK, curve)
	}
}

// ExceptionsHandler lists recently captured failures.
func ExceptionsHandler(repo exceptionReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := intQuery(r, "limit", 50)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}

		excs, err := repo.FindLatest(r.Context(), limit)
		if err != nil {
			logger.WithError(err).Error("failed to load exceptions")
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		writeJSON(w, http.StatusOK, excs)
	}
}
