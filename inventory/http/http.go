// Package http contains HTTP handlers for reading the scan history inventory.
package http

import (
	"errors"
	"net/http"
	"sort"

	"github.com/micromdm/nanoprobe/http/api"
	"github.com/micromdm/nanoprobe/inventory/storage"
	"github.com/micromdm/nanoprobe/log/logkeys"

	"github.com/micromdm/nanolib/log"
	"github.com/micromdm/nanolib/log/ctxlog"
)

var ErrNoStorage = errors.New("no storage backend")

// RetrieveInventory returns an HTTP handler that retrieves inventory data for device IDs.
func RetrieveInventory(store storage.ReadStorage, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		if store == nil {
			logger.Info(logkeys.Message, "retrieve inventory", logkeys.Error, ErrNoStorage)
			api.JSONError(w, ErrNoStorage, 0)
			return
		}

		ids := r.URL.Query()["id"]
		if len(ids) < 1 {
			logger.Info(logkeys.Message, "parameters", logkeys.Error, storage.ErrNoIDs)
			api.JSONError(w, storage.ErrNoIDs, http.StatusBadRequest)
			return
		}

		logger = logger.With(
			logkeys.FirstID, ids[0],
			logkeys.GenericCount, len(ids),
		)
		opts := &storage.SearchOptions{IDs: ids}
		idValues, err := store.RetrieveInventory(r.Context(), opts)
		if err != nil {
			logger.Info(logkeys.Message, "retrieve inventory", logkeys.Error, err)
			api.JSONError(w, err, 0)
			return
		}
		logger.Debug(
			logkeys.Message, "retrieved inventory",
		)
		if err = api.JSON(w, idValues); err != nil {
			logger.Info(logkeys.Message, "encode response", logkeys.Error, err)
		}
	}
}

// ListIDs returns an HTTP handler that lists the sorted IDs of every stored device.
func ListIDs(store storage.ReadStorage, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		if store == nil {
			logger.Info(logkeys.Message, "list inventory", logkeys.Error, ErrNoStorage)
			api.JSONError(w, ErrNoStorage, 0)
			return
		}

		ids, err := store.ListIDs(r.Context())
		if err != nil {
			logger.Info(logkeys.Message, "list inventory", logkeys.Error, err)
			api.JSONError(w, err, 0)
			return
		}
		sort.Strings(ids)
		if ids == nil {
			ids = []string{}
		}
		logger.Debug(logkeys.Message, "listed inventory", logkeys.GenericCount, len(ids))
		if err = api.JSON(w, ids); err != nil {
			logger.Info(logkeys.Message, "encode response", logkeys.Error, err)
		}
	}
}
