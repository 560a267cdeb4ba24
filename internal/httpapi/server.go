package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"assetd/internal/loader"
	"assetd/pkg/types"
)

// Service defines the engine methods required by the HTTP API layer.
type Service interface {
	Load(ctx context.Context, paths []string, bundleID string, opts loader.Options) error
	Subscribe(bundleIDs []string, cb func(failed []string))
	Done(bundleID string)
	IsDeclared(bundleID string) bool
	Reset()
	LoadKey(ctx context.Context, key string, done func())
	Outcome(bundleID string) ([]string, bool)
	Snapshot() types.StatusResponse
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	// handleLoad declares and loads a bundle.
	//
	// @Summary      Declare and load a bundle
	// @Accept       json
	// @Produce      json
	// @Param        request body types.LoadRequest true "paths and bundle id"
	// @Success      200 {object} types.LoadResponse "waited completion"
	// @Success      202 {object} types.LoadResponse "accepted"
	// @Failure      400 {object} types.ErrorResponse
	// @Failure      409 {object} types.ErrorResponse "bundle already declared"
	// @Router       /v1/bundles [post]
	r.Post("/v1/bundles", func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeJSON[types.LoadRequest](w, r)
		if !ok {
			return
		}
		lvl := requestLogLevel(r)
		if lvl >= LevelInfo {
			if zlog != nil {
				z := zlog.Info().Str("path", r.URL.Path).Str("bundle", req.Bundle).Int("paths", len(req.Paths))
				if rid := middleware.GetReqID(r.Context()); rid != "" {
					z = z.Str("request_id", rid)
				}
				z.Msg("load start")
			} else {
				log.Printf("load start bundle=%s paths=%d", req.Bundle, len(req.Paths))
			}
		}

		retries := req.NumRetries
		if retries == 0 {
			retries = defaultNumRetries
		}
		done := make(chan []string, 1)
		opts := loader.Options{
			NumRetries: retries,
			Sync:       req.Sync,
			Success:    func() { done <- nil },
			Error:      func(notFound []string) { done <- notFound },
		}
		// Loads outlive the request; dispatch under the server context.
		if err := svc.Load(serverBaseCtx, req.Paths, req.Bundle, opts); err != nil {
			if loader.IsDuplicateBundle(err) {
				writeJSONError(w, http.StatusConflict, err.Error())
				return
			}
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if !req.Wait {
			writeJSON(w, http.StatusAccepted, types.LoadResponse{Bundle: req.Bundle})
			return
		}
		ctx, cancel := waitContext(r)
		defer cancel()
		select {
		case notFound := <-done:
			if lvl >= LevelInfo {
				if zlog != nil {
					z := zlog.Info().Str("bundle", req.Bundle).Strs("not_found", notFound)
					if rid := middleware.GetReqID(r.Context()); rid != "" {
						z = z.Str("request_id", rid)
					}
					z.Msg("load end")
				} else {
					log.Printf("load end bundle=%s not_found=%v", req.Bundle, notFound)
				}
			}
			writeJSON(w, http.StatusOK, types.LoadResponse{
				Bundle:   req.Bundle,
				NotFound: notFound,
				OK:       len(notFound) == 0,
			})
		case <-ctx.Done():
			writeJSONError(w, http.StatusGatewayTimeout, "timed out waiting for bundle")
		}
	})

	// handleBundleStatus reports one bundle's state.
	//
	// @Summary      Bundle state
	// @Produce      json
	// @Param        id path string true "bundle id"
	// @Success      200 {object} types.BundleStatus
	// @Failure      404 {object} types.ErrorResponse
	// @Router       /v1/bundles/{id} [get]
	r.Get("/v1/bundles/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		outcome, published := svc.Outcome(id)
		if !published && !svc.IsDeclared(id) {
			writeJSONError(w, http.StatusNotFound, "unknown bundle: "+id)
			return
		}
		st := types.BundleStatus{ID: id, State: types.BundlePending}
		if published {
			if len(outcome) > 0 {
				st.State = types.BundleFailed
				st.NotFound = outcome
			} else {
				st.State = types.BundleLoaded
			}
		}
		writeJSON(w, http.StatusOK, st)
	})

	// handleDone marks a bundle complete without loading anything.
	//
	// @Summary      Manual bundle completion
	// @Param        id path string true "bundle id"
	// @Success      204
	// @Router       /v1/bundles/{id}/done [post]
	r.Post("/v1/bundles/{id}/done", func(w http.ResponseWriter, r *http.Request) {
		svc.Done(chi.URLParam(r, "id"))
		w.WriteHeader(http.StatusNoContent)
	})

	// handleReady blocks until the listed bundles have completed.
	//
	// @Summary      Wait for bundles
	// @Accept       json
	// @Produce      json
	// @Param        request body types.ReadyRequest true "bundle ids"
	// @Success      200 {object} types.ReadyResponse
	// @Failure      400 {object} types.ErrorResponse
	// @Router       /v1/ready [post]
	r.Post("/v1/ready", func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeJSON[types.ReadyRequest](w, r)
		if !ok {
			return
		}
		if len(req.Bundles) == 0 {
			writeJSONError(w, http.StatusBadRequest, "bundles is required")
			return
		}
		done := make(chan []string, 1)
		svc.Subscribe(req.Bundles, func(failed []string) { done <- failed })
		ctx, cancel := waitContext(r)
		defer cancel()
		select {
		case failed := <-done:
			writeJSON(w, http.StatusOK, types.ReadyResponse{Failed: failed, OK: len(failed) == 0})
		case <-ctx.Done():
			writeJSONError(w, http.StatusGatewayTimeout, "timed out waiting for bundles")
		}
	})

	// handleKey resolves one configured key, loading its dependency closure.
	//
	// @Summary      Keyed load
	// @Produce      json
	// @Param        key path string true "config entry name"
	// @Success      200 {object} types.ReadyResponse
	// @Router       /v1/keys/{key} [post]
	r.Post("/v1/keys/{key}", func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		done := make(chan struct{}, 1)
		svc.LoadKey(serverBaseCtx, key, func() { done <- struct{}{} })
		ctx, cancel := waitContext(r)
		defer cancel()
		select {
		case <-done:
			writeJSON(w, http.StatusOK, types.ReadyResponse{OK: true})
		case <-ctx.Done():
			writeJSONError(w, http.StatusGatewayTimeout, "timed out resolving key")
		}
	})

	// handleReset clears declared ids, cached outcomes and subscriptions.
	//
	// @Summary      Reset engine state
	// @Success      204
	// @Router       /v1/reset [post]
	r.Post("/v1/reset", func(w http.ResponseWriter, r *http.Request) {
		svc.Reset()
		w.WriteHeader(http.StatusNoContent)
	})

	// handleStatus reports the full engine snapshot.
	//
	// @Summary      Engine status
	// @Produce      json
	// @Success      200 {object} types.StatusResponse
	// @Router       /status [get]
	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Snapshot())
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// decodeJSON enforces the JSON content type and body limit, then decodes.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var req T
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return req, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return req, false
	}
	return req, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

// waitContext joins the request context with the server base context and the
// configured wait timeout.
func waitContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	if waitTimeout <= 0 {
		return ctx, cancel
	}
	tctx, tcancel := context.WithTimeout(ctx, time.Duration(waitTimeout)*time.Second)
	return tctx, func() { tcancel(); cancel() }
}
