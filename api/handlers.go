// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"tracdap.io/tracmeta/metadata"
	"tracdap.io/tracmeta/metadata/metaservice"
)

func (s *Server) writeJSON(w http.ResponseWriter, method string, code int, payload any) {
	requestCount.WithLabelValues(method, strconv.Itoa(code)).Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Warn("unable to write response", zap.String("method", method), zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, method string, err error) {
	status := metaservice.MapError(err)
	if status.Code == metaservice.StatusInternal {
		s.log.Error("internal error", zap.String("method", method), zap.Error(err))
	}
	s.writeJSON(w, method, status.Code.HTTPStatus(), status)
}

func decodeBody(r *http.Request, into any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return metaservice.ErrBadRequest.New("malformed request body: %w", err)
	}
	return nil
}

// intercept decodes nothing itself; it runs the interceptor over an already
// decoded message and reports whether the call may proceed.
func (s *Server) intercept(ctx context.Context, w http.ResponseWriter, method string, request any) bool {
	if err := s.interceptor.Intercept(ctx, method, request); err != nil {
		s.writeError(w, method, err)
		return false
	}
	return true
}

// writeHandler serves the single-entry mutation endpoints, which all share
// the WriteRequest message and return one tag header.
func (s *Server) writeHandler(method string,
	call func(context.Context, metaservice.WriteRequest) (metadata.TagHeader, error)) http.HandlerFunc {

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := callerContext(r)

		var req metaservice.WriteRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, method, err)
			return
		}
		req.Tenant = mux.Vars(r)["tenant"]

		if !s.intercept(ctx, w, method, req) {
			return
		}
		header, err := call(ctx, req)
		if err != nil {
			s.writeError(w, method, err)
			return
		}
		s.writeJSON(w, method, http.StatusOK, header)
	}
}

func (s *Server) handleWriteBatch(method string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := callerContext(r)

		var req metaservice.WriteBatchRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, method, err)
			return
		}
		req.Tenant = mux.Vars(r)["tenant"]

		if !s.intercept(ctx, w, method, req) {
			return
		}
		resp, err := s.writer.WriteBatch(ctx, req)
		if err != nil {
			s.writeError(w, method, err)
			return
		}
		s.writeJSON(w, method, http.StatusOK, resp)
	}
}

func (s *Server) handlePreallocate(w http.ResponseWriter, r *http.Request) {
	method := metaservice.MethodTrustedPreallocateID
	ctx := callerContext(r)

	var req metaservice.PreallocateRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, method, err)
		return
	}
	req.Tenant = mux.Vars(r)["tenant"]

	if !s.intercept(ctx, w, method, req) {
		return
	}
	headers, err := s.writer.PreallocateIDs(ctx, req)
	if err != nil {
		s.writeError(w, method, err)
		return
	}
	s.writeJSON(w, method, http.StatusOK, headers)
}

func (s *Server) handleReadObject(w http.ResponseWriter, r *http.Request) {
	method := metaservice.MethodReadObject
	ctx := callerContext(r)

	var req metaservice.ReadRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, method, err)
		return
	}
	req.Tenant = mux.Vars(r)["tenant"]

	if !s.intercept(ctx, w, method, req) {
		return
	}
	tag, err := s.reader.ReadObject(ctx, req)
	if err != nil {
		s.writeError(w, method, err)
		return
	}
	s.writeJSON(w, method, http.StatusOK, tag)
}

func (s *Server) handleReadBatch(w http.ResponseWriter, r *http.Request) {
	method := metaservice.MethodReadBatch
	ctx := callerContext(r)

	var req metaservice.BatchReadRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, method, err)
		return
	}
	req.Tenant = mux.Vars(r)["tenant"]

	if !s.intercept(ctx, w, method, req) {
		return
	}
	tags, err := s.reader.ReadBatch(ctx, req)
	if err != nil {
		s.writeError(w, method, err)
		return
	}
	s.writeJSON(w, method, http.StatusOK, tags)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	method := metaservice.MethodSearch
	ctx := callerContext(r)

	var req metaservice.SearchRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, method, err)
		return
	}
	req.Tenant = mux.Vars(r)["tenant"]

	if !s.intercept(ctx, w, method, req) {
		return
	}
	tags, err := s.reader.Search(ctx, req)
	if err != nil {
		s.writeError(w, method, err)
		return
	}
	s.writeJSON(w, method, http.StatusOK, tags)
}

func (s *Server) handlePlatformInfo(w http.ResponseWriter, r *http.Request) {
	method := metaservice.MethodPlatformInfo
	ctx := callerContext(r)

	if !s.intercept(ctx, w, method, nil) {
		return
	}
	s.writeJSON(w, method, http.StatusOK, s.reader.PlatformInfo(ctx))
}

func (s *Server) handleListTenants(w http.ResponseWriter, r *http.Request) {
	method := metaservice.MethodListTenants
	ctx := callerContext(r)

	if !s.intercept(ctx, w, method, nil) {
		return
	}
	tenants, err := s.reader.ListTenants(ctx)
	if err != nil {
		s.writeError(w, method, err)
		return
	}
	s.writeJSON(w, method, http.StatusOK, tenants)
}

func (s *Server) handleListResources(w http.ResponseWriter, r *http.Request) {
	method := metaservice.MethodListResources
	ctx := callerContext(r)

	if !s.intercept(ctx, w, method, nil) {
		return
	}
	s.writeJSON(w, method, http.StatusOK, s.reader.ListResources(ctx))
}

func (s *Server) handleResourceInfo(w http.ResponseWriter, r *http.Request) {
	method := metaservice.MethodResourceInfo
	ctx := callerContext(r)

	if !s.intercept(ctx, w, method, nil) {
		return
	}
	entry, err := s.reader.ResourceInfo(ctx, mux.Vars(r)["resource"])
	if err != nil {
		s.writeError(w, method, err)
		return
	}
	s.writeJSON(w, method, http.StatusOK, entry)
}
