// Copyright 2025 Nguyen Nhat Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rest

import (
	"net/http"

	"streamhub/core/stream/domain"
)

// StreamAPI is the REST adapter of the stream domain. Every route except the
// publish key set requires a bearer token; authenticate is applied per route
// so the key set stays reachable by the media relay.
type StreamAPI struct {
	app          *domain.Application
	authenticate func(http.Handler) http.Handler
	publishKeys  http.Handler
}

// NewStreamAPI wires the handlers. publishKeys serves the publish-domain
// discovery document.
func NewStreamAPI(app *domain.Application, authenticate func(http.Handler) http.Handler, publishKeys http.Handler) *StreamAPI {
	return &StreamAPI{app: app, authenticate: authenticate, publishKeys: publishKeys}
}

// Routes mounts the stream endpoints on mux.
func (a *StreamAPI) Routes(mux *http.ServeMux) {
	protected := func(h http.HandlerFunc) http.Handler { return a.authenticate(h) }

	mux.Handle("POST /api/stream", protected(a.CreateStream))
	mux.Handle("GET /api/stream", protected(a.listing(func(*http.Request) domain.ListFilter {
		return domain.ListFilter{}
	})))
	mux.Handle("GET /api/stream/mine", protected(a.listing(func(r *http.Request) domain.ListFilter {
		return domain.ListFilter{Owner: caller(r)}
	})))
	mux.Handle("GET /api/stream/live", protected(a.listing(func(*http.Request) domain.ListFilter {
		return domain.ListFilter{Status: domain.StatusLive}
	})))
	mux.Handle("GET /api/stream/ended", protected(a.listing(func(*http.Request) domain.ListFilter {
		return domain.ListFilter{Status: domain.StatusEnded}
	})))
	mux.Handle("GET /api/stream/{streamId}", protected(a.GetStream))
	mux.Handle("PUT /api/stream/{streamId}", protected(a.UpdateStream))
	mux.Handle("DELETE /api/stream/{streamId}", protected(a.DeleteStream))
	mux.Handle("PUT /api/stream/{streamId}/live", protected(a.statusChange(domain.StatusLive)))
	mux.Handle("PUT /api/stream/{streamId}/ended", protected(a.statusChange(domain.StatusEnded)))
	mux.Handle("GET /api/stream/{streamId}/jwt", protected(a.GetStreamToken))

	if a.publishKeys != nil {
		mux.Handle("GET /api/publish/jwks", a.publishKeys)
	}
}
