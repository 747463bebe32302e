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

package services

import (
	"io/fs"
	"net/http"

	"streamhub/modules/middleware"
	"streamhub/modules/server"
)

var _ server.RegistrableService = (*APIService)(nil)

// Router is implemented by the REST adapters of each bounded context.
type Router interface {
	Routes(mux *http.ServeMux)
}

// APIService mounts the REST adapters and validates every request against
// the OpenAPI document they implement.
type APIService struct {
	routers    []Router
	validation func(http.Handler) http.Handler
}

func NewAPIService(specFS fs.FS, specPath string, routers ...Router) (*APIService, error) {
	validation, err := middleware.OpenAPIValidation(specFS, specPath)
	if err != nil {
		return nil, err
	}
	return &APIService{routers: routers, validation: validation}, nil
}

func (s *APIService) Register(mux *http.ServeMux) {
	for _, r := range s.routers {
		r.Routes(mux)
	}
}

func (s *APIService) Middlewares() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{s.validation}
}
