package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aretw0/formtree/api"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

func newRouter() (*openapi3.T, routers.Router, error) {
	doc, err := api.Load()
	if err != nil {
		return nil, nil, err
	}
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("route openapi document: %w", err)
	}
	return doc, router, nil
}

// validateRequests rejects requests that do not match the OpenAPI document. Paths the
// document does not describe fall through to chi. A body without a Content-Type is read
// as JSON.
func (s *Server) validateRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, params, err := s.router.FindRoute(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength != 0 && r.Header.Get("Content-Type") == "" {
			r.Header.Set("Content-Type", "application/json")
		}
		input := &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: params,
			Route:      route,
		}
		if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
			s.writeError(w, r, badRequest(validationMessage(err)))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func validationMessage(err error) string {
	var schemaErr *openapi3.SchemaError
	if errors.As(err, &schemaErr) {
		if ptr := schemaErr.JSONPointer(); len(ptr) > 0 {
			return fmt.Sprintf("invalid request body: /%s: %s", strings.Join(ptr, "/"), schemaErr.Reason)
		}
		return "invalid request body: " + schemaErr.Reason
	}
	return "invalid request: " + err.Error()
}

// sessionID binds the {id} path parameter.
func sessionID(r *http.Request) (string, error) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		return "", badRequest(fmt.Sprintf("invalid path parameter id: %v", err))
	}
	return id, nil
}

// eventsSessionID binds the optional session_id query parameter of /events.
func eventsSessionID(r *http.Request) (string, error) {
	var id *string
	if err := runtime.BindQueryParameter("form", true, false, "session_id", r.URL.Query(), &id); err != nil {
		return "", badRequest(fmt.Sprintf("invalid query parameter session_id: %v", err))
	}
	if id == nil {
		return "", nil
	}
	return *id, nil
}

// ServeDocument handles GET /openapi.yaml.
func (s *Server) ServeDocument(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	if _, err := w.Write(api.Document()); err != nil {
		s.logger.Error("openapi document write failed", "err", err)
	}
}

// ServeSwagger handles GET /swagger.
func (s *Server) ServeSwagger(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := w.Write([]byte(swaggerHTML)); err != nil {
		s.logger.Error("swagger page write failed", "err", err)
	}
}

const swaggerHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>formtree API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`
