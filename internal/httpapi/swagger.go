//go:build swagger

package httpapi

import (
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/swaggo/swag"
)

// swaggerInfo is overwritten by `swag init` output when docs are generated;
// the template below is the fallback served otherwise.
var swaggerInfo = &swag.Spec{
	Version:          "1.0",
	BasePath:         "/",
	Title:            "assetd API",
	Description:      "HTTP API for bundled asset loading and readiness tracking.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  `{"swagger":"2.0","info":{"title":"assetd API","version":"1.0"},"basePath":"/","paths":{}}`,
}

func init() {
	swag.Register(swaggerInfo.InstanceName(), swaggerInfo)
}

// MountSwagger serves interactive API docs at /docs.
func MountSwagger(r chi.Router) {
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/doc.json"),
	))
}
