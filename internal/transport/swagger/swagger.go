package swagger

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	httpSwagger "github.com/swaggo/http-swagger"
)

//go:embed openapi.yml
var openAPISpec []byte

// Document is the parsed and validated OpenAPI description served at /openapi.yml.
type Document struct {
	raw []byte
	doc *openapi3.T
}

// Load parses the embedded document and fails if it is not valid OpenAPI 3.
func Load(ctx context.Context) (*Document, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openAPISpec)
	if err != nil {
		return nil, fmt.Errorf("failed to parse openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}
	return &Document{raw: openAPISpec, doc: doc}, nil
}

// Operations lists the operation ids in the document.
func (d *Document) Operations() []string {
	var ids []string
	for _, item := range d.doc.Paths.Map() {
		for _, op := range item.Operations() {
			ids = append(ids, op.OperationID)
		}
	}
	return ids
}

func (d *Document) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(d.raw)
}

func Handler() http.Handler {
	return httpSwagger.Handler(
		httpSwagger.URL("/openapi.yml"), // URL to the OpenAPI spec served at root
	)
}
