package openapi

import (
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
)

// Operation describes a documented route. Routes without an entry are still
// listed with a generated summary.
type Operation struct {
	Summary     string
	Tag         string
	RequestBody string
	Response    string
	Status      int
	Query       []string
}

// Generator builds an OpenAPI 3.0 document from the routes registered on an
// echo instance.
type Generator struct {
	version    string
	baseURL    string
	operations map[string]Operation
}

func NewGenerator(version, baseURL string) *Generator {
	return &Generator{version: version, baseURL: baseURL, operations: defaultOperations()}
}

// Describe overrides the documentation for "METHOD /path" (echo syntax).
func (g *Generator) Describe(method, path string, op Operation) {
	g.operations[method+" "+path] = op
}

var documentedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// GenerateSpec produces the document for routes. Echo's internal
// not-found routes and wildcard paths are skipped.
func (g *Generator) GenerateSpec(routes []*echo.Route) map[string]interface{} {
	sorted := make([]*echo.Route, 0, len(routes))
	for _, r := range routes {
		if !documentedMethods[r.Method] || strings.Contains(r.Path, "*") {
			continue
		}
		sorted = append(sorted, r)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Path != sorted[j].Path {
			return sorted[i].Path < sorted[j].Path
		}
		return sorted[i].Method < sorted[j].Method
	})

	paths := make(map[string]interface{})
	for _, r := range sorted {
		path, params := convertPath(r.Path)
		item, _ := paths[path].(map[string]interface{})
		if item == nil {
			item = make(map[string]interface{})
			paths[path] = item
		}
		item[strings.ToLower(r.Method)] = g.buildOperation(r, params)
	}

	return map[string]interface{}{
		"openapi": "3.0.3",
		"info": map[string]interface{}{
			"title":       "Florens API",
			"version":     g.version,
			"description": "Dental practice management: patients, procedures, appointments and odontograms",
		},
		"servers": []map[string]string{
			{"url": g.baseURL},
		},
		"paths": paths,
		"components": map[string]interface{}{
			"schemas": buildComponentSchemas(),
			"securitySchemes": map[string]interface{}{
				"bearerAuth": map[string]interface{}{"type": "http", "scheme": "bearer", "bearerFormat": "JWT"},
			},
		},
	}
}

// convertPath turns "/patients/:id" into "/patients/{id}" and returns the
// path parameter names.
func convertPath(path string) (string, []string) {
	segments := strings.Split(path, "/")
	var params []string
	for i, s := range segments {
		if strings.HasPrefix(s, ":") {
			params = append(params, s[1:])
			segments[i] = "{" + s[1:] + "}"
		}
	}
	return strings.Join(segments, "/"), params
}

func (g *Generator) buildOperation(r *echo.Route, pathParams []string) map[string]interface{} {
	op, known := g.operations[r.Method+" "+r.Path]
	if !known {
		op = Operation{Summary: r.Method + " " + r.Path}
	}
	if op.Tag == "" {
		op.Tag = tagFor(r.Path)
	}
	if op.Status == 0 {
		op.Status = http.StatusOK
	}

	params := make([]map[string]interface{}, 0, len(pathParams)+len(op.Query))
	for _, p := range pathParams {
		params = append(params, map[string]interface{}{
			"name": p, "in": "path", "required": true,
			"schema": map[string]string{"type": "integer", "format": "int64"},
		})
	}
	for _, q := range op.Query {
		params = append(params, map[string]interface{}{
			"name": q, "in": "query", "required": false, "schema": queryParamSchema(q),
		})
	}

	out := map[string]interface{}{
		"summary":     op.Summary,
		"operationId": operationID(r.Method, r.Path),
		"tags":        []string{op.Tag},
		"parameters":  params,
		"responses":   buildResponses(op),
	}
	if op.RequestBody != "" {
		out["requestBody"] = map[string]interface{}{
			"required": true,
			"content": map[string]interface{}{
				"application/json": map[string]interface{}{
					"schema": map[string]string{"$ref": "#/components/schemas/" + op.RequestBody},
				},
			},
		}
	}
	if strings.HasPrefix(r.Path, "/api/") {
		out["security"] = []map[string][]string{{"bearerAuth": {}}}
	}
	return out
}

func buildResponses(op Operation) map[string]interface{} {
	success := map[string]interface{}{"description": http.StatusText(op.Status)}
	if op.Response != "" {
		success["content"] = map[string]interface{}{
			"application/json": map[string]interface{}{
				"schema": map[string]string{"$ref": "#/components/schemas/" + op.Response},
			},
		}
	}
	errRef := map[string]interface{}{
		"application/json": map[string]interface{}{
			"schema": map[string]string{"$ref": "#/components/schemas/Error"},
		},
	}
	return map[string]interface{}{
		statusKey(op.Status): success,
		"400":                map[string]interface{}{"description": "Validation error", "content": errRef},
		"404":                map[string]interface{}{"description": "Not found", "content": errRef},
		"500":                map[string]interface{}{"description": "Internal error", "content": errRef},
	}
}

func statusKey(status int) string {
	switch status {
	case http.StatusCreated:
		return "201"
	case http.StatusNoContent:
		return "204"
	default:
		return "200"
	}
}

// tagFor groups API routes by resource; patient sub-resources get their own
// tag. Everything outside the API prefix is "system".
func tagFor(path string) string {
	trimmed := strings.TrimPrefix(path, "/api/v1/")
	if trimmed == path {
		return "system"
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) >= 3 && parts[0] == "patients" {
		return parts[2]
	}
	return parts[0]
}

func operationID(method, path string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(method))
	for _, s := range strings.Split(strings.TrimPrefix(path, "/api/v1"), "/") {
		s = strings.TrimPrefix(s, ":")
		s = strings.NewReplacer(".", "", "-", "", "_", "").Replace(s)
		if s == "" {
			continue
		}
		b.WriteString(strings.ToUpper(s[:1]) + s[1:])
	}
	return b.String()
}

func queryParamSchema(name string) map[string]interface{} {
	switch name {
	case "limit":
		return map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 100, "default": 20}
	case "offset":
		return map[string]interface{}{"type": "integer", "minimum": 0, "default": 0}
	case "patient_id", "insurer_id":
		return map[string]interface{}{"type": "integer", "format": "int64"}
	case "all":
		return map[string]interface{}{"type": "boolean", "default": false}
	case "date", "from":
		return map[string]interface{}{"type": "string", "format": "date"}
	case "status":
		return map[string]interface{}{"type": "string", "enum": appointmentStatuses}
	default:
		return map[string]interface{}{"type": "string"}
	}
}

// RegisterRoutes serves the document and a Swagger UI page. The document is
// built per request so it always reflects the live route table.
func (g *Generator) RegisterRoutes(e *echo.Echo) {
	e.GET("/openapi.json", func(c echo.Context) error {
		return c.JSON(http.StatusOK, g.GenerateSpec(e.Routes()))
	})
	e.GET("/docs", func(c echo.Context) error {
		return c.HTML(http.StatusOK, swaggerUIHTML)
	})
}

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Florens API - Swagger UI</title>
  <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" >
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: "/openapi.json",
      dom_id: '#swagger-ui',
      deepLinking: true,
      presets: [SwaggerUIBundle.presets.apis],
    })
  </script>
</body>
</html>`
