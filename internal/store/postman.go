package store

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/unkn0wn-root/commandpost/internal/errdef"
	"github.com/unkn0wn-root/commandpost/internal/request"
)

// PostmanCollection covers the subset of the v2.1 format that maps onto a
// request descriptor.
type PostmanCollection struct {
	Info postmanInfo   `json:"info"`
	Item []postmanItem `json:"item"`
}

type postmanInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Schema      string `json:"schema"`
}

type postmanItem struct {
	Name    string          `json:"name"`
	Request *postmanRequest `json:"request,omitempty"`
	Item    []postmanItem   `json:"item,omitempty"`
}

type postmanRequest struct {
	Method string      `json:"method"`
	URL    postmanURL  `json:"url"`
	Header []postmanKV `json:"header"`
	Body   *struct {
		Mode string `json:"mode"`
		Raw  string `json:"raw,omitempty"`
	} `json:"body"`
}

type postmanKV struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Disabled bool   `json:"disabled"`
}

// postmanURL accepts both the object form and a bare string.
type postmanURL struct {
	Raw string `json:"raw"`
}

func (u *postmanURL) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		u.Raw = s
		return nil
	}
	type alias postmanURL
	var obj alias
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*u = postmanURL(obj)
	return nil
}

// ImportCollections reads a Postman collection file and stores every
// request, folders flattened depth first, under the collection's name.
func (s *Store) ImportCollections(ctx context.Context, path string) (Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Collection{}, errdef.Wrap(errdef.CodePersistence, err, "read %s", path)
	}
	var pc PostmanCollection
	if err := json.Unmarshal(data, &pc); err != nil {
		return Collection{}, errdef.Wrap(errdef.CodePersistence, err, "parse postman collection %s", path)
	}

	name := strings.TrimSpace(pc.Info.Name)
	if name == "" {
		return Collection{}, errdef.New(errdef.CodePersistence, "postman collection %s has no name", path)
	}
	col := Collection{Name: name, Requests: flattenPostman(pc.Item, nil)}
	if len(col.Requests) == 0 {
		s.logger.Info("postman collection has no requests", "name", name)
		return col, nil
	}
	if err := s.SaveCollection(ctx, name, col.Requests); err != nil {
		return Collection{}, err
	}
	s.logger.Info("imported postman collection", "name", name, "requests", len(col.Requests))
	return col, nil
}

func flattenPostman(items []postmanItem, out []request.Descriptor) []request.Descriptor {
	for _, item := range items {
		if item.Request != nil {
			out = append(out, postmanDescriptor(item.Request))
		}
		if len(item.Item) > 0 {
			out = flattenPostman(item.Item, out)
		}
	}
	return out
}

func postmanDescriptor(req *postmanRequest) request.Descriptor {
	headers := make(map[string]string, len(req.Header))
	for _, h := range req.Header {
		if h.Disabled {
			continue
		}
		headers[h.Key] = h.Value
	}
	var body string
	if req.Body != nil {
		body = req.Body.Raw
	}
	method := req.Method
	if method == "" {
		method = "GET"
	}
	return request.FromData(request.Data{
		Method:  method,
		URL:     req.URL.Raw,
		Headers: headers,
		Body:    body,
		Timeout: request.DefaultTimeoutMs,
	})
}
